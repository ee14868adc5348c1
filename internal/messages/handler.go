package messages

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/chatterbox-im/backend/internal/auth"
	"github.com/chatterbox-im/backend/internal/chat"
	"github.com/chatterbox-im/backend/internal/httpx"
	"github.com/chatterbox-im/backend/internal/storage"
	"github.com/chatterbox-im/backend/internal/utils"
)

type Service struct {
	Store storage.Store
	Hub   *chat.Hub
}

type pageReq struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type readReq struct {
	MessageIDs []int64 `json:"message_ids" binding:"required"`
}

func Register(rg *gin.RouterGroup, store storage.Store, hub *chat.Hub) {
	s := Service{
		Store: store,
		Hub:   hub,
	}
	rg.GET("/conversations/:id/messages", s.list)
	rg.POST("/messages/read", s.markRead)
}

// list serves durable history, newest first. Only participants may read.
func (s Service) list(c *gin.Context) {
	uid := auth.MustUserID(c)
	cid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if _, err := s.Store.Participant(c.Request.Context(), cid, uid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Err(c, http.StatusForbidden, "not a participant")
			return
		}
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}

	var q pageReq
	_ = c.BindQuery(&q)
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	list, err := s.Store.History(c.Request.Context(), cid, q.Limit, q.Offset)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}
	if list == nil {
		list = []storage.Message{}
	}
	httpx.OK(c, gin.H{"messages": list})
}

func (s Service) markRead(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.MessageIDs) == 0 {
		httpx.OK(c, gin.H{"message": "no messages to mark as read"})
		return
	}

	for _, mid := range req.MessageIDs {
		msg, err := s.Store.MessageByID(c.Request.Context(), mid)
		if err != nil {
			continue
		}
		if _, err := s.Store.Participant(c.Request.Context(), msg.ConversationID, uid); err != nil {
			continue
		}
		if err := s.Store.MarkRead(c.Request.Context(), mid, uid); err != nil {
			httpx.Err(c, http.StatusInternalServerError, "db error")
			return
		}

		// Notify the other participants through their personal groups.
		ids, err := s.Store.ParticipantIDs(c.Request.Context(), msg.ConversationID)
		if err != nil {
			continue
		}
		ids = slices.DeleteFunc(ids, func(id int64) bool { return id == uid })
		if len(ids) > 0 {
			s.Hub.BroadcastToUsers(ids, chat.EventReadReceipt, chat.ReadReceiptPayload{
				ConversationID: msg.ConversationID,
				MessageID:      mid,
				ReaderID:       uid,
				Timestamp:      time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	httpx.OK(c, gin.H{"message": "marked as read"})
}
