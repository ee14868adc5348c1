package conversations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/chatterbox-im/backend/internal/auth"
	"github.com/chatterbox-im/backend/internal/httpx"
	"github.com/chatterbox-im/backend/internal/storage"
	"github.com/chatterbox-im/backend/internal/utils"
)

type Service struct {
	Store storage.Store
}

type privateReq struct {
	OtherUserID int64 `json:"other_user_id" binding:"required"`
}

type groupReq struct {
	Name      string  `json:"name" binding:"required"`
	MemberIDs []int64 `json:"member_ids"`
}

type addReq struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type muteReq struct {
	UserID int64 `json:"user_id" binding:"required"`
	Muted  bool  `json:"muted"`
}

func Register(rg *gin.RouterGroup, store storage.Store) {
	s := Service{
		Store: store,
	}
	rg.POST("/conversations/private", s.createOrGetPrivate)
	rg.POST("/conversations/group", s.createGroup)
	rg.POST("/conversations/:id/participants", s.addParticipant)
	rg.DELETE("/conversations/:id/participants/:userId", s.removeParticipant)
	rg.POST("/conversations/:id/mute", s.setMuted)
	rg.GET("/conversations", s.listMine)
}

func (s Service) createOrGetPrivate(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req privateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	id, existed, err := s.Store.CreatePrivateConversation(c.Request.Context(), uid, req.OtherUserID)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "create conversation failed")
		return
	}
	httpx.OK(c, gin.H{"conversation_id": id, "is_group": false, "existed": existed})
}

func (s Service) createGroup(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req groupReq

	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	cid, err := s.Store.CreateGroupConversation(c.Request.Context(), req.Name, uid, req.MemberIDs)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "create group failed")
		return
	}
	httpx.OK(c, gin.H{"conversation_id": cid, "is_group": true})
}

// requireAdmin loads the caller's participant record and checks the admin
// role. Non-members and plain members both get 403.
func (s Service) requireAdmin(c *gin.Context, conversationID, userID int64) bool {
	p, err := s.Store.Participant(c.Request.Context(), conversationID, userID)
	if err != nil || p.Role != "admin" {
		httpx.Err(c, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

func (s Service) addParticipant(c *gin.Context) {
	uid := auth.MustUserID(c)
	cid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if !s.requireAdmin(c, cid, uid) {
		return
	}

	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Store.AddParticipant(c.Request.Context(), cid, req.UserID); err != nil {
		httpx.Err(c, http.StatusBadRequest, "add failed")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

func (s Service) removeParticipant(c *gin.Context) {
	uid := auth.MustUserID(c)
	cid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid conversation id")
		return
	}
	target, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid user id")
		return
	}
	if !s.requireAdmin(c, cid, uid) {
		return
	}

	if err := s.Store.RemoveParticipant(c.Request.Context(), cid, target); err != nil {
		httpx.Err(c, http.StatusBadRequest, "remove failed")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

func (s Service) setMuted(c *gin.Context) {
	uid := auth.MustUserID(c)
	cid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if !s.requireAdmin(c, cid, uid) {
		return
	}

	var req muteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Store.SetParticipantMuted(c.Request.Context(), cid, req.UserID, req.Muted); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "participant not found")
			return
		}
		httpx.Err(c, http.StatusInternalServerError, "db error")
		return
	}
	httpx.OK(c, gin.H{"ok": true})
}

func (s Service) listMine(c *gin.Context) {
	uid := auth.MustUserID(c)

	list, err := s.Store.ConversationsForUser(c.Request.Context(), uid)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}
	if list == nil {
		list = []storage.Conversation{}
	}
	httpx.OK(c, gin.H{"conversations": list})
}
