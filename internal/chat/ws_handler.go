package chat

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatterbox-im/backend/internal/auth"
	"github.com/chatterbox-im/backend/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for demo; tighten in prod.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws for authenticated clients.
// Auth works via:
// 1) Header: Authorization: Bearer <JWT>
// 2) Query:  ?token=<JWT>

func RegisterWS(rg *gin.RouterGroup, hub *Hub, users storage.UserStore, jwtSecret string) {
	rg.GET("/ws", func(c *gin.Context) {
		// Extract token
		token := c.Query("token")
		if token == "" {
			h := c.GetHeader("Authorization")
			if strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		cl, err := auth.ParseToken(jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// The credential must resolve to a real user before any state is
		// created for the connection.
		user, err := users.UserByID(c.Request.Context(), cl.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			hub:       hub,
			conn:      conn,
			send:      make(chan []byte, 256),
			ID:        uuid.NewString(),
			UserID:    user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Avatar:    user.Avatar,
			rooms:     make(map[int64]bool),
			cooldown:  newSendCooldown(10, 2*time.Second),
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	})
}
