package chat

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
)

// Client is the authenticated-connection context: one per live transport
// socket, constructed at connect time and threaded through every handler.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ID        string
	UserID    int64
	FirstName string
	LastName  string
	Avatar    string

	// rooms is touched only on the hub goroutine.
	rooms map[int64]bool

	cooldown *sendCooldown
}

func (c *Client) readPump() {
	defer func() {
		// Sole path back toward offline: must run whatever happened upstream.
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.queue(marshalEvent(EventError, ErrorPayload{Message: "invalid event frame"}))
			continue
		}
		c.hub.events <- &clientEvent{client: c, envelope: env}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queue hands an encoded event to the write pump without blocking the
// caller. A nil payload (marshal failure) is dropped.
func (c *Client) queue(b []byte) bool {
	if b == nil {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}
