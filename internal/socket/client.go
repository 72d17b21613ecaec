package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket connection constants
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize int64 = 4096

	authorizeTimeout = 5 * time.Second
)

// ClientMessage represents an incoming message from a client
type ClientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump(authorize RoomAuthorizer) {
	defer func() {
		c.Hub.remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "user_id", c.UserID, "error", err)
			}
			break
		}
		c.handleMessage(message, authorize)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued messages into the current frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// handleMessage processes incoming messages from the client. Joining a room
// requires authorize to accept it; the personal room is always allowed.
func (c *Client) handleMessage(message []byte, authorize RoomAuthorizer) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("unparseable websocket message", "user_id", c.UserID, "error", err)
		c.reply(MessageError, map[string]interface{}{"msg": "Invalid message"})
		return
	}

	switch msg.Action {
	case "join":
		if msg.Room == "" {
			return
		}
		if !c.mayJoin(msg.Room, authorize) {
			c.reply(MessageError, map[string]interface{}{"msg": "Not authorized to join room", "room": msg.Room})
			return
		}
		c.Hub.JoinRoom(c, msg.Room)
		c.reply(MessageAck, map[string]interface{}{"action": "joined", "room": msg.Room})

	case "leave":
		if msg.Room != "" {
			c.Hub.LeaveRoom(c, msg.Room)
			c.reply(MessageAck, map[string]interface{}{"action": "left", "room": msg.Room})
		}

	case "ping":
		c.touch()
		c.reply(MessagePong, map[string]interface{}{"time": time.Now().Unix()})

	case "pong":
		c.touch()

	default:
		slog.Debug("unknown websocket action", "action", msg.Action, "user_id", c.UserID)
	}
}

func (c *Client) mayJoin(room string, authorize RoomAuthorizer) bool {
	if room == UserRoom(c.UserID) {
		return true
	}
	if authorize == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
	defer cancel()
	return authorize(ctx, c.UserID, room)
}

func (c *Client) reply(msgType MessageType, payload map[string]interface{}) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		return
	}
	if !c.trySend(data) {
		slog.Debug("dropped reply to slow client", "user_id", c.UserID, "type", msgType)
	}
}
