package socket

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Group messages
	MessageGroupCreated  MessageType = "group_created"
	MessageGroupUpdated  MessageType = "group_updated"
	MessageGroupDeleted  MessageType = "group_deleted"
	MessageMemberAdded   MessageType = "member_added"
	MessageMemberRemoved MessageType = "member_removed"

	// Event messages
	MessageEventCreated MessageType = "event_created"
	MessageEventUpdated MessageType = "event_updated"
	MessageEventDeleted MessageType = "event_deleted"

	// System messages
	MessagePing  MessageType = "ping"
	MessagePong  MessageType = "pong"
	MessageAck   MessageType = "ack"
	MessageError MessageType = "error"
)

const (
	groupRoomPrefix = "group:"
	userRoomPrefix  = "user:"
)

// GroupRoom is the room every connected member of a group is subscribed to.
func GroupRoom(groupID string) string { return groupRoomPrefix + groupID }

// UserRoom is a user's personal room.
func UserRoom(userID string) string { return userRoomPrefix + userID }

// ParseGroupRoom returns the group id of a group room.
func ParseGroupRoom(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, groupRoomPrefix)
	return id, ok && id != ""
}

// Message represents a WebSocket message
type Message struct {
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func encodeMessage(msgType MessageType, payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload, Timestamp: time.Now()})
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
	Rooms  map[string]bool

	mu       sync.Mutex
	closed   bool
	lastPing time.Time
}

// trySend queues data without blocking. It reports false when the buffer is
// full or the client is already closed.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub maintains the set of active clients and the rooms they listen on.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	roomClients map[string]map[*Client]bool

	register      chan *Client
	unregister    chan *Client
	roomBroadcast chan *RoomMessage
	directMessage chan *DirectMessage
	quit          chan struct{}
	stopOnce      sync.Once

	mu sync.RWMutex
}

// RoomMessage is delivered to every client in Room except those of Exclude.
// After delivery the clients of Evict leave the room, and Close drops the
// room entirely.
type RoomMessage struct {
	Room    string
	Message []byte
	Exclude string
	Evict   string
	Close   bool
}

// DirectMessage represents a message to be sent to a specific user
type DirectMessage struct {
	UserID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		roomClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client, 64),
		roomBroadcast: make(chan *RoomMessage, 256),
		directMessage: make(chan *DirectMessage, 256),
		quit:          make(chan struct{}),
	}
}

// Run processes hub traffic until Stop is called.
func (h *Hub) Run() {
	slog.Info("websocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case rm := <-h.roomBroadcast:
			h.broadcastToRoom(rm)

		case dm := <-h.directMessage:
			h.sendToUser(dm)

		case <-pingTicker.C:
			h.pingClients()

		case <-h.quit:
			h.closeAll()
			slog.Info("websocket hub stopped")
			return
		}
	}
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true
	h.joinLocked(client, UserRoom(client.UserID))

	slog.Debug("websocket client registered",
		"user_id", client.UserID, "client_id", client.ID, "total_clients", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	if clients, ok := h.userClients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	client.mu.Lock()
	rooms := make([]string, 0, len(client.Rooms))
	for room := range client.Rooms {
		rooms = append(rooms, room)
	}
	client.mu.Unlock()
	for _, room := range rooms {
		h.leaveLocked(client, room)
	}

	client.close()
	slog.Debug("websocket client disconnected",
		"user_id", client.UserID, "client_id", client.ID, "total_clients", len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
	h.userClients = make(map[string]map[*Client]bool)
	h.roomClients = make(map[string]map[*Client]bool)
}

// add hands c to Run. It reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// remove hands c to Run for unregistering, giving up once the hub has
// stopped.
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// drop schedules a client whose buffer is full for removal.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	default:
		go h.remove(c)
	}
}

func (h *Hub) broadcastToRoom(rm *RoomMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.roomClients[rm.Room] {
		if rm.Exclude != "" && client.UserID == rm.Exclude {
			continue
		}
		if client.trySend(rm.Message) {
			sent++
		} else {
			h.drop(client)
		}
	}
	slog.Debug("room broadcast", "room", rm.Room, "sent", sent)

	if rm.Evict != "" {
		for client := range h.userClients[rm.Evict] {
			h.leaveLocked(client, rm.Room)
		}
	}
	if rm.Close {
		for client := range h.roomClients[rm.Room] {
			h.leaveLocked(client, rm.Room)
		}
	}
}

func (h *Hub) sendToUser(dm *DirectMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.userClients[dm.UserID] {
		if !client.trySend(dm.Message) {
			h.drop(client)
		}
	}
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := encodeMessage(MessagePing, nil)
	if err != nil {
		return
	}
	for client := range h.clients {
		if !client.trySend(data) {
			h.drop(client)
		}
	}
}

// ============================================
// Room Management
// ============================================

func (h *Hub) joinLocked(client *Client, room string) {
	client.mu.Lock()
	client.Rooms[room] = true
	client.mu.Unlock()

	if h.roomClients[room] == nil {
		h.roomClients[room] = make(map[*Client]bool)
	}
	h.roomClients[room][client] = true
}

func (h *Hub) leaveLocked(client *Client, room string) {
	client.mu.Lock()
	delete(client.Rooms, room)
	client.mu.Unlock()

	if clients, ok := h.roomClients[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.roomClients, room)
		}
	}
}

// JoinRoom adds a client to a room
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(client, room)
	slog.Debug("client joined room", "user_id", client.UserID, "room", room)
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
	slog.Debug("client left room", "user_id", client.UserID, "room", room)
}

// AddUserToRoom subscribes every open connection of userID to room.
func (h *Hub) AddUserToRoom(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.userClients[userID] {
		h.joinLocked(client, room)
	}
}

// ============================================
// Sending
// ============================================

// SendToUser sends a message to every connection of a user.
func (h *Hub) SendToUser(userID string, msgType MessageType, payload map[string]interface{}) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to encode websocket message", "type", msgType, "error", err)
		return
	}
	select {
	case h.directMessage <- &DirectMessage{UserID: userID, Message: data}:
	case <-h.quit:
	default:
		slog.Warn("websocket hub busy, dropping message", "user_id", userID, "type", msgType)
	}
}

// SendToRoom broadcasts a message to all clients in a room
func (h *Hub) SendToRoom(room string, msgType MessageType, payload map[string]interface{}, excludeUserID string) {
	h.enqueueRoom(&RoomMessage{Room: room, Exclude: excludeUserID}, msgType, payload)
}

func (h *Hub) enqueueRoom(rm *RoomMessage, msgType MessageType, payload map[string]interface{}) {
	data, err := encodeMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to encode websocket message", "type", msgType, "error", err)
		return
	}
	rm.Message = data
	if rm.Evict != "" || rm.Close {
		// Membership changes must not be lost.
		select {
		case h.roomBroadcast <- rm:
		case <-h.quit:
		}
		return
	}
	select {
	case h.roomBroadcast <- rm:
	case <-h.quit:
	default:
		slog.Warn("websocket hub busy, dropping message", "room", rm.Room, "type", msgType)
	}
}

// ============================================
// Query Methods
// ============================================

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userClients[userID]
	return ok
}

// RoomSize returns the number of clients in a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomClients[room])
}

// ConnectedClients returns total connected clients
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
