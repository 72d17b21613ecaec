package socket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TokenValidator validates access tokens. The auth service implements it.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Token, error)
	GetUserIDFromToken(token *jwt.Token) (string, error)
}

// RoomAuthorizer reports whether userID may subscribe to room.
type RoomAuthorizer func(ctx context.Context, userID, room string) bool

// GroupLister returns the ids of the groups a user belongs to.
type GroupLister func(ctx context.Context, userID string) ([]string, error)

// Handler handles WebSocket connections
type Handler struct {
	Hub       *Hub
	tokens    TokenValidator
	authorize RoomAuthorizer
	groups    GroupLister
	upgrader  websocket.Upgrader
}

// NewHandler creates a WebSocket handler. allowedOrigins empty or containing
// "*" accepts any origin.
func NewHandler(hub *Hub, tokens TokenValidator, authorize RoomAuthorizer, groups GroupLister, allowedOrigins []string) *Handler {
	return &Handler{
		Hub:       hub,
		tokens:    tokens,
		authorize: authorize,
		groups:    groups,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// HandleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on a WebSocket handshake, so the token may come from the query.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
		return
	}

	token, err := h.tokens.ValidateToken(tokenString)
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
		return
	}
	userID, err := h.tokens.GetUserIDFromToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := NewClient(h.Hub, userID, conn)
	if !h.Hub.add(client) {
		conn.Close()
		return
	}
	h.subscribeGroups(c.Request.Context(), client)

	go client.WritePump()
	go client.ReadPump(h.authorize)
}

// subscribeGroups joins the client to the rooms of every group its user
// belongs to.
func (h *Handler) subscribeGroups(ctx context.Context, client *Client) {
	if h.groups == nil {
		return
	}
	groupIDs, err := h.groups(ctx, client.UserID)
	if err != nil {
		slog.Warn("failed to list groups for websocket client", "user_id", client.UserID, "error", err)
		return
	}
	for _, id := range groupIDs {
		h.Hub.JoinRoom(client, GroupRoom(id))
	}
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, 256),
		Rooms:    make(map[string]bool),
		lastPing: time.Now(),
	}
}
