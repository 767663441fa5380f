package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Event is one dashboard notification, e.g. account_connected after a
// successful OAuth callback or post_created after a publish.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	userID string
	send   chan []byte
}

// Hub delivers dashboard events to the connections of a specific user so
// the UI can refresh connected state without polling the document endpoint.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*client]bool
	jwtSecret      string
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHub creates a new Hub
func NewHub(jwtSecret string, allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[*client]bool),
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
		logger:         logger.Named("websocket"),
	}
}

// Notify sends an event to every connection belonging to userID. Slow
// consumers are skipped rather than blocking the caller.
func (h *Hub) Notify(userID, eventType string, payload any) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("Failed to encode event payload", zap.String("event", eventType), zap.Error(err))
		return
	}

	data, err := json.Marshal(Event{Type: eventType, Payload: payloadJSON})
	if err != nil {
		h.logger.Warn("Failed to encode event", zap.String("event", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// HandleWebSocket authenticates and upgrades a dashboard connection
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := h.identify(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.allowedOrigins),
	})
	if err != nil {
		h.logger.Warn("WebSocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c := &client{userID: userID, send: make(chan []byte, 16)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Debug("Dashboard client connected", zap.String("user_id", userID))

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		h.logger.Debug("Dashboard client disconnected", zap.String("user_id", userID))
	}()

	ctx := r.Context()
	for {
		select {
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// identify resolves the caller's uid the same way the HTTP API does:
// x-user-id from a trusted fronting proxy, else a Bearer/query JWT subject.
func (h *Hub) identify(r *http.Request) string {
	if uid := r.Header.Get("x-user-id"); uid != "" {
		return uid
	}

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if trimmed := strings.TrimPrefix(authHeader, "Bearer "); trimmed != authHeader {
			tokenString = trimmed
		}
	}
	if tokenString == "" || h.jwtSecret == "" {
		return ""
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}

func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		patterns = append(patterns, strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"))
	}
	return patterns
}
