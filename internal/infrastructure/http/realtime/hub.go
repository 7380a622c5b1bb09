// Package realtime pushes remaining-allowance updates to websocket subscribers
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nutriscan/tracker/internal/domain/nutrition"
	"github.com/nutriscan/tracker/internal/infrastructure/http/middleware"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"go.uber.org/zap"
)

const (
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 8
)

// SubscriberObserver counts open streams
type SubscriberObserver interface {
	SubscriberConnected()
	SubscriberDisconnected()
}

// SnapshotFunc loads the current allowance sent when a stream opens
type SnapshotFunc func(ctx context.Context, userID uuid.UUID) (*inbound.TotalNutritionDTO, error)

// ProgressMessage is the frame written to subscribers
type ProgressMessage struct {
	Type           string                    `json:"type"`
	UserID         uuid.UUID                 `json:"userId"`
	TotalNutrition inbound.TotalNutritionDTO `json:"totalNutrition"`
	Timestamp      time.Time                 `json:"timestamp"`
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// Hub fans progress updates out to every open stream of a user
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*client]struct{}
	upgrader websocket.Upgrader
	observer SubscriberObserver
	logger   *zap.Logger
}

var _ outbound.ProgressPublisher = (*Hub)(nil)

// NewHub creates a hub accepting upgrades from allowedOrigins. "*" allows
// any origin and an empty list only same-host requests.
func NewHub(allowedOrigins []string, observer SubscriberObserver, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:  make(map[uuid.UUID]map[*client]struct{}),
		observer: observer,
		logger:   logger.Named("progress-hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Publish implements outbound.ProgressPublisher. Slow subscribers are dropped.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, remaining nutrition.Macros) {
	msg, err := json.Marshal(ProgressMessage{
		Type:           "progress",
		UserID:         userID,
		TotalNutrition: inbound.NewTotalNutritionDTO(remaining),
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("Failed to encode progress message", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow progress subscriber", zap.String("user_id", userID.String()))
		h.unregister(c)
	}
}

// Handler upgrades an authenticated request and streams progress frames,
// starting with the current snapshot.
func (h *Hub) Handler(snapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			middleware.WriteError(w, r, apperrors.NewUnauthorizedError("User not authenticated"), 0)
			return
		}

		initial, err := snapshot(r.Context(), userID)
		if err != nil {
			appErr, ok := apperrors.As(err)
			if !ok {
				appErr = apperrors.NewInternalError("An unexpected error occurred")
			}
			middleware.WriteError(w, r, appErr, 0)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Debug("Websocket upgrade failed", zap.Error(err))
			return
		}

		c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
		first, _ := json.Marshal(ProgressMessage{
			Type:           "progress",
			UserID:         userID,
			TotalNutrition: *initial,
			Timestamp:      time.Now().UTC(),
		})
		c.send <- first

		h.register(c)
		go h.writePump(c)
		h.readPump(c)
	}
}

// Subscribers returns the number of open streams for userID
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SubscriberConnected()
	}
	h.logger.Debug("Progress subscriber connected", zap.String("user_id", c.userID.String()))
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set := h.clients[c.userID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
		close(c.send)
		h.mu.Unlock()

		if h.observer != nil {
			h.observer.SubscriberDisconnected()
		}
		h.logger.Debug("Progress subscriber disconnected", zap.String("user_id", c.userID.String()))
	})
}

// readPump discards client frames and unregisters on close or missed pongs
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes to the connection
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}
