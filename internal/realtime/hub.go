package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventCheckIn is sent for every committed check-in.
	EventCheckIn = "check_in"
)

// FeedPublisher publishes feed events to other instances.
type FeedPublisher interface {
	PublishFeedEvent(ctx context.Context, event string, payload []byte) error
}

// FeedSubscriber delivers feed events published by any instance.
type FeedSubscriber interface {
	SubscribeFeed(ctx context.Context, handler func(event string, payload []byte)) error
}

// CheckInEvent is the payload of EventCheckIn.
type CheckInEvent struct {
	CheckInID string    `json:"check_in_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	ScannedAt time.Time `json:"scanned_at"`
	Status    string    `json:"status"`
}

// Hub keeps the connected admin clients of the live attendance feed.
// With a Redis publisher events go through Redis only and the subscription
// performs the local broadcast, so every instance delivers each event once.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     FeedPublisher
	sub     FeedSubscriber
}

// NewHub creates a feed hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub FeedPublisher, sub FeedSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
		sub:     sub,
	}
}

// Run subscribes to the shared feed channel until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.sub == nil {
		<-ctx.Done()
		return nil
	}
	return h.sub.SubscribeFeed(ctx, func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("feed client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("feed client disconnected", zap.String("client_id", c.ID))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every local client. Slow clients drop messages.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to all instances.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
		defer cancel()
		if err := h.pub.PublishFeedEvent(ctx, event, data); err != nil {
			h.logger.Warn("publish feed event failed", zap.String("event", event), zap.Error(err))
			h.Broadcast(event, data)
		}
		return
	}
	h.Broadcast(event, data)
}

// PublishCheckIn announces a committed check-in on the feed.
func (h *Hub) PublishCheckIn(ci models.CheckIn) {
	h.Publish(EventCheckIn, CheckInEvent{
		CheckInID: ci.ID.String(),
		UserID:    ci.UserID.String(),
		Date:      ci.Date.Format("2006-01-02"),
		ScannedAt: ci.ScannedAt,
		Status:    ci.Status,
	})
}
