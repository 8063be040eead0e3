package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a user-facing notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one toast-style message surfaced to console consumers
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is the write side used by the session and mutation layers
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// historySize bounds the recent-notification ring kept for late subscribers
const historySize = 50

// Hub fans notifications out to subscribers and keeps a bounded history.
// A slow subscriber never blocks publishers; overflowing messages for that
// subscriber are dropped.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Notification
	nextID  int
	history []Notification
	logger  *logrus.Entry
}

// NewHub creates a notification hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subs:   make(map[int]chan Notification),
		logger: logger.WithField("component", "notify"),
	}
}

// Success publishes a success notification
func (h *Hub) Success(message string) {
	h.publish(Notification{Level: LevelSuccess, Message: message, Timestamp: time.Now().UTC()})
}

// Error publishes an error notification
func (h *Hub) Error(message string) {
	h.publish(Notification{Level: LevelError, Message: message, Timestamp: time.Now().UTC()})
}

// Info publishes an informational notification
func (h *Hub) Info(message string) {
	h.publish(Notification{Level: LevelInfo, Message: message, Timestamp: time.Now().UTC()})
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan Notification, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Recent returns the retained notification history, oldest first
func (h *Hub) Recent() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Notification, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) publish(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, n)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}

	h.logger.WithFields(logrus.Fields{
		"level":   string(n.Level),
		"message": n.Message,
	}).Debug("Notification published")

	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			// Subscriber is not draining; drop rather than block
		}
	}
}
