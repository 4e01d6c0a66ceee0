package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"mailpeek/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Notification is one real-time event pushed to connected clients.
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "inbox_refreshed", "new_mail"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Time    time.Time              `json:"time"`
}

// NotificationHandler fans inbox events out to SSE and WebSocket subscribers.
// It also remembers the last seen mailbox size per address so a refresh that
// finds more mail than before raises a separate new_mail event.
type NotificationHandler struct {
	store       *session.Store
	subscribers map[string]chan Notification
	lastSeen    *utils.MemoryCache
	mu          sync.RWMutex
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(store *session.Store) *NotificationHandler {
	return &NotificationHandler{
		store:       store,
		subscribers: make(map[string]chan Notification),
		lastSeen:    utils.NewMemoryCache(),
	}
}

// HandleSSE streams notifications over Server-Sent Events.
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	if _, err := GetSessionToken(c, h.store); err != nil {
		return utils.UnauthorizedError("Invalid session", err)
	}

	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	utils.Log.WithField("subscriber", subscriberID).Info("SSE subscriber connected")

	ctx := c.Context()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.mu.Lock()
			delete(h.subscribers, subscriberID)
			close(messageChan)
			h.mu.Unlock()

			utils.Log.WithField("subscriber", subscriberID).Info("SSE subscriber disconnected")
		}()

		// Keep-alive comments stop proxies from closing the idle stream.
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case notification := <-messageChan:
				data, err := json.Marshal(notification)
				if err != nil {
					continue
				}
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}))

	return nil
}

// HandleWebSocket streams notifications over a WebSocket connection.
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, subscriberID)
		close(messageChan)
		h.mu.Unlock()

		c.Close()
		utils.Log.WithField("subscriber", subscriberID).Info("WebSocket subscriber disconnected")
	}()

	utils.Log.WithField("subscriber", subscriberID).Info("WebSocket subscriber connected")

	for notification := range messageChan {
		if err := c.WriteJSON(notification); err != nil {
			utils.Log.WithError(err).Error("Failed to send WebSocket notification")
			break
		}
	}
}

// BroadcastNotification sends a notification to every subscriber. Slow
// subscribers with a full channel are skipped rather than blocked on.
func (h *NotificationHandler) BroadcastNotification(notification Notification) {
	notification.ID = uuid.New().String()
	notification.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- notification:
		default:
			utils.Log.WithField("subscriber", subscriberID).Warn("Notification channel full, skipping")
		}
	}
}

// RecordFetch publishes the outcome of a completed inbox fetch. When the
// mailbox holds more messages than the previous fetch saw, a new_mail event
// goes out alongside the refresh.
func (h *NotificationHandler) RecordFetch(email string, total, warnings int) {
	h.BroadcastNotification(Notification{
		Type:    "inbox_refreshed",
		Message: "Inbox refreshed",
		Data: map[string]interface{}{
			"email":    email,
			"total":    total,
			"warnings": warnings,
		},
	})

	key := "lastseen:" + email
	if prev, ok := h.lastSeen.Get(key); ok {
		if prevTotal, ok := prev.(int); ok && total > prevTotal {
			h.BroadcastNotification(Notification{
				Type:    "new_mail",
				Message: "New mail arrived",
				Data: map[string]interface{}{
					"email": email,
					"count": total - prevTotal,
				},
			})
		}
	}
	h.lastSeen.Set(key, total, 24*time.Hour)
}

// SubscriberCount reports how many live subscribers are attached.
func (h *NotificationHandler) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
