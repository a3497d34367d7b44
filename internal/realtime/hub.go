package realtime

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/internal/trigger"
	"github.com/charlesng35/studynotify/pkg/logger"
)

const (
	// StreamQueued is the feed carrying newly queued notifications.
	StreamQueued = "notifications.queued"
	// EventQueued names a queued notification message.
	EventQueued = "notification.queued"
	// AllUsers subscribes a connection to every user's notifications.
	AllUsers = "*"
)

// Message is the JSON frame written to feed subscribers.
type Message struct {
	Stream string         `json:"stream,omitempty"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Hub fans queued notifications out to websocket subscribers keyed by user id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*connection]struct{}

	upgrader websocket.Upgrader
	active   atomic.Int64
	log      *zap.Logger
}

var _ trigger.Publisher = (*Hub)(nil)

// NewHub constructs a feed hub that accepts same-origin and loopback browser clients.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     allowOrigin,
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the request and blocks until the subscriber disconnects.
func (h *Hub) Serve(subject string, users []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.RecordFeedFailure("upgrade", err.Error())
		h.log.Warn("feed upgrade failed", zap.String("subject", subject), zap.Error(err))
		return
	}

	conn := newConnection(h, socket, subject)
	h.active.Add(1)
	monitoring.RecordFeedConnection(1)
	h.subscribe(conn, users)

	go conn.writeLoop()
	conn.readLoop()
}

// PublishQueued sends the notification to subscribers of its user and of AllUsers. A
// connection subscribed to both receives it once.
func (h *Hub) PublishQueued(notification trigger.QueuedNotification) {
	userID := strings.TrimSpace(notification.UserID)
	if userID == "" {
		return
	}

	h.mu.RLock()
	targets := make(map[*connection]struct{}, len(h.topics[userID])+len(h.topics[AllUsers]))
	for _, topic := range [...]string{userID, AllUsers} {
		for conn := range h.topics[topic] {
			targets[conn] = struct{}{}
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	message := Message{
		Stream: StreamQueued,
		Event:  EventQueued,
		Data:   notification,
		Meta:   map[string]any{"user_id": userID},
	}
	for conn := range targets {
		conn.enqueue(message)
	}
	monitoring.RecordFeedBroadcast()
}

// ActiveConnections reports the number of open feed connections.
func (h *Hub) ActiveConnections() int64 {
	return h.active.Load()
}

func (h *Hub) subscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// subscribe adds users to the connection and returns its full topic list.
func (h *Hub) subscribe(conn *connection, users []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range normalizeTopics(users) {
		if _, ok := conn.topics[topic]; ok {
			continue
		}
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*connection]struct{})
		}
		h.topics[topic][conn] = struct{}{}
		conn.topics[topic] = struct{}{}
	}
	return topicList(conn)
}

// unsubscribe removes users from the connection and returns what remains.
func (h *Hub) unsubscribe(conn *connection, users []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range normalizeTopics(users) {
		h.dropLocked(conn, topic)
	}
	return topicList(conn)
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range conn.topics {
		h.dropLocked(conn, topic)
	}
}

func (h *Hub) dropLocked(conn *connection, topic string) {
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, conn)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(conn.topics, topic)
}

func topicList(conn *connection) []string {
	list := make([]string, 0, len(conn.topics))
	for topic := range conn.topics {
		list = append(list, topic)
	}
	slices.Sort(list)
	return list
}

// normalizeTopics trims, drops blanks and removes duplicates, keeping first occurrence order.
func normalizeTopics(users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, user := range users {
		user = strings.TrimSpace(user)
		if user == "" {
			continue
		}
		if _, dup := seen[user]; dup {
			continue
		}
		seen[user] = struct{}{}
		out = append(out, user)
	}
	return out
}
