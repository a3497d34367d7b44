package realtime

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// controlMessage is what subscribers send: subscribe, unsubscribe or ping.
type controlMessage struct {
	Action string   `json:"action"`
	Users  []string `json:"users"`
}

// connection is one websocket subscriber. topics is guarded by the hub's mutex.
type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	subject string
	topics  map[string]struct{}

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(hub *Hub, socket *websocket.Conn, subject string) *connection {
	return &connection{
		hub:     hub,
		socket:  socket,
		subject: subject,
		topics:  make(map[string]struct{}),
		send:    make(chan Message, sendBuffer),
		done:    make(chan struct{}),
	}
}

// enqueue never blocks a publisher. A subscriber whose buffer is full is disconnected.
func (c *connection) enqueue(message Message) {
	select {
	case <-c.done:
	case c.send <- message:
	default:
		monitoring.RecordFeedFailure("backpressure", "dropping slow subscriber "+c.subject)
		c.hub.log.Warn("dropping slow feed subscriber", zap.String("subject", c.subject))
		go c.close()
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("feed closed unexpectedly", zap.String("subject", c.subject), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.enqueue(Message{Event: "error", Data: "control messages must be JSON objects"})
			continue
		}
		c.handle(ctrl)
	}
}

func (c *connection) handle(ctrl controlMessage) {
	switch action := strings.ToLower(strings.TrimSpace(ctrl.Action)); action {
	case "subscribe":
		c.enqueue(Message{Event: "subscribed", Data: c.hub.subscribe(c, ctrl.Users)})
	case "unsubscribe":
		c.enqueue(Message{Event: "unsubscribed", Data: c.hub.unsubscribe(c, ctrl.Users)})
	case "ping":
		c.enqueue(Message{Event: "pong"})
	default:
		c.enqueue(Message{Event: "error", Data: "unsupported action " + action})
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				monitoring.RecordFeedFailure("write", err.Error())
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close is idempotent. send is never closed; writeLoop exits on done.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.socket.Close()
		c.hub.active.Add(-1)
		monitoring.RecordFeedConnection(-1)
	})
}
