package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/valuescope/internal/contracts"
	"github.com/wonny/valuescope/pkg/logger"
)

// ErrNoSubscriber is returned when the owner has no open push connection
var ErrNoSubscriber = errors.New("no open push connection")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the gateway
	},
}

type subscriber struct {
	owner string
	conn  *websocket.Conn
	send  chan contracts.Notification
}

// Hub fans push notifications out to each owner's open websocket connections
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	logger *logger.Logger
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: log,
	}
}

// Subscribers returns the number of open connections for owner
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}

// ServeWS upgrades the request and streams owner's notifications until the client leaves
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, owner string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{owner: owner, conn: conn, send: make(chan contracts.Notification, sendBuffer)}
	h.add(sub)

	h.logger.WithField("owner", owner).Debug("Push subscriber connected")

	go h.writePump(sub)
	h.readPump(sub)
	return nil
}

// Notify implements contracts.AlertSink. A full buffer drops the connection's copy.
func (h *Hub) Notify(ctx context.Context, n contracts.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.subs[n.Owner]
	if len(subs) == 0 {
		return ErrNoSubscriber
	}

	delivered := 0
	for sub := range subs {
		select {
		case sub.send <- n:
			delivered++
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.WithField("owner", n.Owner).Warn("Push buffer full, message dropped")
		}
	}
	if delivered == 0 {
		return ErrNoSubscriber
	}
	return nil
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.owner] == nil {
		h.subs[sub.owner] = make(map[*subscriber]struct{})
	}
	h.subs[sub.owner][sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.owner][sub]; !ok {
		return
	}
	delete(h.subs[sub.owner], sub)
	if len(h.subs[sub.owner]) == 0 {
		delete(h.subs, sub.owner)
	}
	close(sub.send)
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		sub.conn.Close()
		h.logger.WithField("owner", sub.owner).Debug("Push subscriber disconnected")
	}()

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case n, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
