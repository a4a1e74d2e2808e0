// Package ws pushes inbox notifications to connected clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"aethersecure/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
	clientBuffer   = 16
	notifyBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sockets authenticate with a bearer token; origin is not checked.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type onlineQuery struct {
	username string
	reply    chan int
}

// Hub tracks open sockets per username. All map access happens on the Run goroutine.
type Hub struct {
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	notify     chan models.MessageEvent
	online     chan onlineQuery
	done       chan struct{}

	log *logrus.Entry
}

// NewHub returns a hub. Call Run before serving sockets.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan models.MessageEvent, notifyBuffer),
		online:     make(chan onlineQuery),
		done:       make(chan struct{}),
		log:        logger.WithField("component", "ws"),
	}
}

// Run serves registrations and notifications until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for username, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, username)
			}
			return
		case client := <-h.register:
			set := h.clients[client.username]
			if set == nil {
				set = make(map[*Client]struct{})
				h.clients[client.username] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.notify:
			h.deliver(event)
		case query := <-h.online:
			query.reply <- len(h.clients[query.username])
		}
	}
}

// NotifyNewMessage queues a new_message event for the recipient's sockets. It never
// blocks the sender; when the queue is full the event is dropped and clients catch up
// on their next inbox listing.
func (h *Hub) NotifyNewMessage(summary models.MessageSummary) {
	event := models.MessageEvent{Type: models.MessageEventNew, Message: summary}
	select {
	case h.notify <- event:
	default:
		h.log.WithField("recipient", summary.Recipient).Warn("notification queue full, dropping event")
	}
}

// Online returns the number of open sockets for username.
func (h *Hub) Online(username string) int {
	query := onlineQuery{username: username, reply: make(chan int, 1)}
	select {
	case h.online <- query:
		return <-query.reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and attaches the socket to username.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		username: username,
		send:     make(chan []byte, clientBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) deliver(event models.MessageEvent) {
	set := h.clients[event.Message.Recipient]
	if len(set) == 0 {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("marshal message event")
		return
	}
	for client := range set {
		select {
		case client.send <- raw:
		default:
			h.log.WithField("username", client.username).Warn("dropping slow websocket client")
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.username]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.username)
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
