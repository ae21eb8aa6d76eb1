package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ladder-tracker/internal/service"
)

const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes view notices to websocket clients. Clients subscribe to view
// ids; a client without subscriptions receives every notice.
type Hub struct {
	logger zerolog.Logger

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan service.Notice
	done       chan struct{}

	clients map[*Client]struct{}
}

type subscription struct {
	client *Client
	viewID string
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan service.Notice, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run is the hub loop. It owns the client set and returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug().Int("clients", len(h.clients)).Msg("websocket client registered")

		case c := <-h.unregister:
			h.drop(c)

		case s := <-h.subscribe:
			if _, ok := h.clients[s.client]; ok {
				s.client.views[s.viewID] = struct{}{}
			}

		case n := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(n.ViewID) {
					continue
				}
				select {
				case c.send <- n:
				default:
					// slow consumer, disconnect so the loop never blocks
					h.drop(c)
				}
			}

		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Notify queues a notice without blocking the caller. Notices are dropped
// when the queue is full.
func (h *Hub) Notify(n service.Notice) {
	select {
	case h.broadcast <- n:
	default:
		h.logger.Warn().Str("view_id", n.ViewID).Msg("notice queue full, dropping notice")
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade websocket")
		return
	}

	c := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan service.Notice, sendBuffer),
		views: make(map[string]struct{}),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
