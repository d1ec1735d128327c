// Package hubtest is an in-process room event stream server for tests. Its
// hub owns the connected clients and fans every published frame out to all
// of them, the originator included.
package hubtest

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Pocket-Watch/PocketWatch-sub000/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Frames to send to every client.
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	kick       chan struct{}
	stopped    chan struct{}

	nextID    atomic.Uint64
	connected atomic.Int64

	// Authorize, when set, rejects stream requests whose token it refuses.
	Authorize func(token string) bool

	log zerolog.Logger
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		kick:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run owns the client set until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			// The welcome is queued before the client can see any broadcast.
			welcome, err := events.Encode(events.KindUserWelcome, client.id)
			if err != nil {
				h.log.Error().Err(err).Msg("hub: encode welcome")
				_ = client.conn.Close()
				continue
			}
			client.send <- welcome
			h.clients[client] = true
			h.connected.Add(1)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case <-h.kick:
			for client := range h.clients {
				h.drop(client)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.log.Warn().Uint64("connection_id", client.id).Msg("hub: slow client dropped")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.connected.Add(-1)
	close(client.send)
	_ = client.conn.Close()
}

// Broadcast sends a raw frame to every connected client.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	case <-h.stopped:
	}
}

// Publish encodes an event frame and broadcasts it.
func (h *Hub) Publish(kind events.Kind, payload any) error {
	frame, err := events.Encode(kind, payload)
	if err != nil {
		return err
	}
	h.Broadcast(frame)
	return nil
}

// DisconnectAll closes every live connection. Clients are expected to
// reconnect on their own.
func (h *Hub) DisconnectAll() {
	select {
	case h.kick <- struct{}{}:
	case <-h.stopped:
	}
}

// Connected is the number of registered clients.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// ServeWS upgrades the request and registers the connection under a fresh
// connection id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if h.Authorize != nil && !h.Authorize(token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("hub: ws upgrade")
		return
	}

	client := &Client{
		id:   h.nextID.Add(1),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.stopped:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
