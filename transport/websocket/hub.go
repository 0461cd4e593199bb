// Package websocket streams the world state of a map to subscribed
// clients after every tick. The feed is read-only: clients submit actions
// through the HTTP API and only listen here.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/artndx/game-server/game/app"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients never send payloads; frames they send are read and
	// discarded, and a frame larger than this closes the connection.
	maxMessageSize = 512

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stateMessage is one frame of the feed.
type stateMessage struct {
	MapID string           `json:"mapId"`
	State *app.StateResult `json:"state"`
}

// Client is one subscribed connection.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	mapID string
}

// Hub fans the per-tick state out to every client watching a map.
type Hub struct {
	log *zap.SugaredLogger

	clients map[string]map[*Client]bool

	broadcast  chan stateMessage
	register   chan *Client
	unregister chan *Client
}

// NewHub creates an idle hub; call Run to start it.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan stateMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// BroadcastState implements app.StateListener. It never blocks: when the
// hub's queue is full the frame is dropped, so a slow feed cannot stall
// the tick.
func (h *Hub) BroadcastState(mapID string, state *app.StateResult) {
	select {
	case h.broadcast <- stateMessage{MapID: mapID, State: state}:
	default:
	}
}

// ServeWS upgrades the request and subscribes the connection to mapID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, mapID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		mapID: mapID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) registerClient(client *Client) {
	if h.clients[client.mapID] == nil {
		h.clients[client.mapID] = make(map[*Client]bool)
	}
	h.clients[client.mapID][client] = true
}

func (h *Hub) unregisterClient(client *Client) {
	watchers, ok := h.clients[client.mapID]
	if !ok {
		return
	}
	if watchers[client] {
		delete(watchers, client)
		close(client.send)
	}
	if len(watchers) == 0 {
		delete(h.clients, client.mapID)
	}
}

func (h *Hub) broadcastMessage(message stateMessage) {
	watchers := h.clients[message.MapID]
	if len(watchers) == 0 {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		h.log.Errorw("state frame marshal failed", "err", err)
		return
	}

	for client := range watchers {
		select {
		case client.send <- payload:
		default:
			// The client cannot keep up; drop it.
			delete(watchers, client)
			close(client.send)
		}
	}
}

func (h *Hub) closeAll() {
	for mapID, watchers := range h.clients {
		for client := range watchers {
			close(client.send)
		}
		delete(h.clients, mapID)
	}
}

// readPump drains and discards client frames, keeping the pong deadline
// fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued frames and pings the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
