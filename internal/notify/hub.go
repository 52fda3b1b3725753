package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Hub broadcasts events to websocket clients. Clients may subscribe to one
// guild or one character with the guild/character query parameters.
type Hub struct {
	logger     *log.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64
	dropped    atomic.Int64
}

type client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	guildID     int64
	characterID int64
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Notify queues ev for broadcast. A full queue drops the event.
func (h *Hub) Notify(_ context.Context, ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.dropped.Add(1)
		h.logger.Printf("notify drop %s: queue full", ev.Type)
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped reports how many events were dropped for a full queue.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Run dispatches events until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(0)
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int64(len(h.clients)))
			}

		case ev := <-h.broadcast:
			msg, err := json.Marshal(ev)
			if err != nil {
				h.logger.Printf("notify encode %s: %v", ev.Type, err)
				continue
			}
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("notify upgrade: %v", err)
		return
	}
	c := &client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		guildID:     queryID(r, "guild"),
		characterID: queryID(r, "character"),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) wants(ev Event) bool {
	if c.guildID != 0 && ev.GuildID != c.guildID {
		return false
	}
	if c.characterID != 0 && ev.CharacterID != c.characterID {
		return false
	}
	return true
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("notify read: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func queryID(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
