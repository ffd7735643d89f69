package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
)

const (
	WS_WRITE_TIMEOUT  = 10 * time.Second
	WS_CLIENT_BACKLOG = 32
	WS_HUB_BACKLOG    = 100
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket subscriber. A client with no games listed follows
// every game.
type Client struct {
	conn   Conn
	userID string
	games  map[GameType]struct{}

	out    chan []byte
	mu     sync.Mutex
	closed bool
}

func (c *Client) follows(game GameType) bool {
	if game == "" || len(c.games) == 0 {
		return true
	}
	_, ok := c.games[game]
	return ok
}

// envelope is a marshalled message; an empty game reaches every client.
type envelope struct {
	game GameType
	data []byte
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, WS_HUB_BACKLOG),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        logrus.WithField("component", "ws"),
	}
}

// Run serves registrations and fan-out until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithFields(logrus.Fields{"user_id": client.userID, "games": len(client.games), "total": total}).Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.log.WithFields(logrus.Fields{"user_id": client.userID, "total": len(h.clients)}).Info("client disconnected")
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.follows(env.game) && !client.enqueue(env.data) {
					h.log.WithField("user_id", client.userID).Warn("client backlog full, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and waits for it to return. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Broadcast sends message to every client.
func (h *Hub) Broadcast(message interface{}) {
	h.Publish("", message)
}

// Publish sends message to the clients following game. It never blocks; a
// full hub backlog drops the message.
func (h *Hub) Publish(game GameType, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Warn("marshal error")
		return
	}
	select {
	case h.broadcast <- envelope{game: game, data: data}:
	default:
		h.log.WithField("game", string(game)).Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	c.mu.Unlock()
	c.conn.Close()
}

// writeLoop is the only writer on the connection.
func (c *Client) writeLoop() {
	for data := range c.out {
		c.conn.SetWriteDeadline(time.Now().Add(WS_WRITE_TIMEOUT))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.WithError(err).WithField("user_id", c.userID).Warn("ws write error")
		}
	}
}

// Send queues one message for this client only.
func (c *Client) Send(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Warn("ws send marshal error")
		return
	}
	if !c.enqueue(data) {
		logrus.WithField("user_id", c.userID).Debug("ws send dropped")
	}
}

// RegisterClient adds conn to the hub, following the given games (all games
// when none are given), and returns its client handle.
func (h *Hub) RegisterClient(conn Conn, userID string, games ...GameType) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
		out:    make(chan []byte, WS_CLIENT_BACKLOG),
	}
	if len(games) > 0 {
		client.games = make(map[GameType]struct{}, len(games))
		for _, g := range games {
			client.games[g] = struct{}{}
		}
	}
	go client.writeLoop()

	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
	return client
}

func (h *Hub) UnregisterClient(conn Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			select {
			case h.unregister <- client:
			case <-h.done:
			}
			return
		}
	}
	h.mu.RUnlock()
}
