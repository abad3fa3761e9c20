package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/partyroom/game/protocol"
	"github.com/wricardo/partyroom/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024

	// Outbound frames buffered per client before it is dropped.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Listener receives decoded packets and disconnects.
type Listener interface {
	Dispatch(playerID string, pkt protocol.Packet)
	Leave(playerID string)
}

type frame struct {
	kind int
	data []byte
}

// Client is one WebSocket connection, identified by a random player id.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	codec protocol.Codec
	send  chan frame

	mu     sync.Mutex
	closed bool
}

// enqueue queues a frame without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) enqueue(f frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel once; the write pump flushes what is
// queued and then closes the connection.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connections by player id and routes frames to them.
type Hub struct {
	clients  map[string]*Client
	listener Listener
	logger   *log.Logger
	mu       sync.RWMutex
}

// NewHub creates a hub. Attach a listener before serving connections.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logging.OrDiscard(logger),
	}
}

// Attach sets the listener that receives inbound packets.
func (h *Hub) Attach(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// ServeWS upgrades the request. The codec is chosen with ?codec=json|msgpack.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		codec: codec,
		send:  make(chan frame, sendBuffer),
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

// Send encodes env with the player's codec and queues it. Unknown or
// closed connections are skipped; a client that cannot keep up is dropped.
func (h *Hub) Send(playerID string, env protocol.Envelope) {
	h.mu.RLock()
	client, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := client.codec.Encode(env)
	if err != nil {
		h.logger.Error("Failed to encode packet", "type", env.Type, "err", err)
		return
	}
	kind := websocket.TextMessage
	if client.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	if !client.enqueue(frame{kind: kind, data: data}) {
		h.logger.Warn("Dropping slow client", "player", playerID)
		client.shutdown()
	}
}

// Close disconnects a player after its queued frames are written.
func (h *Hub) Close(playerID string) {
	h.mu.RLock()
	client, ok := h.clients[playerID]
	h.mu.RUnlock()
	if ok {
		client.shutdown()
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("Client registered", "player", client.id, "codec", client.codec.Name(), "clients", total)
}

// unregister forgets a client and tells the listener it is gone.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	listener := h.listener
	remaining := len(h.clients)
	h.mu.Unlock()

	client.shutdown()
	if !ok || current != client {
		return
	}
	h.logger.Debug("Client unregistered", "player", client.id, "clients", remaining)
	if listener != nil {
		listener.Leave(client.id)
	}
}

func (h *Hub) dispatch(playerID string, pkt protocol.Packet) {
	h.mu.RLock()
	listener := h.listener
	h.mu.RUnlock()
	if listener != nil {
		listener.Dispatch(playerID, pkt)
	}
}

// readPump pumps decoded packets from the connection to the listener.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("WebSocket error", "player", c.id, "err", err)
			}
			break
		}

		pkt, err := c.codec.Decode(data)
		if err != nil {
			c.hub.logger.Debug("Dropping malformed frame", "player", c.id, "err", err)
			continue
		}
		c.hub.dispatch(c.id, pkt)
	}
}

// writePump pumps queued frames from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
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
