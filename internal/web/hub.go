package web

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/history"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Message is one chart lifecycle event sent to browsers.
type Message struct {
	Op       string         `json:"op"` // construct, update or destroy
	Mount    string         `json:"mount"`
	Config   *chart.Config  `json:"config,omitempty"`
	Datasets []DatasetPatch `json:"datasets,omitempty"`
}

// DatasetPatch carries the new data of one dataset slot.
type DatasetPatch struct {
	Data history.Series `json:"data"`
}

type mountState struct {
	owner     *hubChart
	construct []byte // encoded construct message, replayed to new clients
	config    []byte // encoded current configuration
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a chart.Renderer that draws charts in every connected browser.
// Chart handles are driven by a single goroutine; the encoded state kept
// for HTTP readers and new clients is guarded by mu.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	mounts  map[string]*mountState
	order   []string
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		mounts:  make(map[string]*mountState),
	}
}

// CreateChart implements chart.Renderer.
func (h *Hub) CreateChart(mount string, cfg *chart.Config) chart.Handle {
	c := &hubChart{hub: h, mount: mount, cfg: cfg, alive: true}
	msg, conf, err := encodeConstruct(mount, cfg)
	if err != nil {
		h.log.Error("encode chart", zap.String("mount", mount), zap.Error(err))
		return c
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !slices.Contains(h.order, mount) {
		h.order = append(h.order, mount)
	}
	h.mounts[mount] = &mountState{owner: c, construct: msg, config: conf}
	h.broadcastLocked(msg)
	return c
}

// ChartJSON returns the current configuration of the chart on mount.
func (h *Hub) ChartJSON(mount string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.mounts[mount]
	if !ok {
		return nil, false
	}
	return m.config, true
}

// Mounts returns the mounts with a live chart in creation order.
func (h *Hub) Mounts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.order))
	for _, m := range h.order {
		if _, ok := h.mounts[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and replays every live chart to the new
// client before it receives further events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer+len(h.order))}
	h.clients[c] = struct{}{}
	for _, mount := range h.order {
		if m, ok := h.mounts[mount]; ok {
			c.send <- m.construct
		}
	}
	h.mu.Unlock()

	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr))
	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client. Handles created afterwards stay alive
// but are no longer broadcast.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) broadcastLocked(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping slow client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.dropLocked(c)
		}
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func encodeConstruct(mount string, cfg *chart.Config) (msg, conf []byte, err error) {
	conf, err = json.Marshal(cfg)
	if err != nil {
		return nil, nil, err
	}
	msg, err = json.Marshal(Message{Op: "construct", Mount: mount, Config: cfg})
	return msg, conf, err
}

// hubChart is the handle of one browser chart.
type hubChart struct {
	hub   *Hub
	mount string
	cfg   *chart.Config
	alive bool
}

func (c *hubChart) Config() *chart.Config { return c.cfg }

func (c *hubChart) Alive() bool { return c.alive }

// Update sends the current dataset data to every browser.
func (c *hubChart) Update() {
	if !c.alive {
		return
	}
	patch := Message{Op: "update", Mount: c.mount, Datasets: make([]DatasetPatch, len(c.cfg.Data.Datasets))}
	for i, ds := range c.cfg.Data.Datasets {
		patch.Datasets[i] = DatasetPatch{Data: ds.Data}
	}
	msg, err := json.Marshal(patch)
	if err != nil {
		c.hub.log.Error("encode update", zap.String("mount", c.mount), zap.Error(err))
		return
	}
	construct, conf, err := encodeConstruct(c.mount, c.cfg)
	if err != nil {
		c.hub.log.Error("encode chart", zap.String("mount", c.mount), zap.Error(err))
		return
	}

	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.mounts[c.mount]
	if !ok || m.owner != c {
		return
	}
	m.construct, m.config = construct, conf
	h.broadcastLocked(msg)
}

// Destroy removes the chart from every browser.
func (c *hubChart) Destroy() {
	if !c.alive {
		return
	}
	c.alive = false

	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.mounts[c.mount]
	if !ok || m.owner != c {
		return
	}
	delete(h.mounts, c.mount)
	msg, _ := json.Marshal(Message{Op: "destroy", Mount: c.mount})
	h.broadcastLocked(msg)
}
