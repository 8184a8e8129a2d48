// Package ws relays signal bus updates to browser clients over WebSocket and
// lets a client watch one account's position view.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Channels relayed from the signal bus.
const (
	ChannelPositions = service.ChannelPositions
	ChannelLocks     = service.ChannelLocks
	ChannelPairs     = service.ChannelPairs
)

var relayedChannels = []string{ChannelPositions, ChannelLocks, ChannelPairs}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PositionWatcher produces position views for a watching client.
type PositionWatcher interface {
	Apply(ctx context.Context, sessionID string, res domain.PositionsResult, prefs domain.Preferences) (string, domain.DerivedView)
	View(ctx context.Context, sessionID, account string, prefs domain.Preferences) (string, domain.DerivedView, error)
	Drop(sessionID string) bool
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	subs    map[string]bool
	session string
	account string
	prefs   domain.Preferences
}

// clientMsg is a message sent by the client. Action is one of subscribe,
// unsubscribe, watch or refresh.
type clientMsg struct {
	Action      string   `json:"action"`
	Channels    []string `json:"channels"`
	Account     string   `json:"account"`
	HideClosed  *bool    `json:"hide_closed"`
	HideFarming *bool    `json:"hide_farming"`
}

// envelope is every frame sent to a client.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages a set of connected WebSocket clients and broadcasts messages
// from the signal bus to all subscribed clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	watcher    PositionWatcher
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// NewHub creates a hub that bridges bus to connected clients. watcher may be
// nil, in which case watch requests are rejected.
func NewHub(bus domain.SignalBus, watcher PositionWatcher, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		watcher:    watcher,
		logger:     logger.With(slog.String("component", "ws")),
		mode:       mode,
		startedAt:  startedAt,
	}
}

// Run starts the hub's main event loop. The loop exits when ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range relayedChannels {
			go h.subscribeToChannel(ctx, ch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			close(h.done)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			if s := c.sessionID(); s != "" && h.watcher != nil {
				h.watcher.Drop(s)
			}
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers msg to subscribed clients. Position views are private to
// the session that produced them.
func (h *Hub) fanOut(msg broadcastMsg) {
	var target string
	if msg.channel == ChannelPositions {
		var evt struct {
			Session string `json:"session"`
		}
		if err := json.Unmarshal(msg.data, &evt); err != nil || evt.Session == "" {
			return
		}
		target = evt.Session
	}

	frame, err := json.Marshal(envelope{Type: msg.channel, Payload: msg.data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(msg.channel) {
			continue
		}
		if target != "" && c.sessionID() != target {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("ws: dropping message for slow client",
				slog.String("channel", msg.channel),
			)
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribeToChannel subscribes to one bus channel and forwards received
// messages to the hub's broadcast channel.
func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel),
				)
				return
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. Clients start subscribed to locks and pairs; they
// receive positions once they watch an account.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		subs:  map[string]bool{ChannelLocks: true, ChannelPairs: true},
		prefs: domain.DefaultPreferences(),
	}

	if !h.join(c) {
		conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

// join hands c to the event loop. It reports false once Run has returned.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to the event loop; after Run has returned the loop
// already closed every client, so there is nothing to do.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg clientMsg) {
	switch msg.Action {
	case "subscribe":
		c.mu.Lock()
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
		c.mu.Unlock()
	case "watch":
		c.mu.Lock()
		c.account = msg.Account
		if msg.HideClosed != nil {
			c.prefs.HideClosed = *msg.HideClosed
		}
		if msg.HideFarming != nil {
			c.prefs.HideFarming = *msg.HideFarming
		}
		c.subs[ChannelPositions] = true
		c.mu.Unlock()
		c.refresh()
	case "refresh":
		c.refresh()
	default:
		c.sendError("unknown action")
	}
}

// refresh emits a loading view from the session cache and then the fetched
// view. The fetched view reaches the client through the positions channel
// when a bus is configured, and directly otherwise.
func (c *client) refresh() {
	w := c.hub.watcher
	if w == nil {
		c.sendError("position views are not available")
		return
	}

	c.mu.RLock()
	session, account, prefs := c.session, c.account, c.prefs
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, loading := w.Apply(ctx, session, domain.PositionsResult{Account: account, Status: domain.FetchLoading}, prefs)
	c.setSession(session)
	if c.hub.bus == nil {
		c.sendView(loading)
	}

	session, view, err := w.View(ctx, session, account, prefs)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.setSession(session)
	if c.hub.bus == nil {
		c.sendView(view)
	}
}

func (c *client) setSession(id string) {
	c.mu.Lock()
	c.session = id
	c.mu.Unlock()
}

func (c *client) sessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *client) sendView(view domain.DerivedView) {
	payload, err := json.Marshal(map[string]any{"session": c.sessionID(), "view": view})
	if err != nil {
		return
	}
	c.enqueue(ChannelPositions, payload)
}

func (c *client) sendError(msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	c.enqueue("error", payload)
}

// sendStatus pushes a status frame so clients can mark the connection
// healthy before any update flows.
func (c *client) sendStatus() {
	uptime := max(int64(time.Since(c.hub.startedAt).Seconds()), 0)
	payload, err := json.Marshal(map[string]any{
		"mode":           c.hub.mode,
		"uptime_seconds": uptime,
		"channels":       relayedChannels,
	})
	if err != nil {
		return
	}
	c.enqueue("status", payload)
}

func (c *client) enqueue(typ string, payload []byte) {
	frame, err := json.Marshal(envelope{Type: typ, Payload: payload})
	if err != nil {
		return
	}
	defer func() {
		// send may already be closed by the hub on shutdown.
		_ = recover()
	}()
	select {
	case c.send <- frame:
	default:
	}
}

// isSubscribed checks whether the client is subscribed to the given channel.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// writePump pumps messages from the hub to the WebSocket connection as text
// frames and sends periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
