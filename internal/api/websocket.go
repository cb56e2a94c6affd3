package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
	"github.com/nerrad567/climate-core/internal/infrastructure/logging"
	"github.com/nerrad567/climate-core/internal/query"
)

// Message types on the live socket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels. Clients start subscribed to both.
const (
	ChannelSnapshot = "units.snapshot"
	ChannelAlert    = "unit.alert"
)

var defaultChannels = []string{ChannelSnapshot, ChannelAlert}

// wsQueueSize is how many frames a client may lag before frames are dropped.
const wsQueueSize = 256

// WSMessage is one frame on the live socket, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is an inbound frame with its payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSSubscribePayload names the channels of a subscribe or unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware owns origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub tracks live-socket clients and fans alert events out to them.
// Snapshots are not broadcast: each client runs its own feed.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(_ config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.queue)
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: wsTimestamp(time.Now()),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding live event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("live client connected", "clients", n)
}

// remove drops c. Whoever deletes c from the map closes its queue, so Run
// and the read pump never both close it.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.queue)
	}
	h.logger.Debug("live client disconnected", "clients", n)
}

type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	queue    chan []byte
	stopFeed context.CancelFunc

	mu       sync.RWMutex
	channels map[string]struct{}
}

// handleWebSocket upgrades the request and streams snapshots and alert
// events to the client until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// Outlives this handler; the read pump stops it.
	feedCtx, stop := context.WithCancel(context.WithoutCancel(r.Context()))

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		queue:    make(chan []byte, wsQueueSize),
		stopFeed: stop,
		channels: make(map[string]struct{}, len(defaultChannels)),
	}
	c.setChannels(defaultChannels, true)
	s.hub.add(c)

	pingEvery := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second

	go c.relaySnapshots(s.query.Feed(feedCtx, s.wsCfg.FeedInterval))
	go c.writeLoop(pingEvery, pongWait)
	go c.readLoop(int64(s.wsCfg.MaxMessageSize), pingEvery+pongWait)
}

// relaySnapshots forwards the client's feed while it wants snapshots.
func (c *wsClient) relaySnapshots(feed <-chan query.Snapshot) {
	for snap := range feed {
		if !c.subscribed(ChannelSnapshot) {
			continue
		}
		data, err := json.Marshal(WSMessage{
			Type:      WSTypeEvent,
			ID:        strconv.FormatUint(snap.Generation, 10),
			EventType: ChannelSnapshot,
			Timestamp: wsTimestamp(snap.Timestamp),
			Payload:   snap.Units,
		})
		if err != nil {
			c.hub.logger.Error("encoding snapshot failed", "generation", snap.Generation, "error", err)
			continue
		}
		c.enqueue(data)
	}
}

// readLoop handles client requests. Any frame or pong extends the idle
// deadline; when it lapses the client is dropped.
func (c *wsClient) readLoop(limit int64, idle time.Duration) {
	defer func() {
		c.stopFeed()
		c.hub.remove(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(limit)
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("live client read failed", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.handle(frame)
	}
}

// writeLoop drains the queue and pings every pingEvery.
func (c *wsClient) writeLoop(pingEvery, writeWait time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(frame []byte) {
	var req wsRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		subscribe := req.Type == WSTypeSubscribe
		c.setChannels(p.Channels, subscribe)

		key := "unsubscribed"
		if subscribe {
			key = "subscribed"
		}
		c.reply(req.ID, WSTypeResponse, map[string]any{key: p.Channels})
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *wsClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *wsClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: wsTimestamp(time.Now()),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}

// enqueue drops data when the client lags or has already disconnected.
func (c *wsClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // queue closed by a concurrent disconnect
	}()

	select {
	case c.queue <- data:
	default:
	}
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func wsTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
