// Package realtime implements the WebSocket push transport. Listeners
// subscribe to named channels; the hub fans events out to every connection
// subscribed to a channel.
package realtime

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/arabesque/support-relay/internal/support"
)

const (
	sendBuffer        = 64
	writeTimeout      = 10 * time.Second
	keepAliveInterval = 25 * time.Second
	pingTimeout       = 5 * time.Second
)

// Client is one WebSocket connection with its channel subscriptions.
type Client struct {
	channels []string
	conn     *websocket.Conn
	send     chan support.Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub tracks connected clients per channel name and fans events out to them.
// Push is best-effort: a client with a full send buffer drops the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: map[string]map[*Client]struct{}{},
	}
}

// AddClient registers a connection under its channel subscriptions and starts
// its write and keep-alive loops. Channel authorization happens at the HTTP
// boundary before this call.
func (h *Hub) AddClient(channels []string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		channels: channels,
		conn:     conn,
		send:     make(chan support.Event, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	h.mu.Lock()
	for _, ch := range channels {
		if h.subs[ch] == nil {
			h.subs[ch] = map[*Client]struct{}{}
		}
		h.subs[ch][c] = struct{}{}
	}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient drops a connection from all its subscriptions and closes it.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range c.channels {
		if set, ok := h.subs[ch]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subs, ch)
			}
		}
	}

	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Subscribers reports how many clients are subscribed to a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Publish delivers an event to every client subscribed to the channel.
// Implements support.Publisher.
func (h *Hub) Publish(channel string, event support.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.subs[channel] {
		select {
		case c.send <- event:
		default:
			// Slow consumer; drop rather than block the publisher.
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			_ = wsjson.Write(writeCtx, c.conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
