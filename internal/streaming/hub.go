package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	clientBuffer      = 10
	broadcasterBuffer = 100
	criticalTimeout   = 100 * time.Millisecond
	clientTimeout     = 50 * time.Millisecond
)

// Client represents a connected SSE client
type Client struct {
	Events chan SSEEvent
}

// NewClient creates a new SSE client
func NewClient() *Client {
	return &Client{
		Events: make(chan SSEEvent, clientBuffer),
	}
}

// SessionBroadcaster fans the events of one import session out to its clients
type SessionBroadcaster struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	events   chan SSEEvent
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopped  bool
}

// NewSessionBroadcaster creates a new session broadcaster
func NewSessionBroadcaster(ctx context.Context) *SessionBroadcaster {
	ctx, cancel := context.WithCancel(ctx)
	return &SessionBroadcaster{
		clients: make(map[*Client]bool),
		events:  make(chan SSEEvent, broadcasterBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a client to the broadcaster
func (b *SessionBroadcaster) Register(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
	log.Debug("sse client registered", "clients", len(b.clients))
}

// Unregister removes a client from the broadcaster
func (b *SessionBroadcaster) Unregister(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		// Stop already closed every client channel.
		if !b.stopped {
			close(client.Events)
		}
		log.Debug("sse client unregistered", "clients", len(b.clients))
	}
}

// ClientCount returns the number of connected clients
func (b *SessionBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stopped reports whether the broadcaster has shut down.
func (b *SessionBroadcaster) Stopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// Broadcast queues an event for all registered clients. Terminal events wait
// briefly for room in the queue; other events are dropped when it is full.
func (b *SessionBroadcaster) Broadcast(event SSEEvent) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	if event.Terminal() {
		select {
		case b.events <- event:
		case <-b.ctx.Done():
		case <-time.After(criticalTimeout):
			log.Error("failed to queue terminal event", "type", event.Type, "capacity", cap(b.events))
		}
		return
	}

	select {
	case b.events <- event:
	case <-b.ctx.Done():
	default:
		log.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// Stop stops the broadcaster and closes every client channel
func (b *SessionBroadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		for client := range b.clients {
			close(client.Events)
			delete(b.clients, client)
		}
		b.mu.Unlock()
		b.cancel()
	})
}

// Start delivers queued events until the context ends or a terminal event
// has been delivered.
func (b *SessionBroadcaster) Start() {
	go func() {
		defer b.Stop()
		for {
			select {
			case <-b.ctx.Done():
				return
			case event := <-b.events:
				b.broadcastToClients(event)
				if event.Terminal() {
					// Let clients drain the terminal event before their channels close.
					time.Sleep(criticalTimeout)
					return
				}
			}
		}
	}()
}

func (b *SessionBroadcaster) broadcastToClients(event SSEEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if event.Terminal() {
			select {
			case client.Events <- event:
			case <-time.After(clientTimeout):
				log.Error("failed to deliver terminal event to client", "type", event.Type, "capacity", cap(client.Events))
			}
			continue
		}

		select {
		case client.Events <- event:
		default:
			log.Warn("client channel full, skipping event", "type", event.Type)
		}
	}
}

// StreamHub manages broadcasters for import sessions
type StreamHub struct {
	mu           sync.RWMutex
	broadcasters map[string]*SessionBroadcaster
}

// NewStreamHub creates a new stream hub
func NewStreamHub() *StreamHub {
	return &StreamHub{
		broadcasters: make(map[string]*SessionBroadcaster),
	}
}

// Register subscribes a new client to sessionID. A broadcaster that already
// finished is replaced.
func (h *StreamHub) Register(ctx context.Context, sessionID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	client := NewClient()

	broadcaster, exists := h.broadcasters[sessionID]
	if !exists || broadcaster.Stopped() {
		broadcaster = NewSessionBroadcaster(ctx)
		h.broadcasters[sessionID] = broadcaster
		broadcaster.Start()
		log.Debug("created broadcaster", "session", sessionID)
	}

	broadcaster.Register(client)
	return client
}

// Unregister removes a client and drops the broadcaster with its last client
func (h *StreamHub) Unregister(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	broadcaster, exists := h.broadcasters[sessionID]
	if !exists {
		return
	}

	broadcaster.Unregister(client)

	if broadcaster.ClientCount() == 0 {
		broadcaster.Stop()
		delete(h.broadcasters, sessionID)
		log.Debug("broadcaster cleaned up", "session", sessionID)
	}
}

// Broadcast sends an event to all clients of a session. Sessions without
// subscribers drop the event.
func (h *StreamHub) Broadcast(sessionID string, event SSEEvent) {
	h.mu.RLock()
	broadcaster, exists := h.broadcasters[sessionID]
	h.mu.RUnlock()

	if !exists {
		log.Debug("no subscribers for session, dropping event", "session", sessionID, "type", event.Type)
		return
	}

	broadcaster.Broadcast(event)
}

// IsRunning checks if a session broadcaster exists
func (h *StreamHub) IsRunning(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.broadcasters[sessionID]
	return exists
}
