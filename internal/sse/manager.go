package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize         = 1000
	clientBufferSize  = 100
	heartbeatInterval = 30 * time.Second
)

// Client is one connected event stream. Events is closed when the client is released.
type Client struct {
	ID          string
	UserID      string
	IsLibrarian bool
	ConnectedAt time.Time
	Events      chan Event
	Done        chan struct{}

	release sync.Once
}

// close releases the client's channels exactly once.
func (c *Client) close() {
	c.release.Do(func() {
		close(c.Done)
		close(c.Events)
	})
}

// wants reports whether e may be delivered to c.
// Loan events carry their borrower; librarians see every loan.
func (c *Client) wants(e Event) bool {
	return e.UserID == "" || c.IsLibrarian || c.UserID == e.UserID
}

// Manager fans lending events out to connected clients.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client

	// gate guards queue against sends after Shutdown closed it.
	gate    sync.RWMutex
	closed  bool
	queue   chan Event
	running sync.WaitGroup

	heartbeat time.Duration
	logger    *slog.Logger
}

// NewManager creates a manager. Call Start to begin broadcasting.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients:   make(map[string]*Client),
		queue:     make(chan Event, queueSize),
		heartbeat: heartbeatInterval,
		logger:    logger,
	}
}

// Start broadcasts queued events and heartbeats until ctx is canceled or Shutdown drains the queue.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.logger.Info("event stream started")
	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.broadcast(event)
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("event stream stopping")
			m.releaseAll()
			return
		}
	}
}

// Shutdown refuses further events, delivers what is already queued, and disconnects everyone.
// Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.gate.Lock()
	if m.closed {
		m.gate.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.gate.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for event := range m.queue {
			m.broadcast(event)
		}
		m.running.Wait()
	}()

	select {
	case <-drained:
		m.logger.Info("event stream shut down")
	case <-ctx.Done():
		m.logger.Warn("event queue not drained before deadline")
	}
	m.releaseAll()
	return nil
}

type fanOut struct {
	delivered, skipped, dropped int
}

func (m *Manager) broadcast(event Event) {
	var out fanOut

	m.mu.RLock()
	for _, c := range m.clients {
		if !c.wants(event) {
			out.skipped++
			continue
		}
		select {
		case c.Events <- event:
			out.delivered++
		default:
			out.dropped++
			m.logger.Warn("client buffer full, event dropped",
				slog.String("client_id", c.ID),
				slog.String("event_type", string(event.Type)))
		}
	}
	m.mu.RUnlock()

	if event.Type == EventHeartbeat {
		return
	}
	m.logger.Debug("event delivered",
		slog.String("event_type", string(event.Type)),
		slog.Group("clients",
			slog.Int("delivered", out.delivered),
			slog.Int("skipped", out.skipped),
			slog.Int("dropped", out.dropped)))
}

// Connect registers a stream for userID.
func (m *Manager) Connect(userID string, isLibrarian bool) *Client {
	c := &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		IsLibrarian: isLibrarian,
		ConnectedAt: time.Now(),
		Events:      make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[c.ID] = c
	n := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("stream connected",
		slog.String("client_id", c.ID),
		slog.String("user_id", userID),
		slog.Bool("librarian", isLibrarian),
		slog.Int("clients", n))
	return c
}

// Disconnect removes a client. Unknown IDs are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	delete(m.clients, clientID)
	n := len(m.clients)
	m.mu.Unlock()

	if !ok {
		return
	}
	c.close()

	m.logger.Info("stream disconnected",
		slog.String("client_id", clientID),
		slog.Duration("connected_for", time.Since(c.ConnectedAt)),
		slog.Int("clients", n))
}

// Emit queues an event without blocking. It implements store.EventEmitter;
// anything that is not an Event is logged and ignored.
func (m *Manager) Emit(event any) {
	e, ok := event.(Event)
	if !ok {
		m.logger.Error("emit called with a non-event value")
		return
	}

	m.gate.RLock()
	defer m.gate.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- e:
	default:
		m.logger.Error("event queue full, event dropped", slog.String("event_type", string(e.Type)))
	}
}

// ClientCount is the number of connected streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) releaseAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
