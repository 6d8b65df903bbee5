package connections

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/caia/concierge/internal/observability"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// Manager tracks the event stream sockets attached to each session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]map[*websocket.Conn]struct{}
	timeouts TimeoutConfig
}

func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		sessions: make(map[string]map[*websocket.Conn]struct{}),
		timeouts: timeouts,
	}
}

func (m *Manager) AddConnection(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.sessions[sessionID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		m.sessions[sessionID] = conns
	}
	if _, exists := conns[conn]; !exists {
		conns[conn] = struct{}{}
		observability.WebsocketConnections.Inc()
	}
}

func (m *Manager) RemoveConnection(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; exists {
		delete(conns, conn)
		observability.WebsocketConnections.Dec()
	}
	if len(conns) == 0 {
		delete(m.sessions, sessionID)
	}
}

// CloseSession sends a close frame to every socket of sessionID. The read
// loops of those sockets then unregister them.
func (m *Manager) CloseSession(sessionID string) int {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.sessions[sessionID]))
	for c := range m.sessions[sessionID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	deadline := time.Now().Add(m.GetTimeouts().WriteWait)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, deadline)
	}
	return len(conns)
}

// GetConnectionCount returns the current number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, conns := range m.sessions {
		count += len(conns)
	}
	return count
}

func (m *Manager) SessionConnectionCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID])
}

// HasConnection checks if a specific connection exists
func (m *Manager) HasConnection(sessionID string, conn *websocket.Conn) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.sessions[sessionID][conn]
	return exists
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeouts
}

// SetTimeouts updates the timeout configuration
func (m *Manager) SetTimeouts(timeouts TimeoutConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts = timeouts
}
