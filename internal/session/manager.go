package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/monitoring"
)

// Manager holds the live sessions and evicts idle ones.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time
	metrics  *monitoring.Metrics
	onEvict  func(id string)
}

// NewManager creates a manager evicting sessions idle for longer than idle.
// idle <= 0 disables eviction.
func NewManager(idle time.Duration, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		idle:     idle,
		now:      time.Now,
		metrics:  metrics,
	}
}

// OnEvict registers fn to run, outside the manager lock, for every session
// that leaves the manager through Delete or Sweep. It replaces any earlier
// hook and must be set before the manager is shared.
func (m *Manager) OnEvict(fn func(id string)) {
	m.onEvict = fn
}

func (m *Manager) evicted(ids ...string) {
	if m.onEvict == nil {
		return
	}
	for _, id := range ids {
		m.onEvict(id)
	}
}

// Create starts a new session with a random ID.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	zap.L().Debug("session: created", zap.String("session_id", s.ID))
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with id, creating it under that id when
// absent. An empty id always creates a new session.
func (m *Manager) GetOrCreate(id string) *Session {
	if id == "" {
		return m.Create()
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, m.now())
		m.sessions[id] = s
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		m.metrics.SetSessions(n)
	}
	return s
}

// Delete drops a session. Its pending order, if any, is discarded.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	if ok {
		m.evicted(id)
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle since before now-idle. Sessions in the middle
// of a turn are kept. It returns the number evicted.
func (m *Manager) Sweep(now time.Time) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var evicted []string
	for id, s := range m.sessions {
		if !s.LastActive().Before(cutoff) {
			continue
		}
		if !s.turn.TryLock() {
			continue
		}
		delete(m.sessions, id)
		s.turn.Unlock()
		evicted = append(evicted, id)
		if s.HasPending() {
			zap.L().Info("session: evicted with pending order", zap.String("session_id", id))
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	m.evicted(evicted...)
	return len(evicted)
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "session.janitor"))
	log.Info("starting session janitor",
		zap.Duration("interval", interval),
		zap.Duration("idle_timeout", m.idle),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				log.Info("session: evicted idle sessions", zap.Int("evicted", n))
			}
		}
	}
}
