package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/edubot/core/logger"
)

// Store persists sessions between turns. Get returns (nil, nil) when the
// principal has no active session. Delete on an absent principal is a
// no-op. Sessions returned by Get must not alias stored state: the engine
// mutates them between Get and Put while background eviction may read the
// stored entry.
type Store interface {
	Get(ctx context.Context, principalID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, principalID int64) error
	Close() error
}

// MemoryStore keeps sessions in a process-local map. A janitor goroutine
// sweeps sessions idle for longer than the configured TTL so abandoned
// conversations do not accumulate.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
	onEvict func(count int)
}

// NewMemoryStore creates a memory-backed store. A positive idleTTL starts
// the eviction janitor; zero disables eviction.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      idleTTL,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go s.janitor()
	}
	return s
}

// SetEvictHook installs a callback invoked with the number of sessions
// removed by each janitor sweep. Call before the store is in use.
func (s *MemoryStore) SetEvictHook(fn func(count int)) {
	s.onEvict = fn
}

// Get returns the stored session for a principal, or nil when idle. The
// result is a detached copy: the janitor reads stored entries while the
// engine mutates the session between Get and Put, so the two must never
// alias.
func (s *MemoryStore) Get(_ context.Context, principalID int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[principalID].clone(), nil
}

// Put stores a copy of the principal's session.
func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.PrincipalID] = sess.clone()
	return nil
}

// Delete removes the principal's session if present.
func (s *MemoryStore) Delete(_ context.Context, principalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, principalID)
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the janitor. Stored sessions are dropped with the process.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	var evicted int
	for id, sess := range s.sessions {
		if sess.IdleFor(now) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	if evicted == 0 {
		return
	}
	if s.onEvict != nil {
		s.onEvict(evicted)
	}
	logger.Info(context.Background(), "session", "session.evict",
		slog.String("status", "ok"),
		slog.Int("count", evicted),
		slog.Int("remaining", remaining),
	)
}
