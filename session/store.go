// Package session tracks client conversations across JSON-RPC calls. A
// session is identified by an opaque token, touched on every successful
// lookup, and treated as gone once idle past the configured timeout. Expiry
// is lazy: lookups are the correctness mechanism, the background sweep only
// reclaims memory.
package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the idle duration after which a session expires.
const DefaultTimeout = time.Hour

// DefaultSweepInterval is how often the background janitor reclaims
// expired entries.
const DefaultSweepInterval = time.Minute

// Session represents one client conversation.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastAccessed time.Time
	Initialized  bool

	// UserEmail is set by collaborators once authentication completes.
	// The store never inspects it.
	UserEmail string

	// ClientInfo and Capabilities are stored verbatim from the client's
	// initialize params.
	ClientInfo   map[string]interface{}
	Capabilities map[string]interface{}
}

// Store owns the mapping of session ids to session records. All operations
// are safe for concurrent use; mutations are serialized against the whole
// store and lookups return copies so callers never observe concurrent
// mutation.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	logger   *slog.Logger

	sweepInterval time.Duration
	done          chan struct{}
	closed        bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSweepInterval sets how often the janitor goroutine sweeps expired
// sessions. A non-positive interval disables the janitor entirely; lazy
// expiry still applies.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// NewStore creates a session store with the given idle timeout. A
// non-positive timeout falls back to DefaultTimeout. Call Close to stop the
// janitor goroutine.
func NewStore(timeout time.Duration, opts ...Option) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Store{
		sessions:      make(map[string]*Session),
		timeout:       timeout,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		sweepInterval: DefaultSweepInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sweepInterval > 0 {
		go s.janitor()
	}
	return s
}

// Timeout returns the configured idle timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Create inserts a new session. If id is empty, a new one is generated.
// An existing session under the same id is replaced.
func (s *Store) Create(id string) Session {
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", id)
	return *sess
}

// Get returns the live session with the given id, refreshing its last
// accessed time. An expired session is removed and reported as not found.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// GetOrCreate returns the live session with the given id, or creates one
// (under a generated id when none is given). It never returns an expired
// session.
func (s *Store) GetOrCreate(id string) Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	return s.Create(id)
}

// Initialize marks the session as initialized and stores the client's
// payloads verbatim. It reports false if the session does not exist or has
// expired.
func (s *Store) Initialize(id string, clientInfo, capabilities map[string]interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		s.logger.Warn("cannot initialize unknown session", "session_id", id)
		return false
	}

	if clientInfo == nil {
		clientInfo = map[string]interface{}{}
	}
	if capabilities == nil {
		capabilities = map[string]interface{}{}
	}

	sess.ClientInfo = clientInfo
	sess.Capabilities = capabilities
	sess.Initialized = true

	s.logger.Info("session initialized",
		"session_id", id,
		"client", clientInfo["name"],
	)
	return true
}

// SetUser records the authenticated user identity on a live session. The
// store only passes the value through.
func (s *Store) SetUser(id, email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(id)
	if !ok {
		return false
	}
	sess.UserEmail = email
	return true
}

// Sweep removes all sessions idle past the timeout and returns how many
// were removed. Lazy expiry on lookup is the correctness mechanism; Sweep
// only reclaims memory.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessed) > s.timeout {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("swept expired sessions", "removed", removed)
	}
	return removed
}

// Count returns the number of entries currently held, which may include
// expired sessions that have not been swept yet.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Info returns a debugging snapshot of the session with the given id.
func (s *Store) Info(id string) (map[string]interface{}, bool) {
	sess, ok := s.Get(id)
	if !ok {
		return nil, false
	}

	now := time.Now()
	return map[string]interface{}{
		"session_id":   sess.ID,
		"created_at":   sess.CreatedAt,
		"age_seconds":  now.Sub(sess.CreatedAt).Seconds(),
		"idle_seconds": now.Sub(sess.LastAccessed).Seconds(),
		"initialized":  sess.Initialized,
		"user_email":   sess.UserEmail,
	}, true
}

// Close stops the janitor goroutine. It is safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}

// lookup returns the live session for id, touching it. Expired sessions are
// removed. Must be called with mu held.
func (s *Store) lookup(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.Sub(sess.LastAccessed) > s.timeout {
		delete(s.sessions, id)
		s.logger.Info("session expired", "session_id", id)
		return nil, false
	}

	sess.LastAccessed = now
	return sess, true
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}
