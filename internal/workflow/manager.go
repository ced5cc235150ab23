// Package workflow owns the per-session state of the two-page workflow and
// runs every user action against it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backdesk/internal/gateway/remote"
	"backdesk/internal/indicator"
	"backdesk/internal/ingest"
	"backdesk/internal/logger"
	"backdesk/internal/market"
	"backdesk/internal/request"
	"backdesk/internal/session"

	"github.com/google/uuid"
)

var log = logger.Named("workflow")

var (
	// ErrBusy is returned when a backtest is already in flight for the session.
	ErrBusy           = errors.New("a backtest is already running for this session")
	ErrUnknownSession = errors.New("unknown session")
)

// Remote is the subset of the service client the workflow needs.
type Remote interface {
	FetchHistorical(ctx context.Context, req remote.HistoricalRequest) (*ingest.Load, error)
	RunBacktest(ctx context.Context, payload any) ([]byte, error)
	Download(ctx context.Context, ds *market.Dataset) (*remote.File, error)
}

type Options struct {
	Catalog         *indicator.Catalog
	Defaults        request.Defaults
	DefaultInterval string
	Now             func() time.Time
}

// Manager maps session ids to live sessions. Sessions whose id is valid but
// not in memory are recreated and restore their dataset from the KV store.
type Manager struct {
	remote Remote
	kv     session.KV
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(r Remote, kv session.KV, opts Options) *Manager {
	if opts.Catalog == nil {
		opts.Catalog = indicator.DefaultCatalog()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultInterval == "" {
		opts.DefaultInterval = ingest.DefaultInterval
	}
	if kv == nil {
		kv = session.NewMemoryKV()
	}
	return &Manager{remote: r, kv: kv, opts: opts, sessions: make(map[string]*Session)}
}

func (m *Manager) Catalog() *indicator.Catalog { return m.opts.Catalog }

// Create starts a new session with a random id.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.newSession(id)
	m.sessions[id] = s
	log.Debugf("session %s created", id)
	return s
}

// Open returns the session for id, recreating it when only its persisted
// state survives.
func (m *Manager) Open(id string) (*Session, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	id = parsed.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch()
		return s, nil
	}
	s := m.newSession(id)
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) newSession(id string) *Session {
	s := &Session{
		id:       id,
		bridge:   session.NewBridge(m.kv, id),
		remote:   m.remote,
		opts:     m.opts,
		lastUsed: m.opts.Now(),
	}
	s.init()
	return s
}

// Purge drops persisted entries and in-memory sessions idle for longer than ttl.
func (m *Manager) Purge(ctx context.Context, ttl time.Duration) (int64, int, error) {
	cutoff := m.opts.Now().Add(-ttl)
	rows, err := m.kv.Purge(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("purge session store: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return rows, evicted, nil
}
