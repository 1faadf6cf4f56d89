package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
)

var ErrSessionNotFound = goerr.New("session not found")

// Manager holds one session per client id
type Manager struct {
	mu       sync.Mutex
	sessions map[model.ClientID]*Session

	runner     Runner
	compressor memory.Compressor
	storage    adapter.Storage
	now        func() time.Time
}

type Option func(*Manager)

// WithStorage archives sessions to object storage on teardown
func WithStorage(storage adapter.Storage) Option {
	return func(m *Manager) {
		m.storage = storage
	}
}

// WithCompressor sets the compressor used by new session memories
func WithCompressor(c memory.Compressor) Option {
	return func(m *Manager) {
		m.compressor = c
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(runner Runner, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[model.ClientID]*Session),
		runner:   runner,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the client's session, creating it on first use
func (m *Manager) Get(ctx context.Context, clientID model.ClientID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[clientID]; ok {
		return s
	}

	s := newSession(clientID, m.runner, m.compressor, m.now())
	m.sessions[clientID] = s
	logging.From(ctx).Info("session created", "client_id", clientID, "session_id", s.id)
	return s
}

// Lookup returns the client's session without creating one
func (m *Manager) Lookup(clientID model.ClientID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// Clients returns the client ids with a live session, sorted
func (m *Manager) Clients() []model.ClientID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]model.ClientID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Teardown removes the client's session and archives it when storage is configured. The
// session is removed even if archiving fails.
func (m *Manager) Teardown(ctx context.Context, clientID model.ClientID) error {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()

	if !ok {
		return goerr.Wrap(ErrSessionNotFound, "cannot tear down", goerr.V("client_id", clientID))
	}

	// wait for a running turn; later turns on this session are rejected
	s.turn.Lock()
	defer s.turn.Unlock()
	s.closed = true

	logger := logging.From(ctx).With("client_id", clientID, "session_id", s.id)
	if m.storage == nil {
		logger.Info("session closed")
		return nil
	}

	key := ArchiveKey(clientID, s.id)
	if err := m.archive(ctx, key, s.Archive(m.now())); err != nil {
		return err
	}
	logger.Info("session archived", "key", key)
	return nil
}

// Close tears down every session and returns the first error
func (m *Manager) Close(ctx context.Context) error {
	var first error
	for _, id := range m.Clients() {
		if err := m.Teardown(ctx, id); err != nil {
			logging.From(ctx).Error("failed to tear down session", "error", err, "client_id", id)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ArchiveKey is the object key of a session archive
func ArchiveKey(clientID model.ClientID, sessionID model.SessionID) string {
	return "sessions/" + string(clientID) + "/" + string(sessionID) + ".json"
}

func (m *Manager) archive(ctx context.Context, key string, archive *model.SessionArchive) error {
	writer, err := m.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", key))
	}

	data, err := json.Marshal(archive)
	if err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to marshal session archive")
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write session archive", goerr.V("key", key))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}
