package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/agent"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
)

var (
	ErrEmptyMessage  = goerr.New("message is empty")
	ErrSessionClosed = goerr.New("session is closed")
)

// Runner executes one turn against a session's memory
type Runner interface {
	Run(ctx context.Context, mem *memory.SessionMemory, question string, screen model.ScreenPayload) *agent.Outcome
}

// Session is the conversation of one client. Turns are serialized; snapshots and screen
// priming do not wait for a running turn.
type Session struct {
	id        model.SessionID
	clientID  model.ClientID
	createdAt time.Time

	runner Runner
	mem    *memory.SessionMemory

	turn   sync.Mutex
	closed bool // guarded by turn

	pendingMu sync.Mutex
	pending   model.ScreenPayload
}

func newSession(clientID model.ClientID, runner Runner, compressor memory.Compressor, now time.Time) *Session {
	return &Session{
		id:        model.NewSessionID(),
		clientID:  clientID,
		createdAt: now,
		runner:    runner,
		mem:       memory.New(compressor),
	}
}

func (s *Session) ID() model.SessionID { return s.id }

func (s *Session) ClientID() model.ClientID { return s.clientID }

// Handle runs one turn. A screen given here wins over a primed one; either way the primed
// payload is consumed.
func (s *Session) Handle(ctx context.Context, message string, screen model.ScreenPayload) (*agent.Outcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "cannot handle turn", goerr.V("client_id", s.clientID))
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	if s.closed {
		return nil, goerr.Wrap(ErrSessionClosed, "cannot handle turn", goerr.V("client_id", s.clientID), goerr.V("session_id", s.id))
	}

	s.pendingMu.Lock()
	if screen == nil {
		screen = s.pending
	}
	s.pending = nil
	s.pendingMu.Unlock()

	ctx = logging.WithAttrs(ctx, "client_id", s.clientID, "session_id", s.id)
	logging.From(ctx).Debug("turn started", "message_bytes", len(message), "screen", screen != nil)

	return s.runner.Run(ctx, s.mem, message, screen), nil
}

// PrimeScreen stores a screen payload for the next turn
func (s *Session) PrimeScreen(payload model.ScreenPayload) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending = payload
}

// Snapshot returns a read-only view of the session memory
func (s *Session) Snapshot() model.MemorySnapshot {
	return s.mem.Snapshot()
}

// Archive returns the persisted form of the session
func (s *Session) Archive(now time.Time) *model.SessionArchive {
	return &model.SessionArchive{
		ClientID:   s.clientID,
		SessionID:  s.id,
		Summary:    s.mem.Summary(),
		Exchanges:  s.mem.Exchanges(),
		CreatedAt:  s.createdAt,
		ArchivedAt: now,
	}
}
