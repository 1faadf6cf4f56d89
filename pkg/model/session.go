package model

import (
	"time"

	"github.com/google/uuid"
)

// ClientID is the opaque identifier a transport uses to address a session
type ClientID string

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Exchange is one committed question/answer pair in session history
type Exchange struct {
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// ToolCallSource tells where a tool result used in a turn came from
type ToolCallSource string

const (
	ToolCallExecuted  ToolCallSource = "executed"
	ToolCallCached    ToolCallSource = "cached"
	ToolCallDuplicate ToolCallSource = "duplicate"
	ToolCallFailed    ToolCallSource = "failed"
)

// ToolCallRecord is a single tool invocation observed during a turn
type ToolCallRecord struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Source ToolCallSource `json:"source"`
}

// SessionArchive is the persisted form of a session written on teardown.
// Tool cache contents are not archived because they only make sense while the session is live.
type SessionArchive struct {
	ClientID   ClientID   `json:"client_id"`
	SessionID  SessionID  `json:"session_id"`
	Summary    string     `json:"summary"`
	Exchanges  []Exchange `json:"exchanges"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt time.Time  `json:"archived_at"`
}
