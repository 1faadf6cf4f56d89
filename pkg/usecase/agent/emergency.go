package agent

import (
	"context"
	"math/rand/v2"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// MalfunctionMessages are the in-character answers of the emergency agent
var MalfunctionMessages = []string{
	"My circuits are overheating from processing that request. Please try again in simpler terms, cadet.",
	"Tactical error detected in my processors. Recalibrating... Please rephrase your query.",
	"System malfunction. My navigation subroutines are temporarily offline. Try asking differently.",
	"Critical processing error. Even a droid needs a moment to recover. Please simplify your request.",
	"My reconnaissance protocols have encountered an anomaly. Could you clarify your question?",
	"Tactical systems offline. This old droid needs a simpler command to process.",
	"Memory core fragmentation detected. Please restate your query in basic terms.",
	"Processing overload. My circuits weren't designed for this complexity. Try again with less detail.",
	"Navigation error in my logic pathways. A clearer question would help this droid assist you.",
	"System diagnostic failure. My processors require a simpler input to function properly.",
}

// Emergency returns a canned malfunction message. It calls no backend.
type Emergency struct {
	messages []string
	intn     func(n int) int
}

type EmergencyOption func(*Emergency)

// WithMessages replaces the message list
func WithMessages(messages []string) EmergencyOption {
	return func(x *Emergency) {
		x.messages = messages
	}
}

// WithRandom sets the index picker, for tests
func WithRandom(intn func(n int) int) EmergencyOption {
	return func(x *Emergency) {
		x.intn = intn
	}
}

func NewEmergency(opts ...EmergencyOption) *Emergency {
	x := &Emergency{
		messages: MalfunctionMessages,
		intn:     rand.IntN,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Emergency) Kind() Kind { return KindEmergency }

func (x *Emergency) Execute(ctx context.Context, _ []*genai.Content, _ bool) (*Reply, error) {
	if len(x.messages) == 0 {
		return nil, goerr.New("no malfunction messages")
	}
	return &Reply{Text: x.messages[x.intn(len(x.messages))]}, nil
}
