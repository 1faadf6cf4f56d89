package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"google.golang.org/genai"
)

// MaxExchanges is the number of exchanges retained verbatim
const MaxExchanges = 10

// SessionMemory is the memory of one session: retained exchanges, the running summary of the
// evicted ones, the tool cache and the one-time screen injection flag. Only the session's own
// turn flow mutates it. The lock is there so that snapshots can be taken from elsewhere.
type SessionMemory struct {
	mu sync.RWMutex

	summary    string
	exchanges  []model.Exchange
	cache      *ToolCache
	injected   bool
	compressor Compressor

	// scratch state of the turn in progress
	question  string
	toolCalls []model.ToolCallRecord
}

// New creates an empty SessionMemory
func New(compressor Compressor) *SessionMemory {
	if compressor == nil {
		compressor = NewSummarizer(nil)
	}
	return &SessionMemory{
		cache:      NewToolCache(),
		compressor: compressor,
	}
}

// Cache returns the session's tool cache
func (m *SessionMemory) Cache() *ToolCache {
	return m.cache
}

// PrepareTurnInput starts a turn and returns its context: summary, retained exchanges oldest
// first, live cached tool results, then the new user message
func (m *SessionMemory) PrepareTurnInput(question string) []*genai.Content {
	m.mu.Lock()
	m.question = question
	m.toolCalls = nil
	summary := m.summary
	exchanges := make([]model.Exchange, len(m.exchanges))
	copy(exchanges, m.exchanges)
	m.mu.Unlock()

	var contents []*genai.Content
	if summary != "" {
		contents = append(contents, renderSummary(summary))
	}
	for _, x := range exchanges {
		contents = append(contents, renderExchange(x)...)
	}
	for _, entry := range m.cache.Entries() {
		contents = append(contents, ToolCallContents(entry.CallID, entry.ToolName, entry.Params, entry.Result)...)
	}
	contents = append(contents, genai.NewContentFromText(question, genai.RoleUser))

	return contents
}

// RecordToolCall adds a tool call to the transcript of the turn in progress
func (m *SessionMemory) RecordToolCall(rec model.ToolCallRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, rec)
}

// Finalize commits the turn as an exchange. Oversized answers are compressed, exchanges over
// capacity are folded into the summary oldest first, an oversized summary is rewritten, and
// the tool cache is aged exactly once.
func (m *SessionMemory) Finalize(ctx context.Context, question, answer string) model.Exchange {
	logger := logging.From(ctx)

	if len(answer) > AnswerThreshold {
		compressed := m.compressor.CompressAnswer(ctx, answer)
		logger.Debug("answer compressed", "from", len(answer), "to", len(compressed))
		answer = compressed
	}

	m.mu.Lock()
	x := model.Exchange{Question: question, Answer: answer, ToolCalls: m.toolCalls}
	m.exchanges = append(m.exchanges, x)

	evicted := 0
	for len(m.exchanges) > MaxExchanges {
		oldest := m.exchanges[0]
		m.exchanges = m.exchanges[1:]
		if m.summary != "" {
			m.summary += "\n\n"
		}
		m.summary += evictedText(oldest)
		evicted++
	}
	summary := m.summary
	m.question = ""
	m.toolCalls = nil
	m.mu.Unlock()

	if evicted > 0 {
		logger.Debug("exchanges evicted to summary", "count", evicted, "summary_bytes", len(summary))
	}

	if len(summary) > SummaryThreshold {
		compressed := m.compressor.CompressSummary(ctx, summary)
		logger.Debug("summary compressed", "from", len(summary), "to", len(compressed))

		m.mu.Lock()
		m.summary = compressed
		m.mu.Unlock()
	}

	m.cache.Age()
	return x
}

// Injected reports whether screen context injection already ran for this session
func (m *SessionMemory) Injected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.injected
}

// MarkInjected sets the one-time injection flag
func (m *SessionMemory) MarkInjected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injected = true
}

// Summary returns the running summary
func (m *SessionMemory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// Exchanges returns a copy of the retained exchanges, oldest first
func (m *SessionMemory) Exchanges() []model.Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// Snapshot returns the diagnostic view of the memory. Nothing is mutated.
func (m *SessionMemory) Snapshot() model.MemorySnapshot {
	m.mu.RLock()
	snap := model.MemorySnapshot{
		ExchangeCount: len(m.exchanges),
		SummaryBytes:  len(m.summary),
		InjectionDone: m.injected,
	}
	m.mu.RUnlock()

	snap.Cache = m.cache.Snapshot()
	return snap
}
