package memory

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"google.golang.org/genai"
)

const (
	// AnswerThreshold is the answer size in bytes above which an answer is compressed before storage
	AnswerThreshold = 750
	AnswerTarget    = 500

	// SummaryThreshold is the running summary size in bytes above which it is rewritten
	SummaryThreshold = 4096
	SummaryTarget    = 3072

	// TruncatedMarker ends any text cut by the deterministic fallback
	TruncatedMarker = " [truncated]"
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

var summarizePromptTmpl = template.Must(template.New("summarize").Parse(summarizePromptRaw))

// Compressor shrinks oversized answers and summaries. Implementations never fail: they fall
// back to truncation.
type Compressor interface {
	CompressAnswer(ctx context.Context, answer string) string
	CompressSummary(ctx context.Context, summary string) string
}

// Summarizer compresses text through Gemini with truncation as the fallback
type Summarizer struct {
	gemini  adapter.Gemini
	timeout time.Duration
}

type SummarizerOption func(*Summarizer)

// WithCompressionTimeout bounds each compression call
func WithCompressionTimeout(d time.Duration) SummarizerOption {
	return func(s *Summarizer) {
		s.timeout = d
	}
}

// NewSummarizer creates a Summarizer. gemini may be nil, then only truncation is used.
func NewSummarizer(gemini adapter.Gemini, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		gemini:  gemini,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Summarizer) CompressAnswer(ctx context.Context, answer string) string {
	return s.compress(ctx, answer, AnswerTarget)
}

func (s *Summarizer) CompressSummary(ctx context.Context, summary string) string {
	return s.compress(ctx, summary, SummaryTarget)
}

func (s *Summarizer) compress(ctx context.Context, text string, target int) string {
	if len(text) <= target {
		return text
	}

	logger := logging.From(ctx)
	if s.gemini == nil {
		return Truncate(text, target)
	}

	out, err := s.generate(ctx, text, target)
	if err != nil {
		logger.Warn("compression failed, truncating", "error", err, "size", len(text), "target", target)
		return Truncate(text, target)
	}

	if len(out) > target {
		logger.Debug("compressed text still over target, truncating", "size", len(out), "target", target)
		return Truncate(out, target)
	}
	return out
}

func (s *Summarizer) generate(ctx context.Context, text string, target int) (string, error) {
	var buf bytes.Buffer
	if err := summarizePromptTmpl.Execute(&buf, map[string]any{
		"Target": target,
		"Text":   text,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute summarize prompt template")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You compress conversation notes for a game assistant.", ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	resp, err := s.gemini.GenerateContent(ctx, []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no summary generated")
	}

	var summary strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			summary.WriteString(part.Text)
		}
	}

	out := strings.TrimSpace(summary.String())
	if out == "" {
		return "", goerr.New("empty summary generated")
	}
	return out, nil
}

// Truncate cuts text on a UTF-8 boundary so that text plus TruncatedMarker fits in limit bytes
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := limit - len(TruncatedMarker)
	if cut <= 0 {
		return TruncatedMarker[:min(limit, len(TruncatedMarker))]
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncatedMarker
}
