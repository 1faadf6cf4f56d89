package agent

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/fallback.md
var fallbackPromptRaw string

var fallbackPromptTmpl = template.Must(template.New("fallback").Parse(fallbackPromptRaw))

// Knowledge supplies reference text for a question
type Knowledge interface {
	GeneralKnowledge(ctx context.Context, query string) (string, error)
}

// Fallback answers without tools. It uses Claude when configured, Gemini otherwise.
type Fallback struct {
	gemini    adapter.Gemini
	claude    adapter.Claude
	knowledge Knowledge
}

type FallbackOption func(*Fallback)

// WithClaude routes fallback answers to Claude
func WithClaude(claude adapter.Claude) FallbackOption {
	return func(x *Fallback) {
		x.claude = claude
	}
}

// WithKnowledge preloads general knowledge for the question into the prompt
func WithKnowledge(k Knowledge) FallbackOption {
	return func(x *Fallback) {
		x.knowledge = k
	}
}

// NewFallback creates the fallback agent. gemini may be nil when Claude is set.
func NewFallback(gemini adapter.Gemini, opts ...FallbackOption) *Fallback {
	x := &Fallback{gemini: gemini}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Fallback) Kind() Kind { return KindFallback }

// Execute never requests tools, whatever toolsEnabled says
func (x *Fallback) Execute(ctx context.Context, transcript []*genai.Content, _ bool) (*Reply, error) {
	question := lastUserText(transcript)
	if question == "" {
		return nil, goerr.New("no question in fallback transcript")
	}

	system, err := x.systemPrompt(ctx, question)
	if err != nil {
		return nil, err
	}

	var text string
	switch {
	case x.claude != nil:
		text, err = x.claude.Complete(ctx, system, toClaudeMessages(transcript))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to complete with claude")
		}

	case x.gemini != nil:
		config := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, ""),
			ThinkingConfig:    thinkingConfig(),
		}
		resp, err := x.gemini.GenerateContent(ctx, textOnly(transcript), config)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate content")
		}
		reply, err := parseResponse(resp)
		if err != nil {
			return nil, err
		}
		text = reply.Text

	default:
		return nil, goerr.New("fallback agent has no model")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.New("fallback agent returned empty answer")
	}
	return &Reply{Text: text}, nil
}

func (x *Fallback) systemPrompt(ctx context.Context, question string) (string, error) {
	var knowledge string
	if x.knowledge != nil {
		k, err := x.knowledge.GeneralKnowledge(ctx, question)
		if err != nil {
			logging.From(ctx).Warn("failed to preload knowledge for fallback", "error", err)
		}
		knowledge = k
	}

	var buf bytes.Buffer
	if err := fallbackPromptTmpl.Execute(&buf, map[string]any{"Knowledge": knowledge}); err != nil {
		return "", goerr.Wrap(err, "failed to execute fallback prompt template")
	}
	return buf.String(), nil
}

// textOnly drops function call parts so that a model without tools accepts the transcript
func textOnly(transcript []*genai.Content) []*genai.Content {
	var out []*genai.Content
	for _, c := range transcript {
		if c == nil {
			continue
		}
		var parts []*genai.Part
		for _, p := range c.Parts {
			if p.Text != "" {
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}
		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: c.Role, Parts: parts})
		}
	}
	return out
}

// toClaudeMessages converts the text of a transcript into alternating Claude messages starting
// with the user. Consecutive entries of one role are merged.
func toClaudeMessages(transcript []*genai.Content) []anthropic.MessageParam {
	type turn struct {
		user bool
		text []string
	}
	var turns []*turn
	for _, c := range textOnly(transcript) {
		user := c.Role != genai.RoleModel
		if len(turns) == 0 && !user {
			continue
		}
		var b strings.Builder
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
		if len(turns) > 0 && turns[len(turns)-1].user == user {
			turns[len(turns)-1].text = append(turns[len(turns)-1].text, b.String())
			continue
		}
		turns = append(turns, &turn{user: user, text: []string{b.String()}})
	}

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.user {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		}
	}
	return msgs
}
