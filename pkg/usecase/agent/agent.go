package agent

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Kind identifies an agent variant. The set is closed.
type Kind string

const (
	KindPrimary   Kind = "primary"
	KindFallback  Kind = "fallback"
	KindEmergency Kind = "emergency"
)

const (
	// FinalIterationPrompt is appended to the transcript when tools are withdrawn
	FinalIterationPrompt = "CRITICAL: This is your FINAL attempt. You MUST provide a complete final answer now. NO TOOLS are available. Use only the information you already have from previous tool calls to give the best possible answer to the user's question."

	// GreetingInstruction tells the primary agent how to use the injected greeting
	GreetingInstruction = "If user greets you you can use sample greeting you have in your memory - remember that you are Mandalorian droid."

	// EmergencyAnswer is the answer of last resort
	EmergencyAnswer = "ERROR 1138: Primary directive compromised. Rebooting memory core"
)

var (
	ErrInferenceCall      = goerr.New("inference call failed")
	ErrIterationExhausted = goerr.New("no final answer within iteration limit")
	ErrFallbackFailure    = goerr.New("fallback agent failed")
	ErrToolExecution      = goerr.New("tool execution failed")
)

// Reply is what an agent produced in one invocation: text, requested tool calls, or both
type Reply struct {
	Text  string
	Calls []*genai.FunctionCall

	// Content is the raw model message, appended to the transcript when tools are called
	Content *genai.Content
}

// Agent answers from a transcript. When toolsEnabled is false it must not request tools.
type Agent interface {
	Kind() Kind
	Execute(ctx context.Context, transcript []*genai.Content, toolsEnabled bool) (*Reply, error)
}

// parseResponse collects the text and function calls of the first candidate
func parseResponse(resp *genai.GenerateContentResponse) (*Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.New("no candidate in response")
	}

	content := resp.Candidates[0].Content
	reply := &Reply{Content: content}

	var text strings.Builder
	for _, part := range content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			reply.Calls = append(reply.Calls, part.FunctionCall)
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

func thinkingConfig() *genai.ThinkingConfig {
	budget := int32(0)
	return &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  &budget,
	}
}

// lastUserText returns the text of the last user entry holding text
func lastUserText(transcript []*genai.Content) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		c := transcript[i]
		if c == nil || c.Role != genai.RoleUser {
			continue
		}
		var b strings.Builder
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}
