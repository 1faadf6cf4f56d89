package agent

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/primary.md
var primaryPromptRaw string

var primaryPromptTmpl = template.Must(template.New("primary").Parse(primaryPromptRaw))

// ToolSet is the declaration side of the tool registry
type ToolSet interface {
	Specs() []*genai.Tool
	Prompts(ctx context.Context) string
}

// Primary is the tool-using agent backed by Gemini
type Primary struct {
	gemini adapter.Gemini
	tools  ToolSet
	system string
}

type PrimaryOption func(*primaryConfig)

type primaryConfig struct {
	tools   ToolSet
	catalog *model.Catalog
}

// WithTools sets the tools offered to the model
func WithTools(tools ToolSet) PrimaryOption {
	return func(c *primaryConfig) {
		c.tools = tools
	}
}

// WithCatalog adds the champion and boss name lists to the system prompt
func WithCatalog(catalog *model.Catalog) PrimaryOption {
	return func(c *primaryConfig) {
		c.catalog = catalog
	}
}

// NewPrimary builds the system prompt once and returns the agent
func NewPrimary(ctx context.Context, gemini adapter.Gemini, opts ...PrimaryOption) (*Primary, error) {
	var cfg primaryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	vars := map[string]any{"Greeting": GreetingInstruction}
	if cfg.catalog != nil {
		vars["Champions"] = cfg.catalog.ChampionNames()
		vars["Bosses"] = cfg.catalog.BossNames()
	}
	if cfg.tools != nil {
		vars["ToolPrompts"] = cfg.tools.Prompts(ctx)
	}

	var buf bytes.Buffer
	if err := primaryPromptTmpl.Execute(&buf, vars); err != nil {
		return nil, goerr.Wrap(err, "failed to execute primary prompt template")
	}

	return &Primary{
		gemini: gemini,
		tools:  cfg.tools,
		system: buf.String(),
	}, nil
}

func (x *Primary) Kind() Kind { return KindPrimary }

// SystemPrompt returns the rendered system instruction
func (x *Primary) SystemPrompt() string { return x.system }

// Execute calls the model once. Without tools, function calling is disabled and the final
// iteration prompt is appended to the transcript.
func (x *Primary) Execute(ctx context.Context, transcript []*genai.Content, toolsEnabled bool) (*Reply, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(x.system, ""),
		ThinkingConfig:    thinkingConfig(),
	}

	contents := transcript
	switch {
	case toolsEnabled && x.tools != nil:
		config.Tools = x.tools.Specs()
	case !toolsEnabled:
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeNone,
			},
		}
		contents = append(contents[:len(contents):len(contents)],
			genai.NewContentFromText(FinalIterationPrompt, genai.RoleUser))
	}

	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	reply, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}
	if !toolsEnabled {
		reply.Calls = nil
	}
	return reply, nil
}
