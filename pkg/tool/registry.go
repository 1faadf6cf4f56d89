package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// ErrToolNotFound is returned when a function call names an unregistered tool
var ErrToolNotFound = goerr.New("tool not found")

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	specs    []*genai.Tool
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}

	for _, t := range tools {
		r.register(t)
	}

	return r
}

func (r *Registry) register(t Tool) {
	spec := t.Spec()
	if spec == nil || len(spec.FunctionDeclarations) == 0 {
		return
	}
	r.specs = append(r.specs, spec)
	for _, fd := range spec.FunctionDeclarations {
		r.tools[fd.Name] = t
	}
}

// Init initializes every tool and returns a registry holding only the enabled ones
func Init(ctx context.Context, client *Client, tools ...Tool) (*Registry, error) {
	var enabled []Tool
	for _, t := range tools {
		ok, err := t.Init(ctx, client)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize tool")
		}
		if !ok {
			continue
		}
		enabled = append(enabled, t)
	}

	r := New(enabled...)
	logging.From(ctx).Info("tools initialized", "functions", r.Names())
	return r, nil
}

// Specs returns all tool specifications for Gemini function calling
func (r *Registry) Specs() []*genai.Tool {
	return r.specs
}

// Names returns the registered function names
func (r *Registry) Names() []string {
	var names []string
	for _, spec := range r.specs {
		for _, fd := range spec.FunctionDeclarations {
			names = append(names, fd.Name)
		}
	}
	return names
}

// Has reports whether a function name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	return Flags(r.allTools...)
}

// Flags returns the flags of the given tools, before they are initialized
func Flags(tools ...Tool) []cli.Flag {
	var flags []cli.Flag
	for _, t := range tools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	tool, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(ErrToolNotFound, "tool not found", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}
