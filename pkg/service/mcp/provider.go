package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Provider exposes the tools of connected MCP servers as a tool.Tool
type Provider struct {
	client *Client
	tools  []*remoteTool
}

type remoteTool struct {
	serverName string
	name       string
	decl       *genai.FunctionDeclaration
}

var _ tool.Tool = (*Provider)(nil)

// NewProvider creates a new MCP tool provider
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Flags returns nothing. MCP servers come from the config file.
func (p *Provider) Flags() []cli.Flag {
	return nil
}

// Init registers the tools of every connected server. Tool names must be unique across servers.
func (p *Provider) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if p == nil || p.client == nil {
		return false, nil
	}

	p.tools = nil
	seen := make(map[string]string)
	for _, serverName := range p.client.Servers() {
		tools, err := p.client.Tools(serverName)
		if err != nil {
			return false, goerr.Wrap(err, "failed to get tools from server", goerr.V("server", serverName))
		}

		for _, t := range tools {
			if other, dup := seen[t.Name]; dup {
				return false, goerr.New("duplicated MCP tool name",
					goerr.V("tool", t.Name),
					goerr.V("server", serverName),
					goerr.V("other", other))
			}
			seen[t.Name] = serverName

			decl, err := toFunctionDeclaration(t)
			if err != nil {
				return false, goerr.Wrap(err, "failed to convert tool",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}
			p.tools = append(p.tools, &remoteTool{serverName: serverName, name: t.Name, decl: decl})
		}
	}

	return len(p.tools) > 0, nil
}

func toFunctionDeclaration(t *mcp.Tool) (*genai.FunctionDeclaration, error) {
	decl := &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
	}
	if t.InputSchema == nil {
		return decl, nil
	}

	// InputSchema is untyped on the client side
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	schema, err := convertJSONSchemaToGenai(&js)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert input schema")
	}
	decl.Parameters = schema
	return decl, nil
}

// Close disconnects from every MCP server
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) Spec() *genai.Tool {
	if len(p.tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, len(p.tools))
	for i, t := range p.tools {
		decls[i] = t.decl
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func (p *Provider) Prompt(ctx context.Context) string {
	if len(p.tools) == 0 {
		return ""
	}
	return "Some tools are served by external game data services. Prefer them when the built-in lookups have no answer."
}

// Execute calls the MCP tool. A tool-level error reported by the server becomes an error
// result; only transport failures are returned as errors.
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var target *remoteTool
	for _, t := range p.tools {
		if t.name == fc.Name {
			target = t
			break
		}
	}
	if target == nil {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown MCP tool", goerr.V("name", fc.Name))
	}

	result, err := p.client.CallTool(ctx, target.serverName, target.name, fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call MCP tool")
	}

	text := contentText(result.Content)
	if result.IsError {
		return model.NewToolError(fc.Name, fc.Args, text), nil
	}

	payload := map[string]any{"content": text}
	if result.StructuredContent != nil {
		payload["structured_content"] = result.StructuredContent
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Result from %s", target.serverName),
		payload,
	).WithCache(p.client.cacheDuration(target.serverName)), nil
}

func contentText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch v := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if raw, err := json.Marshal(v); err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}
