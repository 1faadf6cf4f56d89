package mcp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/service/mcp"
	"github.com/m-mizutani/t3rn/pkg/tool"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

type codexParams struct {
	Planet string `json:"planet" jsonschema:"Planet name"`
}

func newCodexServer(t *testing.T) *httptest.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "test-codex",
		Version: "1.0.0",
	}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "planet_codex",
		Description: "Describe a planet",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, params *codexParams) (*mcpsdk.CallToolResult, any, error) {
		if params.Planet == "Alderaan" {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "record destroyed"}},
			}, nil, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: params.Planet + " is a desert world."}},
		}, nil, nil
	})

	handler := mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return server
	}, nil)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPStreamableTransport(t *testing.T) {
	ctx := context.Background()
	ts := newCodexServer(t)

	client := mcp.NewClient()
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "codex",
		Transport: "http",
		URL:       ts.URL,
	}))
	defer client.Close()

	gt.Equal(t, client.Servers(), []string{"codex"})

	tools, err := client.Tools("codex")
	gt.NoError(t, err)
	gt.A(t, tools).Length(1)
	gt.Equal(t, tools[0].Name, "planet_codex")

	result, err := client.CallTool(ctx, "codex", "planet_codex", map[string]any{"planet": "Tatooine"})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.Equal(t, text.Text, "Tatooine is a desert world.")

	t.Run("duplicated server name", func(t *testing.T) {
		err := client.Connect(ctx, mcp.ServerConfig{Name: "codex", Transport: "http", URL: ts.URL})
		gt.Error(t, err)
	})
}

func TestStdioTransport(t *testing.T) {
	if os.Getenv("TEST_MCP_STDIO") == "" {
		t.Skip("TEST_MCP_STDIO is not set")
	}
	ctx := context.Background()

	client := mcp.NewClient()
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:      "lore",
		Transport: "stdio",
		Command:   []string{"go", "run", "./testdata/stdio/main.go"},
	}))
	defer client.Close()

	result, err := client.CallTool(ctx, "lore", "lore_lookup", map[string]any{"topic": "Mandalore"})
	gt.NoError(t, err)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.Equal(t, text.Text, "Archive entry on Mandalore.")
}

func TestInvalidConfig(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient()

	gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "a", Transport: "grpc"}))
	gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "b", Transport: "stdio"}))
	gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "c", Transport: "http"}))
	gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "d", Transport: "http", URL: "http://localhost", CacheDuration: -1}))
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	ts := newCodexServer(t)

	client := mcp.NewClient()
	gt.NoError(t, client.Connect(ctx, mcp.ServerConfig{
		Name:          "codex",
		Transport:     "http",
		URL:           ts.URL,
		CacheDuration: 2,
	}))
	defer client.Close()

	provider := mcp.NewProvider(client)
	enabled, err := provider.Init(ctx, &tool.Client{})
	gt.NoError(t, err)
	gt.True(t, enabled)

	spec := provider.Spec()
	gt.A(t, spec.FunctionDeclarations).Length(1)
	gt.Equal(t, spec.FunctionDeclarations[0].Name, "planet_codex")
	gt.Equal(t, spec.FunctionDeclarations[0].Parameters.Type, genai.TypeObject)

	res, err := provider.Execute(ctx, genai.FunctionCall{
		Name: "planet_codex",
		Args: map[string]any{"planet": "Tatooine"},
	})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusSuccess)
	gt.Equal(t, res.CacheDuration, 2)
	gt.Equal(t, res.Payload["content"], any("Tatooine is a desert world."))

	t.Run("tool error is an error result", func(t *testing.T) {
		res, err := provider.Execute(ctx, genai.FunctionCall{
			Name: "planet_codex",
			Args: map[string]any{"planet": "Alderaan"},
		})
		gt.NoError(t, err)
		gt.Equal(t, res.Status, model.ToolStatusError)
		gt.Equal(t, res.Message, "record destroyed")
		gt.Equal(t, res.CacheDuration, 0)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := provider.Execute(ctx, genai.FunctionCall{Name: "nothing"})
		gt.Error(t, err)
	})

	t.Run("works through the registry", func(t *testing.T) {
		reg, err := tool.Init(ctx, &tool.Client{}, provider)
		gt.NoError(t, err)
		gt.True(t, reg.Has("planet_codex"))
	})
}

func TestProviderWithoutClient(t *testing.T) {
	enabled, err := mcp.NewProvider(nil).Init(context.Background(), &tool.Client{})
	gt.NoError(t, err)
	gt.False(t, enabled)
}

func TestLoadAndConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		p, err := mcp.LoadAndConnect(ctx, "")
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})

	t.Run("connects configured servers and skips broken ones", func(t *testing.T) {
		ts := newCodexServer(t)
		path := filepath.Join(t.TempDir(), "mcp.yaml")
		gt.NoError(t, os.WriteFile(path, []byte(`servers:
  - name: codex
    transport: http
    url: `+ts.URL+`
    cache_duration: 3
  - name: broken
    transport: carrier-pigeon
`), 0600))

		p, err := mcp.LoadAndConnect(ctx, path)
		gt.NoError(t, err)
		gt.True(t, p != nil)
		t.Cleanup(func() { _ = p.Close() })

		enabled, err := p.Init(ctx, &tool.Client{})
		gt.NoError(t, err)
		gt.True(t, enabled)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := mcp.LoadAndConnect(ctx, filepath.Join(t.TempDir(), "none.yaml"))
		gt.Error(t, err)
	})
}

func TestConvertSchema(t *testing.T) {
	schema, err := mcp.ConvertJSONSchemaToGenaiForTest(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"level": {Type: "integer", Description: "Champion level"},
			"name":  {Types: []string{"null", "string"}},
			"tags":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"mode":  {Type: "string", Enum: []any{"pve", "pvp"}},
		},
		Required: []string{"level"},
	})
	gt.NoError(t, err)
	gt.Equal(t, schema.Type, genai.TypeObject)
	gt.Equal(t, schema.Properties["level"].Type, genai.TypeInteger)
	gt.Equal(t, schema.Properties["name"].Type, genai.TypeString)
	gt.Equal(t, schema.Properties["tags"].Items.Type, genai.TypeString)
	gt.Equal(t, schema.Properties["mode"].Enum, []string{"pve", "pvp"})
	gt.Equal(t, schema.Required, []string{"level"})

	_, err = mcp.ConvertJSONSchemaToGenaiForTest(&jsonschema.Schema{Type: "tuple"})
	gt.Error(t, err)
}
