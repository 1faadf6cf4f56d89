package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type loreParams struct {
	Topic string `json:"topic" jsonschema:"Lore topic to look up"`
}

func lore(ctx context.Context, req *mcp.CallToolRequest, params *loreParams) (*mcp.CallToolResult, any, error) {
	if params.Topic == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "topic is required"}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Archive entry on " + params.Topic + "."},
		},
	}, nil, nil
}

func main() {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-lore-server",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lore_lookup",
		Description: "Look up a lore archive entry",
	}, lore)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
