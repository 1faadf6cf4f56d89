package tool

import (
	"context"

	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Tool represents an external tool that can be called by the LLM
type Tool interface {
	// Spec returns the tool specification for Gemini function calling
	Spec() *genai.Tool

	// Execute runs the tool with the given function call. A returned error means the call
	// itself failed. Expected failures such as an unknown ID come back as a result with error status.
	Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error)

	// Prompt returns additional information to be added to the system prompt
	// Returns empty string if no additional prompt is needed
	Prompt(ctx context.Context) string

	// Flags returns CLI flags for this tool
	// Returns nil if no flags are needed
	Flags() []cli.Flag

	// Init prepares the tool after flags are parsed. It returns false when the tool is not
	// configured and should stay disabled.
	Init(ctx context.Context, client *Client) (bool, error)
}
