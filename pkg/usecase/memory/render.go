package memory

import (
	"fmt"

	"github.com/m-mizutani/t3rn/pkg/model"
	"google.golang.org/genai"
)

const summaryPrefix = "Previous conversation summary: "

// ToolCallContents renders a tool call and its result as the model/user message pair the
// model produces during a normal tool call
func ToolCallContents(callID, name string, args map[string]any, result *model.ToolResult) []*genai.Content {
	return []*genai.Content{
		{
			Role: genai.RoleModel,
			Parts: []*genai.Part{
				{FunctionCall: &genai.FunctionCall{ID: callID, Name: name, Args: args}},
			},
		},
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{FunctionResponse: &genai.FunctionResponse{ID: callID, Name: name, Response: result.Response()}},
			},
		},
	}
}

func renderSummary(summary string) *genai.Content {
	return genai.NewContentFromText(summaryPrefix+summary, genai.RoleUser)
}

func renderExchange(x model.Exchange) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromText(x.Question, genai.RoleUser),
		genai.NewContentFromText(x.Answer, genai.RoleModel),
	}
}

// evictedText is how an exchange reads once it is folded into the running summary
func evictedText(x model.Exchange) string {
	return fmt.Sprintf("Question: %s. Answer: %s", x.Question, x.Answer)
}
