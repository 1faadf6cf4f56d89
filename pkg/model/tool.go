package model

import "time"

type ToolStatus string

const (
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// InternalInfo is diagnostic data attached to a tool result. It is never sent to the model.
type InternalInfo struct {
	FunctionName string         `json:"function_name"`
	Parameters   map[string]any `json:"parameters"`
}

// ToolResult is the structured payload every tool returns
type ToolResult struct {
	Status  ToolStatus     `json:"status"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`

	// CacheDuration is the number of exchanges the result stays valid. 0 means not cached.
	CacheDuration int    `json:"llm_cache_duration,omitempty"`
	Instruction   string `json:"llm_instruction,omitempty"`

	Internal InternalInfo `json:"internal_info"`
}

// NewToolResult creates a successful result
func NewToolResult(name string, params map[string]any, message string, payload map[string]any) *ToolResult {
	return &ToolResult{
		Status:   ToolStatusSuccess,
		Message:  message,
		Payload:  payload,
		Internal: InternalInfo{FunctionName: name, Parameters: params},
	}
}

// NewToolError creates an error result. Error results are never cached.
func NewToolError(name string, params map[string]any, message string) *ToolResult {
	return &ToolResult{
		Status:   ToolStatusError,
		Message:  message,
		Internal: InternalInfo{FunctionName: name, Parameters: params},
	}
}

// WithCache sets the cache duration and returns the result
func (x *ToolResult) WithCache(duration int) *ToolResult {
	x.CacheDuration = duration
	return x
}

// WithInstruction sets the guidance text for the model and returns the result
func (x *ToolResult) WithInstruction(instruction string) *ToolResult {
	x.Instruction = instruction
	return x
}

// Response converts the result into a function response body for the model.
// Internal info is left out.
func (x *ToolResult) Response() map[string]any {
	resp := map[string]any{
		"status":  string(x.Status),
		"message": x.Message,
	}
	for k, v := range x.Payload {
		resp[k] = v
	}
	if x.Instruction != "" {
		resp["llm_instruction"] = x.Instruction
	}
	return resp
}

// CacheEntrySnapshot is a read-only view of one tool cache entry
type CacheEntrySnapshot struct {
	Key              string         `json:"key"`
	ToolName         string         `json:"tool_name"`
	Parameters       map[string]any `json:"parameters"`
	CallID           string         `json:"call_id"`
	Remaining        int            `json:"remaining_duration"`
	OriginalDuration int            `json:"original_duration"`
	CachedAt         time.Time      `json:"cached_at"`
}

// MemorySnapshot is a point-in-time view of a session's memory
type MemorySnapshot struct {
	ExchangeCount int                  `json:"exchange_count"`
	SummaryBytes  int                  `json:"summary_bytes"`
	InjectionDone bool                 `json:"injection_done"`
	Cache         []CacheEntrySnapshot `json:"cache"`
}
