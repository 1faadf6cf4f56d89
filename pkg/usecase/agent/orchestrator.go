package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"google.golang.org/genai"
)

// MaxIterations is the hard ceiling of model calls of the primary agent in one turn
const MaxIterations = 10

// Executor runs a tool call. *tool.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error)
}

// Injector produces one-time screen context for a session
type Injector interface {
	Inject(ctx context.Context, mem *memory.SessionMemory, payload model.ScreenPayload) ([]*genai.Content, error)
}

// Outcome is the result of one turn
type Outcome struct {
	Answer     string
	Agent      Kind
	Iterations int
	Exchange   model.Exchange
}

// Orchestrator runs a turn through the primary, fallback and emergency agents
type Orchestrator struct {
	primary   Agent
	fallback  Agent
	emergency Agent

	tools    Executor
	injector Injector

	maxIterations int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
}

type Option func(*Orchestrator)

func WithExecutor(tools Executor) Option {
	return func(x *Orchestrator) {
		x.tools = tools
	}
}

func WithInjector(injector Injector) Option {
	return func(x *Orchestrator) {
		x.injector = injector
	}
}

func WithEmergency(emergency Agent) Option {
	return func(x *Orchestrator) {
		x.emergency = emergency
	}
}

// WithModelTimeout bounds each agent invocation. 0 means no bound.
func WithModelTimeout(d time.Duration) Option {
	return func(x *Orchestrator) {
		x.modelTimeout = d
	}
}

// WithToolTimeout bounds each tool execution. 0 means no bound.
func WithToolTimeout(d time.Duration) Option {
	return func(x *Orchestrator) {
		x.toolTimeout = d
	}
}

// New creates an Orchestrator. primary and fallback are required.
func New(primary, fallback Agent, opts ...Option) *Orchestrator {
	x := &Orchestrator{
		primary:       primary,
		fallback:      fallback,
		emergency:     NewEmergency(),
		maxIterations: MaxIterations,
		modelTimeout:  60 * time.Second,
		toolTimeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run processes one question. It always produces an answer and always finalizes the turn into
// mem. The caller serializes turns of one session.
func (x *Orchestrator) Run(ctx context.Context, mem *memory.SessionMemory, question string, screen model.ScreenPayload) *Outcome {
	logger := logging.From(ctx)

	transcript := mem.PrepareTurnInput(question)
	seen := make(map[string]map[string]any)
	if x.injector != nil && screen != nil {
		injected, err := x.inject(ctx, mem, screen)
		if err != nil {
			logger.Warn("screen injection failed", "error", err)
		} else if len(injected) > 0 {
			transcript = splice(transcript, injected)
			// injected calls are part of this turn and are not executed again
			seen = answeredCalls(injected)
		}
	}

	out := &Outcome{}
	var failure error

	stack := []Agent{x.primary}
	for len(stack) > 0 {
		agent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch agent.Kind() {
		case KindPrimary:
			answer, n, err := x.iterate(ctx, agent, mem, transcript, seen)
			out.Iterations = n
			if err != nil {
				logger.Warn("primary agent failed, falling back", "error", err, "iterations", n)
				failure = err
				stack = append(stack, x.fallback)
				continue
			}
			out.Answer, out.Agent = answer, KindPrimary

		case KindFallback:
			reply, err := x.invoke(ctx, agent, fallbackTranscript(question, failure), false)
			if err == nil && reply.Text == "" {
				err = goerr.New("empty answer")
			}
			if err != nil {
				logger.Error("fallback agent failed", "error", goerr.Wrap(ErrFallbackFailure, "fallback failed", goerr.V("cause", err.Error())))
				stack = append(stack, x.emergency)
				continue
			}
			out.Answer, out.Agent = reply.Text, KindFallback

		case KindEmergency:
			out.Answer, out.Agent = EmergencyAnswer, KindEmergency
			if reply, err := x.invoke(ctx, agent, nil, false); err == nil && reply.Text != "" {
				out.Answer = reply.Text
			}
		}
	}

	out.Exchange = mem.Finalize(ctx, question, out.Answer)
	logger.Info("turn completed", "agent", out.Agent, "iterations", out.Iterations, "tool_calls", len(out.Exchange.ToolCalls))
	return out
}

// iterate runs the tool loop of the primary agent. The last permitted iteration runs without
// tools and its text is the answer. seen holds the responses already present in the turn, by
// call key.
func (x *Orchestrator) iterate(ctx context.Context, agent Agent, mem *memory.SessionMemory, transcript []*genai.Content, seen map[string]map[string]any) (string, int, error) {
	for i := 1; i <= x.maxIterations; i++ {
		final := i == x.maxIterations

		reply, err := x.invoke(ctx, agent, transcript, !final)
		if err != nil {
			return "", i, goerr.Wrap(ErrInferenceCall, "agent call failed", goerr.V("cause", err.Error()), goerr.V("iteration", i))
		}

		if final {
			if reply.Text == "" {
				return "", i, goerr.Wrap(ErrIterationExhausted, "empty answer on final iteration", goerr.V("iteration", i))
			}
			return reply.Text, i, nil
		}

		if len(reply.Calls) == 0 {
			if reply.Text == "" {
				return "", i, goerr.Wrap(ErrInferenceCall, "empty response", goerr.V("iteration", i))
			}
			return reply.Text, i, nil
		}

		content := reply.Content
		if content == nil {
			content = &genai.Content{Role: genai.RoleModel}
			for _, call := range reply.Calls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: call})
			}
		}
		transcript = append(transcript, content)

		responses := make([]*genai.Part, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			responses = append(responses, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: x.dispatch(ctx, mem, seen, call),
				},
			})
		}
		transcript = append(transcript, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	return "", x.maxIterations, goerr.Wrap(ErrIterationExhausted, "iteration limit reached")
}

// dispatch resolves one tool call: same call earlier in this turn, then the session cache,
// then the tool itself
func (x *Orchestrator) dispatch(ctx context.Context, mem *memory.SessionMemory, seen map[string]map[string]any, call *genai.FunctionCall) map[string]any {
	logger := logging.From(ctx)
	key := memory.Key(call.Name, call.Args)
	record := model.ToolCallRecord{Name: call.Name, Args: call.Args}

	if resp, ok := seen[key]; ok {
		record.Source = model.ToolCallDuplicate
		mem.RecordToolCall(record)
		logger.Debug("duplicate tool call suppressed", "tool", call.Name)
		return resp
	}

	if res, ok := mem.Cache().Lookup(call.Name, call.Args); ok {
		record.Source = model.ToolCallCached
		mem.RecordToolCall(record)
		logger.Debug("tool cache hit", "tool", call.Name)
		seen[key] = res.Response()
		return seen[key]
	}

	res, err := x.execute(ctx, *call)
	if err != nil {
		logger.Warn("tool execution failed",
			"error", goerr.Wrap(ErrToolExecution, "tool failed", goerr.V("tool", call.Name), goerr.V("cause", err.Error())))

		record.Source = model.ToolCallFailed
		mem.RecordToolCall(record)
		seen[key] = map[string]any{"error": fmt.Sprintf("tool %s failed: %v", call.Name, err)}
		return seen[key]
	}

	if res.CacheDuration > 0 {
		mem.Cache().Store(call.Name, call.Args, res, res.CacheDuration)
	}
	record.Source = model.ToolCallExecuted
	mem.RecordToolCall(record)
	seen[key] = res.Response()
	return seen[key]
}

func (x *Orchestrator) execute(ctx context.Context, call genai.FunctionCall) (*model.ToolResult, error) {
	if x.tools == nil {
		return nil, goerr.New("no tools available")
	}
	if x.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.toolTimeout)
		defer cancel()
	}

	res, err := x.tools.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, goerr.New("tool returned no result")
	}
	return res, nil
}

// inject runs the screen injection within one tool timeout
func (x *Orchestrator) inject(ctx context.Context, mem *memory.SessionMemory, screen model.ScreenPayload) ([]*genai.Content, error) {
	if x.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.toolTimeout)
		defer cancel()
	}
	return x.injector.Inject(ctx, mem, screen)
}

func (x *Orchestrator) invoke(ctx context.Context, agent Agent, transcript []*genai.Content, toolsEnabled bool) (reply *Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply, err = nil, goerr.New("agent panicked", goerr.V("kind", agent.Kind()), goerr.V("panic", fmt.Sprint(r)))
		}
	}()

	if x.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.modelTimeout)
		defer cancel()
	}

	reply, err = agent.Execute(ctx, transcript, toolsEnabled)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, goerr.New("agent returned no reply", goerr.V("kind", agent.Kind()))
	}
	return reply, nil
}

// splice inserts injected entries right before the final user message
func splice(transcript, injected []*genai.Content) []*genai.Content {
	if len(transcript) == 0 {
		return injected
	}
	last := len(transcript) - 1
	out := make([]*genai.Content, 0, len(transcript)+len(injected))
	out = append(out, transcript[:last]...)
	out = append(out, injected...)
	return append(out, transcript[last])
}

// answeredCalls pairs function calls with their responses by call ID and returns the responses
// by call key
func answeredCalls(contents []*genai.Content) map[string]map[string]any {
	calls := make(map[string]*genai.FunctionCall)
	answered := make(map[string]map[string]any)
	for _, c := range contents {
		for _, p := range c.Parts {
			switch {
			case p.FunctionCall != nil:
				calls[p.FunctionCall.ID] = p.FunctionCall
			case p.FunctionResponse != nil:
				fc, ok := calls[p.FunctionResponse.ID]
				if !ok {
					continue
				}
				answered[memory.Key(fc.Name, fc.Args)] = p.FunctionResponse.Response
			}
		}
	}
	return answered
}

func fallbackTranscript(question string, failure error) []*genai.Content {
	reason := "the primary system could not answer"
	switch {
	case errors.Is(failure, ErrIterationExhausted):
		reason = "the primary system did not reach an answer in time"
	case errors.Is(failure, ErrInferenceCall):
		reason = "the primary system was unreachable"
	}

	return []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf("Context: %s. Answer the next question directly.", reason), genai.RoleUser),
		genai.NewContentFromText(question, genai.RoleUser),
	}
}
