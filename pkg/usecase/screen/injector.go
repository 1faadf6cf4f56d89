package screen

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/tool/knowledge"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"google.golang.org/genai"
)

const (
	lookupChampionName = "champion_name"
	lookupBattleName   = "battle_name"

	injectionPrefix = "I can see you're currently on a specific screen. Let me provide context: "
)

// Executor runs a tool call. *tool.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error)
}

// NameResolver turns IDs into display names. Unknown IDs resolve to themselves.
type NameResolver interface {
	ChampionName(ctx context.Context, id string) string
	BattleName(ctx context.Context, id string) string
}

type rawNames struct{}

func (rawNames) ChampionName(_ context.Context, id string) string { return id }
func (rawNames) BattleName(_ context.Context, id string) string   { return id }

// Injector primes a session with screen context once, before the first question that carries
// a screen payload
type Injector struct {
	executor Executor
	rules    *Rules
	policy   *Policy
	names    NameResolver

	toolTimeout time.Duration
}

type Option func(*Injector)

// WithRules replaces the built-in rule set
func WithRules(rules *Rules) Option {
	return func(x *Injector) {
		x.rules = rules
	}
}

// WithPolicy sets the rego policy consulted for every injection
func WithPolicy(policy *Policy) Option {
	return func(x *Injector) {
		x.policy = policy
	}
}

// WithNameResolver sets how champion and battle IDs become names in the statement
func WithNameResolver(names NameResolver) Option {
	return func(x *Injector) {
		x.names = names
	}
}

// WithToolTimeout bounds each proactive tool call and name lookup. 0 means no bound.
func WithToolTimeout(d time.Duration) Option {
	return func(x *Injector) {
		x.toolTimeout = d
	}
}

// New creates an Injector
func New(executor Executor, opts ...Option) *Injector {
	x := &Injector{
		executor: executor,
		rules:    DefaultRules(),
		names:    rawNames{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

type proactiveCall struct {
	name   string
	args   map[string]any
	result *model.ToolResult
}

// Inject returns the injected transcript entries: one model message with the context statement
// followed by a model/user function call pair per proactive tool. It returns nothing when the
// session was already injected or the payload names no screen. Failed tools are logged and left
// out. The session is marked injected even when the policy skips the screen.
func (x *Injector) Inject(ctx context.Context, mem *memory.SessionMemory, payload model.ScreenPayload) ([]*genai.Content, error) {
	if mem.Injected() {
		return nil, nil
	}

	sc := Analyze(payload)
	if sc.Screen == "" {
		return nil, nil
	}

	ctx = logging.WithAttrs(ctx, "screen", sc.Screen)
	logger := logging.From(ctx)

	decision, err := x.policy.Evaluate(ctx, sc)
	if err != nil {
		return nil, err
	}
	if decision.Skip {
		logger.Info("screen injection skipped by policy")
		mem.MarkInjected()
		return nil, nil
	}

	rule := x.rules.Resolve(sc.Screen)
	if rule == nil {
		return nil, goerr.New("no screen rule and no default rule", goerr.V("screen", sc.Screen))
	}

	vars := map[string]string{"screen_name": sc.Screen}
	for k, v := range sc.Fields {
		vars[k] = v
	}

	var calls []*proactiveCall
	run := func(name string, args map[string]any) {
		callCtx, cancel := x.bound(ctx)
		defer cancel()

		res, err := x.executor.Execute(callCtx, genai.FunctionCall{Name: name, Args: args})
		if err == nil && res == nil {
			err = goerr.New("tool returned no result")
		}
		if err != nil {
			logger.Warn("proactive tool failed", "tool", name, "error", err)
			return
		}
		if res.CacheDuration > 0 {
			mem.Cache().Store(name, args, res, res.CacheDuration)
		}
		calls = append(calls, &proactiveCall{name: name, args: args, result: res})
	}

	run(knowledge.FuncRandomGreeting, map[string]any{})

	if rule.ContextTool != nil {
		args := make(map[string]any, len(rule.ContextTool.Parameters))
		for k, v := range rule.ContextTool.Parameters {
			args[k] = render(v, vars)
		}
		run(rule.ContextTool.Tool, args)
	}

	for _, dt := range append(append([]DataTool{}, rule.DataTools...), decision.DataTools...) {
		if !sc.HasField(dt.JSONField) {
			continue
		}
		run(dt.Tool, map[string]any{dt.ParameterName: sc.Fields[dt.JSONField]})
	}

	statement := x.statement(ctx, rule, sc, vars)

	var contents []*genai.Content
	if statement != "" {
		contents = append(contents, genai.NewContentFromText(injectionPrefix+statement, genai.RoleModel))
	}
	for _, c := range calls {
		callID := "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		contents = append(contents, memory.ToolCallContents(callID, c.name, c.args, c.result)...)
	}

	mem.MarkInjected()
	logger.Info("screen context injected", "tools", len(calls), "statement", statement != "")
	return contents, nil
}

func (x *Injector) statement(ctx context.Context, rule *Rule, sc model.ScreenContext, vars map[string]string) string {
	for _, f := range rule.RequiredFields {
		if !sc.HasField(f) {
			return ""
		}
	}

	for placeholder, field := range rule.Lookups {
		id := sc.Fields[field]
		lookupCtx, cancel := x.bound(ctx)
		switch placeholder {
		case lookupChampionName:
			vars[placeholder] = x.names.ChampionName(lookupCtx, id)
		case lookupBattleName:
			vars[placeholder] = x.names.BattleName(lookupCtx, id)
		}
		cancel()
	}

	return render(rule.Template, vars)
}

func (x *Injector) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if x.toolTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, x.toolTimeout)
}
