package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/service/mcp"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/m-mizutani/t3rn/pkg/tool/knowledge"
	"github.com/m-mizutani/t3rn/pkg/tool/rag"
	"github.com/m-mizutani/t3rn/pkg/tool/roster"
	"github.com/m-mizutani/t3rn/pkg/tool/stats"
	"github.com/m-mizutani/t3rn/pkg/usecase/agent"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/usecase/screen"
	"github.com/m-mizutani/t3rn/pkg/usecase/session"
	"github.com/urfave/cli/v3"
)

// gameTools are the built-in tools. They exist before flag parsing so that their flags can be
// attached to commands.
type gameTools struct {
	knowledge *knowledge.Tool
	roster    *roster.Tool
	rag       *rag.Tool
	stats     *stats.Tool
}

func newGameTools() *gameTools {
	return &gameTools{
		knowledge: knowledge.New(),
		roster:    roster.New(),
		rag:       rag.New(),
		stats:     stats.New(),
	}
}

func (x *gameTools) list() []tool.Tool {
	return []tool.Tool{x.roster, x.knowledge, x.rag, x.stats}
}

func (x *gameTools) flags() []cli.Flag {
	return tool.Flags(x.list()...)
}

// runtime is everything a command needs to run turns
type runtime struct {
	manager  *session.Manager
	registry *tool.Registry
	closers  []func()
}

func (x *runtime) close() {
	for i := len(x.closers) - 1; i >= 0; i-- {
		x.closers[i]()
	}
}

// newRuntime wires adapters, tools, agents and the session manager
func (cfg *config) newRuntime(ctx context.Context, tools *gameTools) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	repo, closeRepo, err := cfg.newRepository(ctx, gemini)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeRepo)

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := cfg.newCatalog(ctx)
	if err != nil {
		return nil, err
	}

	candidates := tools.list()
	provider, err := mcp.LoadAndConnect(ctx, cfg.mcpConfig)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		candidates = append(candidates, provider)
		rt.closers = append(rt.closers, func() { _ = provider.Close() })
	}

	registry, err := tool.Init(ctx, &tool.Client{
		Repo:    repo,
		Gemini:  gemini,
		Storage: storage,
		Catalog: catalog,
	}, candidates...)
	if err != nil {
		return nil, err
	}
	rt.registry = registry

	primary, err := agent.NewPrimary(ctx, gemini, agent.WithTools(registry), agent.WithCatalog(catalog))
	if err != nil {
		return nil, err
	}

	var fallbackOpts []agent.FallbackOption
	if claude := cfg.newClaude(); claude != nil {
		fallbackOpts = append(fallbackOpts, agent.WithClaude(claude))
	}
	if registry.Has(rag.FuncGeneralKnowledge) {
		fallbackOpts = append(fallbackOpts, agent.WithKnowledge(tools.rag))
	}
	fallback := agent.NewFallback(gemini, fallbackOpts...)

	injector, err := cfg.newInjector(ctx, registry, tools)
	if err != nil {
		return nil, err
	}

	orchestrator := agent.New(primary, fallback,
		agent.WithExecutor(registry),
		agent.WithInjector(injector),
		agent.WithEmergency(agent.NewEmergency()),
		agent.WithModelTimeout(cfg.modelTimeout),
		agent.WithToolTimeout(cfg.toolTimeout),
	)

	managerOpts := []session.Option{
		session.WithCompressor(memory.NewSummarizer(gemini, memory.WithCompressionTimeout(cfg.modelTimeout))),
	}
	if storage != nil {
		managerOpts = append(managerOpts, session.WithStorage(storage))
	}
	rt.manager = session.NewManager(orchestrator, managerOpts...)

	ok = true
	return rt, nil
}

func (cfg *config) newInjector(ctx context.Context, registry *tool.Registry, tools *gameTools) (*screen.Injector, error) {
	rules := screen.DefaultRules()
	if cfg.rulesPath != "" {
		loaded, err := screen.LoadRules(cfg.rulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	policy, err := screen.LoadPolicy(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load screen policy")
	}

	opts := []screen.Option{
		screen.WithRules(rules),
		screen.WithPolicy(policy),
		screen.WithToolTimeout(cfg.toolTimeout),
	}
	if registry.Has(knowledge.FuncChampionDetails) {
		opts = append(opts, screen.WithNameResolver(tools.knowledge))
	}
	return screen.New(registry, opts...), nil
}
