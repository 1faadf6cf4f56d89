package screen_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/m-mizutani/t3rn/pkg/tool/knowledge"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"github.com/m-mizutani/t3rn/pkg/usecase/screen"
	"google.golang.org/genai"
)

func championPayload(id string) model.ScreenPayload {
	return model.ScreenPayload{
		"PlayerLevel": float64(42),
		"screenData": map[string]any{
			"Screen": "ChampionEquipmentPanelPresenter",
			"ScreensData": map[string]any{
				"ChampionEquipmentPanelPresenter": map[string]any{
					"ChampionConfigId": id,
					"Slots":            []any{"a", "b"},
				},
			},
		},
	}
}

func setup(t *testing.T, opts ...screen.Option) (*screen.Injector, *knowledge.Tool) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutChampion(ctx, &model.Champion{ID: "champion.sw1.droideka", Name: "Droideka"}))
	gt.NoError(t, repo.PutBattle(ctx, &model.Battle{ID: "d1_m1_b1", Name: "Naboo Outskirts"}))
	gt.NoError(t, repo.PutUXRecord(ctx, &model.UXRecord{ID: "ux1", Screen: "ChampionEquipmentPanelPresenter", Title: "Champion details"}))
	gt.NoError(t, repo.PutGreeting(ctx, "g1", "Hello there, cadet."))

	k := knowledge.New()
	reg, err := tool.Init(ctx, &tool.Client{Repo: repo}, k)
	gt.NoError(t, err)

	opts = append([]screen.Option{screen.WithNameResolver(k)}, opts...)
	return screen.New(reg, opts...), k
}

func functionCalls(contents []*genai.Content) []*genai.FunctionCall {
	var calls []*genai.FunctionCall
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.FunctionCall != nil {
				calls = append(calls, p.FunctionCall)
			}
		}
	}
	return calls
}

func TestAnalyze(t *testing.T) {
	sc := screen.Analyze(model.ScreenPayload{
		"Slots": "root wins",
		"Level": float64(7),
		"Tags":  []any{"x"},
		"screenData": map[string]any{
			"Screen": "CampaignTeamSelectUIPresenter",
			"ScreensData": map[string]any{
				"CampaignTeamSelectUIPresenter": map[string]any{
					"BattleId": "d1_m1_b1",
					"Slots":    float64(5),
				},
			},
		},
	})

	gt.Equal(t, sc.Screen, "CampaignTeamSelectUIPresenter")
	gt.Equal(t, sc.Fields["BattleId"], "d1_m1_b1")
	gt.Equal(t, sc.Fields["CampaignTeamSelectUIPresenter.BattleId"], "d1_m1_b1")
	gt.Equal(t, sc.Fields["CampaignTeamSelectUIPresenter.Slots"], "5")
	gt.Equal(t, sc.Fields["Slots"], "root wins")
	gt.Equal(t, sc.Fields["Level"], "7")
	_, hasTags := sc.Fields["Tags"]
	gt.False(t, hasTags)

	t.Run("no screenData", func(t *testing.T) {
		sc := screen.Analyze(model.ScreenPayload{"Screen": "MainMenuScreen"})
		gt.Equal(t, sc.Screen, "")
	})
}

func TestInjectChampionScreen(t *testing.T) {
	ctx := context.Background()
	injector, _ := setup(t)
	mem := memory.New(nil)

	contents, err := injector.Inject(ctx, mem, championPayload("champion.sw1.droideka"))
	gt.NoError(t, err)
	gt.True(t, mem.Injected())

	// statement, then greeting, context and data tool pairs
	gt.A(t, contents).Length(7)
	gt.Equal(t, contents[0].Role, genai.RoleModel)
	statement := contents[0].Parts[0].Text
	gt.S(t, statement).Contains("I can see you're currently on a specific screen. Let me provide context: ")
	gt.S(t, statement).Contains("champion.sw1.droideka")
	gt.S(t, statement).Contains("'Droideka'")

	calls := functionCalls(contents)
	gt.A(t, calls).Length(3)
	gt.Equal(t, calls[0].Name, knowledge.FuncRandomGreeting)
	gt.Equal(t, calls[1].Name, knowledge.FuncUXDetails)
	gt.Equal(t, calls[1].Args["query"], any("ChampionEquipmentPanelPresenter"))
	gt.Equal(t, calls[2].Name, knowledge.FuncChampionDetails)
	gt.Equal(t, calls[2].Args["champion_id"], any("champion.sw1.droideka"))

	// greeting is not cached, UX (3) and champion (5) are
	snap := mem.Cache().Snapshot()
	gt.A(t, snap).Length(2)
	var found bool
	for _, e := range snap {
		if e.ToolName == knowledge.FuncChampionDetails {
			found = true
			gt.Equal(t, e.Remaining, 5)
			gt.Equal(t, e.OriginalDuration, 5)
		}
	}
	gt.True(t, found)

	_, hit := mem.Cache().Lookup(knowledge.FuncChampionDetails, map[string]any{"champion_id": "champion.sw1.droideka"})
	gt.True(t, hit)

	t.Run("second injection is a no-op", func(t *testing.T) {
		again, err := injector.Inject(ctx, mem, championPayload("champion.sw1.droideka"))
		gt.NoError(t, err)
		gt.A(t, again).Length(0)
	})
}

func TestInjectMissingRequiredField(t *testing.T) {
	injector, _ := setup(t)
	mem := memory.New(nil)

	payload := model.ScreenPayload{
		"screenData": map[string]any{"Screen": "ChampionEquipmentPanelPresenter"},
	}
	contents, err := injector.Inject(context.Background(), mem, payload)
	gt.NoError(t, err)

	// no statement, greeting and context tool pairs only
	gt.A(t, contents).Length(4)
	gt.A(t, functionCalls(contents)).Length(2)
	gt.True(t, mem.Injected())
}

func TestInjectDefaultRule(t *testing.T) {
	injector, _ := setup(t)
	mem := memory.New(nil)

	contents, err := injector.Inject(context.Background(), mem, model.ScreenPayload{
		"screenData": map[string]any{"Screen": "ArenaPresenter"},
	})
	gt.NoError(t, err)
	gt.S(t, contents[0].Parts[0].Text).Contains("You are currently on the 'ArenaPresenter' screen.")

	calls := functionCalls(contents)
	gt.Equal(t, calls[1].Args["query"], any("ArenaPresenter"))
}

type hangingExecutor struct{}

func (hangingExecutor) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type hangingNames struct{}

func (hangingNames) ChampionName(ctx context.Context, id string) string {
	<-ctx.Done()
	return id
}

func (hangingNames) BattleName(ctx context.Context, id string) string {
	<-ctx.Done()
	return id
}

func TestInjectToolTimeout(t *testing.T) {
	injector := screen.New(hangingExecutor{},
		screen.WithNameResolver(hangingNames{}),
		screen.WithToolTimeout(50*time.Millisecond),
	)
	mem := memory.New(nil)

	type result struct {
		contents []*genai.Content
		err      error
	}
	done := make(chan result, 1)
	go func() {
		contents, err := injector.Inject(context.Background(), mem, championPayload("champion.sw1.droideka"))
		done <- result{contents, err}
	}()

	var got result
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("injection did not return within the tool timeout")
	}

	// every tool timed out, the statement falls back to the raw ID
	gt.NoError(t, got.err)
	gt.A(t, got.contents).Length(1)
	gt.A(t, functionCalls(got.contents)).Length(0)
	gt.S(t, got.contents[0].Parts[0].Text).Contains("champion.sw1.droideka")
	gt.True(t, mem.Injected())
}

func TestInjectWithoutScreen(t *testing.T) {
	injector, _ := setup(t)
	mem := memory.New(nil)

	contents, err := injector.Inject(context.Background(), mem, nil)
	gt.NoError(t, err)
	gt.A(t, contents).Length(0)
	gt.False(t, mem.Injected())
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`screens:
  ArenaPresenter:
    context_tool:
      tool: db_get_ux_details
      parameters:
        query: arena
    data_tools:
      - tool: db_get_battle_details_byid
        json_field: ArenaBattleId
        parameter_name: battle_id
    template: "Arena fight against '{battle_name}'."
    required_fields: [ArenaBattleId]
    lookups:
      battle_name: ArenaBattleId
`), 0600))

	rules, err := screen.LoadRules(path)
	gt.NoError(t, err)
	gt.V(t, rules.Resolve("MainMenuScreen")).NotNil()
	gt.V(t, rules.Resolve("ArenaPresenter").ContextTool).NotNil()

	injector, _ := setup(t, screen.WithRules(rules))
	mem := memory.New(nil)
	contents, err := injector.Inject(context.Background(), mem, model.ScreenPayload{
		"screenData": map[string]any{
			"Screen":      "ArenaPresenter",
			"ScreensData": map[string]any{"ArenaPresenter": map[string]any{"ArenaBattleId": "d1_m1_b1"}},
		},
	})
	gt.NoError(t, err)
	gt.S(t, contents[0].Parts[0].Text).Contains("Arena fight against 'Naboo Outskirts'.")

	t.Run("unsupported lookup", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		gt.NoError(t, os.WriteFile(bad, []byte(`screens:
  X:
    template: "{boss_name}"
    lookups:
      boss_name: BossId
`), 0600))
		_, err := screen.LoadRules(bad)
		gt.Error(t, err)
	})
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "screen.rego"), []byte(`package screen

skip if {
	input.screen == "LoadingScreen"
}

data_tools contains {
	"tool": "db_get_battle_details_byid",
	"json_field": "NextBattleId",
	"parameter_name": "battle_id",
} if {
	input.fields.NextBattleId != ""
}
`), 0600))

	policy, err := screen.LoadPolicy(ctx, dir)
	gt.NoError(t, err)
	gt.V(t, policy).NotNil()

	injector, _ := setup(t, screen.WithPolicy(policy))

	t.Run("skip", func(t *testing.T) {
		mem := memory.New(nil)
		contents, err := injector.Inject(ctx, mem, model.ScreenPayload{
			"screenData": map[string]any{"Screen": "LoadingScreen"},
		})
		gt.NoError(t, err)
		gt.A(t, contents).Length(0)
		gt.True(t, mem.Injected())
	})

	t.Run("extra data tool", func(t *testing.T) {
		mem := memory.New(nil)
		contents, err := injector.Inject(ctx, mem, model.ScreenPayload{
			"NextBattleId": "d1_m1_b1",
			"screenData":   map[string]any{"Screen": "MainMenuScreen"},
		})
		gt.NoError(t, err)
		calls := functionCalls(contents)
		gt.A(t, calls).Length(3)
		gt.Equal(t, calls[2].Name, knowledge.FuncBattleDetails)
		gt.Equal(t, calls[2].Args["battle_id"], any("d1_m1_b1"))
	})

	t.Run("no policy files", func(t *testing.T) {
		p, err := screen.LoadPolicy(ctx, t.TempDir())
		gt.NoError(t, err)
		gt.True(t, p == nil)
	})
}
