package knowledge_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/m-mizutani/t3rn/pkg/tool/knowledge"
	"google.golang.org/genai"
)

func setup(t *testing.T) (*knowledge.Tool, *repository.Memory) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutChampion(ctx, &model.Champion{ID: "champion.sw1.droideka", Name: "Droideka", SummaryText: "Rolling shielded droid"}))
	gt.NoError(t, repo.PutBattle(ctx, &model.Battle{ID: "d1_m1_b1", Name: "Naboo Outskirts"}))
	gt.NoError(t, repo.PutUXRecord(ctx, &model.UXRecord{ID: "ux1", Screen: "MainMenuScreen", Title: "Main menu"}))

	k := knowledge.New()
	enabled, err := k.Init(ctx, &tool.Client{Repo: repo})
	gt.NoError(t, err)
	gt.True(t, enabled)
	return k, repo
}

func TestInitWithoutRepository(t *testing.T) {
	enabled, err := knowledge.New().Init(context.Background(), &tool.Client{})
	gt.NoError(t, err)
	gt.False(t, enabled)
}

func TestChampionDetails(t *testing.T) {
	k, _ := setup(t)
	ctx := context.Background()

	res, err := k.Execute(ctx, genai.FunctionCall{
		Name: knowledge.FuncChampionDetails,
		Args: map[string]any{"champion_id": "champion.sw1.droideka"},
	})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusSuccess)
	gt.Equal(t, res.CacheDuration, 5)
	gt.Equal(t, res.Payload["champion_name"], any("Droideka"))
	gt.Equal(t, res.Internal.Parameters["champion_id"], any("champion.sw1.droideka"))

	t.Run("unknown id is an error result, not cached", func(t *testing.T) {
		res, err := k.Execute(ctx, genai.FunctionCall{
			Name: knowledge.FuncChampionDetails,
			Args: map[string]any{"champion_id": "champion.sw1.nobody"},
		})
		gt.NoError(t, err)
		gt.Equal(t, res.Status, model.ToolStatusError)
		gt.Equal(t, res.CacheDuration, 0)
	})

	t.Run("missing argument fails the call", func(t *testing.T) {
		_, err := k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncChampionDetails, Args: map[string]any{}})
		gt.Error(t, err)
	})
}

func TestBattleAndUX(t *testing.T) {
	k, _ := setup(t)
	ctx := context.Background()

	res, err := k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncBattleDetails, Args: map[string]any{"battle_id": "d1_m1_b1"}})
	gt.NoError(t, err)
	gt.Equal(t, res.Payload["battle_name"], any("Naboo Outskirts"))
	gt.Equal(t, res.CacheDuration, 5)

	res, err = k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncUXDetails, Args: map[string]any{"query": "MainMenuScreen"}})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusSuccess)
	gt.Equal(t, res.CacheDuration, 3)

	res, err = k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncUXDetails, Args: map[string]any{"query": "UnknownPresenter"}})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusError)
}

func TestRandomGreeting(t *testing.T) {
	k, repo := setup(t)
	ctx := context.Background()

	res, err := k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncRandomGreeting})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusError)
	gt.Map(t, res.Payload).HasKey("content")

	gt.NoError(t, repo.PutGreeting(ctx, "g1", "Hello there, cadet."))
	res, err = k.Execute(ctx, genai.FunctionCall{Name: knowledge.FuncRandomGreeting})
	gt.NoError(t, err)
	gt.Equal(t, res.Status, model.ToolStatusSuccess)
	content := res.Payload["content"].(map[string]any)
	gt.Equal(t, content["greeting"], any("Hello there, cadet."))
}

func TestNameLookups(t *testing.T) {
	k, _ := setup(t)
	ctx := context.Background()

	gt.Equal(t, k.ChampionName(ctx, "champion.sw1.droideka"), "Droideka")
	gt.Equal(t, k.ChampionName(ctx, "champion.sw1.nobody"), "champion.sw1.nobody")
	gt.Equal(t, k.BattleName(ctx, "d1_m1_b1"), "Naboo Outskirts")
	gt.Equal(t, k.BattleName(ctx, "d9"), "d9")
}
