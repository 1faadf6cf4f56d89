package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
)

func TestMemoryChampion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutChampion(ctx, &model.Champion{ID: "champion.sw1.droideka", Name: "Droideka"}))

	got, err := repo.GetChampion(ctx, "champion.sw1.droideka")
	gt.NoError(t, err)
	gt.Equal(t, got.Name, "Droideka")

	_, err = repo.GetChampion(ctx, "champion.sw1.unknown")
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestMemoryFindUXRecords(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutUXRecord(ctx, &model.UXRecord{ID: "ux1", Screen: "MainMenuScreen", Keywords: []string{"Menu"}}))
	gt.NoError(t, repo.PutUXRecord(ctx, &model.UXRecord{ID: "ux2", Screen: "ChampionEquipmentPanelPresenter", Keywords: []string{"gear", "menu"}}))

	t.Run("exact screen wins", func(t *testing.T) {
		recs, err := repo.FindUXRecords(ctx, "MainMenuScreen", 10)
		gt.NoError(t, err)
		gt.A(t, recs).Length(1)
		gt.Equal(t, recs[0].ID, "ux1")
	})

	t.Run("keyword fallback", func(t *testing.T) {
		recs, err := repo.FindUXRecords(ctx, "MENU", 10)
		gt.NoError(t, err)
		gt.A(t, recs).Length(2)
	})

	t.Run("limit", func(t *testing.T) {
		recs, err := repo.FindUXRecords(ctx, "menu", 1)
		gt.NoError(t, err)
		gt.A(t, recs).Length(1)
	})
}

func TestMemoryGreeting(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	_, err := repo.RandomGreeting(ctx)
	gt.True(t, errors.Is(err, repository.ErrNotFound))

	gt.NoError(t, repo.PutGreeting(ctx, "g1", "Greetings, cadet."))
	greeting, err := repo.RandomGreeting(ctx)
	gt.NoError(t, err)
	gt.Equal(t, greeting, "Greetings, cadet.")
}

func TestMemorySearchKnowledge(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutKnowledge(ctx, &model.KnowledgeChunk{ID: "near", Category: model.KnowledgeMechanics, Embedding: []float32{1, 0}}))
	gt.NoError(t, repo.PutKnowledge(ctx, &model.KnowledgeChunk{ID: "far", Category: model.KnowledgeMechanics, Embedding: []float32{0, 1}}))
	gt.NoError(t, repo.PutKnowledge(ctx, &model.KnowledgeChunk{ID: "other", Category: model.KnowledgeGameplay, Embedding: []float32{1, 0}}))
	gt.NoError(t, repo.PutKnowledge(ctx, &model.KnowledgeChunk{ID: "noembed", Category: model.KnowledgeMechanics}))

	hits, err := repo.SearchKnowledge(ctx, []float32{1, 0.1}, model.KnowledgeMechanics, 10)
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].ID, "near")
	gt.Equal(t, hits[1].ID, "far")

	all, err := repo.SearchKnowledge(ctx, []float32{1, 0}, model.KnowledgeGeneral, 10)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)

	_, err = repo.SearchKnowledge(ctx, nil, model.KnowledgeGeneral, 10)
	gt.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`
champions:
  - champion_id: champion.sw1.droideka
    champion_name: Droideka
battles:
  - battle_id: d1_m1_b1
    battle_name: Naboo Outskirts
greetings:
  - Greetings, cadet.
knowledge:
  - id: k1
    category: mechanics
    title: Shields
    content: Shields absorb damage.
`), 0644))

	seed, err := repository.LoadSeed(path)
	gt.NoError(t, err)
	gt.A(t, seed.Champions).Length(1)
	gt.Equal(t, seed.Champions[0].Name, "Droideka")
	gt.Equal(t, seed.Battles[0].Name, "Naboo Outskirts")
	gt.A(t, seed.Greetings).Length(1)
	gt.Equal(t, seed.Knowledge[0].Category, model.KnowledgeMechanics)

	_, err = repository.LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.Error(t, err)
}
