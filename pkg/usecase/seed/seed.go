package seed

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
)

// Result counts the records written by Apply
type Result struct {
	Champions int
	Battles   int
	UX        int
	Greetings int
	Knowledge int
}

// Apply writes a seed document into the repository. Knowledge chunks are embedded with gemini
// at the given dimensionality; without gemini the knowledge section is skipped.
func Apply(ctx context.Context, repo repository.Repository, gemini adapter.Gemini, seed *repository.Seed, dimension int) (*Result, error) {
	logger := logging.From(ctx)
	var res Result

	for _, c := range seed.Champions {
		if c.ID == "" {
			return nil, goerr.New("champion ID is required", goerr.V("name", c.Name))
		}
		if err := repo.PutChampion(ctx, c); err != nil {
			return nil, goerr.Wrap(err, "failed to put champion", goerr.V("id", c.ID))
		}
		res.Champions++
	}

	for _, b := range seed.Battles {
		if b.ID == "" {
			return nil, goerr.New("battle ID is required", goerr.V("name", b.Name))
		}
		if err := repo.PutBattle(ctx, b); err != nil {
			return nil, goerr.Wrap(err, "failed to put battle", goerr.V("id", b.ID))
		}
		res.Battles++
	}

	for _, u := range seed.UX {
		if u.ID == "" {
			u.ID = u.Screen
		}
		if u.ID == "" {
			return nil, goerr.New("UX record needs an ID or a screen", goerr.V("title", u.Title))
		}
		if err := repo.PutUXRecord(ctx, u); err != nil {
			return nil, goerr.Wrap(err, "failed to put UX record", goerr.V("id", u.ID))
		}
		res.UX++
	}

	for i, text := range seed.Greetings {
		if err := repo.PutGreeting(ctx, fmt.Sprintf("greeting_%03d", i+1), text); err != nil {
			return nil, goerr.Wrap(err, "failed to put greeting", goerr.V("index", i))
		}
		res.Greetings++
	}

	if len(seed.Knowledge) > 0 && gemini == nil {
		logger.Warn("knowledge chunks skipped, no embedding model configured", "count", len(seed.Knowledge))
		return &res, nil
	}

	for _, k := range seed.Knowledge {
		if k.ID == "" {
			return nil, goerr.New("knowledge ID is required", goerr.V("title", k.Title))
		}
		category := k.Category
		if category == "" {
			category = model.KnowledgeGeneral
		}

		embedding, err := gemini.Embedding(ctx, k.Title+"\n"+k.Content, dimension)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed knowledge chunk", goerr.V("id", k.ID))
		}

		chunk := &model.KnowledgeChunk{
			ID:        k.ID,
			Category:  category,
			Title:     k.Title,
			Content:   k.Content,
			Embedding: embedding,
		}
		if err := repo.PutKnowledge(ctx, chunk); err != nil {
			return nil, goerr.Wrap(err, "failed to put knowledge chunk", goerr.V("id", k.ID))
		}
		res.Knowledge++
	}

	logger.Info("seed applied",
		"champions", res.Champions,
		"battles", res.Battles,
		"ux", res.UX,
		"greetings", res.Greetings,
		"knowledge", res.Knowledge,
	)
	return &res, nil
}
