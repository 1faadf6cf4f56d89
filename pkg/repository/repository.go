package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerr.New("record not found")

// Repository defines the interface for game knowledge persistence
type Repository interface {
	// GetChampion retrieves a champion by champion ID (e.g. champion.sw1.droideka)
	GetChampion(ctx context.Context, id string) (*model.Champion, error)
	PutChampion(ctx context.Context, champion *model.Champion) error

	// GetBattle retrieves a campaign battle by battle ID (e.g. d1_m1_b1)
	GetBattle(ctx context.Context, id string) (*model.Battle, error)
	PutBattle(ctx context.Context, battle *model.Battle) error

	// FindUXRecords returns UX records for a screen name or keyword
	FindUXRecords(ctx context.Context, query string, limit int) ([]*model.UXRecord, error)
	PutUXRecord(ctx context.Context, record *model.UXRecord) error

	// RandomGreeting returns one greeting line picked at random
	RandomGreeting(ctx context.Context) (string, error)
	PutGreeting(ctx context.Context, id, text string) error

	// SearchKnowledge performs vector search over the knowledge base.
	// KnowledgeGeneral searches all categories.
	SearchKnowledge(ctx context.Context, embedding []float32, category model.KnowledgeCategory, limit int) ([]*model.KnowledgeChunk, error)
	PutKnowledge(ctx context.Context, chunk *model.KnowledgeChunk) error
}
