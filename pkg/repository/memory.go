package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"gopkg.in/yaml.v3"
)

// Memory is an in-process Repository. It backs local runs and tests.
type Memory struct {
	mu        sync.RWMutex
	champions map[string]*model.Champion
	battles   map[string]*model.Battle
	ux        map[string]*model.UXRecord
	greetings map[string]string
	knowledge map[string]*model.KnowledgeChunk
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		champions: make(map[string]*model.Champion),
		battles:   make(map[string]*model.Battle),
		ux:        make(map[string]*model.UXRecord),
		greetings: make(map[string]string),
		knowledge: make(map[string]*model.KnowledgeChunk),
	}
}

// Seed is the YAML document layout accepted by LoadSeed
type Seed struct {
	Champions []*model.Champion `yaml:"champions"`
	Battles   []*model.Battle   `yaml:"battles"`
	UX        []*model.UXRecord `yaml:"ux_records"`
	Greetings []string          `yaml:"greetings"`
	Knowledge []struct {
		ID       string                  `yaml:"id"`
		Category model.KnowledgeCategory `yaml:"category"`
		Title    string                  `yaml:"title"`
		Content  string                  `yaml:"content"`
	} `yaml:"knowledge"`
}

// LoadSeed reads a seed YAML file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed file", goerr.V("path", path))
	}
	return &seed, nil
}

func (r *Memory) GetChampion(ctx context.Context, id string) (*model.Champion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.champions[id]; ok {
		return c, nil
	}
	return nil, goerr.Wrap(ErrNotFound, "champion not found", goerr.V("id", id))
}

func (r *Memory) PutChampion(ctx context.Context, champion *model.Champion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.champions[champion.ID] = champion
	return nil
}

func (r *Memory) GetBattle(ctx context.Context, id string) (*model.Battle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.battles[id]; ok {
		return b, nil
	}
	return nil, goerr.Wrap(ErrNotFound, "battle not found", goerr.V("id", id))
}

func (r *Memory) PutBattle(ctx context.Context, battle *model.Battle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.battles[battle.ID] = battle
	return nil
}

func (r *Memory) FindUXRecords(ctx context.Context, query string, limit int) ([]*model.UXRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exact, keyword []*model.UXRecord
	lower := strings.ToLower(query)
	for _, rec := range r.ux {
		switch {
		case rec.Screen == query:
			exact = append(exact, rec)
		case slices.Contains(rec.Keywords, lower):
			keyword = append(keyword, rec)
		}
	}

	found := exact
	if len(found) == 0 {
		found = keyword
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	if n := clampLimit(limit); len(found) > n {
		found = found[:n]
	}
	return found, nil
}

func (r *Memory) PutUXRecord(ctx context.Context, record *model.UXRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, k := range record.Keywords {
		record.Keywords[i] = strings.ToLower(k)
	}
	r.ux[record.ID] = record
	return nil
}

func (r *Memory) RandomGreeting(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.greetings) == 0 {
		return "", goerr.Wrap(ErrNotFound, "no greetings available")
	}

	keys := make([]string, 0, len(r.greetings))
	for k := range r.greetings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return r.greetings[keys[rand.IntN(len(keys))]], nil
}

func (r *Memory) PutGreeting(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.greetings[id] = text
	return nil
}

// SearchKnowledge ranks chunks by cosine distance. Chunks without an embedding are skipped.
func (r *Memory) SearchKnowledge(ctx context.Context, embedding []float32, category model.KnowledgeCategory, limit int) ([]*model.KnowledgeChunk, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("embedding is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*model.KnowledgeChunk
	for _, chunk := range r.knowledge {
		if category != "" && category != model.KnowledgeGeneral && chunk.Category != category {
			continue
		}
		if len(chunk.Embedding) != len(embedding) {
			continue
		}
		hit := *chunk
		hit.Distance = cosineDistance(embedding, chunk.Embedding)
		hits = append(hits, &hit)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if n := clampLimit(limit); len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (r *Memory) PutKnowledge(ctx context.Context, chunk *model.KnowledgeChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.knowledge[chunk.ID] = chunk
	return nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
