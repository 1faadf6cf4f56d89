package repository

import (
	"context"
	"math/rand/v2"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionChampions = "champion_details"
	collectionBattles   = "battle_details"
	collectionUX        = "ux_records"
	collectionGreetings = "greetings"
	collectionKnowledge = "knowledge"

	maxSearchLimit = 100
)

type greetingDoc struct {
	Text string  `firestore:"text"`
	Rand float64 `firestore:"rand"`
}

// Firestore implements Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// New creates a Firestore repository for the given project and database
func New(projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(context.Background(), projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (*T, error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("path", ref.Path))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("path", ref.Path))
	}

	var v T
	if err := snap.DataTo(&v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("path", ref.Path))
	}
	return &v, nil
}

func (r *Firestore) GetChampion(ctx context.Context, id string) (*model.Champion, error) {
	return getDoc[model.Champion](ctx, r.client.Collection(collectionChampions).Doc(id))
}

func (r *Firestore) PutChampion(ctx context.Context, champion *model.Champion) error {
	if _, err := r.client.Collection(collectionChampions).Doc(champion.ID).Set(ctx, champion); err != nil {
		return goerr.Wrap(err, "failed to put champion", goerr.V("id", champion.ID))
	}
	return nil
}

func (r *Firestore) GetBattle(ctx context.Context, id string) (*model.Battle, error) {
	return getDoc[model.Battle](ctx, r.client.Collection(collectionBattles).Doc(id))
}

func (r *Firestore) PutBattle(ctx context.Context, battle *model.Battle) error {
	if _, err := r.client.Collection(collectionBattles).Doc(battle.ID).Set(ctx, battle); err != nil {
		return goerr.Wrap(err, "failed to put battle", goerr.V("id", battle.ID))
	}
	return nil
}

// FindUXRecords matches the screen name exactly first, then falls back to keyword match
func (r *Firestore) FindUXRecords(ctx context.Context, query string, limit int) ([]*model.UXRecord, error) {
	limit = clampLimit(limit)
	col := r.client.Collection(collectionUX)

	docs, err := col.Where("screen", "==", query).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query ux records by screen", goerr.V("query", query))
	}

	if len(docs) == 0 {
		docs, err = col.Where("keywords", "array-contains", strings.ToLower(query)).Limit(limit).Documents(ctx).GetAll()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query ux records by keyword", goerr.V("query", query))
		}
	}

	records := make([]*model.UXRecord, 0, len(docs))
	for _, doc := range docs {
		var rec model.UXRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode ux record", goerr.V("id", doc.Ref.ID))
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (r *Firestore) PutUXRecord(ctx context.Context, record *model.UXRecord) error {
	if record.Keywords != nil {
		for i, k := range record.Keywords {
			record.Keywords[i] = strings.ToLower(k)
		}
	}
	if _, err := r.client.Collection(collectionUX).Doc(record.ID).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to put ux record", goerr.V("id", record.ID))
	}
	return nil
}

// RandomGreeting picks a document by a random pivot on the stored rand field
func (r *Firestore) RandomGreeting(ctx context.Context) (string, error) {
	col := r.client.Collection(collectionGreetings)
	pivot := rand.Float64()

	docs, err := col.Where("rand", ">=", pivot).OrderBy("rand", firestore.Asc).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", goerr.Wrap(err, "failed to query greetings")
	}
	if len(docs) == 0 {
		docs, err = col.Where("rand", "<", pivot).OrderBy("rand", firestore.Asc).Limit(1).Documents(ctx).GetAll()
		if err != nil {
			return "", goerr.Wrap(err, "failed to query greetings")
		}
	}
	if len(docs) == 0 {
		return "", goerr.Wrap(ErrNotFound, "no greetings available")
	}

	var g greetingDoc
	if err := docs[0].DataTo(&g); err != nil {
		return "", goerr.Wrap(err, "failed to decode greeting", goerr.V("id", docs[0].Ref.ID))
	}
	return g.Text, nil
}

func (r *Firestore) PutGreeting(ctx context.Context, id, text string) error {
	doc := greetingDoc{Text: text, Rand: rand.Float64()}
	if _, err := r.client.Collection(collectionGreetings).Doc(id).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put greeting", goerr.V("id", id))
	}
	return nil
}

func (r *Firestore) SearchKnowledge(ctx context.Context, embedding []float32, category model.KnowledgeCategory, limit int) ([]*model.KnowledgeChunk, error) {
	if len(embedding) == 0 {
		return nil, goerr.New("embedding is required")
	}

	q := r.client.Collection(collectionKnowledge).Query
	if category != "" && category != model.KnowledgeGeneral {
		q = q.Where("category", "==", string(category))
	}

	vq := q.FindNearest("embedding", firestore.Vector32(embedding), clampLimit(limit), firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: "distance"})

	docs, err := vq.Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search knowledge", goerr.V("category", category))
	}

	chunks := make([]*model.KnowledgeChunk, 0, len(docs))
	for _, doc := range docs {
		var chunk model.KnowledgeChunk
		if err := doc.DataTo(&chunk); err != nil {
			return nil, goerr.Wrap(err, "failed to decode knowledge chunk", goerr.V("id", doc.Ref.ID))
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, nil
}

func (r *Firestore) PutKnowledge(ctx context.Context, chunk *model.KnowledgeChunk) error {
	if _, err := r.client.Collection(collectionKnowledge).Doc(chunk.ID).Set(ctx, chunk); err != nil {
		return goerr.Wrap(err, "failed to put knowledge chunk", goerr.V("id", chunk.ID))
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}
