package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const (
	FuncGeneralKnowledge = "rag_get_general_knowledge"
	FuncMechanicsDetails = "rag_get_mechanics_details"
	FuncGameplayDetails  = "rag_get_gameplay_details"
)

var categories = map[string]model.KnowledgeCategory{
	FuncGeneralKnowledge: model.KnowledgeGeneral,
	FuncMechanicsDetails: model.KnowledgeMechanics,
	FuncGameplayDetails:  model.KnowledgeGameplay,
}

// Tool searches the knowledge base by embedding similarity
type Tool struct {
	limit       int64
	dimension   int64
	maxDistance float64

	repo   repository.Repository
	gemini adapter.Gemini
}

// New creates a new RAG tool
func New() *Tool {
	return &Tool{
		limit:       5,
		dimension:   768,
		maxDistance: 0.6,
	}
}

func (t *Tool) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "rag-limit",
			Usage:       "Maximum number of knowledge chunks returned per search",
			Value:       5,
			Sources:     cli.EnvVars("T3RN_RAG_LIMIT"),
			Destination: &t.limit,
		},
		&cli.IntFlag{
			Name:        "rag-embedding-dimension",
			Usage:       "Embedding dimensionality of the knowledge base",
			Value:       768,
			Sources:     cli.EnvVars("T3RN_RAG_EMBEDDING_DIMENSION"),
			Destination: &t.dimension,
		},
		&cli.FloatFlag{
			Name:        "rag-max-distance",
			Usage:       "Cosine distance above which a chunk is dropped",
			Value:       0.6,
			Sources:     cli.EnvVars("T3RN_RAG_MAX_DISTANCE"),
			Destination: &t.maxDistance,
		},
	}
}

func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client == nil || client.Repo == nil || client.Gemini == nil {
		return false, nil
	}
	t.repo = client.Repo
	t.gemini = client.Gemini
	return true, nil
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Spec() *genai.Tool {
	query := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {Type: genai.TypeString, Description: desc},
			},
			Required: []string{"query"},
		}
	}

	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        FuncGeneralKnowledge,
				Description: "Search general knowledge base - searches both general documents and Q&A sections",
				Parameters:  query("Search query for knowledge base"),
			},
			{
				Name:        FuncMechanicsDetails,
				Description: "Search for game mechanics information including rules, systems, and gameplay mechanics",
				Parameters:  query("Search query for mechanics information (e.g., 'combat', 'abilities', 'stats')"),
			},
			{
				Name:        FuncGameplayDetails,
				Description: "Search for gameplay information including strategies, tactics, and game flow",
				Parameters:  query("Search query for gameplay information (e.g., 'strategy', 'tactics', 'progression')"),
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	category, ok := categories[fc.Name]
	if !ok {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown rag function", goerr.V("name", fc.Name))
	}

	var in struct {
		Query string `json:"query"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, goerr.New("query is required")
	}

	chunks, err := t.Search(ctx, in.Query, category)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("No relevant %s knowledge found for '%s'", category, in.Query)).
			WithInstruction("Tell the user you have no records on this topic rather than guessing."), nil
	}

	results := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, map[string]any{
			"title":    c.Title,
			"content":  c.Content,
			"category": string(c.Category),
			"distance": c.Distance,
		})
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Found %d relevant knowledge chunks", len(results)),
		map[string]any{"query": in.Query, "results": results},
	), nil
}

// Search embeds the query and returns chunks within the distance limit, nearest first
func (t *Tool) Search(ctx context.Context, query string, category model.KnowledgeCategory) ([]*model.KnowledgeChunk, error) {
	embedding, err := t.gemini.Embedding(ctx, query, int(t.dimension))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	chunks, err := t.repo.SearchKnowledge(ctx, embedding, category, int(t.limit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search knowledge", goerr.V("category", category))
	}

	var kept []*model.KnowledgeChunk
	for _, c := range chunks {
		if t.maxDistance > 0 && c.Distance > t.maxDistance {
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// GeneralKnowledge renders the general knowledge hits for query as plain text
func (t *Tool) GeneralKnowledge(ctx context.Context, query string) (string, error) {
	chunks, err := t.Search(ctx, query, model.KnowledgeGeneral)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "## %s\n%s\n\n", c.Title, c.Content)
	}
	return strings.TrimSpace(b.String()), nil
}
