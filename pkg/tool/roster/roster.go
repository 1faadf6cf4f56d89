package roster

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const (
	FuncChampionsList = "cache_get_champions_list"
	FuncBossesList    = "cache_get_bosses_list"
)

// Tool serves the champion and boss lists from the static catalog
type Tool struct {
	catalog *model.Catalog
}

// New creates a new roster tool
func New() *Tool {
	return &Tool{}
}

func (t *Tool) Flags() []cli.Flag {
	return nil
}

func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client == nil || client.Catalog == nil {
		return false, nil
	}
	t.catalog = client.Catalog
	return true, nil
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Spec() *genai.Tool {
	empty := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        FuncChampionsList,
				Description: "Get complete list of all available champions in the game",
				Parameters:  empty,
			},
			{
				Name:        FuncBossesList,
				Description: "Get complete list of all available bosses in the game",
				Parameters:  empty,
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var (
		key     string
		entries []model.CatalogEntry
	)

	switch fc.Name {
	case FuncChampionsList:
		key, entries = "champions", t.catalog.Champions
	case FuncBossesList:
		key, entries = "bosses", t.catalog.Bosses
	default:
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown roster function", goerr.V("name", fc.Name))
	}

	if len(entries) == 0 {
		return model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("No %s data available. Catalog may not be initialized.", key)), nil
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Found %d %s in database", len(entries), key),
		map[string]any{key: entries},
	), nil
}
