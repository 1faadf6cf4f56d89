package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const (
	FuncUXDetails       = "db_get_ux_details"
	FuncChampionDetails = "db_get_champion_details_byid"
	FuncBattleDetails   = "db_get_battle_details_byid"
	FuncRandomGreeting  = "db_get_random_greetings"

	defaultGreeting = "Greetings, cadet. T-3RN at your service."
)

// Tool provides lookups against the game knowledge repository
type Tool struct {
	uxCacheDuration       int64
	championCacheDuration int64
	battleCacheDuration   int64
	uxLimit               int64

	repo repository.Repository
}

// New creates a new knowledge tool
func New() *Tool {
	return &Tool{
		uxCacheDuration:       3,
		championCacheDuration: 5,
		battleCacheDuration:   5,
		uxLimit:               5,
	}
}

func (t *Tool) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "ux-cache-duration",
			Usage:       "Exchanges a UX lookup result stays cached",
			Value:       3,
			Sources:     cli.EnvVars("T3RN_UX_CACHE_DURATION"),
			Destination: &t.uxCacheDuration,
		},
		&cli.IntFlag{
			Name:        "champion-cache-duration",
			Usage:       "Exchanges a champion detail result stays cached",
			Value:       5,
			Sources:     cli.EnvVars("T3RN_CHAMPION_CACHE_DURATION"),
			Destination: &t.championCacheDuration,
		},
		&cli.IntFlag{
			Name:        "battle-cache-duration",
			Usage:       "Exchanges a battle detail result stays cached",
			Value:       5,
			Sources:     cli.EnvVars("T3RN_BATTLE_CACHE_DURATION"),
			Destination: &t.battleCacheDuration,
		},
		&cli.IntFlag{
			Name:        "ux-result-limit",
			Usage:       "Maximum number of UX records returned per lookup",
			Value:       5,
			Sources:     cli.EnvVars("T3RN_UX_RESULT_LIMIT"),
			Destination: &t.uxLimit,
		},
	}
}

func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client == nil || client.Repo == nil {
		return false, nil
	}
	t.repo = client.Repo
	return true, nil
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        FuncUXDetails,
				Description: "Search for UX (User Experience) related information and interface details",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "Screen name or search keyword for UX information (e.g., 'MainMenuScreen', 'menu', 'navigation')",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        FuncChampionDetails,
				Description: "Get detailed information about a specific champion by its champion ID",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"champion_id": {
							Type:        genai.TypeString,
							Description: "Champion ID (e.g., 'champion.sw1.droideka')",
						},
					},
					Required: []string{"champion_id"},
				},
			},
			{
				Name:        FuncBattleDetails,
				Description: "Get detailed information about a specific campaign battle by its battle ID",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"battle_id": {
							Type:        genai.TypeString,
							Description: "Battle ID (e.g., 'd1_m1_b1')",
						},
					},
					Required: []string{"battle_id"},
				},
			},
			{
				Name:        FuncRandomGreeting,
				Description: "Get a random greeting line to open the conversation with",
				Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	switch fc.Name {
	case FuncUXDetails:
		return t.uxDetails(ctx, fc)
	case FuncChampionDetails:
		return t.championDetails(ctx, fc)
	case FuncBattleDetails:
		return t.battleDetails(ctx, fc)
	case FuncRandomGreeting:
		return t.randomGreeting(ctx, fc)
	default:
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown knowledge function", goerr.V("name", fc.Name))
	}
}

func (t *Tool) uxDetails(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, goerr.New("query is required")
	}

	records, err := t.repo.FindUXRecords(ctx, in.Query, int(t.uxLimit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find ux records", goerr.V("query", in.Query))
	}
	if len(records) == 0 {
		return model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("No UX information found for '%s'", in.Query)), nil
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Found %d UX records for '%s'", len(records), in.Query),
		map[string]any{"query": in.Query, "ux_records": records},
	).WithCache(int(t.uxCacheDuration)), nil
}

func (t *Tool) championDetails(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var in struct {
		ChampionID string `json:"champion_id"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}
	if in.ChampionID == "" {
		return nil, goerr.New("champion_id is required")
	}

	champion, err := t.repo.GetChampion(ctx, in.ChampionID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("No champion found with ID '%s'", in.ChampionID)), nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get champion", goerr.V("champion_id", in.ChampionID))
	}

	summary := champion.SummaryText
	if summary == "" {
		summary = "No summary available"
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Champion details retrieved for ID '%s'", in.ChampionID),
		map[string]any{
			"champion_id":   champion.ID,
			"champion_name": champion.Name,
			"champion_details": map[string]any{
				"summary_text": summary,
				"summary_json": champion.SummaryJSON,
			},
		},
	).WithCache(int(t.championCacheDuration)), nil
}

func (t *Tool) battleDetails(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var in struct {
		BattleID string `json:"battle_id"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}
	if in.BattleID == "" {
		return nil, goerr.New("battle_id is required")
	}

	battle, err := t.repo.GetBattle(ctx, in.BattleID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("No battle found with ID '%s'", in.BattleID)), nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get battle", goerr.V("battle_id", in.BattleID))
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Battle details retrieved for ID '%s'", in.BattleID),
		map[string]any{
			"battle_id":   battle.ID,
			"battle_name": battle.Name,
			"battle_details": map[string]any{
				"summary_text": battle.SummaryText,
				"summary_json": battle.SummaryJSON,
			},
		},
	).WithCache(int(t.battleCacheDuration)), nil
}

func (t *Tool) randomGreeting(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	greeting, err := t.repo.RandomGreeting(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		res := model.NewToolError(fc.Name, fc.Args, "No greetings available in database")
		res.Payload = map[string]any{"content": map[string]any{"greeting": defaultGreeting}}
		return res, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get greeting")
	}

	return model.NewToolResult(fc.Name, fc.Args,
		"Random greeting retrieved successfully",
		map[string]any{"content": map[string]any{"greeting": greeting}},
	), nil
}

// ChampionName resolves a champion ID to its display name. The ID itself is returned when
// the champion is unknown.
func (t *Tool) ChampionName(ctx context.Context, id string) string {
	if t.repo == nil {
		return id
	}
	c, err := t.repo.GetChampion(ctx, id)
	if err != nil || c.Name == "" {
		return id
	}
	return c.Name
}

// BattleName resolves a battle ID to its display name, or returns the ID
func (t *Tool) BattleName(ctx context.Context, id string) string {
	if t.repo == nil {
		return id
	}
	b, err := t.repo.GetBattle(ctx, id)
	if err != nil || b.Name == "" {
		return id
	}
	return b.Name
}
