package stats

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/tool"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const (
	FuncStrongestChampions = "gcs_find_strongest_champions"
	FuncChampionsByTraits  = "gcs_get_champions_by_traits"

	defaultLimit = 5
	maxLimit     = 25
)

// Stats are the numeric columns a ranking may order by
var Stats = []string{"power", "health", "attack", "defense", "speed"}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.[A-Za-z0-9_]+\.[A-Za-z0-9_]+$`)

// Tool answers champion statistics questions from a BigQuery table
type Tool struct {
	project     string
	table       string
	scanLimitMB int64

	bq adapter.BigQuery
}

type Option func(*Tool)

// WithBigQuery sets the BigQuery client instead of creating one from the project flag
func WithBigQuery(bq adapter.BigQuery) Option {
	return func(t *Tool) {
		t.bq = bq
	}
}

// WithTable sets the fully qualified stats table (project.dataset.table)
func WithTable(table string) Option {
	return func(t *Tool) {
		t.table = table
	}
}

// New creates a new stats tool
func New(opts ...Option) *Tool {
	t := &Tool{
		scanLimitMB: 1024,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "stats-project",
			Usage:       "Google Cloud project ID for champion stats queries",
			Sources:     cli.EnvVars("T3RN_STATS_PROJECT"),
			Destination: &t.project,
		},
		&cli.StringFlag{
			Name:        "stats-table",
			Usage:       "Champion stats table (project.dataset.table)",
			Sources:     cli.EnvVars("T3RN_STATS_TABLE"),
			Destination: &t.table,
		},
		&cli.IntFlag{
			Name:        "stats-scan-limit-mb",
			Usage:       "Maximum scan limit in MB for dry-run validation",
			Value:       1024,
			Sources:     cli.EnvVars("T3RN_STATS_SCAN_LIMIT_MB"),
			Destination: &t.scanLimitMB,
		},
	}
}

// Init enables the tool when a stats table is configured
func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if t.table == "" {
		return false, nil
	}
	if !tableNamePattern.MatchString(t.table) {
		return false, goerr.New("invalid stats table name", goerr.V("table", t.table))
	}

	if t.bq == nil {
		if t.project == "" {
			return false, nil
		}
		bq, err := adapter.NewBigQuery(ctx, t.project, adapter.WithMaxRows(maxLimit))
		if err != nil {
			return false, goerr.Wrap(err, "failed to create BigQuery client")
		}
		t.bq = bq
	}

	return true, nil
}

func (t *Tool) Prompt(ctx context.Context) string {
	return fmt.Sprintf("### Champion statistics\n\nRankings can be ordered by: %s. Use champion names from the results when answering.",
		strings.Join(Stats, ", "))
}

func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        FuncStrongestChampions,
				Description: "Find the strongest champions ranked by a statistic",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"stat": {
							Type:        genai.TypeString,
							Description: "Statistic to rank by",
							Enum:        Stats,
						},
						"limit": {
							Type:        genai.TypeInteger,
							Description: fmt.Sprintf("Number of champions to return (default: %d, max: %d)", defaultLimit, maxLimit),
						},
					},
					Required: []string{"stat"},
				},
			},
			{
				Name:        FuncChampionsByTraits,
				Description: "List champions matching rarity, class and/or affinity",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"rarity":   {Type: genai.TypeString, Description: "Rarity (e.g., 'legendary', 'epic')"},
						"class":    {Type: genai.TypeString, Description: "Class (e.g., 'tank', 'attacker', 'support')"},
						"affinity": {Type: genai.TypeString, Description: "Affinity (e.g., 'red', 'blue', 'green')"},
					},
				},
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	switch fc.Name {
	case FuncStrongestChampions:
		return t.strongest(ctx, fc)
	case FuncChampionsByTraits:
		return t.byTraits(ctx, fc)
	default:
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown stats function", goerr.V("name", fc.Name))
	}
}

func (t *Tool) strongest(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var in struct {
		Stat  string `json:"stat"`
		Limit int    `json:"limit"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}

	stat := strings.ToLower(in.Stat)
	if !slices.Contains(Stats, stat) {
		return model.NewToolError(fc.Name, fc.Args,
			fmt.Sprintf("Unknown stat '%s'. Available stats: %s", in.Stat, strings.Join(Stats, ", "))), nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	// column names cannot be bound as parameters; stat is checked against Stats above
	query := fmt.Sprintf("SELECT champion_id, champion_name, rarity, class, affinity, %s AS value FROM `%s` ORDER BY %s DESC LIMIT @limit",
		stat, t.table, stat)

	rows, res := t.run(ctx, fc, query, adapter.QueryParam{Name: "limit", Value: limit})
	if res != nil {
		return res, nil
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Top %d champions by %s", len(rows), stat),
		map[string]any{"stat": stat, "champions": rows},
	), nil
}

func (t *Tool) byTraits(ctx context.Context, fc genai.FunctionCall) (*model.ToolResult, error) {
	var in struct {
		Rarity   string `json:"rarity"`
		Class    string `json:"class"`
		Affinity string `json:"affinity"`
	}
	if err := tool.ParseArgs(fc, &in); err != nil {
		return nil, err
	}

	var conds []string
	var params []adapter.QueryParam
	for _, f := range []struct{ column, value string }{
		{"rarity", in.Rarity},
		{"class", in.Class},
		{"affinity", in.Affinity},
	} {
		if f.value == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf("LOWER(%s) = @%s", f.column, f.column))
		params = append(params, adapter.QueryParam{Name: f.column, Value: strings.ToLower(f.value)})
	}
	if len(conds) == 0 {
		return model.NewToolError(fc.Name, fc.Args, "At least one of rarity, class or affinity is required"), nil
	}

	query := fmt.Sprintf("SELECT champion_id, champion_name, rarity, class, affinity FROM `%s` WHERE %s ORDER BY champion_name LIMIT %d",
		t.table, strings.Join(conds, " AND "), maxLimit)

	rows, res := t.run(ctx, fc, query, params...)
	if res != nil {
		return res, nil
	}
	if len(rows) == 0 {
		return model.NewToolError(fc.Name, fc.Args, "No champions match the given traits"), nil
	}

	return model.NewToolResult(fc.Name, fc.Args,
		fmt.Sprintf("Found %d champions", len(rows)),
		map[string]any{"champions": rows},
	), nil
}

// run validates the scan size with a dry run, then executes the query. A non-nil result is an
// error result for the model.
func (t *Tool) run(ctx context.Context, fc genai.FunctionCall, query string, params ...adapter.QueryParam) ([]map[string]any, *model.ToolResult) {
	logger := logging.From(ctx)

	bytesProcessed, err := t.bq.DryRun(ctx, query, params...)
	if err != nil {
		logger.Warn("stats query validation failed", "error", err, "function", fc.Name)
		return nil, model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("Query validation failed: %v", err))
	}

	scanLimitBytes := t.scanLimitMB * 1024 * 1024
	if bytesProcessed > scanLimitBytes {
		return nil, model.NewToolError(fc.Name, fc.Args, fmt.Sprintf(
			"Query would scan %.2f MB, which exceeds the limit of %d MB",
			float64(bytesProcessed)/1024/1024, t.scanLimitMB))
	}

	rows, err := t.bq.Query(ctx, query, params...)
	if err != nil {
		logger.Warn("stats query failed", "error", err, "function", fc.Name)
		return nil, model.NewToolError(fc.Name, fc.Args, fmt.Sprintf("Query execution failed: %v", err))
	}
	return rows, nil
}
