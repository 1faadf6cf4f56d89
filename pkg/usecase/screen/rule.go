package screen

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/tool/knowledge"
	"gopkg.in/yaml.v3"
)

// ToolCall is a tool invocation declared by a rule. Parameter values may hold {placeholders}.
type ToolCall struct {
	Tool       string            `yaml:"tool" json:"tool"`
	Parameters map[string]string `yaml:"parameters" json:"parameters"`
}

// DataTool runs Tool with ParameterName set to the value of JSONField when the field is present
type DataTool struct {
	Tool          string `yaml:"tool" json:"tool"`
	JSONField     string `yaml:"json_field" json:"json_field"`
	ParameterName string `yaml:"parameter_name" json:"parameter_name"`
}

// Rule describes what to inject for one screen
type Rule struct {
	ContextTool    *ToolCall  `yaml:"context_tool"`
	DataTools      []DataTool `yaml:"data_tools"`
	Template       string     `yaml:"template"`
	RequiredFields []string   `yaml:"required_fields"`

	// Lookups maps a template placeholder to the field holding the ID to resolve.
	// Supported placeholders are champion_name and battle_name.
	Lookups map[string]string `yaml:"lookups"`
}

// Rules is the rule set keyed by screen name, with a fallback for unknown screens
type Rules struct {
	Screens map[string]*Rule `yaml:"screens"`
	Default *Rule            `yaml:"default"`
}

// Resolve returns the rule for a screen, or the default rule
func (x *Rules) Resolve(screen string) *Rule {
	if r, ok := x.Screens[screen]; ok {
		return r
	}
	return x.Default
}

// DefaultRules returns the built-in rule set
func DefaultRules() *Rules {
	return &Rules{
		Screens: map[string]*Rule{
			"ChampionEquipmentPanelPresenter": {
				ContextTool: &ToolCall{
					Tool:       knowledge.FuncUXDetails,
					Parameters: map[string]string{"query": "{screen_name}"},
				},
				DataTools: []DataTool{
					{Tool: knowledge.FuncChampionDetails, JSONField: "ChampionConfigId", ParameterName: "champion_id"},
				},
				Template:       "You are currently on the Champion Details screen. The user is viewing champion '{champion_name}' ({ChampionConfigId}). If user doesn't ask specific question focus your responses on this specific champion and the champion management interface they are currently using.",
				RequiredFields: []string{"ChampionConfigId"},
				Lookups:        map[string]string{"champion_name": "ChampionConfigId"},
			},
			"CampaignTeamSelectUIPresenter": {
				ContextTool: &ToolCall{
					Tool:       knowledge.FuncUXDetails,
					Parameters: map[string]string{"query": "{screen_name}"},
				},
				DataTools: []DataTool{
					{Tool: knowledge.FuncBattleDetails, JSONField: "BattleId", ParameterName: "battle_id"},
				},
				Template:       "You are currently on the Campaign Team Select screen just before the battle '{battle_name}' ({BattleId}). User goal is to select best team that can defeat opponents. Assist him to select best team and choose best strategy.",
				RequiredFields: []string{"BattleId"},
				Lookups:        map[string]string{"battle_name": "BattleId"},
			},
			"MainMenuScreen": {
				ContextTool: &ToolCall{
					Tool:       knowledge.FuncUXDetails,
					Parameters: map[string]string{"query": "{screen_name}"},
				},
				Template: "You are currently on the Main Menu screen. The user is in the main navigation area of the game. If user doesn't ask specific question focus on helping them navigate or understand available options.",
			},
		},
		Default: &Rule{
			ContextTool: &ToolCall{
				Tool:       knowledge.FuncUXDetails,
				Parameters: map[string]string{"query": "{screen_name}"},
			},
			Template: "You are currently on the '{screen_name}' screen. The user is viewing this interface. If user doesn't ask specific question focus your responses on helping them with this specific screen and its functionality.",
		},
	}
}

// LoadRules reads a YAML rule file and merges it over the built-in rules. Screens in the file
// replace built-in screens of the same name.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read screen rule file", goerr.V("path", path))
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse screen rule file", goerr.V("path", path))
	}

	for name, r := range file.Screens {
		if err := r.validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid screen rule", goerr.V("screen", name), goerr.V("path", path))
		}
		rules.Screens[name] = r
	}
	if file.Default != nil {
		if err := file.Default.validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid default screen rule", goerr.V("path", path))
		}
		rules.Default = file.Default
	}

	return rules, nil
}

func (x *Rule) validate() error {
	if x == nil {
		return goerr.New("rule is empty")
	}
	if x.ContextTool != nil && x.ContextTool.Tool == "" {
		return goerr.New("context_tool.tool is required")
	}
	for _, dt := range x.DataTools {
		if dt.Tool == "" || dt.JSONField == "" || dt.ParameterName == "" {
			return goerr.New("data tool needs tool, json_field and parameter_name", goerr.V("tool", dt.Tool))
		}
	}
	for placeholder := range x.Lookups {
		if placeholder != lookupChampionName && placeholder != lookupBattleName {
			return goerr.New("unsupported lookup", goerr.V("lookup", placeholder))
		}
	}
	return nil
}

// render substitutes {name} placeholders. Unknown placeholders are left as they are.
func render(text string, vars map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
