package screen

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// Decision is the outcome of the screen policy for one payload
type Decision struct {
	Skip      bool
	DataTools []DataTool
}

// Policy evaluates rego rules under package screen. Input is {"screen": name, "fields": {...}}.
// The document may set skip to true and add entries to data_tools.
type Policy struct {
	query *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("screen policy print", "message", message)
	return nil
}

// LoadPolicy loads every *.rego file in dir. It returns nil when dir is empty or has no policy.
func LoadPolicy(ctx context.Context, dir string) (*Policy, error) {
	if dir == "" {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := []func(*rego.Rego){rego.Query("data.screen")}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare screen policy", goerr.V("dir", dir))
	}

	return &Policy{query: &prepared}, nil
}

// Evaluate runs the policy. A nil Policy allows everything.
func (p *Policy) Evaluate(ctx context.Context, sc model.ScreenContext) (*Decision, error) {
	if p == nil || p.query == nil {
		return &Decision{}, nil
	}

	input := map[string]any{
		"screen": sc.Screen,
		"fields": sc.Fields,
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate screen policy", goerr.V("screen", sc.Screen))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &Decision{}, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return &Decision{}, nil
	}

	d := &Decision{}
	if skip, ok := data["skip"].(bool); ok {
		d.Skip = skip
	}

	if raw, ok := data["data_tools"]; ok {
		items, ok := raw.([]any)
		if !ok {
			return nil, goerr.New("invalid screen policy result: data_tools is not an array")
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, goerr.New("invalid data tool in screen policy result")
			}
			dt := DataTool{
				Tool:          getString(m, "tool"),
				JSONField:     getString(m, "json_field"),
				ParameterName: getString(m, "parameter_name"),
			}
			if dt.Tool == "" || dt.JSONField == "" || dt.ParameterName == "" {
				return nil, goerr.New("incomplete data tool in screen policy result", goerr.V("tool", dt.Tool))
			}
			d.DataTools = append(d.DataTools, dt)
		}
	}

	return d, nil
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
