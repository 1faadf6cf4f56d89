package tool

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// ParseArgs decodes the arguments of a function call into v
func ParseArgs(fc genai.FunctionCall, v any) error {
	paramsJSON, err := json.Marshal(fc.Args)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal function arguments", goerr.V("name", fc.Name))
	}

	if err := json.Unmarshal(paramsJSON, v); err != nil {
		return goerr.Wrap(err, "failed to parse input parameters", goerr.V("name", fc.Name))
	}
	return nil
}
