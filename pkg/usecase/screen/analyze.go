package screen

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/m-mizutani/t3rn/pkg/model"
)

// Analyze extracts the screen name and a flat field set from a client payload. The screen name
// is screenData.Screen. Fields are the scalar root values, then every scalar of
// screenData.ScreensData.<presenter> both as "<presenter>.<field>" and as "<field>". An
// unprefixed name already taken is not overwritten.
func Analyze(payload model.ScreenPayload) model.ScreenContext {
	sc := model.ScreenContext{Fields: map[string]string{}}
	if payload == nil {
		return sc
	}

	screenData, ok := payload["screenData"].(map[string]any)
	if !ok {
		return sc
	}
	if name, ok := screenData["Screen"].(string); ok {
		sc.Screen = name
	}

	for key, value := range payload {
		if key == "screenData" {
			continue
		}
		if s, ok := scalar(value); ok {
			sc.Fields[key] = s
		}
	}

	screensData, _ := screenData["ScreensData"].(map[string]any)
	presenters := make([]string, 0, len(screensData))
	for name := range screensData {
		presenters = append(presenters, name)
	}
	sort.Strings(presenters)

	for _, presenter := range presenters {
		data, ok := screensData[presenter].(map[string]any)
		if !ok {
			continue
		}
		for field, value := range data {
			s, ok := scalar(value)
			if !ok {
				continue
			}
			sc.Fields[presenter+"."+field] = s
			if _, exists := sc.Fields[field]; !exists {
				sc.Fields[field] = s
			}
		}
	}

	return sc
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return fmt.Sprint(x), true
	default:
		return "", false
	}
}
