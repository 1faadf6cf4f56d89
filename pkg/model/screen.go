package model

// ScreenPayload is the raw game-state document sent by the client. The screen name lives at
// screenData.Screen and per-presenter data under ScreensData.<presenter>.
type ScreenPayload map[string]any

// ScreenContext is the flattened view of a ScreenPayload
type ScreenContext struct {
	Screen string
	Fields map[string]string
}

// HasField reports whether the field is present with a non-empty value
func (x ScreenContext) HasField(name string) bool {
	v, ok := x.Fields[name]
	return ok && v != ""
}
