package types

import "strings"

// Event is a typed record emitted by a committed transaction. Type is written
// "<module>.<action>".
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Module returns the part of the type before the first dot.
func (e Event) Module() string {
	module, _, _ := strings.Cut(e.Type, ".")
	return module
}

// Matches reports whether the event type equals filter or, when filter ends
// in ".", starts with it.
func (e Event) Matches(filter string) bool {
	if strings.HasSuffix(filter, ".") {
		return strings.HasPrefix(e.Type, filter)
	}
	return e.Type == filter
}
