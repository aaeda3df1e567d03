package interp

import (
	"fmt"
	"strings"
)

// Entry kinds reported by the inspector.
const (
	KindFunction = "function"
	KindCallable = "callable"
	KindVariable = "variable"
)

// EmptyMessage is the listing of a namespace with no user-visible names.
const EmptyMessage = "No variables defined."

// Entry is one user-visible name in the namespace.
type Entry struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Describe renders entries one per line. Variable values longer than
// limit characters are cut and marked with "...".
func Describe(entries []Entry, limit int) string {
	if len(entries) == 0 {
		return EmptyMessage
	}
	if limit <= 0 {
		limit = DefaultValueLimit
	}

	var b strings.Builder
	b.WriteString("Defined variables:")
	for _, e := range entries {
		b.WriteString("\n  ")
		switch {
		case e.Error != "":
			fmt.Fprintf(&b, "%s: <error: %s>", e.Name, e.Error)
		case e.Kind == KindFunction || e.Kind == KindCallable:
			fmt.Fprintf(&b, "%s: %s", e.Name, e.Kind)
		default:
			fmt.Fprintf(&b, "%s: %s = %s", e.Name, e.Type, truncate(e.Value, limit))
		}
	}
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
