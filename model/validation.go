package model

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError maps field names to the problems found with their values.
// The empty field name holds errors that concern the payload as a whole.
type ValidationError map[string][]string

// Add records a problem for a field.
func (e ValidationError) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// HasErrors reports whether any problem was recorded.
func (e ValidationError) HasErrors() bool { return len(e) > 0 }

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f
		if name == "" {
			name = "payload"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e[f], "; ")))
	}

	return "invalid data: " + strings.Join(parts, ", ")
}
