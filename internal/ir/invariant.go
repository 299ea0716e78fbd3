package ir

import (
	"fmt"
	"sort"
	"strings"
)

// InvariantError reports a broken internal invariant in a build stage. It
// always points at a defect in an earlier stage, never at user input.
type InvariantError struct {
	Stage   string
	Message string
	Attrs   map[string]string
}

// NewInvariantError builds an InvariantError; attrs are key/value pairs.
func NewInvariantError(stage, message string, attrs ...string) *InvariantError {
	e := &InvariantError{Stage: stage, Message: message}
	if len(attrs) > 0 {
		e.Attrs = make(map[string]string, len(attrs)/2)
		for i := 0; i+1 < len(attrs); i += 2 {
			e.Attrs[attrs[i]] = attrs[i+1]
		}
	}
	return e
}

func (e *InvariantError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: invariant violated: %s", e.Stage, e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%s", k, e.Attrs[k])
	}
	return sb.String()
}
