package executor

import (
	"strconv"
	"strings"
)

// Path addresses a position in the response: field names are strings and
// list indices are ints.
type Path []any

func (p Path) with(elem any) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// String renders p as "a.b[0].c".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is a field error located by response path and, when known,
// by source position.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult is the outcome of one operation. Data is nil when the
// operation could not start or a Non-Null root field was nulled.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
