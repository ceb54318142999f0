// Package reqid carries a per-request identifier through context so that
// event subscribers can correlate start and finish events.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent with a freshly generated request ID
// (UUID v7, so ids sort by creation time) and the ID itself.
func NewContext(parent context.Context) (context.Context, string) {
	id := newID()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
