package executor

import (
	"context"
)

// Runtime is the host integration surface used by the Executor.
//
// objectType is the GraphQL type name owning the field ("Query" for root
// fields), source is the parent value (the initial value for root fields) and
// args holds coerced argument values including defaults. Implementations must
// not mutate source or args and must be safe for concurrent use by separate
// operations.
type Runtime interface {
	// ResolveSync projects a field from its parent value. It is called only
	// for fields with Async == false. Return (nil, nil) for GraphQL null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves every resolver-backed field queued at one
	// depth. It must return exactly one result per task, in task order;
	// a failure in one element does not affect the others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the concrete object type of a value returned for an
	// interface or union position.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue converts a scalar or enum value into a JSON-safe
	// value. Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element.
	Error error
}
