package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single field value for MockRuntime.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// NewMockFieldResolver projects key from a map[string]any source.
func NewMockFieldResolver(key string) MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		if m, ok := source.(map[string]any); ok {
			return m[key], nil
		}
		return nil, nil
	}
}

// Call records one resolved field. Async calls of the same batch share a
// BatchID starting at 1; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Args       map[string]any
	BatchID    int
}

// MockRuntime dispatches to resolvers keyed "ObjectType.field" and logs
// every call. Missing resolvers yield null. Abstract values resolve through
// their "__typename" key.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batches   int
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

func (m *MockRuntime) resolve(ctx context.Context, kind string, batch int, objectType, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.calls = append(m.calls, Call{Kind: kind, ObjectType: objectType, Field: field, Args: args, BatchID: batch})
	m.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return m.resolve(ctx, CallKindSync, 0, objectType, field, source, args)
}

func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	m.mu.Lock()
	m.batches++
	batch := m.batches
	m.mu.Unlock()

	out := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		v, err := m.resolve(ctx, CallKindAsync, batch, t.ObjectType, t.Field, t.Source, t.Args)
		out[i] = AsyncResolveResult{Value: v, Error: err}
	}
	return out
}

func (m *MockRuntime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if v, ok := value.(map[string]any); ok {
		if name, ok := v["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s", abstractType)
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Batches reports how many times BatchResolveAsync was called.
func (m *MockRuntime) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}
