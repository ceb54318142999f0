// Package contentrt serves the content GraphQL schema from a content store.
//
// Entries, collections and breadcrumb records are returned to the executor as
// their Go values and projected field by field in ResolveSync. Fields marked
// @resolver (root lookups and Entry.breadcrumbs) are resolved in
// BatchResolveAsync, one batch per depth, with every task of a batch running
// concurrently.
package contentrt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	breadcrumb "github.com/hanpama/crumbgraph/internal/breadcrumb"
	content "github.com/hanpama/crumbgraph/internal/content"
	executor "github.com/hanpama/crumbgraph/internal/executor"
	language "github.com/hanpama/crumbgraph/internal/language"
	schema "github.com/hanpama/crumbgraph/internal/schema"
	"github.com/sourcegraph/conc/pool"
)

//go:embed schema.graphql
var SDL string

// SchemaName is the source name reported in schema errors.
const SchemaName = "content.graphql"

// Schema builds the executable and validation schemas from SDL.
func Schema() (*schema.Schema, *language.Schema, error) {
	return schema.BuildFromSDL(SchemaName, SDL)
}

// Type and argument names of the content schema.
const (
	TypeQuery      = "Query"
	TypeEntry      = "Entry"
	TypeCollection = "Collection"
	TypeBreadcrumb = "Breadcrumb"

	ArgNavigation    = "use_navigation_structure"
	ArgFullMountPath = "get_full_path_of_mount_page"
)

// DefaultConcurrency bounds the goroutines used per async batch.
const DefaultConcurrency = 8

// Runtime implements executor.Runtime over a content.Catalog.
// Sources handed back by the executor are always values this runtime
// produced: *content.Entry, *content.Collection or breadcrumb.Record.
type Runtime struct {
	store         content.Catalog
	crumbs        *breadcrumb.Resolver
	defaultLocale string
	concurrency   int
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithDefaultLocale sets the locale used by entryByUrl when neither the
// argument nor the request context names one.
func WithDefaultLocale(locale string) Option {
	return func(r *Runtime) {
		if locale != "" {
			r.defaultLocale = locale
		}
	}
}

// WithBreadcrumbResolver replaces the resolver built from the store.
func WithBreadcrumbResolver(b *breadcrumb.Resolver) Option {
	return func(r *Runtime) {
		if b != nil {
			r.crumbs = b
		}
	}
}

// WithConcurrency bounds the goroutines used per async batch. Values below 1
// run batches sequentially.
func WithConcurrency(n int) Option {
	return func(r *Runtime) { r.concurrency = max(n, 1) }
}

func New(store content.Catalog, opts ...Option) *Runtime {
	r := &Runtime{
		store:         store,
		defaultLocale: content.DefaultLocale,
		concurrency:   DefaultConcurrency,
	}
	for _, o := range opts {
		o(r)
	}
	if r.crumbs == nil {
		r.crumbs = breadcrumb.NewResolver(store)
	}
	return r
}

// ResolveSync projects plain fields of entries, collections and breadcrumb
// records. It never reads the store. Empty strings are returned as null.
func (r *Runtime) ResolveSync(_ context.Context, objectType string, field string, source any, _ map[string]any) (any, error) {
	switch v := source.(type) {
	case *content.Entry:
		return entryField(v, field)
	case *content.Collection:
		switch field {
		case "handle":
			return v.Handle, nil
		case "title":
			return nullable(v.Title), nil
		}
	case breadcrumb.Record:
		return recordField(v, field)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("cannot resolve %s.%s on %T", objectType, field, source)
}

func entryField(e *content.Entry, field string) (any, error) {
	switch field {
	case "id":
		return e.ID, nil
	case "title":
		return e.Title, nil
	case "slug":
		return nullable(e.Slug), nil
	case "url":
		return nullable(e.URL), nil
	case "permalink":
		return nullable(e.Permalink), nil
	case "locale":
		return e.Locale, nil
	case "blueprint":
		return nullable(e.Blueprint), nil
	case "collection":
		if e.Collection == nil {
			return nil, nil
		}
		return e.Collection, nil
	case "parent":
		if e.Parent == nil {
			return nil, nil
		}
		return e.Parent, nil
	}
	return nil, fmt.Errorf("unknown entry field %q", field)
}

func recordField(b breadcrumb.Record, field string) (any, error) {
	switch field {
	case "id":
		return nullable(b.ID), nil
	case "title":
		return b.Title, nil
	case "slug":
		return nullable(b.Slug), nil
	case "url":
		return nullable(b.URL), nil
	case "permalink":
		return nullable(b.Permalink), nil
	case "blueprint":
		return nullable(b.Blueprint), nil
	}
	return nil, fmt.Errorf("unknown breadcrumb field %q", field)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// BatchResolveAsync resolves root lookups and breadcrumb trails. Tasks run
// concurrently up to the configured bound; results keep task order and fail
// independently.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 1 || r.concurrency == 1 {
		for i, t := range tasks {
			results[i] = r.resolveAsync(ctx, t)
		}
		return results
	}
	p := pool.New().WithMaxGoroutines(r.concurrency)
	for i, t := range tasks {
		p.Go(func() { results[i] = r.resolveAsync(ctx, t) })
	}
	p.Wait()
	return results
}

func (r *Runtime) resolveAsync(ctx context.Context, t executor.AsyncResolveTask) executor.AsyncResolveResult {
	v, err := r.dispatch(ctx, t)
	if err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	return executor.AsyncResolveResult{Value: v}
}

func (r *Runtime) dispatch(ctx context.Context, t executor.AsyncResolveTask) (any, error) {
	switch t.ObjectType + "." + t.Field {
	case "Query.entry":
		return found(r.store.Entry(ctx, stringArg(t.Args, "id")))
	case "Query.entryByUrl":
		return found(r.store.EntryByURL(ctx, stringArg(t.Args, "url"), r.locale(ctx, t.Args)))
	case "Query.entries":
		return r.store.Entries(ctx, content.EntryFilter{
			Collection: stringArg(t.Args, "collection"),
			Locale:     stringArg(t.Args, "locale"),
		})
	case "Entry.breadcrumbs":
		e, ok := t.Source.(*content.Entry)
		if !ok {
			return nil, fmt.Errorf("breadcrumbs: source must be *content.Entry, got %T", t.Source)
		}
		full, _ := t.Args[ArgFullMountPath].(bool)
		trail, err := r.crumbs.Breadcrumbs(ctx, e, breadcrumb.Options{
			NavigationStructure: stringArg(t.Args, ArgNavigation),
			FullMountPath:       full,
		})
		if err != nil {
			return nil, err
		}
		return trail, nil
	}
	return nil, fmt.Errorf("no resolver for %s.%s", t.ObjectType, t.Field)
}

// locale picks the explicit argument, then the request locale, then the
// default locale.
func (r *Runtime) locale(ctx context.Context, args map[string]any) string {
	if l := stringArg(args, "locale"); l != "" {
		return l
	}
	if l, ok := content.LocaleFromContext(ctx); ok {
		return l
	}
	return r.defaultLocale
}

// found maps a missing entry to null.
func found(e *content.Entry, err error) (any, error) {
	if errors.Is(err, content.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// ResolveType maps entries to the single concrete Entry type.
func (r *Runtime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if _, ok := value.(*content.Entry); ok {
		return TypeEntry, nil
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s for %T", abstractType, value)
}

// SerializeLeafValue passes built-in scalar values through after checking
// their Go type.
func (r *Runtime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "String", "ID":
		if s, ok := value.(string); ok {
			return s, nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case "Int":
		if i, ok := value.(int); ok {
			return i, nil
		}
	case "Float":
		if f, ok := value.(float64); ok {
			return f, nil
		}
	default:
		return value, nil
	}
	return nil, fmt.Errorf("cannot serialize %T as %s", value, typeName)
}
