// Package breadcrumb computes the ancestor trail of a content entry, either
// from a curated navigation structure or from the entry's own collection
// hierarchy with the collection's mount entry spliced in front.
package breadcrumb

import (
	"context"
	"errors"
	"time"

	content "github.com/hanpama/crumbgraph/internal/content"
	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	"go.uber.org/zap"
)

// ErrDanglingReference is returned when a navigation node references an
// entry the store cannot find. The whole trail fails; no partial trail is
// ever returned.
var ErrDanglingReference = errors.New("navigation references a missing entry")

// Strategies reported in events.BreadcrumbFinish.
const (
	StrategyNavigation = "navigation"
	StrategyCollection = "collection"
)

// Record is one breadcrumb. Empty strings stand for null; Title is always
// set. Entry points back at the source entry and is nil for navigation-only
// links.
type Record struct {
	ID        string
	Title     string
	Slug      string
	URL       string
	Permalink string
	Blueprint string

	Entry *content.Entry
}

func recordFor(e *content.Entry) Record {
	return Record{
		ID:        e.ID,
		Title:     e.Title,
		Slug:      e.Slug,
		URL:       e.URL,
		Permalink: e.Permalink,
		Blueprint: e.Blueprint,
		Entry:     e,
	}
}

// Options select the sourcing strategy.
type Options struct {
	// NavigationStructure is the handle of a navigation structure to search
	// before falling back to the collection hierarchy.
	NavigationStructure string
	// FullMountPath prepends the mount entry's whole ancestry instead of
	// its top-level ancestor and the mount itself.
	FullMountPath bool
}

// Resolver computes breadcrumb trails against a content store.
type Resolver struct {
	store  content.Store
	logger *zap.Logger
}

type Option func(*Resolver)

// WithLogger sets the sink for recoverable resolution problems such as an
// unknown navigation handle.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResolver(store content.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Breadcrumbs returns the trail for e, outermost first.
//
// With a navigation handle the entry is located in that structure's tree for
// the entry's locale; a non-empty result wins outright. An unknown handle is
// logged and, like a missing match, falls back to the collection strategy:
// the parent chain of e, with the collection's mount spliced in front.
func (r *Resolver) Breadcrumbs(ctx context.Context, e *content.Entry, opts Options) (trail []Record, err error) {
	if e == nil {
		return nil, nil
	}
	start := time.Now()
	strategy, fallback := StrategyCollection, false
	eventbus.Publish(ctx, events.BreadcrumbStart{EntryID: e.ID, Locale: e.Locale, Navigation: opts.NavigationStructure})
	defer func() {
		eventbus.Publish(ctx, events.BreadcrumbFinish{
			EntryID:  e.ID,
			Strategy: strategy,
			Fallback: fallback,
			Count:    len(trail),
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	if opts.NavigationStructure != "" {
		strategy = StrategyNavigation
		trail, err = r.fromNavigation(ctx, e, opts.NavigationStructure)
		if err != nil {
			return nil, err
		}
		if len(trail) > 0 {
			return trail, nil
		}
		strategy, fallback = StrategyCollection, true
	}
	return ApplyMount(e, CollectionPath(e), opts.FullMountPath), nil
}

func (r *Resolver) fromNavigation(ctx context.Context, e *content.Entry, handle string) ([]Record, error) {
	st, err := r.store.Structure(ctx, handle)
	if errors.Is(err, content.ErrStructureNotFound) {
		r.logger.Error("navigation not found, falling back to collection tree",
			zap.String("navigation", handle),
			zap.String("entry", e.ID),
			zap.String("locale", e.Locale),
		)
		eventbus.Publish(ctx, events.NavigationMissing{Handle: handle, Locale: e.Locale})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	branch := FindInTree(st.In(e.Locale), e.ID)
	return r.hydrate(ctx, FlattenBranch(branch), e.Locale)
}
