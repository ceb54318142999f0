package content

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	eventbus "github.com/hanpama/crumbgraph/internal/eventbus"
	events "github.com/hanpama/crumbgraph/internal/events"
	"go.uber.org/multierr"
)

// Lookup kinds reported through events.ContentLookup.
const (
	LookupEntry     = "entry"
	LookupURL       = "url"
	LookupStructure = "structure"
)

type urlKey struct {
	url    string
	locale string
}

// MemoryStore is an in-process Catalog. Populate it before serving; reads
// are safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []*Entry
	byURL       map[urlKey]*Entry
	collections map[string]*Collection
	structures  map[string]*Structure
}

var _ Catalog = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*Entry),
		byURL:       make(map[urlKey]*Entry),
		collections: make(map[string]*Collection),
		structures:  make(map[string]*Structure),
	}
}

// AddCollection registers c, replacing any collection with the same handle.
func (s *MemoryStore) AddCollection(c *Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[c.Handle] = c
}

// Collection returns the collection registered under handle, or nil.
func (s *MemoryStore) Collection(handle string) *Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[handle]
}

// AddEntry registers e. The first entry registered for a (url, locale) pair
// answers EntryByURL for that pair.
func (s *MemoryStore) AddEntry(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[e.ID]; dup {
		return fmt.Errorf("entry %q already registered", e.ID)
	}
	s.entries[e.ID] = e
	s.order = append(s.order, e)
	if e.URL != "" {
		k := urlKey{url: e.URL, locale: e.Locale}
		if _, taken := s.byURL[k]; !taken {
			s.byURL[k] = e
		}
	}
	return nil
}

// AddStructure registers st, replacing any structure with the same handle.
func (s *MemoryStore) AddStructure(st *Structure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.structures[st.Handle] = st
}

func (s *MemoryStore) Entry(ctx context.Context, id string) (*Entry, error) {
	start := time.Now()
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	publishLookup(ctx, LookupEntry, id, ok, start)
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", id, ErrEntryNotFound)
	}
	return e, nil
}

func (s *MemoryStore) EntryByURL(ctx context.Context, url, locale string) (*Entry, error) {
	start := time.Now()
	s.mu.RLock()
	e, ok := s.byURL[urlKey{url: url, locale: locale}]
	s.mu.RUnlock()
	publishLookup(ctx, LookupURL, locale+":"+url, ok, start)
	if !ok {
		return nil, fmt.Errorf("entry at %q in locale %q: %w", url, locale, ErrEntryNotFound)
	}
	return e, nil
}

func (s *MemoryStore) Structure(ctx context.Context, handle string) (*Structure, error) {
	start := time.Now()
	s.mu.RLock()
	st, ok := s.structures[handle]
	s.mu.RUnlock()
	publishLookup(ctx, LookupStructure, handle, ok, start)
	if !ok {
		return nil, fmt.Errorf("structure %q: %w", handle, ErrStructureNotFound)
	}
	return st, nil
}

// Entries returns matching entries in registration order.
func (s *MemoryStore) Entries(ctx context.Context, filter EntryFilter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.order))
	for _, e := range s.order {
		if filter.Locale != "" && e.Locale != filter.Locale {
			continue
		}
		if filter.Collection != "" && (e.Collection == nil || e.Collection.Handle != filter.Collection) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Structures returns every registered structure ordered by handle.
func (s *MemoryStore) Structures() []*Structure {
	s.mu.RLock()
	out := make([]*Structure, 0, len(s.structures))
	for _, st := range s.structures {
		out = append(out, st)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Structure) int { return cmp.Compare(a.Handle, b.Handle) })
	return out
}

// CheckNavigation reports every navigation node that references an entry the
// store does not hold. Such nodes fail breadcrumb resolution at request time.
func (s *MemoryStore) CheckNavigation() error {
	var err error
	for _, st := range s.Structures() {
		locales := make([]string, 0, len(st.Trees))
		for l := range st.Trees {
			locales = append(locales, l)
		}
		slices.Sort(locales)
		for _, l := range locales {
			s.walk(st.Trees[l], func(n *NavNode) {
				if n.Kind != NodeEntry {
					return
				}
				s.mu.RLock()
				_, ok := s.entries[n.EntryID]
				s.mu.RUnlock()
				if !ok {
					err = multierr.Append(err, fmt.Errorf("navigation %q (%s): node %q references unknown entry %q", st.Handle, l, n.ID, n.EntryID))
				}
			})
		}
	}
	return err
}

func (s *MemoryStore) walk(nodes []NavNode, fn func(*NavNode)) {
	for i := range nodes {
		fn(&nodes[i])
		s.walk(nodes[i].Children, fn)
	}
}

func publishLookup(ctx context.Context, kind, key string, found bool, start time.Time) {
	eventbus.Publish(ctx, events.ContentLookup{
		Kind:     kind,
		Key:      key,
		Found:    found,
		Duration: time.Since(start),
	})
}
