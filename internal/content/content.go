// Package content models the read-only slice of a content platform that
// breadcrumb resolution consumes: entries, collections with optional mount
// entries, and locale-partitioned navigation structures.
package content

import (
	"context"
	"errors"
)

var (
	ErrEntryNotFound     = errors.New("entry not found")
	ErrStructureNotFound = errors.New("navigation structure not found")
)

// Entry is a single content item. Parent, Collection and Origin are
// non-owning references into the store that produced the entry.
type Entry struct {
	ID        string
	Title     string
	Slug      string
	URL       string
	Permalink string
	Locale    string
	Blueprint string

	Parent     *Entry
	Collection *Collection

	// Origin is the entry this one localizes, nil for origin entries.
	Origin *Entry
	// Localizations holds every locale variant of the origin entry,
	// including the origin itself. Shared by all variants.
	Localizations map[string]*Entry
}

// In returns the variant of e in locale, or nil when the entry has not been
// localized into it.
func (e *Entry) In(locale string) *Entry {
	if e == nil {
		return nil
	}
	if e.Locale == locale {
		return e
	}
	return e.Localizations[locale]
}

// Collection groups entries. Mount, when set, is the entry under which the
// collection's entries conceptually live.
type Collection struct {
	Handle string
	Title  string
	Mount  *Entry
}

// MountIn returns the mount entry localized to locale. It returns nil when the
// collection declares no mount or the mount has no variant in locale.
func (c *Collection) MountIn(locale string) *Entry {
	if c == nil || c.Mount == nil {
		return nil
	}
	return c.Mount.In(locale)
}

// NodeKind tags the two shapes a navigation node can take.
type NodeKind int

const (
	// NodeEntry references an Entry by id.
	NodeEntry NodeKind = iota
	// NodeLink is a standalone labeled link with no backing entry.
	NodeLink
)

func (k NodeKind) String() string {
	switch k {
	case NodeEntry:
		return "entry"
	case NodeLink:
		return "link"
	default:
		return "unknown"
	}
}

// NavNode is a node in a navigation tree.
type NavNode struct {
	// ID is the node's own identifier inside the structure.
	ID      string
	Kind    NodeKind
	EntryID string
	Title   string
	URL     string

	Children []NavNode
}

// Matches reports whether the node stands for id, either as the referenced
// entry or through its own node id.
func (n *NavNode) Matches(id string) bool {
	if n.Kind == NodeEntry && n.EntryID == id {
		return true
	}
	return n.ID != "" && n.ID == id
}

// Structure is a named navigation with one tree per locale.
type Structure struct {
	Handle string
	Title  string
	Trees  map[string][]NavNode
}

// In returns the tree for locale; absent locales yield an empty tree.
func (s *Structure) In(locale string) []NavNode {
	if s == nil {
		return nil
	}
	return s.Trees[locale]
}

// Store is the lookup surface the breadcrumb resolver needs from the
// surrounding platform. Lookups are cheap point reads.
type Store interface {
	// Entry returns ErrEntryNotFound when id is unknown.
	Entry(ctx context.Context, id string) (*Entry, error)
	// EntryByURL returns ErrEntryNotFound when no entry in locale has url.
	EntryByURL(ctx context.Context, url, locale string) (*Entry, error)
	// Structure returns ErrStructureNotFound when handle is unknown.
	Structure(ctx context.Context, handle string) (*Structure, error)
}

// EntryFilter narrows Catalog.Entries. Empty fields match everything.
type EntryFilter struct {
	Collection string
	Locale     string
}

// Catalog is a Store that can also enumerate entries.
type Catalog interface {
	Store
	Entries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
}
