package breadcrumb_test

import (
	"context"
	"testing"

	breadcrumb "github.com/hanpama/crumbgraph/internal/breadcrumb"
	content "github.com/hanpama/crumbgraph/internal/content"
	"github.com/stretchr/testify/require"
)

// site is a small content graph:
//
//	pages: home (/) > section > blog
//	blog (mounted at pages/blog): a > b > current
//	news (mounted at home): story
//	blog (de): a-de, without homepage or mount variant
type site struct {
	store   *content.MemoryStore
	entries map[string]*content.Entry
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{store: content.NewMemoryStore(), entries: map[string]*content.Entry{}}

	pages := &content.Collection{Handle: "pages", Title: "Pages"}
	blog := &content.Collection{Handle: "blog", Title: "Blog"}
	news := &content.Collection{Handle: "news", Title: "News"}

	s.add(t, "home", "Home", "/", "en", nil, pages)
	s.add(t, "section", "Section", "/section", "en", s.entries["home"], pages)
	s.add(t, "blog", "Blog", "/section/blog", "en", s.entries["section"], pages)
	s.add(t, "a", "A", "/section/blog/a", "en", nil, blog)
	s.add(t, "b", "B", "/section/blog/a/b", "en", s.entries["a"], blog)
	s.add(t, "current", "Current", "/section/blog/a/b/current", "en", s.entries["b"], blog)
	s.add(t, "story", "Story", "/story", "en", nil, news)
	s.add(t, "a-de", "A (de)", "/de/a", "de", nil, blog)

	blog.Mount = s.entries["blog"]
	news.Mount = s.entries["home"]
	for _, c := range []*content.Collection{pages, blog, news} {
		s.store.AddCollection(c)
	}

	s.store.AddStructure(&content.Structure{
		Handle: "main",
		Title:  "Main",
		Trees: map[string][]content.NavNode{
			"en": mainTree(),
			"de": {{ID: "d1", Kind: content.NodeEntry, EntryID: "a-de"}},
		},
	})
	s.store.AddStructure(&content.Structure{
		Handle: "broken",
		Trees: map[string][]content.NavNode{
			"en": {{ID: "g1", Kind: content.NodeEntry, EntryID: "ghost", Children: []content.NavNode{
				{ID: "g2", Kind: content.NodeEntry, EntryID: "a"},
			}}},
		},
	})
	return s
}

// mainTree returns a fresh copy of the English main navigation.
func mainTree() []content.NavNode {
	return []content.NavNode{
		{ID: "n1", Kind: content.NodeEntry, EntryID: "home", Children: []content.NavNode{
			{ID: "n2", Kind: content.NodeEntry, EntryID: "section", Children: []content.NavNode{
				{ID: "n3", Kind: content.NodeLink, Title: "External", URL: "https://example.com", Children: []content.NavNode{
					{ID: "n4", Kind: content.NodeEntry, EntryID: "blog", Children: []content.NavNode{
						{ID: "n5", Kind: content.NodeEntry, EntryID: "a", Children: []content.NavNode{
							{ID: "n6", Kind: content.NodeEntry, EntryID: "b"},
						}},
					}},
				}},
			}},
			{ID: "n7", Kind: content.NodeLink, Title: "Contact", URL: "/contact"},
		}},
	}
}

func (s *site) add(t *testing.T, id, title, url, locale string, parent *content.Entry, c *content.Collection) {
	t.Helper()
	e := &content.Entry{
		ID:         id,
		Title:      title,
		Slug:       id,
		URL:        url,
		Permalink:  "https://example.com" + url,
		Locale:     locale,
		Blueprint:  "page",
		Parent:     parent,
		Collection: c,
	}
	require.NoError(t, s.store.AddEntry(e))
	s.entries[id] = e
}

func ids(records []breadcrumb.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		switch {
		case r.ID != "":
			out[i] = r.ID
		case r.Entry != nil:
			out[i] = "~" + r.Entry.ID
		default:
			out[i] = "link:" + r.Title
		}
	}
	return out
}

// countingStore counts homepage lookups.
type countingStore struct {
	content.Store
	byURL int
}

func (c *countingStore) EntryByURL(ctx context.Context, url, locale string) (*content.Entry, error) {
	c.byURL++
	return c.Store.EntryByURL(ctx, url, locale)
}
