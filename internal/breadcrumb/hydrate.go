package breadcrumb

import (
	"context"
	"errors"
	"fmt"
	"slices"

	content "github.com/hanpama/crumbgraph/internal/content"
)

// HomepageURL is the url of the entry prepended to navigation trails.
const HomepageURL = "/"

// hydrate resolves descriptors into records. Entry references must resolve;
// links become records without id, slug or blueprint whose permalink is the
// link url. A non-empty trail gets the locale's homepage prepended without
// its id, even when the homepage already appears in it.
func (r *Resolver) hydrate(ctx context.Context, descs []Descriptor, locale string) ([]Record, error) {
	if len(descs) == 0 {
		return nil, nil
	}
	out := make([]Record, 0, len(descs)+1)
	for _, d := range descs {
		if d.Kind != content.NodeEntry {
			out = append(out, Record{Title: d.Title, URL: d.URL, Permalink: d.URL})
			continue
		}
		e, err := r.store.Entry(ctx, d.EntryID)
		if errors.Is(err, content.ErrEntryNotFound) {
			return nil, fmt.Errorf("%w %q: %w", ErrDanglingReference, d.EntryID, err)
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate entry %q: %w", d.EntryID, err)
		}
		out = append(out, recordFor(e))
	}

	home, err := r.store.EntryByURL(ctx, HomepageURL, locale)
	if err != nil && !errors.Is(err, content.ErrEntryNotFound) {
		return nil, fmt.Errorf("homepage lookup: %w", err)
	}
	if home != nil {
		crumb := recordFor(home)
		crumb.ID = ""
		out = slices.Insert(out, 0, crumb)
	}
	return out, nil
}
