package breadcrumb

import (
	"slices"

	content "github.com/hanpama/crumbgraph/internal/content"
)

// CollectionPath walks the parent chain of e and returns it root first,
// e last. Parent chains are acyclic; the content loader rejects cycles.
func CollectionPath(e *content.Entry) []Record {
	var out []Record
	for p := e; p != nil; p = p.Parent {
		out = append(out, recordFor(p))
	}
	slices.Reverse(out)
	return out
}

// ApplyMount splices the mount entry of e's collection, localized to e's
// locale, in front of path. Without a mount path is returned unchanged.
// With full set the mount's whole collection path is prepended; otherwise
// only its top-level ancestor followed by the mount itself, so a top-level
// mount appears twice.
func ApplyMount(e *content.Entry, path []Record, full bool) []Record {
	mount := e.Collection.MountIn(e.Locale)
	if mount == nil {
		return path
	}
	mountPath := CollectionPath(mount)
	if full {
		return append(mountPath, path...)
	}
	return append([]Record{mountPath[0], recordFor(mount)}, path...)
}
