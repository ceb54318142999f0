package breadcrumb_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	breadcrumb "github.com/hanpama/crumbgraph/internal/breadcrumb"
	content "github.com/hanpama/crumbgraph/internal/content"
	"github.com/stretchr/testify/require"
)

func TestFindInTreeReturnsSingleChildChain(t *testing.T) {
	tree := mainTree()
	got := breadcrumb.FindInTree(tree, "a")

	want := &content.NavNode{ID: "n1", Kind: content.NodeEntry, EntryID: "home", Children: []content.NavNode{
		{ID: "n2", Kind: content.NodeEntry, EntryID: "section", Children: []content.NavNode{
			{ID: "n3", Kind: content.NodeLink, Title: "External", URL: "https://example.com", Children: []content.NavNode{
				{ID: "n4", Kind: content.NodeEntry, EntryID: "blog", Children: []content.NavNode{
					{ID: "n5", Kind: content.NodeEntry, EntryID: "a"},
				}},
			}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("branch mismatch (-want +got):\n%s", diff)
	}
}

func TestFindInTreeMissingAndIdempotent(t *testing.T) {
	tree := mainTree()
	require.Nil(t, breadcrumb.FindInTree(tree, "nowhere"))
	require.Nil(t, breadcrumb.FindInTree(nil, "a"))

	first := breadcrumb.FindInTree(tree, "b")
	second := breadcrumb.FindInTree(tree, "b")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second search differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(mainTree(), tree); diff != "" {
		t.Fatalf("search mutated the tree (-want +got):\n%s", diff)
	}
}

func TestFindInTreeFirstMatchWins(t *testing.T) {
	tree := []content.NavNode{
		{ID: "x", Kind: content.NodeLink, Title: "X", Children: []content.NavNode{
			{ID: "first", Kind: content.NodeEntry, EntryID: "dup"},
		}},
		{ID: "second", Kind: content.NodeEntry, EntryID: "dup"},
	}
	got := breadcrumb.FindInTree(tree, "dup")
	require.NotNil(t, got)
	require.Equal(t, "x", got.ID)
	require.Equal(t, "first", got.Children[0].ID)
}

// Nodes also match on their own id, so a trail can end on a link node.
func TestFindInTreeMatchesNodeID(t *testing.T) {
	got := breadcrumb.FlattenBranch(breadcrumb.FindInTree(mainTree(), "n3"))
	want := []breadcrumb.Descriptor{
		{Kind: content.NodeEntry, EntryID: "home"},
		{Kind: content.NodeEntry, EntryID: "section"},
		{Kind: content.NodeLink, Title: "External", URL: "https://example.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("descriptors mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenBranchLength(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"home", 1},
		{"section", 2},
		{"n7", 2},
		{"blog", 4},
		{"b", 6},
		{"nowhere", 0},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			got := breadcrumb.FlattenBranch(breadcrumb.FindInTree(mainTree(), tc.target))
			require.Len(t, got, tc.want)
		})
	}
}
