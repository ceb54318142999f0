package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
directive @resolver on FIELD_DEFINITION

type Query {
  a: String @resolver
  b(n: Int = 3): [Item!]!
}

interface Node {
  id: ID!
}

type Item implements Node {
  id: ID!
  name: String @deprecated(reason: "use title")
}
`

func TestBuildFromSDL(t *testing.T) {
	s, src, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	require.NotNil(t, src)

	require.Equal(t, "Query", s.QueryType)
	query := s.GetQueryType()
	require.NotNil(t, query)

	got := map[string]bool{}
	for _, f := range query.Fields {
		got[f.Name] = f.Async
	}
	want := map[string]bool{"a": true, "b": false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("async flags mismatch (-want +got):\n%s", diff)
	}

	b := query.Field("b")
	require.NotNil(t, b)
	require.Equal(t, "[Item!]!", renderTypeRef(b.Type))
	require.Equal(t, int64(3), b.Argument("n").DefaultValue)

	require.True(t, s.IsPossibleType("Node", "Item"))
	require.False(t, s.IsPossibleType("Node", "Query"))
	require.Same(t, stringType, s.Types["String"])
	require.NotContains(t, s.Types, "__Schema")
	require.NotContains(t, s.Directives, ResolverDirective)
	require.Nil(t, query.Field("__schema"))
}

func TestBuildFromSDLInvalid(t *testing.T) {
	_, _, err := BuildFromSDL("bad.graphql", `type Query { a: Missing }`)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	s, _, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)

	want := `type Item implements Node {
  id: ID!
  name: String @deprecated(reason: "use title")
}

interface Node {
  id: ID!
}

type Query {
  a: String
  b(n: Int = 3): [Item!]!
}
`
	if diff := cmp.Diff(want, Render(s)); diff != "" {
		t.Errorf("rendered SDL mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderValueSortsObjectKeys(t *testing.T) {
	got := renderValue(map[string]any{"b": 1, "a": []any{"x", true}})
	require.Equal(t, `{a: ["x", true], b: 1}`, got)
}
