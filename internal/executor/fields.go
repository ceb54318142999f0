package executor

import (
	language "github.com/hanpama/crumbgraph/internal/language"
	schema "github.com/hanpama/crumbgraph/internal/schema"
)

// collectedField groups the AST nodes sharing one response name, in the
// order the name first appears in the query.
type collectedField struct {
	responseName string
	nodes        []*language.Field
}

func (ex *execution) collectFields(objectType *schema.Type, selections language.SelectionSet) []collectedField {
	var out []collectedField
	index := make(map[string]int)
	visited := make(map[string]bool)

	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *language.Field:
				if !ex.included(s.Directives) {
					continue
				}
				name := s.Alias
				if name == "" {
					name = s.Name
				}
				if i, ok := index[name]; ok {
					out[i].nodes = append(out[i].nodes, s)
					continue
				}
				index[name] = len(out)
				out = append(out, collectedField{responseName: name, nodes: []*language.Field{s}})

			case *language.InlineFragment:
				if !ex.included(s.Directives) || !ex.applies(objectType, s.TypeCondition) {
					continue
				}
				walk(s.SelectionSet)

			case *language.FragmentSpread:
				if visited[s.Name] || !ex.included(s.Directives) {
					continue
				}
				visited[s.Name] = true
				frag := ex.doc.Fragments.ForName(s.Name)
				if frag == nil || !ex.applies(objectType, frag.TypeCondition) || !ex.included(frag.Directives) {
					continue
				}
				walk(frag.SelectionSet)
			}
		}
	}
	walk(selections)
	return out
}

// applies reports whether a fragment with the given type condition selects
// on objectType.
func (ex *execution) applies(objectType *schema.Type, condition string) bool {
	return condition == "" || ex.schema.IsPossibleType(condition, objectType.Name)
}

// included evaluates @skip and @include.
func (ex *execution) included(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && ex.directiveIf(d) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !ex.directiveIf(d) {
		return false
	}
	return true
}

func (ex *execution) directiveIf(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(ex.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
