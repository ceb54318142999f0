// Package introspection answers the GraphQL __schema and __type meta fields
// on top of any executor.Runtime.
package introspection

import (
	"cmp"
	"context"
	"maps"
	"slices"

	executor "github.com/hanpama/crumbgraph/internal/executor"
	schema "github.com/hanpama/crumbgraph/internal/schema"
)

// Wrapper holds the wrapping runtime and the schema it executes against.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap extends sch with the introspection meta types and returns a Runtime
// resolving them, delegating every other field to base. The described schema
// lists the meta types but not the __schema and __type root fields.
func Wrap(base executor.Runtime, sch *schema.Schema) *Wrapper {
	extended := Extend(sch)
	described := *extended
	described.Types = maps.Clone(extended.Types)
	if q := sch.GetQueryType(); q != nil {
		described.Types[q.Name] = q
	}
	return &Wrapper{
		Runtime: &runtime{base: base, described: &described},
		Schema:  extended,
	}
}

type runtime struct {
	base      executor.Runtime
	described *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	var (
		v  any
		ok bool
	)
	switch src := source.(type) {
	case *schema.Schema:
		v, ok = schemaField(src, field)
	case *schema.Type:
		v, ok = r.typeField(src, field, args)
	case *schema.TypeRef:
		v, ok = r.typeRefField(src, field, args)
	case *schema.Field:
		v, ok = fieldField(src, field, args)
	case *schema.InputValue:
		v, ok = inputValueField(src, field)
	case *schema.EnumValue:
		v, ok = enumValueField(src, field)
	case *schema.Directive:
		v, ok = directiveField(src, field, args)
	}
	if ok {
		return v, nil
	}

	if objectType == r.described.QueryType {
		switch field {
		case FieldSchema:
			return r.described, nil
		case FieldType:
			name, _ := args["name"].(string)
			if t := r.described.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if typeName == typeKindEnum || typeName == directiveLocationEnum {
		return value, nil
	}
	return r.base.SerializeLeafValue(ctx, typeName, value)
}

// text maps the empty string to GraphQL null.
func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reason(deprecated bool, why string) any {
	if !deprecated {
		return nil
	}
	return why
}

func byName[T any](items []T, name func(T) string) []T {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(name(a), name(b)) })
	return items
}

func withDeprecated(args map[string]any) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

func schemaField(s *schema.Schema, field string) (any, bool) {
	switch field {
	case "description":
		return text(s.Description), true
	case "types":
		return byName(slices.Collect(maps.Values(s.Types)), func(t *schema.Type) string { return t.Name }), true
	case "queryType":
		return s.GetQueryType(), true
	case "mutationType":
		return s.GetMutationType(), true
	case "subscriptionType":
		return s.GetSubscriptionType(), true
	case "directives":
		return byName(slices.Collect(maps.Values(s.Directives)), func(d *schema.Directive) string { return d.Name }), true
	}
	return nil, false
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	composite := t.Kind == schema.TypeKindObject || t.Kind == schema.TypeKindInterface
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return text(t.Description), true
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil, true
		}
		return *t.SpecifiedByURL, true
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return t.OneOf, true
	case "ofType":
		return nil, true
	case "fields":
		if !composite {
			return nil, true
		}
		all := withDeprecated(args)
		var out []*schema.Field
		for _, f := range t.Fields {
			if all || !f.IsDeprecated {
				out = append(out, f)
			}
		}
		return nonNilSlice(out), true
	case "interfaces":
		if !composite {
			return nil, true
		}
		return r.named(t.Interfaces), true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		return r.named(t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		all := withDeprecated(args)
		var out []*schema.EnumValue
		for _, v := range t.EnumValues {
			if all || !v.IsDeprecated {
				out = append(out, v)
			}
		}
		return nonNilSlice(out), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return inputValues(t.InputFields, args), true
	}
	return nil, false
}

// named resolves type names against the described schema, sorted by name.
func (r *runtime) named(names []string) []*schema.Type {
	out := []*schema.Type{}
	for _, name := range names {
		if t := r.described.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return byName(out, func(t *schema.Type) string { return t.Name })
}

// typeRefField answers wrapper kinds itself and forwards named references to
// the type they name.
func (r *runtime) typeRefField(ref *schema.TypeRef, field string, args map[string]any) (any, bool) {
	if ref.Kind == schema.TypeRefKindNamed {
		t := r.described.Types[ref.Named]
		if t == nil {
			return nil, true
		}
		return r.typeField(t, field, args)
	}
	switch field {
	case "kind":
		return string(ref.Kind), true
	case "ofType":
		return ref.OfType, true
	case "name", "description", "specifiedByURL", "fields", "interfaces",
		"possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, true
	}
	return nil, false
}

func fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return text(f.Description), true
	case "args":
		return inputValues(f.Arguments, args), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return reason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func inputValueField(v *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return text(v.Description), true
	case "type":
		return v.Type, true
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, true
		}
		return schema.FormatValue(v.DefaultValue), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(v *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return text(v.Description), true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return text(d.Description), true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return slices.Sorted(slices.Values(d.Locations)), true
	case "args":
		return inputValues(d.Arguments, args), true
	}
	return nil, false
}

// inputValues keeps declaration order, which clients rely on for arguments.
func inputValues(values []*schema.InputValue, args map[string]any) []*schema.InputValue {
	all := withDeprecated(args)
	out := []*schema.InputValue{}
	for _, v := range values {
		if all || !v.IsDeprecated {
			out = append(out, v)
		}
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
