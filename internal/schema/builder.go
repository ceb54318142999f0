package schema

import (
	"sort"
	"strings"

	language "github.com/hanpama/crumbgraph/internal/language"
	"github.com/vektah/gqlparser/v2/ast"
)

// ResolverDirective marks a field whose value comes from a resolver call
// rather than from the parent value. Such fields are executed asynchronously
// and batched per depth. The directive is stripped from the built schema.
const ResolverDirective = "resolver"

// BuildFromSDL parses and validates sdl and returns the executable Schema
// together with the validated AST schema used for query validation.
func BuildFromSDL(name, sdl string) (*Schema, *language.Schema, error) {
	src, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, nil, err
	}
	return FromAST(src), src, nil
}

// FromAST converts a validated gqlparser schema. Prelude definitions map to
// the shared builtin scalars and directives; introspection types and fields
// are omitted.
func FromAST(src *language.Schema) *Schema {
	s := NewSchema("")
	if src.Query != nil {
		s.SetQueryType(src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetMutationType(src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetSubscriptionType(src.Subscription.Name)
	}
	s.AddType(stringType).
		AddType(intType).
		AddType(floatType).
		AddType(booleanType).
		AddType(idType)
	s.AddDirective(includeDirective).
		AddDirective(skipDirective)

	names := make([]string, 0, len(src.Types))
	for name, def := range src.Types {
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := src.Types[name]
		switch def.Kind {
		case ast.Object:
			s.AddType(buildComposite(def, TypeKindObject))
		case ast.Interface:
			t := buildComposite(def, TypeKindInterface)
			for _, impl := range src.PossibleTypes[name] {
				t.AddPossibleType(impl.Name)
			}
			s.AddType(t)
		case ast.Union:
			t := NewType(def.Name, TypeKindUnion, def.Description)
			for _, member := range def.Types {
				t.AddPossibleType(member)
			}
			s.AddType(t)
		case ast.Enum:
			t := NewType(def.Name, TypeKindEnum, def.Description)
			for _, v := range def.EnumValues {
				ev := NewEnumValue(v.Name, v.Description)
				if reason, ok := deprecation(v.Directives); ok {
					ev.Deprecate(reason)
				}
				t.AddEnumValue(ev)
			}
			s.AddType(t)
		case ast.InputObject:
			t := NewType(def.Name, TypeKindInputObject, def.Description).
				SetOneOf(def.Directives.ForName("oneOf") != nil)
			for _, f := range def.Fields {
				t.AddInputField(buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
			}
			s.AddType(t)
		case ast.Scalar:
			t := NewType(def.Name, TypeKindScalar, def.Description)
			if d := def.Directives.ForName("specifiedBy"); d != nil {
				if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
					t.SetSpecifiedByURL(arg.Value.Raw)
				}
			}
			s.AddType(t)
		}
	}

	for name, def := range src.Directives {
		if def.Position != nil && def.Position.Src != nil && def.Position.Src.BuiltIn {
			continue
		}
		if name == ResolverDirective || name == "include" || name == "skip" || name == "deprecated" || name == "specifiedBy" || name == "oneOf" {
			continue
		}
		d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
		for _, loc := range def.Locations {
			d.Locations = append(d.Locations, string(loc))
		}
		for _, arg := range def.Arguments {
			d.AddArgument(buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		s.AddDirective(d)
	}
	return s
}

func buildComposite(def *ast.Definition, kind TypeKind) *Type {
	t := NewType(def.Name, kind, def.Description)
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		f := NewField(fd.Name, fd.Description, buildTypeRef(fd.Type)).
			SetAsync(fd.Directives.ForName(ResolverDirective) != nil)
		if reason, ok := deprecation(fd.Directives); ok {
			f.Deprecate(reason)
		}
		for _, arg := range fd.Arguments {
			f.AddArgument(buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		t.AddField(f)
	}
	return t
}

func buildInputValue(name, description string, typ *ast.Type, def *ast.Value, directives ast.DirectiveList) *InputValue {
	in := NewInputValue(name, description, buildTypeRef(typ))
	if def != nil {
		if v, err := def.Value(nil); err == nil {
			in.SetDefault(v)
		}
	}
	if reason, ok := deprecation(directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func deprecation(directives ast.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "", true
}
