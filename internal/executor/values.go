package executor

import (
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/crumbgraph/internal/language"
	schema "github.com/hanpama/crumbgraph/internal/schema"
)

// coerceVariableValues applies defaults and input coercion to the request
// variables declared by op. Undeclared variables are ignored.
func coerceVariableValues(s *schema.Schema, op *language.OperationDefinition, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		t := typeRefFromAST(def.Type)
		v, ok := raw[def.Variable]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				dv, err := def.DefaultValue.Value(nil)
				if err != nil {
					return nil, fmt.Errorf("variable $%s: invalid default: %w", def.Variable, err)
				}
				v = dv
			case schema.IsNonNull(t):
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, def.Type.String())
			default:
				continue
			}
		}
		cv, err := coerceInput(s, v, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %w", def.Variable, def.Type.String(), err)
		}
		out[def.Variable] = cv
	}
	return out, nil
}

// coerceArgumentValues resolves field arguments against variables and
// argument defaults. Arguments neither given nor defaulted are absent from
// the result.
func coerceArgumentValues(s *schema.Schema, def *schema.Field, args language.ArgumentList, vars map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(def.Arguments))
	for _, argDef := range def.Arguments {
		arg := args.ForName(argDef.Name)
		if arg == nil || (arg.Value.Kind == language.Variable && !hasVariable(vars, arg.Value.Raw)) {
			if argDef.DefaultValue != nil {
				out[argDef.Name] = argDef.DefaultValue
			} else if schema.IsNonNull(argDef.Type) {
				return nil, fmt.Errorf("argument %q of required type %s was not provided", argDef.Name, argDef.Type)
			}
			continue
		}
		v, err := arg.Value.Value(vars)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", argDef.Name, err)
		}
		cv, err := coerceInput(s, v, argDef.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", argDef.Name, err)
		}
		out[argDef.Name] = cv
	}
	return out, nil
}

func hasVariable(vars map[string]any, name string) bool {
	_, ok := vars[name]
	return ok
}

// coerceInput converts a decoded input value to the Go representation of t:
// int for Int, float64 for Float, string for String and ID, bool for
// Boolean. A single value is wrapped when a list is expected. Input objects
// are coerced field by field when s is known; other named types pass through.
func coerceInput(s *schema.Schema, v any, t *schema.TypeRef) (any, error) {
	if schema.IsNonNull(t) {
		if v == nil {
			return nil, fmt.Errorf("null is not allowed for %s", t)
		}
		return coerceInput(s, v, schema.Unwrap(t))
	}
	if v == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		inner := schema.Unwrap(t)
		items, ok := v.([]any)
		if !ok {
			item, err := coerceInput(s, v, inner)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceInput(s, item, inner)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	switch name := t.Named; name {
	case "Int":
		return coerceInt(v)
	case "Float":
		return coerceFloat(v)
	case "String":
		if sv, ok := v.(string); ok {
			return sv, nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as String", v, v)
	case "Boolean":
		if bv, ok := v.(bool); ok {
			return bv, nil
		}
		return nil, fmt.Errorf("cannot use %v (%T) as Boolean", v, v)
	case "ID":
		return coerceID(v)
	default:
		if s == nil {
			return v, nil
		}
		typ := s.Types[name]
		if typ == nil || typ.Kind != schema.TypeKindInputObject {
			return v, nil
		}
		return coerceInputObject(s, typ, v)
	}
}

func coerceInputObject(s *schema.Schema, typ *schema.Type, v any) (any, error) {
	in, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", typ.Name, v)
	}
	out := make(map[string]any, len(typ.InputFields))
	for _, f := range typ.InputFields {
		fv, ok := in[f.Name]
		if !ok {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("field %s.%s is required", typ.Name, f.Name)
			}
			continue
		}
		cv, err := coerceInput(s, fv, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", typ.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	for k := range in {
		if !hasInputField(typ, k) {
			return nil, fmt.Errorf("unknown field %s.%s", typ.Name, k)
		}
	}
	return out, nil
}

func hasInputField(typ *schema.Type, name string) bool {
	for _, f := range typ.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows Int", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%v is not an Int", n)
		}
		return int(n), nil
	}
	return nil, fmt.Errorf("cannot use %v (%T) as Int", v, v)
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return nil, fmt.Errorf("cannot use %v (%T) as Float", v, v)
}

func coerceID(v any) (any, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as ID", v, v)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}
