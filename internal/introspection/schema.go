package introspection

import (
	schema "github.com/hanpama/crumbgraph/internal/schema"
)

// Names of the meta types and root fields added by Extend.
const (
	FieldSchema = "__schema"
	FieldType   = "__type"

	typeKindEnum          = "__TypeKind"
	directiveLocationEnum = "__DirectiveLocation"
)

var (
	str     = schema.NamedType("String")
	boolean = schema.NamedType("Boolean")
)

func nonNull(name string) *schema.TypeRef { return schema.NonNullType(schema.NamedType(name)) }

func nonNullList(name string) *schema.TypeRef {
	return schema.NonNullType(schema.ListType(nonNull(name)))
}

func nullableList(name string) *schema.TypeRef { return schema.ListType(nonNull(name)) }

func includeDeprecated() *schema.InputValue {
	return schema.NewInputValue("includeDeprecated", "", boolean).SetDefault(false)
}

// Extend returns a copy of original carrying the introspection meta types and
// the __schema and __type root fields. original is left untouched.
func Extend(original *schema.Schema) *schema.Schema {
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+8),
		Directives:       original.Directives,
		Description:      original.Description,
	}
	for name, t := range original.Types {
		extended.Types[name] = t
	}
	for _, t := range metaTypes() {
		extended.AddType(t)
	}

	query := original.GetQueryType()
	if query == nil {
		return extended
	}
	root := *query
	root.Fields = append(append([]*schema.Field(nil), query.Fields...),
		schema.NewField(FieldSchema, "Access the current type schema of this server.", nonNull("__Schema")),
		schema.NewField(FieldType, "Request the type information of a single type.", schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(str))),
	)
	extended.Types[root.Name] = &root
	return extended
}

func metaTypes() []*schema.Type {
	obj := func(name, description string) *schema.Type {
		return schema.NewType(name, schema.TypeKindObject, description)
	}

	schemaT := obj("__Schema", "A GraphQL Schema defines the capabilities of a GraphQL server.").
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("types", "A list of all types supported by this server.", nonNullList("__Type"))).
		AddField(schema.NewField("queryType", "The type that query operations will be rooted at.", nonNull("__Type"))).
		AddField(schema.NewField("mutationType", "", schema.NamedType("__Type"))).
		AddField(schema.NewField("subscriptionType", "", schema.NamedType("__Type"))).
		AddField(schema.NewField("directives", "A list of all directives supported by this server.", nonNullList("__Directive")))

	typeT := obj("__Type", "").
		AddField(schema.NewField("kind", "", nonNull(typeKindEnum))).
		AddField(schema.NewField("name", "", str)).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("specifiedByURL", "", str)).
		AddField(schema.NewField("fields", "", nullableList("__Field")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("interfaces", "", nullableList("__Type"))).
		AddField(schema.NewField("possibleTypes", "", nullableList("__Type"))).
		AddField(schema.NewField("enumValues", "", nullableList("__EnumValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("inputFields", "", nullableList("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("ofType", "", schema.NamedType("__Type"))).
		AddField(schema.NewField("isOneOf", "", boolean))

	fieldT := obj("__Field", "").
		AddField(schema.NewField("name", "", schema.NonNullType(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("args", "", nonNullList("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("type", "", nonNull("__Type"))).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	inputValueT := obj("__InputValue", "").
		AddField(schema.NewField("name", "", schema.NonNullType(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("type", "", nonNull("__Type"))).
		AddField(schema.NewField("defaultValue", "", str)).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	enumValueT := obj("__EnumValue", "").
		AddField(schema.NewField("name", "", schema.NonNullType(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(boolean))).
		AddField(schema.NewField("deprecationReason", "", str))

	directiveT := obj("__Directive", "").
		AddField(schema.NewField("name", "", schema.NonNullType(str))).
		AddField(schema.NewField("description", "", str)).
		AddField(schema.NewField("isRepeatable", "", schema.NonNullType(boolean))).
		AddField(schema.NewField("locations", "", nonNullList(directiveLocationEnum))).
		AddField(schema.NewField("args", "", nonNullList("__InputValue")).AddArgument(includeDeprecated()))

	return []*schema.Type{
		schemaT, typeT, fieldT, inputValueT, enumValueT, directiveT,
		enumOf(typeKindEnum, "SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"),
		enumOf(directiveLocationEnum,
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION"),
	}
}

func enumOf(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(schema.NewEnumValue(v, ""))
	}
	return t
}
