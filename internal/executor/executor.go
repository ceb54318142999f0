package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/hanpama/crumbgraph/internal/language"
	schema "github.com/hanpama/crumbgraph/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// execution is the state of a single operation.
type execution struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
	doc     *language.QueryDocument
	vars    map[string]any

	data    map[string]any
	errors  []GraphQLError
	pending []*pendingField
	// nulled holds response paths replaced by null through Non-Null
	// propagation; nothing beneath them is resolved or written.
	nulled map[string]struct{}
}

// pendingField is a resolver-backed field waiting for the next batch.
type pendingField struct {
	task       AsyncResolveTask
	path       Path
	anchor     Path
	returnType *schema.TypeRef
	nodes      []*language.Field
}

// ExecuteRequest runs the operation named operationName (or the only
// operation when the name is empty) and always returns a result.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	op, err := selectOperation(document, operationName)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch op.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	}
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("schema does not support %s operations", op.Operation)}}}
	}

	vars, err := coerceVariableValues(e.schema, op, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	ex := &execution{
		ctx:     ctx,
		runtime: e.runtime,
		schema:  e.schema,
		doc:     document,
		vars:    vars,
		errors:  []GraphQLError{},
		nulled:  make(map[string]struct{}),
	}
	ex.data = ex.executeFields(rootType, op.SelectionSet, initialValue, Path{}, Path{})
	if ex.data == nil {
		ex.nullify(Path{})
	}
	for len(ex.pending) > 0 {
		ex.flush()
	}

	res := &ExecutionResult{Errors: ex.errors}
	if ex.data != nil {
		res.Data = ex.data
	}
	return res
}

// flush resolves the queued fields of one depth in a single runtime call.
func (ex *execution) flush() {
	batch := make([]*pendingField, 0, len(ex.pending))
	for _, pf := range ex.pending {
		if !ex.isNulled(pf.path) {
			batch = append(batch, pf)
		}
	}
	ex.pending = nil
	if len(batch) == 0 {
		return
	}

	tasks := make([]AsyncResolveTask, len(batch))
	for i, pf := range batch {
		tasks[i] = pf.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)

	for i, pf := range batch {
		var res AsyncResolveResult
		if i < len(results) {
			res = results[i]
		} else {
			res.Error = fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks))
		}
		ex.completePending(pf, res)
	}
}

func (ex *execution) completePending(pf *pendingField, res AsyncResolveResult) {
	if ex.isNulled(pf.path) {
		return
	}
	if res.Error != nil {
		ex.fieldError(res.Error.Error(), pf.path, pf.nodes)
		ex.writeNull(pf)
		return
	}
	v := ex.complete(pf.returnType, pf.nodes, res.Value, pf.path, pf.anchor)
	if isNullish(v) {
		ex.writeNull(pf)
		return
	}
	ex.set(pf.path, v)
}

func (ex *execution) writeNull(pf *pendingField) {
	if schema.IsNonNull(pf.returnType) {
		ex.nullify(pf.anchor)
		return
	}
	ex.set(pf.path, nil)
}

// executeFields resolves the selection set of one object value. Sync fields
// complete immediately; async fields are queued and left as null until their
// batch runs. It returns nil when a Non-Null field resolved to null.
//
// anchor is the nearest position at or above path that may be nulled.
func (ex *execution) executeFields(objectType *schema.Type, selections language.SelectionSet, source any, path, anchor Path) map[string]any {
	fields := ex.collectFields(objectType, selections)
	out := make(map[string]any, len(fields))
	for _, cf := range fields {
		fieldPath := path.with(cf.responseName)
		v, queued := ex.executeField(objectType, source, cf.nodes, fieldPath, anchor)
		if queued {
			out[cf.responseName] = nil
			continue
		}
		if isNullish(v) {
			def := objectType.Field(cf.nodes[0].Name)
			if def == nil {
				// unknown field, already reported
				continue
			}
			if schema.IsNonNull(def.Type) {
				ex.nullify(path)
				return nil
			}
			out[cf.responseName] = nil
			continue
		}
		out[cf.responseName] = v
	}
	return out
}

func (ex *execution) executeField(objectType *schema.Type, source any, nodes []*language.Field, path, anchor Path) (value any, queued bool) {
	name := nodes[0].Name
	if name == "__typename" {
		return objectType.Name, false
	}
	def := objectType.Field(name)
	if def == nil {
		ex.fieldError(fmt.Sprintf("Cannot query field %q on type %q", name, objectType.Name), path, nodes)
		return nil, false
	}
	args, err := coerceArgumentValues(ex.schema, def, nodes[0].Arguments, ex.vars)
	if err != nil {
		ex.fieldError(err.Error(), path, nodes)
		return ex.complete(def.Type, nodes, nil, path, anchor), false
	}

	if def.Async {
		ex.pending = append(ex.pending, &pendingField{
			task: AsyncResolveTask{
				ObjectType: objectType.Name,
				Field:      name,
				Source:     source,
				Args:       args,
			},
			path:       path,
			anchor:     anchor,
			returnType: def.Type,
			nodes:      nodes,
		})
		return nil, true
	}

	raw, err := ex.runtime.ResolveSync(ex.ctx, objectType.Name, name, source, args)
	if err != nil {
		ex.fieldError(err.Error(), path, nodes)
		raw = nil
	}
	return ex.complete(def.Type, nodes, raw, path, anchor), false
}

// complete turns a raw resolver value into its response shape. A nil return
// for a Non-Null type tells the caller to propagate the null.
func (ex *execution) complete(t *schema.TypeRef, nodes []*language.Field, value any, path, anchor Path) any {
	if schema.IsNonNull(t) {
		if isNullish(value) {
			if !ex.hasErrorAt(path) {
				ex.fieldError(fmt.Sprintf("Cannot return null for non-nullable field %s", path), path, nodes)
			}
			return nil
		}
		// a nil result here was already reported where it originated
		return ex.completeNullable(schema.Unwrap(t), nodes, value, path, anchor)
	}
	return ex.completeNullable(t, nodes, value, path, path)
}

func (ex *execution) completeNullable(t *schema.TypeRef, nodes []*language.Field, value any, path, anchor Path) any {
	if isNullish(value) {
		return nil
	}
	if schema.IsList(t) {
		return ex.completeList(t, nodes, value, path, anchor)
	}

	name := schema.GetNamedType(t)
	typ := ex.schema.Types[name]
	if typ == nil {
		ex.fieldError(fmt.Sprintf("Unknown type %q", name), path, nodes)
		return nil
	}
	switch typ.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := ex.runtime.SerializeLeafValue(ex.ctx, name, value)
		if err != nil {
			ex.fieldError(err.Error(), path, nodes)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return ex.completeObject(typ, nodes, value, path, anchor)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		concrete, err := ex.runtime.ResolveType(ex.ctx, name, value)
		if err != nil {
			ex.fieldError(err.Error(), path, nodes)
			return nil
		}
		objectType := ex.schema.Types[concrete]
		if objectType == nil || objectType.Kind != schema.TypeKindObject || !ex.schema.IsPossibleType(name, concrete) {
			ex.fieldError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", name, concrete), path, nodes)
			return nil
		}
		return ex.completeObject(objectType, nodes, value, path, anchor)
	}
	ex.fieldError(fmt.Sprintf("Cannot complete value of type %s", typ.Kind), path, nodes)
	return nil
}

func (ex *execution) completeList(t *schema.TypeRef, nodes []*language.Field, value any, path, anchor Path) any {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			ex.fieldError(fmt.Sprintf("Expected list value, got %T", value), path, nodes)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(t)
	out := make([]any, len(items))
	for i, item := range items {
		v := ex.complete(inner, nodes, item, path.with(i), anchor)
		if isNullish(v) {
			if schema.IsNonNull(inner) {
				ex.nullify(path)
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

func (ex *execution) completeObject(objectType *schema.Type, nodes []*language.Field, value any, path, anchor Path) any {
	var sub language.SelectionSet
	for _, n := range nodes {
		sub = append(sub, n.SelectionSet...)
	}
	obj := ex.executeFields(objectType, sub, value, path, anchor)
	if obj == nil {
		return nil
	}
	return obj
}

// nullify writes null at p and drops everything queued beneath it.
func (ex *execution) nullify(p Path) {
	if ex.isNulled(p) {
		return
	}
	ex.nulled[p.String()] = struct{}{}
	if len(p) == 0 {
		ex.data = nil
		return
	}
	ex.set(p, nil)
}

func (ex *execution) isNulled(p Path) bool {
	if len(ex.nulled) == 0 {
		return false
	}
	for i := 0; i <= len(p); i++ {
		if _, ok := ex.nulled[p[:i].String()]; ok {
			return true
		}
	}
	return false
}

// set writes v into the response tree at p. Positions whose container was
// nulled in the meantime are ignored.
func (ex *execution) set(p Path, v any) {
	if len(p) == 0 || ex.data == nil {
		return
	}
	var cur any = ex.data
	for _, elem := range p[:len(p)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			cur = m[e]
		case int:
			l, ok := cur.([]any)
			if !ok || e >= len(l) {
				return
			}
			cur = l[e]
		}
	}
	switch e := p[len(p)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[e] = v
		}
	case int:
		if l, ok := cur.([]any); ok && e < len(l) {
			l[e] = v
		}
	}
}

func (ex *execution) fieldError(message string, path Path, nodes []*language.Field) {
	err := GraphQLError{Message: message, Path: path}
	if len(nodes) > 0 && nodes[0].Position != nil {
		err.Locations = []Location{{Line: nodes[0].Position.Line, Column: nodes[0].Position.Column}}
	}
	ex.errors = append(ex.errors, err)
}

func (ex *execution) hasErrorAt(p Path) bool {
	for _, err := range ex.errors {
		if reflect.DeepEqual(err.Path, p) {
			return true
		}
	}
	return false
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("operation name is required when the document has %d operations", len(doc.Operations))
		}
		return doc.Operations[0], nil
	}
	if op := doc.Operations.ForName(name); op != nil {
		return op, nil
	}
	return nil, fmt.Errorf("unknown operation %q", name)
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
