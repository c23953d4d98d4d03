package graphql

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/liamcoop/watches/internal/logger"
	"github.com/liamcoop/watches/watches"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

// Request is a GraphQL request as sent by clients.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`

	// queryOnly rejects mutations, for requests arriving over GET.
	queryOnly bool
}

// Response is a GraphQL response. Data is absent when the request failed
// before execution.
type Response struct {
	Data   *object       `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// resolveFunc resolves one root field.
type resolveFunc func(ctx context.Context, field *ast.Field, vars map[string]any) (any, error)

// Executor runs validated operations against root field resolvers.
type Executor struct {
	schema    *ast.Schema
	resolvers map[string]resolveFunc
}

// NewExecutor creates an Executor serving schema with the resolvers of r.
func NewExecutor(schema *ast.Schema, r *Resolver) *Executor {
	return &Executor{
		schema:    schema,
		resolvers: r.rootFields(),
	}
}

// Execute parses, validates and runs req. Root fields run in document
// order; a failing field is null in data and reported in errors.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	doc, errs := gqlparser.LoadQuery(e.schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return &Response{Errors: gqlerror.List{requestError("an operation name is required when the document holds several operations")}}
		}
		return &Response{Errors: gqlerror.List{requestError(fmt.Sprintf("operation %q not found", req.OperationName))}}
	}

	var root *ast.Definition
	switch op.Operation {
	case ast.Query:
		root = e.schema.Query
	case ast.Mutation:
		if req.queryOnly {
			return &Response{Errors: gqlerror.List{requestError("mutations are not allowed over GET")}}
		}
		root = e.schema.Mutation
	default:
		return &Response{Errors: gqlerror.List{requestError(fmt.Sprintf("%s operations are not supported", op.Operation))}}
	}

	vars, err := validator.VariableValues(e.schema, op, req.Variables)
	if err != nil {
		return &Response{Errors: gqlerror.List{toGQLError(err, nil)}}
	}

	resp := &Response{Data: newObject()}
	for _, field := range e.collectFields(op.SelectionSet, vars) {
		switch field.Name {
		case "__typename":
			resp.Data.set(field.Alias, root.Name)
		case "__schema":
			resp.Data.set(field.Alias, e.introspectSchema(field, vars))
		case "__type":
			resp.Data.set(field.Alias, e.introspectType(field, vars))
		default:
			resp.Data.set(field.Alias, e.resolveRoot(ctx, field, vars, &resp.Errors))
		}
	}
	return resp
}

func (e *Executor) resolveRoot(ctx context.Context, field *ast.Field, vars map[string]any, errs *gqlerror.List) any {
	path := ast.Path{ast.PathName(field.Alias)}

	resolve, ok := e.resolvers[field.Name]
	if !ok {
		*errs = append(*errs, toGQLError(fmt.Errorf("field %s has no resolver", field.Name), path))
		return nil
	}

	value, err := resolve(ctx, field, vars)
	if err != nil {
		logger.Warn("graphql resolver failed", "field", field.Name, "error", err)
		*errs = append(*errs, toGQLError(err, path))
		return nil
	}
	return e.complete(field.Definition.Type, field.SelectionSet, value, vars)
}

// collectFields flattens fragments and applies @skip and @include.
func (e *Executor) collectFields(set ast.SelectionSet, vars map[string]any) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if included(s.Directives, vars) {
				fields = append(fields, s)
			}
		case *ast.InlineFragment:
			if included(s.Directives, vars) {
				fields = append(fields, e.collectFields(s.SelectionSet, vars)...)
			}
		case *ast.FragmentSpread:
			if included(s.Directives, vars) && s.Definition != nil {
				fields = append(fields, e.collectFields(s.Definition.SelectionSet, vars)...)
			}
		}
	}
	return fields
}

func included(directives ast.DirectiveList, vars map[string]any) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

// complete shapes a resolved value to its schema type and the selection
// set of the field that produced it.
func (e *Executor) complete(typ *ast.Type, set ast.SelectionSet, value any, vars map[string]any) any {
	if value == nil {
		return nil
	}

	if typ.Elem != nil {
		items := listItems(value)
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = e.complete(typ.Elem, set, item, vars)
		}
		return out
	}

	def := e.schema.Types[typ.Name()]
	if def == nil {
		return value
	}

	switch def.Kind {
	case ast.Object:
		source := asMap(value)
		if source == nil {
			return nil
		}
		obj := newObject()
		for _, field := range e.collectFields(set, vars) {
			if field.Name == "__typename" {
				obj.set(field.Alias, def.Name)
				continue
			}
			obj.set(field.Alias, e.complete(field.Definition.Type, field.SelectionSet, source[field.Name], vars))
		}
		return obj
	case ast.Enum:
		if s, ok := value.(string); ok {
			return strings.ToUpper(s)
		}
		return value
	case ast.Scalar:
		return coerceScalar(def.Name, value)
	}
	return value
}

// listItems returns the elements of a slice. A single value stands for a
// one-element list.
func listItems(value any) []any {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return []any{value}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asMap(value any) map[string]any {
	switch m := value.(type) {
	case map[string]any:
		return m
	case watches.Fields:
		return m
	}
	return nil
}

func coerceScalar(name string, value any) any {
	switch name {
	case "Int":
		switch n := value.(type) {
		case float64:
			if n == math.Trunc(n) {
				return int64(n)
			}
		case float32:
			if float64(n) == math.Trunc(float64(n)) {
				return int64(n)
			}
		}
	case "ID", "String":
		if _, ok := value.(string); !ok {
			switch value.(type) {
			case map[string]any, []any:
				return value
			}
			return fmt.Sprint(value)
		}
	}
	return value
}
