package graphql

import (
	"context"
	"errors"
	"fmt"

	"github.com/liamcoop/watches/internal/identity"
	"github.com/liamcoop/watches/query"
	"github.com/liamcoop/watches/service"
	"github.com/liamcoop/watches/watches"
	"github.com/vektah/gqlparser/v2/ast"
)

// Resolver resolves the root fields of the schema through the service.
type Resolver struct {
	svc *service.Service
}

// NewResolver creates a Resolver backed by svc.
func NewResolver(svc *service.Service) *Resolver {
	return &Resolver{svc: svc}
}

func (r *Resolver) rootFields() map[string]resolveFunc {
	return map[string]resolveFunc{
		"getWatch":    r.getWatch,
		"addWatch":    r.addWatch,
		"editWatch":   r.editWatch,
		"deleteWatch": r.deleteWatch,
	}
}

func userID(ctx context.Context) (string, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return "", errUnauthenticated
	}
	return id, nil
}

func (r *Resolver) getWatch(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	base := filtersArgument(field, "watchProperties", vars)
	actions := filtersArgument(field, "actionProperties", vars)
	return r.svc.List(ctx, uid, base, actions)
}

func (r *Resolver) addWatch(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := r.svc.Create(ctx, uid, watches.Fields(field.ArgumentMap(vars)))
	if err != nil {
		return nil, err
	}
	return mutateResponse(res), nil
}

func (r *Resolver) editWatch(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	args := field.ArgumentMap(vars)
	id := fmt.Sprint(args[watches.FieldID])
	delete(args, watches.FieldID)

	res, err := r.svc.Update(ctx, uid, id, watches.Fields(args))
	if errors.Is(err, service.ErrNotFound) {
		return failedResponse(id, fmt.Sprintf("Watch %s was not found", id)), nil
	}
	if err != nil {
		return nil, err
	}
	return mutateResponse(res), nil
}

func (r *Resolver) deleteWatch(ctx context.Context, field *ast.Field, vars map[string]any) (any, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprint(field.ArgumentMap(vars)[watches.FieldID])
	res, err := r.svc.Delete(ctx, uid, id)
	if errors.Is(err, service.ErrNotFound) {
		return failedResponse(id, fmt.Sprintf("Watch %s could not be deleted", id)), nil
	}
	if err != nil {
		return nil, err
	}
	return mutateResponse(res), nil
}

func mutateResponse(res *service.MutationResult) map[string]any {
	out := map[string]any{
		"success": res.Success,
		"message": res.Message,
	}
	if res.ID != "" {
		out["id"] = res.ID
	}
	if res.Watch != nil {
		out["watch"] = map[string]any(res.Watch)
	}
	return out
}

func failedResponse(id, message string) map[string]any {
	return map[string]any{
		"success": false,
		"message": message,
		"id":      id,
	}
}

// filtersArgument reads an input-object argument as ordered filters. Literal
// objects keep the order written in the query; objects passed as variables
// are sorted by key.
func filtersArgument(field *ast.Field, name string, vars map[string]any) query.Filters {
	arg := field.Arguments.ForName(name)
	if arg == nil {
		return nil
	}
	return filtersFromValue(arg.Value, vars)
}

func filtersFromValue(v *ast.Value, vars map[string]any) query.Filters {
	if v == nil {
		return nil
	}

	switch v.Kind {
	case ast.ObjectValue:
		var filters query.Filters
		for _, child := range v.Children {
			if child.Value.Kind == ast.ObjectValue {
				filters = append(filters, query.Filter{Field: child.Name, Value: filtersFromValue(child.Value, vars)})
				continue
			}
			value, err := child.Value.Value(vars)
			if err != nil {
				continue
			}
			filters = append(filters, query.Filter{Field: child.Name, Value: value})
		}
		return filters
	case ast.Variable:
		m, _ := vars[v.Raw].(map[string]any)
		return query.FiltersFromMap(m)
	}
	return nil
}
