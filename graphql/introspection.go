package graphql

import (
	"reflect"
	"strings"

	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
)

func (e *Executor) introspectSchema(field *ast.Field, vars map[string]any) any {
	return e.reflectValue(reflect.ValueOf(introspection.WrapSchema(e.schema)), field.SelectionSet, vars)
}

func (e *Executor) introspectType(field *ast.Field, vars map[string]any) any {
	name, _ := field.ArgumentMap(vars)["name"].(string)
	def := e.schema.Types[name]
	if def == nil {
		return nil
	}
	return e.reflectValue(reflect.ValueOf(introspection.WrapTypeFromDef(e.schema, def)), field.SelectionSet, vars)
}

// reflectValue projects the introspection wrappers onto a selection set.
// Each selected field maps to an exported method or struct field of the
// same name; includeDeprecated is the only argument those methods take.
func (e *Executor) reflectValue(v reflect.Value, set ast.SelectionSet, vars map[string]any) any {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = e.reflectValue(v.Index(i), set, vars)
		}
		return out
	case reflect.Struct:
		ptr := v
		if v.CanAddr() {
			ptr = v.Addr()
		} else {
			ptr = reflect.New(v.Type())
			ptr.Elem().Set(v)
		}

		obj := newObject()
		for _, field := range e.collectFields(set, vars) {
			if field.Name == "__typename" {
				obj.set(field.Alias, "__"+v.Type().Name())
				continue
			}
			member := lookupMember(ptr, field.Name, field.ArgumentMap(vars))
			obj.set(field.Alias, e.reflectValue(member, field.SelectionSet, vars))
		}
		return obj
	}
	return v.Interface()
}

func lookupMember(ptr reflect.Value, name string, args map[string]any) reflect.Value {
	goName := strings.ToUpper(name[:1]) + name[1:]

	if m := ptr.MethodByName(goName); m.IsValid() {
		in := make([]reflect.Value, m.Type().NumIn())
		for i := range in {
			if m.Type().In(i).Kind() != reflect.Bool {
				return reflect.Value{}
			}
			includeDeprecated, _ := args["includeDeprecated"].(bool)
			in[i] = reflect.ValueOf(includeDeprecated)
		}
		out := m.Call(in)
		if len(out) == 0 {
			return reflect.Value{}
		}
		return out[0]
	}

	if f := ptr.Elem().FieldByName(goName); f.IsValid() && f.CanInterface() {
		return f
	}
	return reflect.Value{}
}
