package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/liamcoop/watches/query"
	"github.com/pkg/errors"
)

// maxPrograms bounds the program cache. Query shapes come from client
// filter keys, so the set is open-ended.
const maxPrograms = 512

// QueryMatcher compiles query strings into CEL programs evaluated against
// stored documents. Programs are cached per query shape: the clause fields
// decide the program and the clause terms are bound at evaluation time.
type QueryMatcher struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

// NewQueryMatcher creates a matcher with the document variables and the
// field() lookup function declared.
func NewQueryMatcher() (*QueryMatcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("doc", cel.DynType),
		cel.Variable("id", cel.StringType),
		cel.Variable("terms", cel.ListType(cel.ListType(cel.StringType))),
		cel.Function("field",
			cel.Overload("field_dyn_string",
				[]*cel.Type{cel.DynType, cel.StringType},
				cel.ListType(cel.StringType),
				cel.BinaryBinding(fieldValues),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &QueryMatcher{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// CompiledQuery is a parsed query ready to be evaluated against documents.
type CompiledQuery struct {
	prog  cel.Program
	terms [][]string
}

// Compile parses q and returns it bound to the program for its shape,
// compiling that program on first use.
func (m *QueryMatcher) Compile(q string) (*CompiledQuery, error) {
	clauses, err := query.Parse(q)
	if err != nil {
		return nil, errors.Wrap(err, "parse query")
	}

	expr := expression(clauses)
	prog, err := m.program(expr)
	if err != nil {
		return nil, err
	}

	terms := make([][]string, len(clauses))
	for i, c := range clauses {
		terms[i] = make([]string, len(c.Terms))
		for j, t := range c.Terms {
			if !c.IsID() {
				t = strings.ToLower(t)
			}
			terms[i][j] = t
		}
	}

	return &CompiledQuery{prog: prog, terms: terms}, nil
}

func (m *QueryMatcher) program(expr string) (cel.Program, error) {
	m.mu.RLock()
	prog, ok := m.programs[expr]
	m.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "compile query")
	}

	prog, err := m.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, errors.Wrap(err, "create query program")
	}

	m.mu.Lock()
	if len(m.programs) >= maxPrograms {
		m.programs = make(map[string]cel.Program)
	}
	m.programs[expr] = prog
	m.mu.Unlock()

	return prog, nil
}

// Match reports whether the document stored under id satisfies q.
func (m *QueryMatcher) Match(q, id string, doc Document) (bool, error) {
	cq, err := m.Compile(q)
	if err != nil {
		return false, err
	}
	return cq.Match(id, doc)
}

// Match reports whether the document stored under id satisfies the query.
func (cq *CompiledQuery) Match(id string, doc Document) (bool, error) {
	out, _, err := cq.prog.Eval(map[string]any{
		"doc":   map[string]any(doc),
		"id":    id,
		"terms": cq.terms,
	})
	if err != nil {
		return false, errors.Wrap(err, "evaluate query")
	}

	matched, _ := out.Value().(bool)
	return matched, nil
}

// expression renders the shape of clauses as a CEL conjunction over the
// terms variable. Term comparison is case-insensitive, identifiers excepted.
func expression(clauses []query.Clause) string {
	if len(clauses) == 0 {
		return "true"
	}

	parts := make([]string, 0, len(clauses))
	for i, c := range clauses {
		terms := "terms[" + strconv.Itoa(i) + "]"
		if c.IsID() {
			parts = append(parts, "id in "+terms)
			continue
		}
		lookup := "field(doc, " + strconv.Quote(c.Field) + ")"
		if len(c.Terms) == 0 {
			parts = append(parts, "size("+lookup+") > 0")
			continue
		}
		parts = append(parts, terms+".exists(t, t in "+lookup+")")
	}
	return strings.Join(parts, " && ")
}

// fieldValues implements field(doc, path): every scalar found at the dotted
// path, lower-cased. Arrays along the path are traversed.
func fieldValues(doc, path ref.Val) ref.Val {
	p, ok := path.Value().(string)
	if !ok {
		return types.NewErr("field: path must be a string")
	}

	root, ok := doc.Value().(map[string]any)
	if !ok {
		native, err := doc.ConvertToNative(reflect.TypeOf(map[string]any{}))
		if err != nil {
			return types.NewErr("field: document must be a map: %v", err)
		}
		root = native.(map[string]any)
	}

	var values []string
	collect(root, strings.Split(p, "."), &values)
	return types.NewStringList(types.DefaultTypeAdapter, values)
}

func collect(v any, path []string, out *[]string) {
	switch val := v.(type) {
	case nil:
		return
	case []any:
		for _, item := range val {
			collect(item, path, out)
		}
		return
	case []string:
		for _, item := range val {
			collect(item, path, out)
		}
		return
	case map[string]any:
		if len(path) == 0 {
			return
		}
		collect(val[path[0]], path[1:], out)
		return
	case Document:
		collect(map[string]any(val), path, out)
		return
	}

	if len(path) == 0 {
		*out = append(*out, strings.ToLower(query.FormatTerm(v)))
	}
}
