// Package query builds and parses the search-engine query strings used to
// look up watch documents.
//
// A query is a list of clauses of the form "field: value" joined by " AND ".
// The first clause is always the identity filter that scopes the search to a
// single owner. Filter values are trusted: no escaping is performed.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// Conjunction joins clauses of a query string.
	Conjunction = " AND "

	// IDField is the store's internal identifier field.
	IDField = "_id"

	// ActionsField prefixes every action filter.
	ActionsField = "actions"
)

// Filter is a single field filter. Value may be a scalar, a slice of
// scalars, or a nested Filters / map[string]any for sub-object filters.
type Filter struct {
	Field string
	Value any
}

// Filters is an ordered set of filters. Clause order in the generated query
// follows slice order.
type Filters []Filter

// FiltersFromMap converts an unordered map into Filters. Keys are sorted so
// that the generated query is deterministic.
func FiltersFromMap(m map[string]any) Filters {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make(Filters, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, Filter{Field: k, Value: m[k]})
	}
	return filters
}

// Identity returns the owner filter that starts every query.
func Identity(userID string) Filter {
	return Filter{Field: "user_id", Value: userID}
}

// Build composes identity, base and action filters into one query string.
func Build(identity Filter, base, actions Filters) string {
	clauses := []string{clause(identity.Field, identity.Value)}
	clauses = append(clauses, baseClauses(base)...)
	clauses = append(clauses, actionClauses(actions)...)
	return strings.Join(clauses, Conjunction)
}

// BuildFilterQuery composes the identity filter and base filters.
func BuildFilterQuery(identity Filter, base Filters) string {
	return Build(identity, base, nil)
}

// BuildActionFilterQuery renders action filters only, each addressed under
// the actions sub-object. It returns an empty string for no filters.
func BuildActionFilterQuery(actions Filters) string {
	return strings.Join(actionClauses(actions), Conjunction)
}

func baseClauses(filters Filters) []string {
	var out []string
	for _, f := range filters {
		if f.Value == nil {
			continue
		}
		field := f.Field
		if field == "id" {
			field = IDField
		}

		if nested, ok := nestedFilters(f.Value); ok {
			for _, inner := range nested {
				if inner.Value == nil {
					continue
				}
				out = append(out, clause(field+"."+inner.Field, inner.Value))
			}
			continue
		}
		out = append(out, clause(field, f.Value))
	}
	return out
}

func actionClauses(filters Filters) []string {
	var out []string
	for _, f := range filters {
		if f.Value == nil {
			continue
		}
		out = append(out, clause(ActionsField+"."+f.Field, f.Value))
	}
	return out
}

func nestedFilters(v any) (Filters, bool) {
	switch n := v.(type) {
	case Filters:
		return n, true
	case map[string]any:
		return FiltersFromMap(n), true
	}
	return nil, false
}

func clause(field string, value any) string {
	return field + ": " + FormatValue(value)
}

// FormatValue renders a filter value as the right-hand side of a clause.
// Slices are joined with commas. Strings that would otherwise split into
// several terms or clauses are double-quoted.
func FormatValue(v any) string {
	switch val := v.(type) {
	case []string:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = quoteTerm(item)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = quoteTerm(FormatTerm(item))
		}
		return strings.Join(parts, ",")
	}
	return quoteTerm(FormatTerm(v))
}

// FormatTerm renders a scalar the way it appears as a single query term.
func FormatTerm(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func quoteTerm(term string) string {
	if term == "" {
		return term
	}
	if strings.ContainsAny(term, `,"`) || strings.Contains(term, Conjunction) || strings.TrimSpace(term) != term {
		return strconv.Quote(term)
	}
	return term
}
