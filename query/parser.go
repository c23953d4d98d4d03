package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Clause is one parsed "field: terms" condition.
type Clause struct {
	Field string
	Terms []string
}

// IsID reports whether the clause addresses the store identifier.
func (c Clause) IsID() bool {
	return c.Field == IDField
}

// Path returns the dotted field path split into segments.
func (c Clause) Path() []string {
	return strings.Split(c.Field, ".")
}

// Parse splits a query string produced by Build into clauses. Every clause
// must contain a field name followed by a colon. Double-quoted terms may
// contain commas and the conjunction.
func Parse(q string) ([]Clause, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	parts := splitUnquoted(q, Conjunction)
	clauses := make([]Clause, 0, len(parts))
	for _, part := range parts {
		field, value, ok := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid clause %q: expected field: value", strings.TrimSpace(part))
		}

		var terms []string
		for _, term := range splitUnquoted(value, ",") {
			term = strings.TrimSpace(term)
			if strings.HasPrefix(term, `"`) {
				unquoted, err := strconv.Unquote(term)
				if err != nil {
					return nil, fmt.Errorf("invalid term %s in clause %q", term, field)
				}
				terms = append(terms, unquoted)
				continue
			}
			if term != "" {
				terms = append(terms, term)
			}
		}
		clauses = append(clauses, Clause{Field: field, Terms: terms})
	}
	return clauses, nil
}

// splitUnquoted splits s around sep, ignoring separators inside
// double-quoted sections.
func splitUnquoted(s, sep string) []string {
	var (
		parts   []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch {
		case inQuote && s[i] == '\\':
			i++
		case s[i] == '"':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	return append(parts, s[start:])
}
