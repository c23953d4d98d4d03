// Package graphql serves the watch API over GraphQL. Queries are parsed and
// validated by gqlparser against the embedded schema and executed directly
// against the service layer.
package graphql

import (
	_ "embed"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaSDL string

// LoadSchema parses the embedded schema.
func LoadSchema() (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
	if err != nil {
		return nil, err
	}
	return schema, nil
}
