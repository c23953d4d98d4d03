package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/liamcoop/watches/query"
	"github.com/pkg/errors"
)

// PostgresStore implements DocumentStore backed by a PostgreSQL JSONB
// table. Each store instance is bound to one index name.
type PostgresStore struct {
	db    *sql.DB
	index string
}

// NewPostgresStore creates a PostgreSQL-backed DocumentStore for index.
func NewPostgresStore(db *sql.DB, index string) *PostgresStore {
	return &PostgresStore{
		db:    db,
		index: index,
	}
}

// Search translates q into JSON path predicates over the document body.
// Term comparison is exact: numeric and boolean terms also match numbers
// and booleans.
func (s *PostgresStore) Search(ctx context.Context, q string) (*SearchResult, error) {
	where, args, err := s.whereClause(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body
		FROM watch_documents
		WHERE `+where+`
		ORDER BY created_at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search documents")
	}
	defer rows.Close()

	result := &SearchResult{Hits: []Hit{}}
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		var doc Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, errors.Wrapf(err, "invalid body for document %s", id)
		}
		result.Hits = append(result.Hits, Hit{ID: id, Source: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating documents")
	}

	result.Total = len(result.Hits)
	return result, nil
}

// Index inserts a new document.
func (s *PostgresStore) Index(ctx context.Context, id string, doc Document) (*WriteResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode document")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_documents (index_name, id, body, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (index_name, id) DO NOTHING
	`, s.index, id, string(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert document")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrDocumentExists, "document %s", id)
	}

	return &WriteResult{ID: id, Result: ResultCreated}, nil
}

// Update merges the top-level keys of partial into the stored body.
func (s *PostgresStore) Update(ctx context.Context, id string, partial Document) (*WriteResult, error) {
	body, err := json.Marshal(partial)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode document")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE watch_documents
		SET body = body || $3::jsonb, updated_at = NOW()
		WHERE index_name = $1 AND id = $2
	`, s.index, id, string(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update document")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrNotFound, "document %s", id)
	}

	return &WriteResult{ID: id, Result: ResultUpdated, Found: true}, nil
}

// Delete removes a document.
func (s *PostgresStore) Delete(ctx context.Context, id string) (*WriteResult, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM watch_documents
		WHERE index_name = $1 AND id = $2
	`, s.index, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to delete document")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return &WriteResult{ID: id, Result: ResultNotFound, Found: false}, nil
	}

	return &WriteResult{ID: id, Result: ResultDeleted, Found: true}, nil
}

func (s *PostgresStore) whereClause(q string) (string, []any, error) {
	clauses, err := query.Parse(q)
	if err != nil {
		return "", nil, errors.Wrap(err, "parse query")
	}

	conds := []string{"index_name = $1"}
	args := []any{s.index}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, c := range clauses {
		if c.IsID() {
			conds = append(conds, "id = ANY("+next(pq.Array(c.Terms))+")")
			continue
		}

		pathArg := next(jsonPath(c))
		if len(c.Terms) == 0 {
			conds = append(conds, fmt.Sprintf("jsonb_path_exists(body, %s::jsonpath)", pathArg))
			continue
		}

		// scalars compare by their text form, case-folded like the memory store
		termsArg := next(pq.Array(lowerTerms(c.Terms)))
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_path_query(body, %s::jsonpath) AS v(value) WHERE lower(v.value #>> '{}') = ANY(%s::text[]))",
			pathArg, termsArg))
	}

	return strings.Join(conds, " AND "), args, nil
}

// jsonPath renders a lax-mode path that unwraps arrays at every step, e.g.
// $."actions"[*]."action_type"[*].
func jsonPath(c query.Clause) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range c.Path() {
		b.WriteString(".")
		b.WriteString(strconv.Quote(seg))
		b.WriteString("[*]")
	}
	return b.String()
}

func lowerTerms(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
