package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/liamcoop/watches/query"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	return s
}

func watchDoc(name, user string, spaces ...any) Document {
	return Document{
		"name":       name,
		"user_id":    user,
		"spaces":     spaces,
		"watch_type": "EXPRESSION",
		"criteria":   "name: joe",
		"actions": []any{
			map[string]any{"action_type": "email", "to": []any{"you@name.com"}, "from": "me@name.com", "subject": "s"},
		},
		"reset_criteria": map[string]any{"alert_count": float64(10), "reset_count": float64(30), "reset_units": "min"},
	}
}

func seed(t *testing.T, s *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Index(ctx, "w1", watchDoc("coolName", "12345", "space1", "space2"))
	require.NoError(t, err)
	_, err = s.Index(ctx, "w2", watchDoc("other", "12345", "space3"))
	require.NoError(t, err)
	_, err = s.Index(ctx, "w3", watchDoc("coolName", "999", "space1"))
	require.NoError(t, err)
}

func hitIDs(r *SearchResult) []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestMemoryStore_Search(t *testing.T) {
	s := newTestMemoryStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"identity only", "user_id: 12345", []string{"w1", "w2"}},
		{"name scoped to owner", "user_id: 12345 AND name: coolName", []string{"w1"}},
		{"case insensitive", "user_id: 12345 AND name: COOLNAME", []string{"w1"}},
		{"any of array terms", "user_id: 12345 AND spaces: space2,space3", []string{"w1", "w2"}},
		{"store identifier", "user_id: 12345 AND _id: w2", []string{"w2"}},
		{"nested action field", "user_id: 999 AND actions.action_type: email", []string{"w3"}},
		{"nested object field", "user_id: 12345 AND reset_criteria.alert_count: 10", []string{"w1", "w2"}},
		{"no match", "user_id: 12345 AND name: missing", []string{}},
		{"empty query", "", []string{"w1", "w2", "w3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hitIDs(result))
			assert.Equal(t, len(tt.want), result.Total)
		})
	}
}

func TestMemoryStore_SearchRejectsMalformedQuery(t *testing.T) {
	s := newTestMemoryStore(t)

	_, err := s.Search(context.Background(), "user_id: 1 AND nonsense")
	assert.Error(t, err)
}

func TestMemoryStore_SearchQuotedTerms(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t)

	_, err := s.Index(ctx, "w1", watchDoc("alpha", "u1"))
	require.NoError(t, err)
	_, err = s.Index(ctx, "w2", watchDoc("alpha, beta", "u1"))
	require.NoError(t, err)
	_, err = s.Index(ctx, "w3", watchDoc("Rock AND Roll", "u1"))
	require.NoError(t, err)

	tests := []struct {
		value any
		want  []string
	}{
		{"alpha, beta", []string{"w2"}},
		{"alpha", []string{"w1"}},
		{"rock and roll", []string{"w3"}},
		{[]string{"alpha, beta", "Rock AND Roll"}, []string{"w2", "w3"}},
	}
	for _, tt := range tests {
		q := query.BuildFilterQuery(query.Identity("u1"), query.Filters{{Field: "name", Value: tt.value}})
		t.Run(q, func(t *testing.T) {
			result, err := s.Search(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hitIDs(result))
		})
	}
}

func TestMemoryStore_SearchReturnsCopies(t *testing.T) {
	s := newTestMemoryStore(t)
	seed(t, s)
	ctx := context.Background()

	result, err := s.Search(ctx, "_id: w1")
	require.NoError(t, err)
	result.Hits[0].Source["name"] = "mutated"

	again, err := s.Search(ctx, "_id: w1")
	require.NoError(t, err)
	assert.Equal(t, "coolName", again.Hits[0].Source["name"])
}

func TestMemoryStore_IndexDuplicate(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	res, err := s.Index(ctx, "a", Document{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res.Result)

	_, err = s.Index(ctx, "a", Document{"name": "y"})
	assert.True(t, errors.Is(err, ErrDocumentExists))
}

func TestMemoryStore_Update(t *testing.T) {
	s := newTestMemoryStore(t)
	seed(t, s)
	ctx := context.Background()

	res, err := s.Update(ctx, "w1", Document{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res.Result)

	result, err := s.Search(ctx, "_id: w1")
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "renamed", result.Hits[0].Source["name"])
	assert.Equal(t, "12345", result.Hits[0].Source["user_id"])

	res, err = s.Update(ctx, "w1", Document{"name": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, ResultNoop, res.Result)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := newTestMemoryStore(t)

	_, err := s.Update(context.Background(), "nope", Document{"name": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_Delete(t *testing.T) {
	s := newTestMemoryStore(t)
	seed(t, s)
	ctx := context.Background()

	res, err := s.Delete(ctx, "w2")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, ResultDeleted, res.Result)
	assert.Equal(t, 2, s.Len())

	res, err = s.Delete(ctx, "w2")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, ResultNotFound, res.Result)

	result, err := s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, hitIDs(result))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "user_id: 1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := newTestMemoryStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_, err := s.Index(ctx, id, Document{"user_id": "u", "name": id})
			assert.NoError(t, err)
			_, err = s.Search(ctx, "user_id: u")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	result, err := s.Search(ctx, "user_id: u")
	require.NoError(t, err)
	assert.Equal(t, 20, result.Total)
}

func TestQueryMatcher_CachesPrograms(t *testing.T) {
	m, err := NewQueryMatcher()
	require.NoError(t, err)

	_, err = m.Compile("user_id: 1 AND name: x")
	require.NoError(t, err)
	_, err = m.Compile("user_id: 1 AND name: x")
	require.NoError(t, err)
	assert.Len(t, m.programs, 1)
}

func TestQueryMatcher_ProgramsKeyedByShapeNotTerms(t *testing.T) {
	m, err := NewQueryMatcher()
	require.NoError(t, err)
	doc := Document{"user_id": "u1", "name": "Watch"}

	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("w%d", i)
		ok, err := m.Match("user_id: u1 AND _id: "+id, id, doc)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = m.Match("user_id: u1 AND _id: "+id, "other", doc)
		require.NoError(t, err)
		require.False(t, ok)
	}
	assert.Len(t, m.programs, 1)

	ok, err := m.Match("user_id: u1 AND name: watch,other", "w1", doc)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Match("user_id: u1 AND name: nope", "w1", doc)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, m.programs, 2)
}

func TestQueryMatcher_ProgramCacheIsBounded(t *testing.T) {
	m, err := NewQueryMatcher()
	require.NoError(t, err)

	for i := 0; i < maxPrograms+10; i++ {
		_, err := m.Compile(fmt.Sprintf("user_id: u1 AND field%d: x", i))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(m.programs), maxPrograms)
}

func TestQueryMatcher_EmptyTermsMatchPresence(t *testing.T) {
	m, err := NewQueryMatcher()
	require.NoError(t, err)

	ok, err := m.Match("reset_criteria.reset_units:", "a", Document{"reset_criteria": map[string]any{"reset_units": "min"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Match("reset_criteria.reset_units:", "a", Document{"name": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}
