package service

import (
	"context"
	"errors"
	"testing"

	"github.com/liamcoop/watches/gateway"
	"github.com/liamcoop/watches/query"
	"github.com/liamcoop/watches/store"
	"github.com/liamcoop/watches/validation"
	"github.com/liamcoop/watches/watches"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []bool
}

func (r *recorder) ObserveValidation(_ bool, valid bool, _ int) {
	r.calls = append(r.calls, valid)
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *recorder) {
	t.Helper()
	s, err := store.NewMemoryStore()
	require.NoError(t, err)

	ids := []string{"w1", "w2", "w3", "w4"}
	next := 0
	gw := gateway.New(s, gateway.WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	rec := &recorder{}
	return New(validation.NewValidator(s), gw, rec), s, rec
}

func newWatch(name string) watches.Fields {
	return watches.Fields{
		"name":       name,
		"spaces":     []any{"space1"},
		"watch_type": "EXPRESSION",
		"criteria":   "name: joe",
		"actions": []any{
			map[string]any{"action_type": "email", "to": "you@name.com", "from": "me@name.com", "subject": "s"},
		},
	}
}

func TestService_Create(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "w1", res.ID)
	assert.Equal(t, "New watch with id w1 was created", res.Message)
	assert.Equal(t, "u1", res.Watch["user_id"])
	assert.Equal(t, false, res.Watch["include_record"])
	assert.Equal(t, []any{}, res.Watch["record_fields"])
	assert.Equal(t, []bool{true}, rec.calls)

	got, err := svc.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", got["id"])
	assert.Equal(t, "w1", got["uuid"])
	assert.Equal(t, "coolName", got["name"])
}

func TestService_CreateIgnoresClientIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	fields := newWatch("coolName")
	fields["id"] = "mine"
	fields["user_id"] = "someone-else"

	res, err := svc.Create(context.Background(), "u1", fields)
	require.NoError(t, err)

	assert.Equal(t, "w1", res.ID)
	assert.Equal(t, "u1", res.Watch["user_id"])
	assert.Equal(t, "mine", fields["id"], "input is not modified")
}

func TestService_CreateInvalid(t *testing.T) {
	svc, s, rec := newTestService(t)
	fields := newWatch("")
	delete(fields, "criteria")

	res, err := svc.Create(context.Background(), "u1", fields)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Invalid())
	assert.Equal(t, []string{"Rule name is missing", "criteria must exist and be a string"}, res.Reasons)
	assert.Equal(t, "Rule name is missing, criteria must exist and be a string", res.Message)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, []bool{false}, rec.calls)
}

func TestService_CreateDuplicateName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	res, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)
	assert.Equal(t, []string{"New rule name has already been used"}, res.Reasons)

	res, err = svc.Create(ctx, "u2", newWatch("coolName"))
	require.NoError(t, err)
	assert.True(t, res.Success, "names are unique per owner")
}

func TestService_CreateNamesWithQuerySeparators(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, "u1", newWatch("Rock AND Roll"))
	require.NoError(t, err)
	require.True(t, res.Success, res.Reasons)

	res, err = svc.Create(ctx, "u1", newWatch("alpha, beta"))
	require.NoError(t, err)
	require.True(t, res.Success, res.Reasons)

	res, err = svc.Create(ctx, "u1", newWatch("alpha"))
	require.NoError(t, err)
	assert.True(t, res.Success, "a comma inside a name is not a term separator")

	res, err = svc.Create(ctx, "u1", newWatch("Rock AND Roll"))
	require.NoError(t, err)
	assert.Equal(t, []string{"New rule name has already been used"}, res.Reasons)
}

func TestService_List(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first := newWatch("alpha")
	first["actions"] = []any{map[string]any{"action_type": "webhook", "url": "u.io", "token": "t", "message": "m"}}
	_, err := svc.Create(ctx, "u1", first)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", newWatch("beta"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", newWatch("gamma"))
	require.NoError(t, err)

	all, err := svc.List(ctx, "u1", nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "w1", all[0]["id"])
	assert.Equal(t, "w2", all[1]["id"])

	byAction, err := svc.List(ctx, "u1", nil, query.Filters{{Field: "action_type", Value: "webhook"}})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "alpha", byAction[0]["name"])

	byName, err := svc.List(ctx, "u1", query.Filters{{Field: "name", Value: "beta"}}, nil)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "w2", byName[0]["id"])
}

func TestService_GetOtherOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", "w1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Update(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	res, err := svc.Update(ctx, "u1", "w1", watches.Fields{"name": "renamed", "id": "ignored"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Watch w1 was updated", res.Message)
	assert.Equal(t, "renamed", res.Watch["name"])
	assert.Equal(t, []bool{true, true}, rec.calls)

	got, err := svc.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got["name"])
	assert.Equal(t, "name: joe", got["criteria"])
	assert.Equal(t, "w1", got["id"])
}

func TestService_UpdateKeepsOwnName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	res, err := svc.Update(ctx, "u1", "w1", watches.Fields{"criteria": "name: jane"})
	require.NoError(t, err)
	assert.True(t, res.Success, "existing watches skip the uniqueness check")
}

func TestService_UpdateInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	res, err := svc.Update(ctx, "u1", "w1", watches.Fields{"actions": []any{}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "w1", res.ID)
	assert.Equal(t, []string{"Rule must have actions"}, res.Reasons)

	got, err := svc.Get(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Len(t, got["actions"], 1)
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "u1", "nope", watches.Fields{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, "u2", "w1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len())

	res, err := svc.Delete(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Watch w1 was deleted", res.Message)
	assert.Equal(t, 0, s.Len())

	_, err = svc.Delete(ctx, "u1", "w1")
	assert.ErrorIs(t, err, ErrNotFound)
}

type brokenStore struct {
	store.DocumentStore
}

func (brokenStore) Search(context.Context, string) (*store.SearchResult, error) {
	return nil, errors.New("cluster unavailable")
}

func TestService_StoreErrors(t *testing.T) {
	s, err := store.NewMemoryStore()
	require.NoError(t, err)
	broken := brokenStore{DocumentStore: s}
	svc := New(validation.NewValidator(broken), gateway.New(broken), nil)
	ctx := context.Background()

	_, err = svc.List(ctx, "u1", nil, nil)
	var storeErr *gateway.StoreError
	assert.ErrorAs(t, err, &storeErr)

	res, err := svc.Create(ctx, "u1", newWatch("coolName"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cluster unavailable"}, res.Reasons)
}
