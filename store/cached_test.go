package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	DocumentStore
	searches int
}

func (s *countingStore) Search(ctx context.Context, q string) (*SearchResult, error) {
	s.searches++
	return s.DocumentStore.Search(ctx, q)
}

// stallingStore holds its first search after reading from the backing store
// until released, leaving room for a write to land in between.
type stallingStore struct {
	DocumentStore
	read    chan struct{}
	release chan struct{}
	stalled bool
}

func (s *stallingStore) Search(ctx context.Context, q string) (*SearchResult, error) {
	result, err := s.DocumentStore.Search(ctx, q)
	if !s.stalled {
		s.stalled = true
		close(s.read)
		<-s.release
	}
	return result, err
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{DocumentStore: newTestMemoryStore(t)}
	s := NewCachedStore(backing, NewInMemorySearchCache(CacheConfig{TTL: time.Minute}))

	_, err := s.Index(ctx, "w1", watchDoc("coolName", "12345", "space1"))
	require.NoError(t, err)

	first, err := s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)
	second, err := s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.searches)

	_, err = s.Index(ctx, "w2", watchDoc("other", "12345", "space1"))
	require.NoError(t, err)

	third, err := s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)
	assert.Equal(t, 2, third.Total)
	assert.Equal(t, 2, backing.searches)

	_, err = s.Update(ctx, "w2", Document{"name": "renamed"})
	require.NoError(t, err)
	_, err = s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)
	assert.Equal(t, 3, backing.searches)

	res, err := s.Delete(ctx, "w2")
	require.NoError(t, err)
	assert.True(t, res.Found)

	final, err := s.Search(ctx, "user_id: 12345")
	require.NoError(t, err)
	assert.Equal(t, 1, final.Total)
	assert.Equal(t, 4, backing.searches)
}

func TestCachedStore_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{DocumentStore: newTestMemoryStore(t)}
	s := NewCachedStore(backing, NewInMemorySearchCache(DefaultCacheConfig()))

	_, err := s.Search(ctx, "bad")
	require.Error(t, err)
	_, err = s.Search(ctx, "bad")
	require.Error(t, err)
	assert.Equal(t, 2, backing.searches)
}

func TestCachedStore_SearchRacingWriteIsNotCached(t *testing.T) {
	caches := map[string]func(t *testing.T) SearchCache{
		"memory": func(t *testing.T) SearchCache {
			return NewInMemorySearchCache(CacheConfig{TTL: time.Minute})
		},
		"redis": func(t *testing.T) SearchCache {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedisSearchCache(client, DefaultCacheConfig(), nil)
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backing := &stallingStore{
				DocumentStore: newTestMemoryStore(t),
				read:          make(chan struct{}),
				release:       make(chan struct{}),
			}
			s := NewCachedStore(backing, newCache(t))

			stale := make(chan *SearchResult, 1)
			go func() {
				result, err := s.Search(ctx, "user_id: 12345")
				assert.NoError(t, err)
				stale <- result
			}()

			<-backing.read
			_, err := s.Index(ctx, "w1", watchDoc("coolName", "12345", "space1"))
			require.NoError(t, err)
			close(backing.release)

			assert.Equal(t, 0, (<-stale).Total)

			fresh, err := s.Search(ctx, "user_id: 12345")
			require.NoError(t, err)
			assert.Equal(t, 1, fresh.Total)
		})
	}
}
