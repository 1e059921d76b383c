package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodcanvas/internal/archive"
	"moodcanvas/internal/storage"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, time.Minute, zerolog.Nop()), mr
}

func testPage() archive.Page {
	return archive.Page{
		Items: []storage.Painting{
			{ID: "p-001", Timestamp: time.Date(2026, 8, 29, 14, 3, 0, 0, time.UTC), ParamsHash: "hash"},
		},
		Cursor:  "abc",
		HasMore: true,
	}
}

func TestPageRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := ListKey(archive.ListOptions{Limit: 20})

	_, found, err := c.GetPage(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetPage(ctx, key, testPage()))

	got, found, err := c.GetPage(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", got.Cursor)
	assert.True(t, got.HasMore)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p-001", got.Items[0].ID)
}

func TestListKeyDistinguishesParams(t *testing.T) {
	from := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	a := ListKey(archive.ListOptions{Limit: 20})
	b := ListKey(archive.ListOptions{Limit: 21})
	c := ListKey(archive.ListOptions{Limit: 20, From: &from})
	d := ListKey(archive.ListOptions{Limit: 20, Cursor: "x"})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Equal(t, a, ListKey(archive.ListOptions{Limit: 20}))
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := ListKey(archive.ListOptions{Limit: 5})

	require.NoError(t, c.SetPage(ctx, key, testPage()))
	mr.FastForward(2 * time.Minute)

	_, found, err := c.GetPage(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "entry must expire after the TTL")
}

func TestInvalidateLists(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, limit := range []int{5, 10, 20} {
		require.NoError(t, c.SetPage(ctx, ListKey(archive.ListOptions{Limit: limit}), testPage()))
	}

	require.NoError(t, c.InvalidateLists(ctx))

	for _, limit := range []int{5, 10, 20} {
		_, found, err := c.GetPage(ctx, ListKey(archive.ListOptions{Limit: limit}))
		require.NoError(t, err)
		assert.False(t, found)
	}
}

func TestMalformedEntryBehavesLikeMiss(t *testing.T) {
	c, mr := newTestCache(t)
	key := ListKey(archive.ListOptions{Limit: 20})
	require.NoError(t, mr.Set(key, "{not json"))

	_, found, err := c.GetPage(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)
}
