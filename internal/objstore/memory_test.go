package objstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferpipe/inferpipe/internal/objstore"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := objstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "b", "data/2024/1/1/0/0/x/data", []byte("hello")))

	body, err := s.Get(ctx, "b", "data/2024/1/1/0/0/x/data")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := objstore.NewMemoryStore()

	_, err := s.Get(context.Background(), "b", "nope")
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestMemoryStore_ListByPrefix(t *testing.T) {
	s := objstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "b", "data/2024/3/14/b1/data", nil))
	require.NoError(t, s.Put(ctx, "b", "data/2024/3/15/b2/data", nil))
	require.NoError(t, s.Put(ctx, "b", "result/2024/3/14/out", nil))

	keys, err := s.List(ctx, "b", "data/2024/3/")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/2024/3/14/b1/data", "data/2024/3/15/b2/data"}, keys)
}

func TestChannelSource_DeliversInOrder(t *testing.T) {
	src := objstore.NewChannelSource()
	src.C <- objstore.Event{Bucket: "b", Key: "k1"}
	src.C <- objstore.Event{Bucket: "b", Key: "k2"}
	close(src.C)

	var keys []string
	err := src.Listen(context.Background(), func(_ context.Context, ev objstore.Event) error {
		keys = append(keys, ev.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)
}
