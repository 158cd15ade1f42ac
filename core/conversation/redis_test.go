package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess := newSession(42, "/addstudent", time.Now().Truncate(time.Second))
	sess.StateIndex = 2
	sess.Attrs.Set("email", "a@b.com")
	sess.Attrs.Set("group_name", "Alpha")

	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, int64(42), got.PrincipalID)
	assert.Equal(t, "/addstudent", got.Command)
	assert.Equal(t, 2, got.StateIndex)
	assert.Equal(t, []string{"email", "group_name"}, got.Attrs.Keys())

	email, ok := got.Attrs.String("email")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", email)
}

func TestRedisStoreAbsent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Delete on an absent principal is a no-op.
	require.NoError(t, store.Delete(ctx, 7))
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession(1, "/x", time.Now())))
	require.NoError(t, store.Delete(ctx, 1))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession(1, "/x", time.Now())))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "session must expire with the key TTL")
}

func TestRedisStorePrefix(t *testing.T) {
	store, mr := newTestRedisStore(t, WithPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession(9, "/x", time.Now())))
	assert.True(t, mr.Exists("custom:9"))
}
