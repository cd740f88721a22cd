package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/realm/cache"
	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
	"go.pilab.hu/realm/storage/memory"
)

func newCachedStore(t *testing.T) (*cache.CachedStore, *memory.Store) {
	t.Helper()
	recordCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(recordCache.Stop)
	inner := memory.NewStore()
	return cache.NewCachedStore(inner, recordCache), inner
}

func TestCachedStoreGet(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedStore(t)

	user := &domain.User{LoginName: "alice", RealmID: "r1", Enabled: true}
	require.NoError(t, cached.Save(ctx, user))

	var first domain.User
	require.NoError(t, cached.Get(ctx, &first, user.StoreID))

	// Remove from the backing store; the cached copy still serves.
	require.NoError(t, inner.Delete(ctx, user))

	var second domain.User
	require.NoError(t, cached.Get(ctx, &second, user.StoreID))
	assert.Equal(t, "alice", second.LoginName)
}

func TestCachedStoreInvalidation(t *testing.T) {
	ctx := context.Background()
	cached, _ := newCachedStore(t)

	user := &domain.User{LoginName: "alice", RealmID: "r1", Enabled: true}
	require.NoError(t, cached.Save(ctx, user))

	var warm domain.User
	require.NoError(t, cached.Get(ctx, &warm, user.StoreID))

	t.Run("save invalidates", func(t *testing.T) {
		user.Enabled = false
		require.NoError(t, cached.Save(ctx, user))

		var reloaded domain.User
		require.NoError(t, cached.Get(ctx, &reloaded, user.StoreID))
		assert.False(t, reloaded.Enabled)
	})

	t.Run("push invalidates", func(t *testing.T) {
		require.NoError(t, cached.PushToList(ctx, user, "role_ids", "role-1"))

		var reloaded domain.User
		require.NoError(t, cached.Get(ctx, &reloaded, user.StoreID))
		assert.Equal(t, []string{"role-1"}, reloaded.RoleIDs)
	})

	t.Run("delete invalidates", func(t *testing.T) {
		require.NoError(t, cached.Delete(ctx, user))

		var gone domain.User
		err := cached.Get(ctx, &gone, user.StoreID)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestCachedStoreQueriesBypassCache(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedStore(t)

	user := &domain.User{LoginName: "alice", RealmID: "r1"}
	require.NoError(t, cached.Save(ctx, user))
	require.NoError(t, inner.Delete(ctx, user))

	var found domain.User
	err := cached.FindOne(ctx, &found, storage.NewQuery().Eq("login_name", "alice"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}
