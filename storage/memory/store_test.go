package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
	"go.pilab.hu/realm/storage/memory"
)

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	user := &domain.User{LoginName: "alice", RealmID: "r1", Enabled: true}
	require.NoError(t, store.Save(ctx, user))
	require.NotEmpty(t, user.StoreID, "save assigns an id")

	var loaded domain.User
	require.NoError(t, store.Get(ctx, &loaded, user.StoreID))
	assert.Equal(t, "alice", loaded.LoginName)
	assert.True(t, loaded.Enabled)

	t.Run("get of unknown id", func(t *testing.T) {
		var missing domain.User
		err := store.Get(ctx, &missing, "nope")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save replaces by id", func(t *testing.T) {
		user.Enabled = false
		require.NoError(t, store.Save(ctx, user))

		var reloaded domain.User
		require.NoError(t, store.Get(ctx, &reloaded, user.StoreID))
		assert.False(t, reloaded.Enabled)
	})

	t.Run("stored records are copies", func(t *testing.T) {
		user.LoginName = "mutated-after-save"
		var reloaded domain.User
		require.NoError(t, store.Get(ctx, &reloaded, user.StoreID))
		assert.Equal(t, "alice", reloaded.LoginName)
	})
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Save(ctx, &domain.User{LoginName: "alice", RealmID: "r1"}))
	require.NoError(t, store.Save(ctx, &domain.User{LoginName: "alice", RealmID: "r2"}))

	var found domain.User
	err := store.FindOne(ctx, &found, storage.NewQuery().
		Eq("login_name", "alice").
		Eq("realm_id", "r2"))
	require.NoError(t, err)
	assert.Equal(t, "r2", found.RealmID)

	err = store.FindOne(ctx, &found, storage.NewQuery().
		Eq("login_name", "bob").
		Eq("realm_id", "r1"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindAll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	r1a := &domain.Role{Name: "admin", OwnerID: "r1"}
	r1b := &domain.Role{Name: "auditor", OwnerID: "r1"}
	r2 := &domain.Role{Name: "admin", OwnerID: "r2"}
	for _, role := range []*domain.Role{r1a, r1b, r2} {
		require.NoError(t, store.Save(ctx, role))
	}

	t.Run("equality condition", func(t *testing.T) {
		var roles []*domain.Role
		require.NoError(t, store.FindAll(ctx, &roles, storage.NewQuery().Eq("owner_id", "r1")))
		assert.Len(t, roles, 2)
	})

	t.Run("membership condition", func(t *testing.T) {
		var roles []*domain.Role
		q := storage.NewQuery().In("_id", []string{r1a.StoreID, r2.StoreID, "missing"})
		require.NoError(t, store.FindAll(ctx, &roles, q))
		assert.Len(t, roles, 2)
	})

	t.Run("integer equality condition", func(t *testing.T) {
		decl := &domain.RequiredCredential{Type: "password", RealmID: "r1", Category: domain.ClientCategoryUser}
		require.NoError(t, store.Save(ctx, decl))

		var decls []*domain.RequiredCredential
		q := storage.NewQuery().Eq("realm_id", "r1").Eq("category", domain.ClientCategoryUser)
		require.NoError(t, store.FindAll(ctx, &decls, q))
		assert.Len(t, decls, 1)

		decls = nil
		q = storage.NewQuery().Eq("realm_id", "r1").Eq("category", domain.ClientCategoryOAuthClient)
		require.NoError(t, store.FindAll(ctx, &decls, q))
		assert.Empty(t, decls)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	link := &domain.SocialLink{Provider: "github", Username: "alice", RealmID: "r1", UserID: "u1"}
	require.NoError(t, store.Save(ctx, link))
	require.NoError(t, store.Delete(ctx, link))

	var loaded domain.SocialLink
	err := store.Get(ctx, &loaded, link.StoreID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Save(ctx, &domain.SocialLink{Provider: "github", Username: "alice", UserID: "u1"}))
	require.NoError(t, store.Save(ctx, &domain.SocialLink{Provider: "google", Username: "alice", UserID: "u1"}))
	require.NoError(t, store.Save(ctx, &domain.SocialLink{Provider: "github", Username: "bob", UserID: "u2"}))

	require.NoError(t, store.DeleteAll(ctx, domain.SocialLinksCollection,
		storage.NewQuery().Eq("user_id", "u1")))

	var remaining []*domain.SocialLink
	require.NoError(t, store.FindAll(ctx, &remaining, storage.NewQuery()))
	require.Len(t, remaining, 1)
	assert.Equal(t, "bob", remaining[0].Username)
}

func TestPushToList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	user := &domain.User{LoginName: "alice", RealmID: "r1"}
	require.NoError(t, store.Save(ctx, user))

	require.NoError(t, store.PushToList(ctx, user, "role_ids", "role-1"))
	require.NoError(t, store.PushToList(ctx, user, "role_ids", "role-2"))
	require.NoError(t, store.PushToList(ctx, user, "role_ids", "role-1"))

	t.Run("mirrors onto the record", func(t *testing.T) {
		assert.Equal(t, []string{"role-1", "role-2", "role-1"}, user.RoleIDs)
	})

	t.Run("persists", func(t *testing.T) {
		var reloaded domain.User
		require.NoError(t, store.Get(ctx, &reloaded, user.StoreID))
		assert.Equal(t, []string{"role-1", "role-2", "role-1"}, reloaded.RoleIDs)
	})

	t.Run("unsaved record", func(t *testing.T) {
		err := store.PushToList(ctx, &domain.User{StoreID: "ghost"}, "role_ids", "x")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
