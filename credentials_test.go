package realm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	realm "go.pilab.hu/realm"
	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
	"go.pilab.hu/realm/storage/memory"
)

func TestPasswordHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	handler := realm.NewPasswordHandler(bcrypt.MinCost)

	user := &domain.User{LoginName: "alice", RealmID: "r1", Enabled: true}
	require.NoError(t, store.Save(ctx, user))

	t.Run("empty stored hash is invalid", func(t *testing.T) {
		status, err := handler.Validate(ctx, store, user, "anything")
		require.NoError(t, err)
		assert.Equal(t, realm.StatusInvalid, status)
	})

	require.NoError(t, handler.Update(ctx, store, user, "hunter2", ""))

	t.Run("update persists a bcrypt hash", func(t *testing.T) {
		var reloaded domain.User
		require.NoError(t, store.Get(ctx, &reloaded, user.StoreID))
		assert.NotEmpty(t, reloaded.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(reloaded.PasswordHash), []byte("hunter2")))
	})

	t.Run("matching password is valid", func(t *testing.T) {
		status, err := handler.Validate(ctx, store, user, "hunter2")
		require.NoError(t, err)
		assert.Equal(t, realm.StatusValid, status)
	})

	t.Run("mismatch is invalid without error", func(t *testing.T) {
		status, err := handler.Validate(ctx, store, user, "hunter3")
		require.NoError(t, err)
		assert.Equal(t, realm.StatusInvalid, status)
	})
}

func TestTOTPHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	handler := realm.TOTPHandler{}

	user := &domain.User{LoginName: "alice", RealmID: "r1", Enabled: true}
	require.NoError(t, store.Save(ctx, user))

	require.NoError(t, handler.Update(ctx, store, user, "JBSWY3DPEHPK3PXP", "phone"))

	var reloaded domain.User
	require.NoError(t, store.Get(ctx, &reloaded, user.StoreID))
	assert.Equal(t, "JBSWY3DPEHPK3PXP", reloaded.TOTPSecret)

	// Validation is a deliberate always-fail stub.
	status, err := handler.Validate(ctx, store, &reloaded, "123456")
	require.NoError(t, err)
	assert.Equal(t, realm.StatusInvalid, status)
}

func TestManagerWithInjectedHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	rec := &domain.Realm{ID: "acme", Name: "acme", Enabled: true}
	require.NoError(t, store.Save(ctx, rec))

	accepting := credentialHandlerFunc(func() realm.CredentialStatus { return realm.StatusValid })
	m := realm.NewManager(rec, store,
		realm.WithCredentialHandler(domain.CredentialPassword, accepting))

	user, err := m.AddUser(ctx, "alice")
	require.NoError(t, err)

	ok, err := m.ValidatePassword(ctx, user, "anything at all")
	require.NoError(t, err)
	assert.True(t, ok)
}

// credentialHandlerFunc adapts a status function to CredentialHandler.
type credentialHandlerFunc func() realm.CredentialStatus

func (f credentialHandlerFunc) Validate(context.Context, storage.Store, *domain.User, string) (realm.CredentialStatus, error) {
	return f(), nil
}

func (f credentialHandlerFunc) Update(context.Context, storage.Store, *domain.User, string, string) error {
	return nil
}
