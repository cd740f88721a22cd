package realm_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	realm "go.pilab.hu/realm"
	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage/memory"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// publicKeyBody renders a public key the way the realm stores it:
// base64 DER with the PEM armor stripped.
func publicKeyBody(t *testing.T, key *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	var body []string
	for _, line := range strings.Split(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), "\n") {
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body = append(body, line)
	}
	return strings.Join(body, "\n")
}

func TestKeyMaterial(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := newTestManager(t, store, "acme")

	t.Run("no key material decodes to nil", func(t *testing.T) {
		key, err := m.PublicKey()
		require.NoError(t, err)
		assert.Nil(t, key)

		private, err := m.PrivateKey()
		require.NoError(t, err)
		assert.Nil(t, private)
	})

	keyPair := generateKey(t)

	t.Run("set key stores stripped material and persists", func(t *testing.T) {
		require.NoError(t, m.SetPublicKey(ctx, &keyPair.PublicKey))
		assert.NotContains(t, m.PublicKeyPEM(), "-----")

		decoded, err := m.PublicKey()
		require.NoError(t, err)
		require.NotNil(t, decoded)
		assert.Zero(t, decoded.N.Cmp(keyPair.PublicKey.N))

		var reloaded domain.Realm
		require.NoError(t, store.Get(ctx, &reloaded, m.Record().StoreID))
		assert.Equal(t, m.PublicKeyPEM(), reloaded.PublicKeyPEM)
	})

	t.Run("setting new pem invalidates the cached key", func(t *testing.T) {
		replacement := generateKey(t)
		require.NoError(t, m.SetPublicKeyPEM(ctx, publicKeyBody(t, &replacement.PublicKey)))

		decoded, err := m.PublicKey()
		require.NoError(t, err)
		require.NotNil(t, decoded)
		assert.Zero(t, decoded.N.Cmp(replacement.PublicKey.N))
		assert.NotZero(t, decoded.N.Cmp(keyPair.PublicKey.N))
	})

	t.Run("private key round-trips", func(t *testing.T) {
		require.NoError(t, m.SetPrivateKey(ctx, keyPair))
		assert.NotContains(t, m.PrivateKeyPEM(), "-----")

		decoded, err := m.PrivateKey()
		require.NoError(t, err)
		require.NotNil(t, decoded)
		assert.Zero(t, decoded.D.Cmp(keyPair.D))
	})

	t.Run("undecodable material is a crypto error", func(t *testing.T) {
		require.NoError(t, m.SetPublicKeyPEM(ctx, "not base64!!"))
		_, err := m.PublicKey()
		require.Error(t, err)
		var cryptoErr *realm.CryptoError
		require.ErrorAs(t, err, &cryptoErr)
		assert.Equal(t, "decode public key", cryptoErr.Op)
	})

	t.Run("manager instances do not share the cache", func(t *testing.T) {
		other := realm.NewManager(m.Record(), store)
		require.NoError(t, other.SetPublicKeyPEM(ctx, publicKeyBody(t, &keyPair.PublicKey)))

		decoded, err := other.PublicKey()
		require.NoError(t, err)
		assert.Zero(t, decoded.N.Cmp(keyPair.PublicKey.N))
	})
}
