package realm

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"sync"
)

// keyMaterial caches the decoded key pair of a realm. Decoding happens
// lazily on first access; setting new PEM text invalidates the cached
// key. The cache is per-Manager-instance and guarded by a mutex.
type keyMaterial struct {
	mu      sync.Mutex
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// PublicKey returns the realm's decoded public key, or nil when the
// realm carries none. Decode failures are fatal, not retried.
func (m *Manager) PublicKey() (*rsa.PublicKey, error) {
	m.keys.mu.Lock()
	defer m.keys.mu.Unlock()
	if m.keys.public != nil {
		return m.keys.public, nil
	}
	body := m.realm.PublicKeyPEM
	if body == "" {
		return nil, nil
	}
	key, err := decodePublicKey(body)
	if err != nil {
		return nil, &CryptoError{Op: "decode public key", Err: err}
	}
	m.keys.public = key
	return key, nil
}

// SetPublicKeyPEM replaces the realm's stored public key material and
// invalidates the cached decoded key.
func (m *Manager) SetPublicKeyPEM(ctx context.Context, body string) error {
	m.keys.mu.Lock()
	m.realm.PublicKeyPEM = body
	m.keys.public = nil
	m.keys.mu.Unlock()
	return m.updateRealm(ctx)
}

// SetPublicKey encodes the key, stores it as the realm's key material
// with the PEM armor stripped, and primes the cache with the decoded
// key.
func (m *Manager) SetPublicKey(ctx context.Context, key *rsa.PublicKey) error {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return &CryptoError{Op: "encode public key", Err: err}
	}
	m.keys.mu.Lock()
	m.realm.PublicKeyPEM = stripArmor(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	m.keys.public = key
	m.keys.mu.Unlock()
	return m.updateRealm(ctx)
}

// PrivateKey returns the realm's decoded private key, or nil when the
// realm carries none.
func (m *Manager) PrivateKey() (*rsa.PrivateKey, error) {
	m.keys.mu.Lock()
	defer m.keys.mu.Unlock()
	if m.keys.private != nil {
		return m.keys.private, nil
	}
	body := m.realm.PrivateKeyPEM
	if body == "" {
		return nil, nil
	}
	key, err := decodePrivateKey(body)
	if err != nil {
		return nil, &CryptoError{Op: "decode private key", Err: err}
	}
	m.keys.private = key
	return key, nil
}

// SetPrivateKeyPEM replaces the realm's stored private key material and
// invalidates the cached decoded key.
func (m *Manager) SetPrivateKeyPEM(ctx context.Context, body string) error {
	m.keys.mu.Lock()
	m.realm.PrivateKeyPEM = body
	m.keys.private = nil
	m.keys.mu.Unlock()
	return m.updateRealm(ctx)
}

// SetPrivateKey encodes the key, stores it with the PEM armor stripped,
// and primes the cache.
func (m *Manager) SetPrivateKey(ctx context.Context, key *rsa.PrivateKey) error {
	der := x509.MarshalPKCS1PrivateKey(key)
	m.keys.mu.Lock()
	m.realm.PrivateKeyPEM = stripArmor(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
	m.keys.private = key
	m.keys.mu.Unlock()
	return m.updateRealm(ctx)
}

// Stored key material is base64 DER without the BEGIN/END armor lines,
// possibly wrapped across lines.

func decodePublicKey(body string) (*rsa.PublicKey, error) {
	der, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unexpected public key type %T", key)
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PublicKey(der)
}

func decodePrivateKey(body string) (*rsa.PrivateKey, error) {
	der, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type %T", key)
	}
	return rsaKey, nil
}

func decodeBody(body string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, body)
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return der, nil
}

func stripArmor(pemBytes []byte) string {
	var body []string
	for _, line := range strings.Split(string(pemBytes), "\n") {
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body = append(body, line)
	}
	return strings.Join(body, "\n")
}
