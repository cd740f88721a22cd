package realm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
)

// CredentialStatus is the outcome of a credential validation.
type CredentialStatus int

const (
	StatusInvalid CredentialStatus = iota
	StatusValid
)

// CredentialHandler implements validation and storage for one
// credential type. Handlers are injected into the Manager at
// construction so realms and tests can carry different strategies.
type CredentialHandler interface {
	// Validate checks supplied secret material against what is stored
	// for the user. An unrecognizable or missing stored credential is
	// StatusInvalid, not an error.
	Validate(ctx context.Context, store storage.Store, user *domain.User, supplied string) (CredentialStatus, error)
	// Update stores new secret material for the user and persists the
	// user record. Device is credential-type specific and may be empty.
	Update(ctx context.Context, store storage.Store, user *domain.User, value, device string) error
}

// PasswordHandler stores and checks bcrypt password hashes.
type PasswordHandler struct {
	cost int
}

var _ CredentialHandler = (*PasswordHandler)(nil)

// NewPasswordHandler creates a PasswordHandler. Cost defaults to
// bcrypt.DefaultCost when non-positive.
func NewPasswordHandler(cost int) *PasswordHandler {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHandler{cost: cost}
}

func (h *PasswordHandler) Validate(_ context.Context, _ storage.Store, user *domain.User, supplied string) (CredentialStatus, error) {
	if user.PasswordHash == "" {
		return StatusInvalid, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(supplied))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return StatusInvalid, nil
	}
	if err != nil {
		return StatusInvalid, fmt.Errorf("compare password hash: %w", err)
	}
	return StatusValid, nil
}

func (h *PasswordHandler) Update(ctx context.Context, store storage.Store, user *domain.User, value, _ string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(value), h.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now().UTC()
	return store.Save(ctx, user)
}

// TOTPHandler stores one-time-password secrets. Validation is not
// implemented in this revision and always fails; do not mistake the
// stub for a passing no-op.
type TOTPHandler struct{}

var _ CredentialHandler = (*TOTPHandler)(nil)

func (TOTPHandler) Validate(context.Context, storage.Store, *domain.User, string) (CredentialStatus, error) {
	return StatusInvalid, nil
}

func (TOTPHandler) Update(ctx context.Context, store storage.Store, user *domain.User, value, _ string) error {
	user.TOTPSecret = value
	user.UpdatedAt = time.Now().UTC()
	return store.Save(ctx, user)
}
