package realm

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists reports a duplicate login or role name within a
	// realm on a create path.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound reports a missing referenced entity on a write path.
	// Read paths report absence by returning nil, not an error.
	ErrNotFound = errors.New("not found")
	// ErrUnknownCredentialType reports a required-credential type with
	// no built-in template.
	ErrUnknownCredentialType = errors.New("unknown credential type")
)

// CryptoError reports a key decode or encode failure. These are fatal
// for the operation and never retried.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("realm: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }
