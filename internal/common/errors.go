// Package common defines shared sentinel errors and small helpers used across
// passkeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. Never surfaced by the stores themselves:
	// absent lookups are reported as nil/empty results.
	ErrorNotFound = errors.New("not found")

	// ErrConfiguration is fatal at startup: unknown backend names, missing or
	// malformed key material.
	ErrConfiguration = errors.New("configuration error")

	// ErrDecryption means an envelope was malformed or failed authentication.
	// Its text is what callers get to see, nothing more.
	ErrDecryption = errors.New("credential data unavailable")

	// ErrStorageUnavailable wraps connection and backend failures.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Registration errors.
	ErrUserHandleMismatch = errors.New("username is bound to a different user handle")
	ErrCredentialClaimed  = errors.New("credential id is owned by another user")
	ErrCredentialLimit    = errors.New("credential limit reached")
)
