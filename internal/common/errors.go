// Package common defines shared constants and sentinel errors used across
// the layers of dynamic-consent. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound     = errors.New("not found")
	ErrFlowConflict = errors.New("conflicting active consent flow")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Consent lifecycle errors.
	ErrAlreadyConsented      = errors.New("already consented")
	ErrAlreadyWithdrawn      = errors.New("signature already withdrawn")
	ErrConsentNotFound       = errors.New("consent not found")
	ErrSignedConsentNotFound = errors.New("signed consent not found")
	ErrCachedConsentNotFound = errors.New("cached consent not found")
	ErrEmptyDocument         = errors.New("signed consent contains no document")

	// Token errors (session tokens and identity bearer tokens).
	ErrInvalidToken        = errors.New("invalid token")
	ErrDecryptFailed       = errors.New("decryption failed")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// Request validation errors.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
