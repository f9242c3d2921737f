// Package common defines the error taxonomy and shared constants used across
// the server layers of TubeKeeper. Callers should use errors.Is to match these
// values; orchestrators wrap them with a detail message.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Caller supplied malformed or missing input. No side effects occurred.
	ErrValidation = errors.New("validation error")

	// Credential or token rejected.
	ErrorUnauthorized = errors.New("unauthorized")

	// Remote object store failure.
	ErrUpload = errors.New("upload failed")

	// Signature or expiry check failed.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Unexpected failure, possibly after partial work.
	ErrorInternal = errors.New("internal error")
)
