// Package common defines sentinel errors shared by the repository, the object
// store backends and the CLI. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound = errors.New("not found")

	// Repository-level errors.
	ErrorMalformedDocument = errors.New("malformed document")
	ErrorNilDocument       = errors.New("nil or empty document")

	// Configuration errors.
	ErrorMissingNamespace = errors.New("storage namespace is required")
	ErrorUnknownBackend   = errors.New("unknown storage backend")
)
