package storage

import "errors"

// ErrNotFound is returned when no payload exists for a hash.
var ErrNotFound = errors.New("payload not found")

// Engine stores object payloads by their SHA-256 hexadecimal hash. Object
// names live in the caller's metadata; the engine only sees hashes.
type Engine interface {
	// PutObject stores data under hashHex within bucket. Storing the same
	// hash twice is not an error.
	PutObject(bucket string, hashHex string, data []byte) error

	// GetObject returns the payload stored under hashHex, or ErrNotFound.
	GetObject(bucket string, hashHex string) ([]byte, error)

	// DeleteObject removes the payload. Missing payloads are ignored.
	DeleteObject(bucket string, hashHex string) error
}
