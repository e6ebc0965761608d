package objectstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/sigv4"
)

var (
	// ErrConfigMissing is returned before any network call when credentials
	// are absent or incomplete.
	ErrConfigMissing = config.ErrNotConfigured

	// ErrCryptoUnavailable is returned when the signing primitives fail.
	ErrCryptoUnavailable = sigv4.ErrCryptoUnavailable

	// ErrEmptyKey is returned for empty file names and object keys.
	ErrEmptyKey = errors.New("object key must not be empty")

	// ErrInvalidKey is returned for object keys that are not valid UTF-8.
	// They could not be sent under their own name.
	ErrInvalidKey = errors.New("object key must be valid UTF-8")
)

// RemoteRejectedError reports a non-2xx answer from the object store.
type RemoteRejectedError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteRejectedError) Error() string {
	msg := fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// TransportError wraps a failure to reach the object store at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
