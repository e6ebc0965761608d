package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrCryptoUnavailable is returned whenever the digest or MAC primitives
// cannot be used. Signing never falls back to an unsigned request.
var ErrCryptoUnavailable = errors.New("crypto unavailable")

// Hasher provides the two primitives the protocol is built on: a 256-bit
// digest and a keyed MAC over the same hash function.
type Hasher interface {
	Digest(data []byte) ([]byte, error)
	MAC(key, message []byte) ([]byte, error)
}

// SHA256Hasher implements Hasher with SHA-256 and HMAC-SHA256.
type SHA256Hasher struct{}

func (SHA256Hasher) Digest(data []byte) ([]byte, error) {
	sum := sha256.Sum256(data)
	return sum[:], nil
}

func (SHA256Hasher) MAC(key, message []byte) ([]byte, error) {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil), nil
}

// UnavailableHasher fails every call. It stands in for environments where
// no cryptographic provider can be reached.
type UnavailableHasher struct {
	Reason string
}

func (u UnavailableHasher) Digest([]byte) ([]byte, error) {
	return nil, u.err()
}

func (u UnavailableHasher) MAC([]byte, []byte) ([]byte, error) {
	return nil, u.err()
}

func (u UnavailableHasher) err() error {
	if u.Reason == "" {
		return ErrCryptoUnavailable
	}
	return fmt.Errorf("%w: %s", ErrCryptoUnavailable, u.Reason)
}

// HexDigest returns the lowercase hex digest of data.
func HexDigest(h Hasher, data []byte) (string, error) {
	sum, err := digest(h, data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func digest(h Hasher, data []byte) ([]byte, error) {
	if h == nil {
		return nil, ErrCryptoUnavailable
	}
	sum, err := h.Digest(data)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	return sum, nil
}

func mac(h Hasher, key []byte, message string) ([]byte, error) {
	if h == nil {
		return nil, ErrCryptoUnavailable
	}
	sum, err := h.MAC(key, []byte(message))
	if err != nil {
		return nil, wrapCrypto(err)
	}
	return sum, nil
}

func wrapCrypto(err error) error {
	if errors.Is(err, ErrCryptoUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
}
