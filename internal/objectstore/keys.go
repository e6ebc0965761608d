package objectstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/femidj/tempbin/internal/sigv4"
)

// anonymousKeyLength is the number of hex characters kept from the digest.
const anonymousKeyLength = 16

// KeyGenerator produces object keys that do not reveal the original file
// name and cannot be enumerated. Keys are derived from a digest of the
// name, the current time and random bytes, so collisions are unlikely but
// not impossible.
type KeyGenerator struct {
	rand   io.Reader
	now    func() time.Time
	hasher sigv4.Hasher
}

// NewKeyGenerator returns a generator. A nil rand defaults to crypto/rand
// and a nil now to time.Now.
func NewKeyGenerator(random io.Reader, now func() time.Time, hasher sigv4.Hasher) *KeyGenerator {
	if random == nil {
		random = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &KeyGenerator{rand: random, now: now, hasher: hasher}
}

// Generate returns 16 lowercase hex characters followed by the extension of
// name, e.g. "3f9a0c1b2d4e5f60.pdf".
func (g *KeyGenerator) Generate(name string) (string, error) {
	var nonce [8]byte
	if _, err := io.ReadFull(g.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("read random nonce: %w", err)
	}

	seed := name + strconv.FormatInt(g.now().UnixMilli(), 10) + hex.EncodeToString(nonce[:])
	sum, err := sigv4.HexDigest(g.hasher, []byte(seed))
	if err != nil {
		return "", err
	}

	if len(sum) < anonymousKeyLength {
		return "", fmt.Errorf("%w: digest of %d bytes is too short for a key", sigv4.ErrCryptoUnavailable, len(sum)/2)
	}

	return sum[:anonymousKeyLength] + path.Ext(name), nil
}
