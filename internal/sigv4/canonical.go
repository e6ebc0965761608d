package sigv4

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateHeader is returned when two headers share a name once
// lower-cased. Only one value per name is supported.
var ErrDuplicateHeader = errors.New("duplicate header")

// Header is a single signed header.
type Header struct {
	Name  string
	Value string
}

// CanonicalRequest is the exact byte sequence a signature covers. Build it
// with NewCanonicalRequest so headers are normalized and sorted.
type CanonicalRequest struct {
	Method      string
	Path        string
	Query       string
	Headers     []Header
	PayloadHash string
}

// NewCanonicalRequest lower-cases and trims the given headers and sorts them
// by name. The input order does not matter.
func NewCanonicalRequest(method, path, query string, headers []Header, payloadHash string) (CanonicalRequest, error) {
	normalized := make([]Header, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h.Name))
		if _, ok := seen[name]; ok {
			return CanonicalRequest{}, fmt.Errorf("%w: %s", ErrDuplicateHeader, name)
		}
		seen[name] = struct{}{}
		normalized = append(normalized, Header{Name: name, Value: strings.TrimSpace(h.Value)})
	}
	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].Name < normalized[j].Name
	})

	if path == "" {
		path = "/"
	}

	return CanonicalRequest{
		Method:      method,
		Path:        path,
		Query:       query,
		Headers:     normalized,
		PayloadHash: payloadHash,
	}, nil
}

// SignedHeaders returns the semicolon-joined header names.
func (c CanonicalRequest) SignedHeaders() string {
	names := make([]string, len(c.Headers))
	for i, h := range c.Headers {
		names[i] = h.Name
	}
	return strings.Join(names, ";")
}

// CanonicalHeaders returns one "name:value\n" line per header.
func (c CanonicalRequest) CanonicalHeaders() string {
	var b strings.Builder
	for _, h := range c.Headers {
		b.WriteString(h.Name)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

// String serializes METHOD\nPATH\nQUERY\nHEADERS\n\nSIGNEDHEADERS\nHASH.
// HEADERS already ends in a newline, which produces the blank line before
// the signed header list.
func (c CanonicalRequest) String() string {
	var b strings.Builder
	b.WriteString(c.Method)
	b.WriteString("\n")
	b.WriteString(c.Path)
	b.WriteString("\n")
	b.WriteString(c.Query)
	b.WriteString("\n")
	b.WriteString(c.CanonicalHeaders())
	b.WriteString("\n")
	b.WriteString(c.SignedHeaders())
	b.WriteString("\n")
	b.WriteString(c.PayloadHash)
	return b.String()
}

// Hash returns the hex digest of the serialized request.
func (c CanonicalRequest) Hash(h Hasher) (string, error) {
	return HexDigest(h, []byte(c.String()))
}

// EncodeQueryValue applies AWS URI encoding: unreserved characters are kept,
// everything else, including '/', becomes %XX with upper-case hex.
func EncodeQueryValue(s string) string {
	return uriEncode(s, true)
}

func uriEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		if c == '/' && !encodeSlash {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%")
		b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}
