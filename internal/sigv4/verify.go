package sigv4

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsigned               = errors.New("request is not signed")
	ErrMalformedAuthorization = errors.New("malformed authorization")
	ErrUnknownAccessKey       = errors.New("unknown access key")
	ErrSignatureMismatch      = errors.New("signature does not match")
	ErrExpired                = errors.New("presigned request has expired")
)

// SecretLookup resolves the secret for an access key id.
type SecretLookup func(accessKeyID string) (secret string, ok bool)

// StaticSecret returns a SecretLookup that knows exactly one key pair.
func StaticSecret(creds Credentials) SecretLookup {
	return func(accessKeyID string) (string, bool) {
		if accessKeyID != creds.AccessKeyID {
			return "", false
		}
		return creds.SecretAccessKey, true
	}
}

// Verifier checks incoming requests signed either with an Authorization
// header or with a presigned query string.
type Verifier struct {
	hasher Hasher
	lookup SecretLookup
	now    func() time.Time
}

// NewVerifier returns a Verifier using time.Now as its clock.
func NewVerifier(h Hasher, lookup SecretLookup) *Verifier {
	return &Verifier{
		hasher: h,
		lookup: lookup,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for presign expiry checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify authenticates r and returns the access key id that signed it.
func (v *Verifier) Verify(r *http.Request) (string, error) {
	if auth := r.Header.Get(AuthorizationHeader); auth != "" {
		return v.verifyHeader(r, auth)
	}
	if r.URL.Query().Has(AmzSignatureKey) {
		return v.verifyPresigned(r)
	}
	return "", ErrUnsigned
}

type credential struct {
	accessKeyID string
	scope       Scope
}

func parseCredential(s string) (credential, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 5 || parts[4] != ScopeTerminator {
		return credential{}, fmt.Errorf("%w: credential %q", ErrMalformedAuthorization, s)
	}
	for _, p := range parts[:4] {
		if p == "" {
			return credential{}, fmt.Errorf("%w: credential %q", ErrMalformedAuthorization, s)
		}
	}
	return credential{
		accessKeyID: parts[0],
		scope:       Scope{DateStamp: parts[1], Region: parts[2], Service: parts[3]},
	}, nil
}

func (v *Verifier) verifyHeader(r *http.Request, auth string) (string, error) {
	if !strings.HasPrefix(auth, Algorithm+" ") {
		return "", fmt.Errorf("%w: unsupported algorithm", ErrMalformedAuthorization)
	}

	params := strings.TrimSpace(strings.TrimPrefix(auth, Algorithm+" "))
	kv := make(map[string]string, 3)
	for _, p := range strings.Split(params, ",") {
		p = strings.TrimSpace(p)
		idx := strings.IndexByte(p, '=')
		if idx <= 0 {
			continue
		}
		kv[p[:idx]] = strings.TrimSpace(p[idx+1:])
	}

	credStr, okCred := kv["Credential"]
	signedHeaders, okSigned := kv["SignedHeaders"]
	signature, okSig := kv["Signature"]
	if !okCred || !okSigned || !okSig {
		return "", fmt.Errorf("%w: missing Credential, SignedHeaders or Signature", ErrMalformedAuthorization)
	}

	cred, err := parseCredential(credStr)
	if err != nil {
		return "", err
	}

	t, err := ParseSigningTime(r.Header.Get(AmzDateHeader))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedAuthorization, AmzDateHeader, err)
	}

	payloadHash := r.Header.Get(ContentSHAHeader)
	if payloadHash == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedAuthorization, ContentSHAHeader)
	}

	cr, err := NewCanonicalRequest(
		r.Method,
		r.URL.EscapedPath(),
		canonicalQueryString(r.URL.Query(), ""),
		requestHeaders(r, strings.Split(signedHeaders, ";")),
		payloadHash,
	)
	if err != nil {
		return "", err
	}

	return cred.accessKeyID, v.check(cred, t, cr, signature)
}

func (v *Verifier) verifyPresigned(r *http.Request) (string, error) {
	query := r.URL.Query()
	if query.Get(AmzAlgorithmKey) != Algorithm {
		return "", fmt.Errorf("%w: unsupported algorithm", ErrMalformedAuthorization)
	}

	cred, err := parseCredential(query.Get(AmzCredentialKey))
	if err != nil {
		return "", err
	}

	t, err := ParseSigningTime(query.Get(AmzDateKey))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedAuthorization, AmzDateKey, err)
	}

	seconds, err := strconv.ParseInt(query.Get(AmzExpiresKey), 10, 64)
	if err != nil || seconds <= 0 {
		return "", fmt.Errorf("%w: %s", ErrMalformedAuthorization, AmzExpiresKey)
	}
	if v.now().After(t.Add(time.Duration(seconds) * time.Second)) {
		return "", ErrExpired
	}

	payloadHash := query.Get(ContentSHAHeader)
	if payloadHash == "" {
		payloadHash = UnsignedPayload
	}

	cr, err := NewCanonicalRequest(
		r.Method,
		r.URL.EscapedPath(),
		canonicalQueryString(query, AmzSignatureKey),
		requestHeaders(r, strings.Split(query.Get(AmzSignedHeadersKey), ";")),
		payloadHash,
	)
	if err != nil {
		return "", err
	}

	return cred.accessKeyID, v.check(cred, t, cr, query.Get(AmzSignatureKey))
}

func (v *Verifier) check(cred credential, t SigningTime, cr CanonicalRequest, signature string) error {
	if cred.scope.DateStamp != t.ShortTimeFormat() {
		return fmt.Errorf("%w: scope date %s does not match request date", ErrMalformedAuthorization, cred.scope.DateStamp)
	}

	secret, ok := v.lookup(cred.accessKeyID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccessKey, cred.accessKeyID)
	}

	signer := NewSigner(v.hasher, WithRegion(cred.scope.Region), WithService(cred.scope.Service))
	expected, err := signer.Sign(Credentials{AccessKeyID: cred.accessKeyID, SecretAccessKey: secret}, t, cr)
	if err != nil {
		return err
	}

	if !hmac.Equal([]byte(expected.Value), []byte(strings.ToLower(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

func requestHeaders(r *http.Request, names []string) []Header {
	headers := make([]Header, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		var value string
		if name == "host" {
			value = r.Host
			if value == "" {
				value = r.URL.Host
			}
		} else {
			value = strings.TrimSpace(r.Header.Get(name))
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	return headers
}

// canonicalQueryString sorts and re-encodes values, leaving out skip.
func canonicalQueryString(values url.Values, skip string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, uriEncode(k, true)+"="+uriEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}
