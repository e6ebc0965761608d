package sigv4

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingCredentials is returned before any computation when the
	// access key or secret is empty.
	ErrMissingCredentials = errors.New("missing signing credentials")

	// ErrInvalidExpiry is returned for presign expiries that are not a
	// positive whole number of seconds.
	ErrInvalidExpiry = errors.New("expiry must be a positive whole number of seconds")
)

// Credentials are the long-term key pair used to derive signing keys.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Validate reports every missing field.
func (c Credentials) Validate() error {
	var missing []string
	if c.AccessKeyID == "" {
		missing = append(missing, "access key id")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "secret access key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Signature is the result of signing one canonical request.
type Signature struct {
	Scope         Scope
	SignedHeaders string
	Value         string
}

// Signer computes SigV4 signatures. It keeps no per-request state and is
// safe for concurrent use.
type Signer struct {
	hasher  Hasher
	region  string
	service string
}

type Option func(*Signer)

func WithRegion(region string) Option {
	return func(s *Signer) {
		s.region = region
	}
}

func WithService(service string) Option {
	return func(s *Signer) {
		s.service = service
	}
}

// NewSigner returns a Signer for region "auto" and service "s3" unless
// overridden. A nil hasher makes every signing call fail with
// ErrCryptoUnavailable.
func NewSigner(h Hasher, opts ...Option) *Signer {
	s := &Signer{
		hasher:  h,
		region:  DefaultRegion,
		service: DefaultService,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hasher returns the primitives the signer was built with.
func (s *Signer) Hasher() Hasher {
	return s.hasher
}

// Scope returns the credential scope for t.
func (s *Signer) Scope(t SigningTime) Scope {
	return NewScope(t, s.region, s.service)
}

// StringToSign builds ALGORITHM\nTIMESTAMP\nSCOPE\nHEX(DIGEST(canonical)).
func (s *Signer) StringToSign(t SigningTime, scope Scope, cr CanonicalRequest) (string, error) {
	crHash, err := cr.Hash(s.hasher)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		Algorithm,
		t.TimeFormat(),
		scope.String(),
		crHash,
	}, "\n"), nil
}

// Sign derives the signing key for t and signs cr with it.
func (s *Signer) Sign(creds Credentials, t SigningTime, cr CanonicalRequest) (Signature, error) {
	if err := creds.Validate(); err != nil {
		return Signature{}, err
	}

	scope := s.Scope(t)
	stringToSign, err := s.StringToSign(t, scope, cr)
	if err != nil {
		return Signature{}, err
	}

	key, err := DeriveSigningKey(s.hasher, creds.SecretAccessKey, scope)
	if err != nil {
		return Signature{}, err
	}

	sig, err := mac(s.hasher, key, stringToSign)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		Scope:         scope,
		SignedHeaders: cr.SignedHeaders(),
		Value:         hex.EncodeToString(sig),
	}, nil
}

// Authorization signs cr and formats the Authorization header value.
func (s *Signer) Authorization(creds Credentials, t SigningTime, cr CanonicalRequest) (string, error) {
	sig, err := s.Sign(creds, t, cr)
	if err != nil {
		return "", err
	}
	return FormatAuthorization(creds.AccessKeyID, sig), nil
}

// FormatAuthorization renders
// "AWS4-HMAC-SHA256 Credential=<ak>/<scope>, SignedHeaders=<sh>, Signature=<sig>".
func FormatAuthorization(accessKeyID string, sig Signature) string {
	var b strings.Builder
	b.WriteString(Algorithm)
	b.WriteString(" Credential=")
	b.WriteString(accessKeyID)
	b.WriteByte('/')
	b.WriteString(sig.Scope.String())
	b.WriteString(", SignedHeaders=")
	b.WriteString(sig.SignedHeaders)
	b.WriteString(", Signature=")
	b.WriteString(sig.Value)
	return b.String()
}

// PresignQuery builds the unsigned presign query in its fixed order:
// algorithm, credential, date, expires, signed headers.
func (s *Signer) PresignQuery(creds Credentials, t SigningTime, expires time.Duration) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	seconds, err := expirySeconds(expires)
	if err != nil {
		return "", err
	}

	credential := creds.AccessKeyID + "/" + s.Scope(t).String()
	params := []string{
		AmzAlgorithmKey + "=" + Algorithm,
		AmzCredentialKey + "=" + EncodeQueryValue(credential),
		AmzDateKey + "=" + t.TimeFormat(),
		AmzExpiresKey + "=" + strconv.FormatInt(seconds, 10),
		AmzSignedHeadersKey + "=host",
	}
	return strings.Join(params, "&"), nil
}

// Presign signs a GET of path on host for anonymous retrieval and returns
// the complete query string, X-Amz-Signature last.
func (s *Signer) Presign(creds Credentials, t SigningTime, host, path string, expires time.Duration) (string, error) {
	query, err := s.PresignQuery(creds, t, expires)
	if err != nil {
		return "", err
	}

	cr, err := NewCanonicalRequest("GET", path, query, []Header{{Name: "host", Value: host}}, UnsignedPayload)
	if err != nil {
		return "", err
	}

	sig, err := s.Sign(creds, t, cr)
	if err != nil {
		return "", err
	}

	return query + "&" + AmzSignatureKey + "=" + sig.Value, nil
}

func expirySeconds(expires time.Duration) (int64, error) {
	if expires < time.Second || expires%time.Second != 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidExpiry, expires)
	}
	return int64(expires / time.Second), nil
}
