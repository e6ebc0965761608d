package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/sigv4"

	"github.com/minio/minio-go/v7/pkg/s3utils"
)

const (
	// DefaultExpiry is how long retrieval URLs returned by Upload stay valid.
	DefaultExpiry = 600 * time.Second

	DefaultContentType = "application/octet-stream"
)

// Client uploads, deletes and issues retrieval URLs for objects in one
// bucket. Each call reads the credentials once and captures the clock once;
// nothing is cached between calls, so a Client is safe for concurrent use
// and credential changes apply to the next call.
type Client struct {
	provider  config.Provider
	transport Transport
	hasher    sigv4.Hasher
	signer    *sigv4.Signer
	keys      *KeyGenerator
	now       func() time.Time
	random    io.Reader
	endpoint  string
}

type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHasher replaces the digest and MAC primitives.
func WithHasher(h sigv4.Hasher) Option {
	return func(c *Client) {
		c.hasher = h
	}
}

// WithClock replaces time.Now for signing and key generation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithRandom replaces crypto/rand for key generation.
func WithRandom(r io.Reader) Option {
	return func(c *Client) {
		c.random = r
	}
}

// WithEndpoint sends requests to baseURL (e.g. "http://127.0.0.1:9000")
// instead of the account's R2 endpoint.
func WithEndpoint(baseURL string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(baseURL, "/")
	}
}

// New returns a Client reading credentials from provider.
func New(provider config.Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		hasher:   sigv4.SHA256Hasher{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	c.signer = sigv4.NewSigner(c.hasher)
	c.keys = NewKeyGenerator(c.random, c.now, c.hasher)
	return c
}

// UploadInput describes one file to upload.
type UploadInput struct {
	Body        []byte
	FileName    string
	ContentType string

	// Anonymize replaces the file name with a random-looking key that keeps
	// only the extension.
	Anonymize bool
}

// UploadResult identifies an uploaded object. Key is the permanent object
// name; Delete must be given exactly this value.
type UploadResult struct {
	Key        string
	URL        string
	Size       int64
	UploadedAt time.Time

	// ExpiresAt is zero when URL comes from the public base URL.
	ExpiresAt time.Time
}

// Upload stores in.Body with a signed PUT and returns a retrieval URL valid
// for DefaultExpiry.
func (c *Client) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	if in.FileName == "" {
		return nil, ErrEmptyKey
	}

	key := in.FileName
	if in.Anonymize {
		key, err = c.keys.Generate(in.FileName)
		if err != nil {
			return nil, fmt.Errorf("generate object key: %w", err)
		}
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}

	payloadHash, err := sigv4.HexDigest(c.hasher, in.Body)
	if err != nil {
		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	st := sigv4.NewSigningTime(c.now())
	req, err := c.sign(creds, st, http.MethodPut, key, payloadHash, in.Body, sigv4.Header{
		Name:  sigv4.ContentTypeHeader,
		Value: contentType,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, "upload", req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &RemoteRejectedError{Op: "upload", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	slog.Info("Uploaded object", "bucket", creds.BucketName, "key", key, "size", len(in.Body))

	link, expiresAt, err := c.presign(creds, key, DefaultExpiry)
	if err != nil {
		return nil, fmt.Errorf("object %q uploaded but retrieval URL failed: %w", key, err)
	}

	return &UploadResult{
		Key:        key,
		URL:        link,
		Size:       int64(len(in.Body)),
		UploadedAt: st.Time,
		ExpiresAt:  expiresAt,
	}, nil
}

// Delete removes key with a signed DELETE. An object that is already gone
// (404) counts as deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	creds, err := c.credentials(ctx)
	if err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}

	st := sigv4.NewSigningTime(c.now())
	req, err := c.sign(creds, st, http.MethodDelete, key, sigv4.EmptyStringSHA256, nil)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, "delete", req)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		slog.Debug("Object already absent", "bucket", creds.BucketName, "key", key)
		return nil
	case !isSuccess(resp.StatusCode):
		return &RemoteRejectedError{Op: "delete", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	slog.Info("Deleted object", "bucket", creds.BucketName, "key", key)
	return nil
}

// sign builds the Host, X-Amz-Date and X-Amz-Content-Sha256 headers plus
// extra, and attaches the Authorization header computed over all of them.
func (c *Client) sign(creds config.Credentials, st sigv4.SigningTime, method, key, payloadHash string, body []byte, extra ...sigv4.Header) (*SignedRequest, error) {
	endpoint, host, objectPath, err := c.target(creds, key)
	if err != nil {
		return nil, err
	}

	headers := append([]sigv4.Header{
		{Name: sigv4.HostHeader, Value: host},
		{Name: sigv4.AmzDateHeader, Value: st.TimeFormat()},
		{Name: sigv4.ContentSHAHeader, Value: payloadHash},
	}, extra...)

	cr, err := sigv4.NewCanonicalRequest(method, objectPath, "", headers, payloadHash)
	if err != nil {
		return nil, err
	}

	auth, err := c.signer.Authorization(signingCredentials(creds), st, cr)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(headers)+1)
	for _, h := range headers {
		header.Set(h.Name, h.Value)
	}
	header.Set(sigv4.AuthorizationHeader, auth)

	slog.Debug("Signed request", "method", method, "path", objectPath, "signed_headers", cr.SignedHeaders())

	return &SignedRequest{
		Method: method,
		URL:    endpoint + objectPath,
		Header: header,
		Body:   body,
	}, nil
}

func (c *Client) send(ctx context.Context, op string, req *SignedRequest) (*Response, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// credentials takes the one snapshot an operation works from.
func (c *Client) credentials(ctx context.Context) (config.Credentials, error) {
	if c.provider == nil {
		return config.Credentials{}, ErrConfigMissing
	}
	creds, err := c.provider.Get(ctx)
	if err != nil {
		return config.Credentials{}, err
	}
	if err := creds.Validate(); err != nil {
		return config.Credentials{}, err
	}
	return creds, nil
}

// target returns the base URL, Host header value and /<bucket>/<key> path.
func (c *Client) target(creds config.Credentials, key string) (endpoint, host, objectPath string, err error) {
	endpoint = creds.Endpoint()
	host = creds.Host()
	if c.endpoint != "" {
		u, err := url.Parse(c.endpoint)
		if err != nil || u.Host == "" {
			return "", "", "", fmt.Errorf("invalid endpoint %q", c.endpoint)
		}
		endpoint = c.endpoint
		host = u.Host
	}
	objectPath = "/" + creds.BucketName + "/" + s3utils.EncodePath(key)
	return endpoint, host, objectPath, nil
}

func signingCredentials(creds config.Credentials) sigv4.Credentials {
	return sigv4.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
	}
}

func checkKey(key string) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case !utf8.ValidString(key):
		return ErrInvalidKey
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
