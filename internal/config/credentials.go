package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// StorageKey is the key the credentials document is persisted under.
	StorageKey = "r2Config"

	// EndpointDomain is the R2 API domain; the account id is its first label.
	EndpointDomain = "r2.cloudflarestorage.com"
)

var (
	// ErrNotConfigured is returned when no credentials are available or a
	// required field is empty.
	ErrNotConfigured = errors.New("not configured")

	// ErrReadOnly is returned by providers that cannot persist credentials.
	ErrReadOnly = errors.New("provider is read-only")
)

// Credentials locate a bucket and carry the key pair used to sign requests
// against it.
type Credentials struct {
	AccountID       string `json:"accountId" env:"TEMPBIN_ACCOUNT_ID"`
	AccessKeyID     string `json:"accessKeyId" env:"TEMPBIN_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secretAccessKey" env:"TEMPBIN_SECRET_ACCESS_KEY"`
	BucketName      string `json:"bucketName" env:"TEMPBIN_BUCKET"`

	// PublicURL, when set, is a base URL (typically a CDN or custom domain)
	// that serves the bucket publicly. Retrieval URLs are then built from it
	// without signing.
	PublicURL string `json:"publicUrl,omitempty" env:"TEMPBIN_PUBLIC_URL"`
}

// Validate returns ErrNotConfigured naming every missing required field.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AccountID) == "" {
		missing = append(missing, "account id")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "access key id")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "secret access key")
	}
	if strings.TrimSpace(c.BucketName) == "" {
		missing = append(missing, "bucket name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Host returns <accountId>.r2.cloudflarestorage.com.
func (c Credentials) Host() string {
	return c.AccountID + "." + EndpointDomain
}

// Endpoint returns the HTTPS base URL of the account's API endpoint.
func (c Credentials) Endpoint() string {
	return "https://" + c.Host()
}
