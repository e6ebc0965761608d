package objectstore

import (
	"context"
	"strings"
	"time"

	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/sigv4"
)

// PresignGet returns a URL that retrieves key without credentials until
// expires has passed. When the credentials carry a public base URL the
// result is that base joined with key, unsigned and without expiry; the
// public endpoint is trusted to enforce its own access control.
//
// expires must be a positive whole number of seconds. It is not checked
// against the store's upper bound (7 days on S3).
func (c *Client) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return "", err
	}
	if err := checkKey(key); err != nil {
		return "", err
	}

	link, _, err := c.presign(creds, key, expires)
	return link, err
}

func (c *Client) presign(creds config.Credentials, key string, expires time.Duration) (string, time.Time, error) {
	if creds.PublicURL != "" {
		return strings.TrimRight(creds.PublicURL, "/") + "/" + key, time.Time{}, nil
	}

	endpoint, host, objectPath, err := c.target(creds, key)
	if err != nil {
		return "", time.Time{}, err
	}

	st := sigv4.NewSigningTime(c.now())
	query, err := c.signer.Presign(signingCredentials(creds), st, host, objectPath, expires)
	if err != nil {
		return "", time.Time{}, err
	}

	return endpoint + objectPath + "?" + query, st.Add(expires), nil
}
