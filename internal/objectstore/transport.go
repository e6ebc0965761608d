package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// maxResponseBody bounds how much of an error document is kept.
const maxResponseBody = 1 << 20

// SignedRequest is a fully signed request ready to be sent as-is.
type SignedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what the transport got back.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a signed request exactly once. Implementations must not
// retry and must not add or change signed headers.
type Transport interface {
	Send(ctx context.Context, req *SignedRequest) (*Response, error)
}

// HTTPTransport sends requests with an *http.Client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport using client, or
// http.DefaultClient when client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Send(ctx context.Context, req *SignedRequest) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for name, values := range req.Header {
		// net/http takes the Host header from Request.Host only.
		if strings.EqualFold(name, "Host") {
			if len(values) > 0 {
				httpReq.Host = values[0]
			}
			continue
		}
		httpReq.Header[name] = values
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
