package emulator_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/femidj/tempbin/internal/config"
	"github.com/femidj/tempbin/internal/emulator"
	"github.com/femidj/tempbin/internal/objectstore"
	"github.com/femidj/tempbin/internal/sigv4"
	"github.com/femidj/tempbin/internal/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testCreds = config.Credentials{
	AccountID:       "acct",
	AccessKeyID:     "AKIDEXAMPLE",
	SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	BucketName:      "uploads",
}

func newEmulator(t *testing.T, now func() time.Time) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	server, err := emulator.NewServer(emulator.Config{
		Engine: storage.NewLocalFileStorage(filepath.Join(dir, "objects")),
		DBPath: filepath.Join(dir, "meta.db"),
		Credentials: sigv4.Credentials{
			AccessKeyID:     testCreds.AccessKeyID,
			SecretAccessKey: testCreds.SecretAccessKey,
		},
		Now: now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(ts *httptest.Server, creds config.Credentials, opts ...objectstore.Option) *objectstore.Client {
	opts = append([]objectstore.Option{
		objectstore.WithEndpoint(ts.URL),
		objectstore.WithTransport(objectstore.NewHTTPTransport(ts.Client())),
	}, opts...)
	return objectstore.New(config.Static(creds), opts...)
}

func get(t *testing.T, ts *httptest.Server, link string) (int, string) {
	t.Helper()
	resp, err := ts.Client().Get(link)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestUploadFetchDeleteRoundTrip(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)
	ctx := context.Background()

	res, err := client.Upload(ctx, objectstore.UploadInput{
		Body:        []byte("hello, emulator"),
		FileName:    "my file (1).txt",
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	require.Equal(t, "my file (1).txt", res.Key)

	status, body := get(t, ts, res.URL)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hello, emulator", body)

	require.NoError(t, client.Delete(ctx, res.Key))

	status, _ = get(t, ts, res.URL)
	require.Equal(t, http.StatusNotFound, status)

	// A second delete hits 404, which the client treats as success.
	require.NoError(t, client.Delete(ctx, res.Key))
}

func TestAnonymizedUpload(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)

	res, err := client.Upload(context.Background(), objectstore.UploadInput{
		Body:      []byte("%PDF-1.4"),
		FileName:  "report.pdf",
		Anonymize: true,
	})
	require.NoError(t, err)
	require.Regexp(t, `^[0-9a-f]{16}\.pdf$`, res.Key)

	status, body := get(t, ts, res.URL)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "%PDF-1.4", body)
}

func TestSharedPayloadSurvivesDelete(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)
	ctx := context.Background()

	a, err := client.Upload(ctx, objectstore.UploadInput{Body: []byte("same"), FileName: "a.txt"})
	require.NoError(t, err)
	b, err := client.Upload(ctx, objectstore.UploadInput{Body: []byte("same"), FileName: "b.txt"})
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, a.Key))

	status, body := get(t, ts, b.URL)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "same", body)
}

func TestUploadKeepsContentTypeWhitespace(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)

	res, err := client.Upload(context.Background(), objectstore.UploadInput{
		Body:        []byte("spaced"),
		FileName:    "spaced.txt",
		ContentType: "text/plain;  charset=utf-8",
	})
	require.NoError(t, err)

	resp, err := ts.Client().Get(res.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain;  charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestConcurrentPutAndDeleteOfSharedPayload(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)
	ctx := context.Background()
	body := []byte("shared payload")

	for i := range 50 {
		a := fmt.Sprintf("a-%d.txt", i)
		b := fmt.Sprintf("b-%d.txt", i)

		_, err := client.Upload(ctx, objectstore.UploadInput{Body: body, FileName: a})
		require.NoError(t, err)

		var eg errgroup.Group
		var uploaded *objectstore.UploadResult
		eg.Go(func() error {
			res, err := client.Upload(ctx, objectstore.UploadInput{Body: body, FileName: b})
			uploaded = res
			return err
		})
		eg.Go(func() error {
			return client.Delete(ctx, a)
		})
		require.NoError(t, eg.Wait())

		status, got := get(t, ts, uploaded.URL)
		require.Equal(t, http.StatusOK, status, "round %d", i)
		require.Equal(t, string(body), got)

		require.NoError(t, client.Delete(ctx, b))
	}
}

func TestWrongSecretRejected(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	bad := testCreds
	bad.SecretAccessKey = "not-the-secret"
	client := newClient(ts, bad)

	_, err := client.Upload(context.Background(), objectstore.UploadInput{Body: []byte("x"), FileName: "x.txt"})
	var rejected *objectstore.RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusForbidden, rejected.StatusCode)
	require.Contains(t, rejected.Body, "SignatureDoesNotMatch")
}

func TestUnsignedRequestRejected(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/uploads/x.txt", strings.NewReader("x"))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
}

func TestExpiredPresignedURLRejected(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	var skew atomic.Int64
	ts := newEmulator(t, func() time.Time { return start.Add(time.Duration(skew.Load())) })
	client := newClient(ts, testCreds, objectstore.WithClock(func() time.Time { return start }))
	ctx := context.Background()

	res, err := client.Upload(ctx, objectstore.UploadInput{Body: []byte("x"), FileName: "x.txt"})
	require.NoError(t, err)

	link, err := client.PresignGet(ctx, res.Key, time.Minute)
	require.NoError(t, err)

	status, _ := get(t, ts, link)
	require.Equal(t, http.StatusOK, status)

	skew.Store(int64(2 * time.Minute))
	status, body := get(t, ts, link)
	require.Equal(t, http.StatusForbidden, status)
	require.Contains(t, body, "AccessDenied")
}

func TestTamperedPresignedURLRejected(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)
	ctx := context.Background()

	_, err := client.Upload(ctx, objectstore.UploadInput{Body: []byte("a"), FileName: "a.txt"})
	require.NoError(t, err)
	_, err = client.Upload(ctx, objectstore.UploadInput{Body: []byte("b"), FileName: "b.txt"})
	require.NoError(t, err)

	link, err := client.PresignGet(ctx, "a.txt", time.Minute)
	require.NoError(t, err)

	status, _ := get(t, ts, strings.Replace(link, "/a.txt?", "/b.txt?", 1))
	require.Equal(t, http.StatusForbidden, status)
}

func TestPayloadHashMismatchRejected(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	u := strings.TrimPrefix(ts.URL, "http://")

	// Sign over an empty-body hash, then send a non-empty body.
	st := sigv4.NewSigningTime(time.Now())
	headers := []sigv4.Header{
		{Name: sigv4.HostHeader, Value: u},
		{Name: sigv4.AmzDateHeader, Value: st.TimeFormat()},
		{Name: sigv4.ContentSHAHeader, Value: sigv4.EmptyStringSHA256},
	}
	cr, err := sigv4.NewCanonicalRequest(http.MethodPut, "/uploads/x.txt", "", headers, sigv4.EmptyStringSHA256)
	require.NoError(t, err)
	auth, err := sigv4.NewSigner(sigv4.SHA256Hasher{}).Authorization(sigv4.Credentials{
		AccessKeyID:     testCreds.AccessKeyID,
		SecretAccessKey: testCreds.SecretAccessKey,
	}, st, cr)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/uploads/x.txt", strings.NewReader("not empty"))
	require.NoError(t, err)
	req.Header.Set(sigv4.AmzDateHeader, st.TimeFormat())
	req.Header.Set(sigv4.ContentSHAHeader, sigv4.EmptyStringSHA256)
	req.Header.Set(sigv4.AuthorizationHeader, auth)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(body), "XAmzContentSHA256Mismatch")
}

func TestPresignedURLIsGetOnly(t *testing.T) {
	t.Parallel()

	ts := newEmulator(t, nil)
	client := newClient(ts, testCreds)

	res, err := client.Upload(context.Background(), objectstore.UploadInput{
		Body:        []byte("0123456789"),
		FileName:    "digits.txt",
		ContentType: "text/plain",
	})
	require.NoError(t, err)

	// Presigned URLs are GET-only; a HEAD with the same query must not verify.
	resp, err := ts.Client().Head(res.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
