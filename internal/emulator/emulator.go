package emulator

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/femidj/tempbin/internal/sigv4"
	"github.com/femidj/tempbin/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds configuration for the local R2-compatible endpoint.
type Config struct {
	// Engine stores object payloads.
	Engine storage.Engine
	// DBPath is the path to the SQLite metadata database.
	DBPath string
	// Credentials is the only key pair the endpoint accepts.
	Credentials sigv4.Credentials
	// Now is the clock used for presigned URL expiry. Defaults to time.Now.
	Now func() time.Time
}

// Server is a minimal S3-compatible endpoint for PUT, GET, HEAD and DELETE
// of single objects. Every request must carry a valid SigV4 signature,
// either in the Authorization header or as a presigned query.
type Server struct {
	cfg      Config
	db       *sql.DB
	verifier *sigv4.Verifier

	// mu keeps payload files and the metadata rows referencing them in
	// step. Payloads are shared by hash, so a PUT must not land between a
	// DELETE's reference count and its payload removal.
	mu sync.RWMutex
}

// NewServer initializes the metadata database and returns a new Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("emulator: storage engine is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("emulator: metadata database path is required")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	verifier := sigv4.NewVerifier(sigv4.SHA256Hasher{}, sigv4.StaticSecret(cfg.Credentials)).WithClock(cfg.Now)

	return &Server{cfg: cfg, db: db, verifier: verifier}, nil
}

// Close releases the metadata database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Handler returns the endpoint's http.Handler, wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Catch-all handler; we parse bucket/key from the path.
	mux.HandleFunc("/", s.handleRoot)
	return LoggingMiddleware(mux)
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS objects (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			hash TEXT NOT NULL,
			size INTEGER NOT NULL,
			content_type TEXT,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (bucket, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_hash ON objects(bucket, hash);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	bucket, key := parseBucketAndKey(r.URL.Path)
	if bucket == "" || key == "" {
		writeS3Error(w, "NotImplemented", "Only single-object operations are supported", r.URL.Path, http.StatusNotImplemented)
		return
	}

	if _, err := s.verifier.Verify(r); err != nil {
		slog.Debug("Rejected request", "method", r.Method, "path", r.URL.Path, "err", err)
		switch {
		case errors.Is(err, sigv4.ErrSignatureMismatch):
			writeS3Error(w, "SignatureDoesNotMatch", "The request signature we calculated does not match the signature you provided.", r.URL.Path, http.StatusForbidden)
		case errors.Is(err, sigv4.ErrUnknownAccessKey):
			writeS3Error(w, "InvalidAccessKeyId", "The access key ID you provided does not exist in our records.", r.URL.Path, http.StatusForbidden)
		case errors.Is(err, sigv4.ErrExpired):
			writeS3Error(w, "AccessDenied", "Request has expired", r.URL.Path, http.StatusForbidden)
		default:
			writeS3Error(w, "AccessDenied", err.Error(), r.URL.Path, http.StatusForbidden)
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handlePutObject(w, r, bucket, key)
	case http.MethodGet, http.MethodHead:
		s.handleGetObject(w, r, bucket, key)
	case http.MethodDelete:
		s.handleDeleteObject(w, r, bucket, key)
	default:
		writeS3Error(w, "MethodNotAllowed", "The specified method is not allowed against this resource.", r.URL.Path, http.StatusMethodNotAllowed)
	}
}

func parseBucketAndKey(path string) (bucket, key string) {
	clean := strings.TrimPrefix(path, "/")
	bucket, key, _ = strings.Cut(clean, "/")
	return bucket, key
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("read request body", "err", err)
		writeS3Error(w, "InvalidRequest", "Failed to read request body", r.URL.Path, http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])

	if declared := r.Header.Get(sigv4.ContentSHAHeader); declared != sigv4.UnsignedPayload && declared != hashHex {
		writeS3Error(w, "XAmzContentSHA256Mismatch", "The provided 'x-amz-content-sha256' header does not match what was computed.", r.URL.Path, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Engine.PutObject(bucket, hashHex, data); err != nil {
		slog.Error("store object payload", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.db.Exec(
		`INSERT INTO objects(bucket, key, hash, size, content_type, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(bucket, key) DO UPDATE SET
		 	hash=excluded.hash,
		 	size=excluded.size,
		 	content_type=excluded.content_type,
		 	created_at=excluded.created_at`,
		bucket, key, hashHex, len(data), contentType, s.cfg.Now().UTC(),
	)
	if err != nil {
		slog.Error("upsert object metadata", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", hashHex))
	w.WriteHeader(http.StatusOK)
}

type objectRecord struct {
	hash        string
	size        int64
	contentType string
	createdAt   time.Time
}

func (s *Server) lookup(bucket, key string) (objectRecord, error) {
	var rec objectRecord
	var contentType sql.NullString
	err := s.db.QueryRow(
		`SELECT hash, size, content_type, created_at FROM objects WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&rec.hash, &rec.size, &contentType, &rec.createdAt)
	rec.contentType = contentType.String
	return rec, err
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookup(bucket, key)
	if errors.Is(err, sql.ErrNoRows) {
		writeS3Error(w, "NoSuchKey", "The specified key does not exist.", r.URL.Path, http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("lookup object", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", rec.contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.size, 10))
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", rec.hash))
	w.Header().Set("Last-Modified", rec.createdAt.UTC().Format(http.TimeFormat))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	data, err := s.cfg.Engine.GetObject(bucket, rec.hash)
	if err != nil {
		slog.Error("read object payload", "bucket", bucket, "key", key, "err", err)
		w.Header().Del("Content-Length")
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(bucket, key)
	if errors.Is(err, sql.ErrNoRows) {
		writeS3Error(w, "NoSuchKey", "The specified key does not exist.", r.URL.Path, http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("lookup object", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	if _, err := s.db.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		slog.Error("delete object metadata", "bucket", bucket, "key", key, "err", err)
		writeS3Error(w, "InternalError", "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	// Payloads are shared by every key with the same content.
	var refs int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM objects WHERE bucket = ? AND hash = ?`, bucket, rec.hash).Scan(&refs); err != nil {
		slog.Error("count payload references", "bucket", bucket, "hash", rec.hash, "err", err)
	} else if refs == 0 {
		if err := s.cfg.Engine.DeleteObject(bucket, rec.hash); err != nil {
			slog.Error("delete object payload", "bucket", bucket, "hash", rec.hash, "err", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeS3Error(w http.ResponseWriter, code, message, resource string, status int) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	type s3Error struct {
		XMLName  xml.Name `xml:"Error"`
		Code     string   `xml:"Code"`
		Message  string   `xml:"Message"`
		Resource string   `xml:"Resource"`
	}
	_ = xml.NewEncoder(w).Encode(s3Error{
		Code:     code,
		Message:  message,
		Resource: resource,
	})
}
