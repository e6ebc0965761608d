package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFileStorage is an Engine that keeps payloads on the local filesystem
// under a content-addressed layout rooted at dataDir. Each bucket gets its
// own subdirectory, and within it objects are addressed by their full
// SHA-256 hash with the first two characters as a subdirectory prefix.
type LocalFileStorage struct {
	dataDir string
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at dataDir.
func NewLocalFileStorage(dataDir string) *LocalFileStorage {
	return &LocalFileStorage{dataDir: dataDir}
}

// ObjectPath computes the full filesystem path for the payload identified
// by hashHex within the given bucket.
func ObjectPath(directory string, bucket string, hashHex string) (string, error) {
	if len(hashHex) < 2 {
		return "", fmt.Errorf("invalid hash length: %d", len(hashHex))
	}
	if bucket == "" || filepath.Base(bucket) != bucket {
		return "", fmt.Errorf("invalid bucket name: %q", bucket)
	}
	return filepath.Join(directory, bucket, hashHex[:2], hashHex), nil
}

func (s *LocalFileStorage) PutObject(bucket string, hashHex string, data []byte) error {
	objPath, err := ObjectPath(s.dataDir, bucket, hashHex)
	if err != nil {
		return err
	}

	// Same hash means same bytes.
	if info, err := os.Stat(objPath); err == nil && info.Mode().IsRegular() && info.Size() == int64(len(data)) {
		return nil
	}

	dir := filepath.Dir(objPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := MoveFile(tmpPath, objPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *LocalFileStorage) GetObject(bucket string, hashHex string) ([]byte, error) {
	objPath, err := ObjectPath(s.dataDir, bucket, hashHex)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(objPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalFileStorage) DeleteObject(bucket string, hashHex string) error {
	objPath, err := ObjectPath(s.dataDir, bucket, hashHex)
	if err != nil {
		return err
	}

	if err := os.Remove(objPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
