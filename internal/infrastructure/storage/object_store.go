// internal/infrastructure/storage/object_store.go
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"go.uber.org/zap"
)

// LocalObjectStore implements port.ObjectStore on the local filesystem.
// Signed URLs point at the server's own /files endpoint and carry an
// HMAC over key and expiry, so the handler can serve blobs without any
// session state.
type LocalObjectStore struct {
	baseDir       string
	publicBaseURL string
	signingKey    []byte
	logger        *zap.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewLocalObjectStore creates a new LocalObjectStore
func NewLocalObjectStore(baseDir, publicBaseURL, signingKey string, logger *zap.Logger) *LocalObjectStore {
	return &LocalObjectStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		signingKey:    []byte(signingKey),
		logger:        logger,
		now:           time.Now,
	}
}

// Put writes content under key, creating parent directories
func (s *LocalObjectStore) Put(ctx context.Context, key string, content []byte) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write object",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to write object: %w", err)
	}

	s.logger.Debug("Object stored",
		zap.String("key", key),
		zap.Int("size", len(content)))

	return nil
}

// Read returns the content stored under key
func (s *LocalObjectStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read object",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return content, nil
}

// Delete removes the object under key. A missing object is not an error;
// the compensating cleanup after a failed record insert depends on that.
func (s *LocalObjectStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		s.logger.Error("Failed to delete object",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.logger.Debug("Object deleted", zap.String("key", key))
	return nil
}

// SignURL produces a time-limited URL for key, served by the /files handler
func (s *LocalObjectStore) SignURL(key string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}

	expires := s.now().Add(ttl).Unix()
	sig := s.signature(key, expires)

	u := fmt.Sprintf("%s/files/%s?expires=%d&sig=%s",
		s.publicBaseURL, urlEscapeKey(key), expires, sig)
	return u, nil
}

// VerifySignature checks a signed URL's expiry and HMAC for key. It is used
// by the HTTP layer when serving /files requests.
func (s *LocalObjectStore) VerifySignature(key string, expires int64, sig string) error {
	if s.now().Unix() > expires {
		return fmt.Errorf("signed URL expired")
	}

	expected := s.signature(key, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *LocalObjectStore) signature(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// resolve maps a key to an absolute path under baseDir, rejecting keys that
// would escape it
func (s *LocalObjectStore) resolve(key string) (string, error) {
	fullPath, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(fullPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base directory: %s", key)
	}
	return fullPath, nil
}

// urlEscapeKey escapes each path segment while keeping the separators
func urlEscapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ port.ObjectStore = (*LocalObjectStore)(nil)
