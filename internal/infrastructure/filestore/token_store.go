package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/devilmonastery/kitesession/internal/pkg/logger"
	"github.com/devilmonastery/kitesession/internal/pkg/metrics"
)

// DefaultTokenFile is the token file name used when none is configured
const DefaultTokenFile = "access.token.txt"

// DefaultTokenPath returns DefaultTokenFile in the working directory
func DefaultTokenPath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, DefaultTokenFile), nil
}

// TokenStore keeps the access token as raw text in a single file
type TokenStore struct {
	path   string
	logger *slog.Logger
}

// NewTokenStore creates a store for the file at path
func NewTokenStore(path string, log *slog.Logger) *TokenStore {
	if log == nil {
		log = slog.Default()
	}
	return &TokenStore{
		path:   path,
		logger: log.With("component", "token-store", "path", path),
	}
}

// Path returns the token file location
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the cached token verbatim. A missing, unreadable or empty file
// all mean "no token"; only unexpected read errors are logged.
func (s *TokenStore) Load(ctx context.Context) (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no cached token")
		} else {
			s.logger.Warn("failed to read cached token", "error", err)
			metrics.RecordTokenStoreOperation("load", err)
		}
		return "", false
	}
	metrics.RecordTokenStoreOperation("load", nil)

	token := string(data)
	if token == "" {
		s.logger.Debug("cached token file is empty")
		return "", false
	}
	s.logger.Debug("loaded cached token", "preview", logger.Redact(token))
	return token, true
}

// Save replaces the token file. The token is written to a temporary file in
// the same directory and renamed over the old one so a crash never leaves a
// truncated token behind.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	err := s.save(token)
	metrics.RecordTokenStoreOperation("save", err)
	if err != nil {
		return err
	}
	s.logger.Debug("saved token", "preview", logger.Redact(token))
	return nil
}

func (s *TokenStore) save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Clear removes the token file
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordTokenStoreOperation("clear", err)
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	metrics.RecordTokenStoreOperation("clear", nil)
	s.logger.Debug("cleared token")
	return nil
}
