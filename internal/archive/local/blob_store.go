// Package local implements a page-snapshot archive on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local snapshot archive.
type Config struct {
	// BaseDir is the root directory where snapshots are stored.
	BaseDir string `mapstructure:"base_dir"`
}

// BlobStore writes snapshots to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a local filesystem-backed snapshot archive.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path is not a directory")
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat base directory: %w", err)
	}
	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// PutObject writes data to a file under the base directory and returns a
// file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, path)
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read snapshot data: %w", err)
	}
	if err := os.WriteFile(fullPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
