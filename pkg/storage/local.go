package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps objects on the local filesystem. Intended for
// development and tests.
type LocalStorage struct {
	rootDir string
	baseURL string
}

func NewLocalStorage(rootDir, baseURL string) (*LocalStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("root dir is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{
		rootDir: rootDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) Store(ctx context.Context, key, contentType string, content []byte) (string, error) {
	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	return key, nil
}

func (s *LocalStorage) FileURL(key string) string {
	if key == "" {
		return ""
	}
	return s.baseURL + "/" + key
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.rootDir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
