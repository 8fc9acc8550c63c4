// Package storage abstracts where uploaded document bytes live.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage saves raw uploads and hands back a URL the ingest worker can
// resolve later. Save must not trust the caller-supplied filename.
type Storage interface {
	Save(ctx context.Context, tenantID uuid.UUID, filename string, data []byte) (url string, err error)
	Load(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// LocalStorage keeps files under a media directory, one subdirectory per
// tenant. URLs are the public media prefix plus the relative path.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) *LocalStorage {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStorage{dir: dir, baseURL: baseURL}
}

func (s *LocalStorage) Save(ctx context.Context, tenantID uuid.UUID, filename string, data []byte) (string, error) {
	// A random prefix both avoids collisions and defangs path tricks in
	// the original filename.
	safe := fmt.Sprintf("%s_%s", uuid.New().String()[:8], filepath.Base(filename))
	rel := filepath.Join(tenantID.String(), safe)

	full := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return s.baseURL + filepath.ToSlash(rel), nil
}

func (s *LocalStorage) Load(ctx context.Context, url string) ([]byte, error) {
	rel, ok := strings.CutPrefix(url, s.baseURL)
	if !ok {
		return nil, fmt.Errorf("url %q outside media prefix", url)
	}
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL)
	if !ok {
		return fmt.Errorf("url %q outside media prefix", url)
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

var _ Storage = (*LocalStorage)(nil)
