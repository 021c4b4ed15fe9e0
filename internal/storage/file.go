package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

const fileScheme = "file://"

type fileStorage struct {
	config FileConfig
}

type FileConfig struct {
	Directory string
}

// NewFileStorage creates a new file storage backend
func NewFileStorage(ctx context.Context, f FileConfig) (Storage, error) {
	if f.Directory == "" {
		f.Directory = "."
	}

	directory, err := filepath.Abs(f.Directory)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve directory %s: %w", f.Directory, err)
	}
	f.Directory = directory

	return &fileStorage{
		config: f,
	}, nil
}

func (a *fileStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	filePath, err := a.confine(filepath.Join(a.config.Directory, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", xerrors.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", xerrors.Errorf("failed to write file: %w", err)
	}

	return fileScheme + filepath.ToSlash(filePath), nil
}

func (a *fileStorage) Get(ctx context.Context, url string) ([]byte, error) {
	filePath, err := a.path(url)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, xerrors.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func (a *fileStorage) Delete(ctx context.Context, url string) error {
	filePath, err := a.path(url)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return xerrors.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// path accepts both file:// URLs and plain paths. Relative paths are taken
// from the storage directory.
func (a *fileStorage) path(url string) (string, error) {
	filePath := filepath.FromSlash(strings.TrimPrefix(url, fileScheme))
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(a.config.Directory, filePath)
	}
	return a.confine(filePath)
}

// confine rejects paths that leave the storage directory.
func (a *fileStorage) confine(filePath string) (string, error) {
	filePath = filepath.Clean(filePath)
	rel, err := filepath.Rel(a.config.Directory, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", xerrors.Errorf("%s is outside of %s", filePath, a.config.Directory)
	}
	return filePath, nil
}
