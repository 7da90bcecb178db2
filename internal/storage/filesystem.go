package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("file not found")

// FilesystemStorage implements Lister for a local directory tree
type FilesystemStorage struct {
	baseDir string
}

// NewFilesystemStorage creates a filesystem storage rooted at baseDir.
// The directory must already exist.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("is not dir: %s", baseDir)
	}

	return &FilesystemStorage{
		baseDir: filepath.Clean(baseDir),
	}, nil
}

// resolve joins key to the base directory and rejects keys that escape it
func (fs *FilesystemStorage) resolve(key string) (string, error) {
	path := filepath.Join(fs.baseDir, key)

	// Security: prevent directory traversal
	rel, err := filepath.Rel(fs.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q: path traversal detected", key)
	}
	return path, nil
}

// Path returns the full path for a key
func (fs *FilesystemStorage) Path(key string) string {
	return filepath.Join(fs.baseDir, key)
}

// GetReader returns a reader for the file at the given key
func (fs *FilesystemStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists checks if a file exists at the given key
func (fs *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return true, nil
}

// List returns the keys of regular files in dir with a matching extension.
// Extensions are matched case-sensitively, including the dot.
func (fs *FilesystemStorage) List(ctx context.Context, dir string, exts []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := fs.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range exts {
			if ext == want {
				keys = append(keys, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}
