package storage

import (
	"context"
	"io"
)

// Reader provides read access to dataset files
type Reader interface {
	// GetReader returns a reader for the file at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a file exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// Lister enumerates files below a directory key
type Lister interface {
	Reader

	// List returns the keys of files directly inside dir whose extension is
	// one of exts, sorted by name
	List(ctx context.Context, dir string, exts []string) ([]string, error)

	// Path returns the full filesystem path for a key
	Path(key string) string
}
