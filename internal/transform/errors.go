package transform

import "errors"

var (
	// ErrTransformNotFound is returned when no transform is registered for a dataset
	ErrTransformNotFound = errors.New("transform not found")

	// ErrUnknownVariant is returned by New for an unknown record variant
	ErrUnknownVariant = errors.New("unknown transform variant")

	// ErrImageSizeMismatch is returned when a loaded image differs from the
	// size stored in its record
	ErrImageSizeMismatch = errors.New("image size does not match record")
)
