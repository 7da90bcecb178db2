package records

import "errors"

var (
	// ErrAnnotationNotFound is returned when an image has no annotation CSV
	ErrAnnotationNotFound = errors.New("annotation file not found")

	// ErrMissingColumn is returned when an annotation CSV lacks a required column
	ErrMissingColumn = errors.New("annotation file missing required column")

	// ErrMaskNotFound is returned when a channel mask file is absent
	ErrMaskNotFound = errors.New("mask file not found")

	// ErrMaskSize is returned when a channel mask differs in size from the first one
	ErrMaskSize = errors.New("mask size mismatch")
)
