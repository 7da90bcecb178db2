// Package records scans dataset directories and builds one dataset record
// per image, from box CSVs or from per-channel mask images.
package records

import (
	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/internal/metrics"
	"github.com/tendant/simple-detection-data/internal/storage"
)

// Builder variants, used as metric labels
const (
	VariantCSV   = "csv"
	VariantMasks = "masks"
)

// Builder produces dataset records from files in a storage tree
type Builder struct {
	store   storage.Lister
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewBuilder creates a record builder. logger and m may be nil.
func NewBuilder(store storage.Lister, logger *zap.Logger, m *metrics.Metrics) *Builder {
	return &Builder{
		store:   store,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}
