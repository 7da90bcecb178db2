// Package catalog registers datasets by name, builds their records once and
// hands out copies. Built records can be persisted through a RecordStore.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

var (
	// ErrNotRegistered is returned for an unknown dataset name
	ErrNotRegistered = errors.New("dataset not registered")

	// ErrAlreadyRegistered is returned when a name is registered twice
	ErrAlreadyRegistered = errors.New("dataset already registered")
)

// BuildFunc produces the records of one dataset
type BuildFunc func(ctx context.Context) ([]dataset.Record, error)

type entry struct {
	mu      sync.Mutex
	build   BuildFunc
	records []dataset.Record
	built   bool
}

// Catalog caches dataset records by name
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry
	store   RecordStore
	logger  *zap.Logger
}

// New creates a catalog. store and logger may be nil.
func New(store RecordStore, logger *zap.Logger) *Catalog {
	return &Catalog{
		entries: make(map[string]*entry),
		store:   store,
		logger:  logging.OrNop(logger),
	}
}

// Register adds a dataset. Nothing is built until the first Get.
func (c *Catalog) Register(name string, build BuildFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	c.entries[name] = &entry{build: build}
	return nil
}

// Names returns the registered dataset names in sorted order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a deep copy of the dataset's records. The first call loads
// them from the store, or builds and saves them when the store has none.
// A failed build is retried on the next call.
func (c *Catalog) Get(ctx context.Context, name string) ([]dataset.Record, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		records, err := c.load(ctx, name, e.build)
		if err != nil {
			return nil, err
		}
		e.records = records
		e.built = true
	}
	return dataset.CloneRecords(e.records), nil
}

func (c *Catalog) load(ctx context.Context, name string, build BuildFunc) ([]dataset.Record, error) {
	if c.store != nil {
		stored, err := c.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load stored records for %s: %w", name, err)
		}
		if len(stored) > 0 {
			c.logger.Info("records loaded from store", zap.String("dataset", name), zap.Int("records", len(stored)))
			return stored, nil
		}
	}

	records, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset %s: %w", name, err)
	}
	c.logger.Info("dataset built", zap.String("dataset", name), zap.Int("records", len(records)))

	if c.store != nil {
		if err := c.store.Save(ctx, name, records); err != nil {
			// the build result is still usable
			c.logger.Warn("failed to persist records", zap.String("dataset", name), zap.Error(err))
		}
	}
	return records, nil
}
