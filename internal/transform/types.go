// Package transform turns dataset records into model-ready samples: load and
// canonicalize the image, augment it with its boxes, and assemble instances.
package transform

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/augment"
	"github.com/tendant/simple-detection-data/internal/config"
	"github.com/tendant/simple-detection-data/internal/instances"
	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/internal/metrics"
	"github.com/tendant/simple-detection-data/internal/ndarray"
	"github.com/tendant/simple-detection-data/internal/records"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// SampleTransform builds a fresh sample from a record on every call.
// The record passed in is never modified.
type SampleTransform interface {
	Transform(ctx context.Context, record dataset.Record) (*dataset.Sample, error)

	// Name returns the transform name
	Name() string
}

// Options configure both transform variants
type Options struct {
	IsTrain bool
	// Datasets and MaxSize are handed to the augmentation policy
	Datasets []string
	MaxSize  int
	// Rescale converts images to float intensities in [0, 1]
	Rescale bool
	// Policy defaults to augment.DefaultPolicy
	Policy augment.Policy
	// MaskFormat and Crop apply to the mask variant
	MaskFormat instances.MaskFormat
	Crop       bool
	// Seed fixes the augmentation RNG; 0 seeds from the clock
	Seed    int64
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// FromConfig derives transform options for the given mode
func FromConfig(cfg *config.Config, isTrain bool) (Options, error) {
	format, err := instances.ParseMaskFormat(cfg.Model.MaskFormat)
	if err != nil {
		return Options{}, err
	}
	maxSize := cfg.Input.MaxSizeTest
	if isTrain {
		maxSize = cfg.Input.MaxSizeTrain
	}
	return Options{
		IsTrain:    isTrain,
		Datasets:   cfg.Datasets.Train,
		MaxSize:    maxSize,
		Rescale:    cfg.Model.RawInputs(),
		MaskFormat: format,
		Crop:       cfg.Input.CropEnabled,
		Seed:       cfg.Input.Seed,
	}, nil
}

// New returns the transform for a record builder variant
func New(variant string, opts Options) (SampleTransform, error) {
	switch variant {
	case records.VariantCSV:
		return NewBoxTransform(opts), nil
	case records.VariantMasks:
		return NewMaskTransform(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// core holds what both variants share. The RNG is not safe for concurrent
// use, so augmentation runs under mu.
type core struct {
	opts   Options
	policy augment.Policy
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newCore(opts Options) *core {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	policy := opts.Policy
	if policy == nil {
		policy = augment.DefaultPolicy
	}
	return &core{
		opts:   opts,
		policy: policy,
		logger: logging.OrNop(opts.Logger),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// apply picks the policy's augmenter for the image and runs it
func (c *core) apply(img *ndarray.Array, boxes augment.BoxesOnImage) (*ndarray.Array, augment.BoxesOnImage, error) {
	aug := c.policy(c.opts.Datasets, c.opts.MaxSize, c.opts.IsTrain, boxes.Height, boxes.Width)

	c.mu.Lock()
	defer c.mu.Unlock()
	return augment.Apply(c.rng, aug, img, boxes, c.opts.IsTrain)
}

type runIDKey struct{}

// WithRunID tags ctx with the run id used in a transform's logs
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// runIDFrom returns the run id carried by ctx or a new one
func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Runner dispatches records to transforms registered by dataset name
type Runner struct {
	mu         sync.RWMutex
	transforms map[string]SampleTransform
}

// NewRunner creates an empty runner
func NewRunner() *Runner {
	return &Runner{transforms: make(map[string]SampleTransform)}
}

// Register sets the transform for a dataset
func (r *Runner) Register(dataset string, t SampleTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[dataset] = t
}

// Run transforms a record of the named dataset
func (r *Runner) Run(ctx context.Context, dataset string, record dataset.Record) (*dataset.Sample, error) {
	r.mu.RLock()
	t, ok := r.transforms[dataset]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransformNotFound, dataset)
	}
	return t.Transform(ctx, record)
}
