package transform

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/augment"
	"github.com/tendant/simple-detection-data/internal/imageio"
	"github.com/tendant/simple-detection-data/internal/instances"
	"github.com/tendant/simple-detection-data/internal/records"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// MaskTransform serves records from the mask builder. Segmentations stay
// attached to their annotations by position and are not augmented, so
// instances are assembled in the source image frame.
type MaskTransform struct {
	*core
}

// NewMaskTransform creates a mask-aware sample transform
func NewMaskTransform(opts Options) *MaskTransform {
	if opts.MaskFormat == "" {
		opts.MaskFormat = instances.FormatBitmask
	}
	return &MaskTransform{core: newCore(opts)}
}

// Name returns the transform name
func (t *MaskTransform) Name() string {
	return "MaskTransform"
}

// Transform implements SampleTransform
func (t *MaskTransform) Transform(ctx context.Context, record dataset.Record) (*dataset.Sample, error) {
	runID := runIDFrom(ctx)
	start := time.Now()
	sample, err := t.transform(ctx, runID, record)
	t.opts.Metrics.SampleDone(records.VariantMasks, t.opts.IsTrain, err, time.Since(start))
	if err != nil {
		t.logger.Warn("sample failed",
			zap.String("run_id", runID),
			zap.String("file", record.FileName),
			zap.Error(err))
		return nil, err
	}
	return sample, nil
}

func (t *MaskTransform) transform(ctx context.Context, runID string, record dataset.Record) (*dataset.Sample, error) {
	log := t.logger.With(zap.String("run_id", runID))
	r := record.Clone()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loaded, err := imageio.Load(ctx, r.FileName, imageio.Options{Rescale: t.opts.Rescale})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.FileName, err)
	}
	if err := checkImageSize(&r, loaded.Height, loaded.Width); err != nil {
		return nil, err
	}
	height, width := loaded.Height, loaded.Width
	log.Debug("image loaded",
		zap.String("file", r.FileName),
		zap.Int("height", height),
		zap.Int("width", width))

	sample := &dataset.Sample{Record: r}
	if !t.opts.IsTrain {
		// the whole canonical image, before augmentation
		if sample.GTImage, err = loaded.Image.Tensor(); err != nil {
			return nil, err
		}
	}

	boxes, err := augment.FromAnnotations(r.Annotations, height, width)
	if err != nil {
		return nil, err
	}
	img, boxes, err := t.apply(loaded.Image, boxes)
	if err != nil {
		return nil, err
	}
	if sample.Image, err = img.Tensor(); err != nil {
		return nil, err
	}

	sample.Annotations = augment.ToAnnotations(boxes, r.Annotations)

	inst, dropped, err := instances.Assemble(sample.Annotations, height, width, instances.Options{
		Format: t.opts.MaskFormat,
		Crop:   t.opts.Crop,
	})
	if err != nil {
		return nil, err
	}
	t.opts.Metrics.InstancesDropped(dropped)
	sample.Instances = inst

	log.Debug("sample built",
		zap.Ints("image_shape", sample.Image.Shape[:]),
		zap.Int("instances", inst.Len()),
		zap.Bool("masks", inst.HasMasks()),
		zap.Int("dropped", dropped))
	return sample, nil
}

// checkImageSize fills in a missing record size and rejects a mismatch
func checkImageSize(r *dataset.Record, height, width int) error {
	if r.Height == 0 && r.Width == 0 {
		r.Height, r.Width = height, width
		return nil
	}
	if r.Height != height || r.Width != width {
		return fmt.Errorf("%w: %s is %dx%d, record says %dx%d",
			ErrImageSizeMismatch, r.FileName, height, width, r.Height, r.Width)
	}
	return nil
}
