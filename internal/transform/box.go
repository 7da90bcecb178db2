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

// BoxTransform serves records from the CSV builder. Height and width are
// taken from the loaded image.
type BoxTransform struct {
	*core
}

// NewBoxTransform creates a box-only sample transform
func NewBoxTransform(opts Options) *BoxTransform {
	return &BoxTransform{core: newCore(opts)}
}

// Name returns the transform name
func (t *BoxTransform) Name() string {
	return "BoxTransform"
}

// Transform implements SampleTransform
func (t *BoxTransform) Transform(ctx context.Context, record dataset.Record) (*dataset.Sample, error) {
	runID := runIDFrom(ctx)
	start := time.Now()
	sample, err := t.transform(ctx, runID, record)
	t.opts.Metrics.SampleDone(records.VariantCSV, t.opts.IsTrain, err, time.Since(start))
	if err != nil {
		t.logger.Warn("sample failed",
			zap.String("run_id", runID),
			zap.String("file", record.FileName),
			zap.Error(err))
		return nil, err
	}
	return sample, nil
}

func (t *BoxTransform) transform(ctx context.Context, runID string, record dataset.Record) (*dataset.Sample, error) {
	log := t.logger.With(zap.String("run_id", runID))
	r := record.Clone()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loaded, err := imageio.Load(ctx, r.FileName, imageio.Options{
		Rescale: t.opts.Rescale,
		KeepGT:  !t.opts.IsTrain,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.FileName, err)
	}
	r.Height, r.Width = loaded.Height, loaded.Width
	log.Debug("image loaded",
		zap.String("file", r.FileName),
		zap.Int("height", r.Height),
		zap.Int("width", r.Width))

	boxes, err := augment.FromAnnotations(r.Annotations, r.Height, r.Width)
	if err != nil {
		return nil, err
	}
	img, boxes, err := t.apply(loaded.Image, boxes)
	if err != nil {
		return nil, err
	}

	sample := &dataset.Sample{Record: r}
	if sample.Image, err = img.Tensor(); err != nil {
		return nil, err
	}
	if loaded.GT != nil {
		if sample.GTImage, err = loaded.GT.Tensor(); err != nil {
			return nil, err
		}
	}

	// box records carry no segmentation
	sample.Annotations = augment.ToAnnotations(boxes, nil)

	inst, dropped, err := instances.Assemble(sample.Annotations, boxes.Height, boxes.Width, instances.Options{
		Format: t.opts.MaskFormat,
	})
	if err != nil {
		return nil, err
	}
	t.opts.Metrics.InstancesDropped(dropped)
	sample.Instances = inst

	log.Debug("sample built",
		zap.Ints("image_shape", sample.Image.Shape[:]),
		zap.Int("instances", inst.Len()),
		zap.Int("dropped", dropped))
	return sample, nil
}
