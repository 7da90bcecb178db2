package records

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/internal/imageio"
	"github.com/tendant/simple-detection-data/internal/ndarray"
	"github.com/tendant/simple-detection-data/internal/storage"
	"github.com/tendant/simple-detection-data/pkg/dataset"
	"github.com/tendant/simple-detection-data/pkg/mask"
)

// MaskChannel names one per-image mask file and the category it encodes
type MaskChannel struct {
	Suffix     string `mapstructure:"suffix"`
	CategoryID int    `mapstructure:"category_id"`
}

// DefaultMaskChannels are the two fluorescence channels and the derived
// daughter-cell mask, in assembly order
var DefaultMaskChannels = []MaskChannel{
	{Suffix: "_ATP6-NG", CategoryID: 0},
	{Suffix: "_mtKate2", CategoryID: 1},
	{Suffix: "_daughter", CategoryID: 2},
}

// MaskOptions configure BuildMasks
type MaskOptions struct {
	// Channels defaults to DefaultMaskChannels
	Channels []MaskChannel
}

// MaskKey returns the key of a channel mask for an image key: every
// "train" or "val" path segment becomes "masks" and the suffix goes before
// the extension.
func MaskKey(imageKey, suffix string) string {
	segments := strings.Split(filepath.ToSlash(imageKey), "/")
	for i, s := range segments[:len(segments)-1] {
		if s == "train" || s == "val" {
			segments[i] = "masks"
		}
	}
	key := filepath.FromSlash(strings.Join(segments, "/"))
	ext := filepath.Ext(key)
	return strings.TrimSuffix(key, ext) + suffix + ext
}

// BuildMasks builds one record per image in dir with one annotation per
// mask channel and a semantic label image. Height and width are read
// eagerly from the canonicalized image.
func (b *Builder) BuildMasks(ctx context.Context, dir string, opts MaskOptions) ([]dataset.Record, error) {
	channels := opts.Channels
	if len(channels) == 0 {
		channels = DefaultMaskChannels
	}

	keys, err := b.store.List(ctx, dir, imageio.SupportedExts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	records := make([]dataset.Record, 0, len(keys))
	for idx, key := range keys {
		img, err := b.decode(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", key, err)
		}
		canon, err := ndarray.Canonicalize(img)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", key, err)
		}

		record := dataset.Record{
			FileName: b.store.Path(key),
			ImageID:  idx,
			Height:   canon.Shape[0],
			Width:    canon.Shape[1],
		}

		for ci, ch := range channels {
			maskKey := MaskKey(key, ch.Suffix)
			anno, labels, h, w, err := b.channelAnnotation(ctx, maskKey, ch)
			if err != nil {
				return nil, err
			}

			if record.SemSeg == nil {
				record.SemSeg = &dataset.SemanticMask{Height: h, Width: w, Labels: make([]int32, h*w)}
			} else if record.SemSeg.Height != h || record.SemSeg.Width != w {
				return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrMaskSize, maskKey, h, w, record.SemSeg.Height, record.SemSeg.Width)
			}
			// later channels overwrite earlier ones
			for i, v := range labels {
				if v != 0 {
					record.SemSeg.Labels[i] = int32(ci + 1)
				}
			}

			record.Annotations = append(record.Annotations, anno)
		}

		records = append(records, record)
		b.logger.Debug("mask record built",
			zap.String("image", key),
			zap.Int("height", record.Height),
			zap.Int("width", record.Width))
	}

	b.metrics.RecordsBuilt(VariantMasks, len(records))
	b.logger.Info("mask records built", zap.String("dir", dir), zap.Int("records", len(records)))
	return records, nil
}

func (b *Builder) channelAnnotation(ctx context.Context, key string, ch MaskChannel) (dataset.Annotation, []int32, int, int, error) {
	raw, err := b.decode(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return dataset.Annotation{}, nil, 0, 0, fmt.Errorf("%w: %s", ErrMaskNotFound, key)
		}
		return dataset.Annotation{}, nil, 0, 0, fmt.Errorf("mask %s: %w", key, err)
	}

	labels, h, w := imageio.Labels(raw)
	box, err := geometry.FirstRegionBox(labels, h, w)
	if err != nil {
		return dataset.Annotation{}, nil, 0, 0, fmt.Errorf("mask %s: %w", key, err)
	}

	anno := dataset.Annotation{
		BBox:         box,
		BBoxMode:     dataset.XYXYAbs,
		Segmentation: mask.Encode(mask.FromLabels(labels, h, w)),
		CategoryID:   ch.CategoryID,
		IsCrowd:      false,
	}
	return anno, labels, h, w, nil
}

func (b *Builder) decode(ctx context.Context, key string) (*ndarray.Array, error) {
	r, err := b.store.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return imageio.Decode(r)
}
