// Package app wires configuration into record builders, the catalog and
// sample transforms for the commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/augment"
	"github.com/tendant/simple-detection-data/internal/catalog"
	"github.com/tendant/simple-detection-data/internal/config"
	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/internal/metrics"
	"github.com/tendant/simple-detection-data/internal/records"
	"github.com/tendant/simple-detection-data/internal/storage"
	"github.com/tendant/simple-detection-data/internal/transform"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// Deps are the shared collaborators of the builders and transforms
type Deps struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Metadata *catalog.Metadata
}

// BuildFunc returns a catalog build function for the configured record
// variant, reading from cfg.Records.Root.
func BuildFunc(cfg *config.Config, deps Deps) (catalog.BuildFunc, error) {
	fs, err := storage.NewFilesystemStorage(cfg.Records.Root)
	if err != nil {
		return nil, err
	}
	builder := records.NewBuilder(fs, deps.Logger, deps.Metrics)
	rc := cfg.Records

	switch rc.Variant {
	case records.VariantCSV:
		eroder, err := rc.Eroder()
		if err != nil {
			return nil, err
		}
		var mapper geometry.CategoryMapper
		if deps.Metadata != nil {
			mapper = deps.Metadata
			if _, ok := deps.Metadata.CategoryMapping(rc.Dataset); rc.DoMapping && !ok {
				logging.OrNop(deps.Logger).Warn("no category mapping for dataset, keeping raw ids",
					zap.String("dataset", rc.Dataset))
			}
		}
		opts := records.CSVOptions{
			Dataset:   rc.Dataset,
			Suffix:    rc.Suffix,
			Scaling:   rc.Scaling,
			Eroder:    eroder,
			DoMapping: rc.DoMapping,
			Mapper:    mapper,
		}
		return func(ctx context.Context) ([]dataset.Record, error) {
			return builder.BuildCSV(ctx, rc.Dir, opts)
		}, nil
	case records.VariantMasks:
		opts := records.MaskOptions{Channels: rc.MaskChannels}
		return func(ctx context.Context) ([]dataset.Record, error) {
			return builder.BuildMasks(ctx, rc.Dir, opts)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", transform.ErrUnknownVariant, rc.Variant)
	}
}

// Policies builds the augmentation policy registry from cfg.Datasets.Policies
func Policies(cfg *config.Config) (*augment.PolicyRegistry, error) {
	reg := augment.NewPolicyRegistry(augment.DefaultPolicy)
	for name, policyName := range cfg.Datasets.Policies {
		p, err := augment.PolicyByName(policyName)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		reg.Register(name, p)
	}
	return reg, nil
}

// Transform returns the sample transform matching the configured variant
func Transform(cfg *config.Config, isTrain bool, deps Deps) (transform.SampleTransform, error) {
	opts, err := transform.FromConfig(cfg, isTrain)
	if err != nil {
		return nil, err
	}
	policies, err := Policies(cfg)
	if err != nil {
		return nil, err
	}
	opts.Policy = policies.Policy
	opts.Logger = deps.Logger
	opts.Metrics = deps.Metrics
	return transform.New(cfg.Records.Variant, opts)
}
