package records

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/internal/imageio"
	"github.com/tendant/simple-detection-data/internal/storage"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// Required columns of a box annotation CSV
var boxColumns = []string{"x1", "y1", "x2", "y2", "category_id"}

// CSVOptions configure BuildCSV
type CSVOptions struct {
	// Dataset is the name used for category mapping lookups
	Dataset string
	// Suffix is inserted between the image stem and ".csv"
	Suffix string
	// Scaling erodes every box with Eroder
	Scaling bool
	Eroder  geometry.Eroder
	// DoMapping enables category remapping through Mapper
	DoMapping bool
	Mapper    geometry.CategoryMapper
}

// AnnotationKey returns the CSV key for an image key: the image extension
// is replaced by suffix + ".csv".
func AnnotationKey(imageKey, suffix string) string {
	return strings.TrimSuffix(imageKey, filepath.Ext(imageKey)) + suffix + ".csv"
}

type boxRow struct {
	box        [4]float64
	categoryID int
}

// BuildCSV builds one record per image in dir from sibling box CSVs.
// Height and width are left at zero; the box transform fills them in when
// the image is first loaded. A missing CSV aborts the whole build.
func (b *Builder) BuildCSV(ctx context.Context, dir string, opts CSVOptions) ([]dataset.Record, error) {
	keys, err := b.store.List(ctx, dir, imageio.SupportedExts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	mapper := opts.Mapper
	if !opts.DoMapping {
		mapper = nil
	}

	records := make([]dataset.Record, 0, len(keys))
	for idx, key := range keys {
		annoKey := AnnotationKey(key, opts.Suffix)
		rows, err := b.readBoxes(ctx, annoKey)
		if err != nil {
			return nil, err
		}

		annotations := make([]dataset.Annotation, 0, len(rows))
		for _, row := range rows {
			categoryID, mapped := geometry.MapOrRaw(mapper, opts.Dataset, row.categoryID)
			if mapper != nil && !mapped {
				b.metrics.MappingFallback(opts.Dataset)
			}

			box := row.box
			if opts.Scaling {
				box = opts.Eroder.Erode(box)
			}

			annotations = append(annotations, dataset.Annotation{
				BBox:       box,
				BBoxMode:   dataset.XYXYAbs,
				CategoryID: categoryID,
				IsCrowd:    false,
			})
		}

		records = append(records, dataset.Record{
			FileName:    b.store.Path(key),
			ImageID:     idx,
			Annotations: annotations,
		})
		b.logger.Debug("record built",
			zap.String("image", key),
			zap.String("annotations", annoKey),
			zap.Int("objects", len(annotations)))
	}

	b.metrics.RecordsBuilt(VariantCSV, len(records))
	b.logger.Info("box records built",
		zap.String("dir", dir),
		zap.String("dataset", opts.Dataset),
		zap.Int("records", len(records)))
	return records, nil
}

func (b *Builder) readBoxes(ctx context.Context, key string) ([]boxRow, error) {
	ok, err := b.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check annotation file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnnotationNotFound, key)
	}

	r, err := b.store.GetReader(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAnnotationNotFound, key)
		}
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer r.Close()

	rows, err := parseBoxCSV(r)
	if err != nil {
		return nil, fmt.Errorf("annotation file %s: %w", key, err)
	}
	return rows, nil
}

// parseBoxCSV reads the x1,y1,x2,y2,category_id columns of a CSV with a
// header row. Other columns are ignored. A header without data rows is an
// image without objects.
func parseBoxCSV(r io.Reader) ([]boxRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			"x1":          series.Float,
			"y1":          series.Float,
			"x2":          series.Float,
			"y2":          series.Float,
			"category_id": series.Int,
		}),
	)
	if df.Err != nil {
		if header, ok := headerOnly(data); ok {
			if err := checkColumns(header); err != nil {
				return nil, err
			}
			return []boxRow{}, nil
		}
		return nil, fmt.Errorf("failed to parse csv: %w", df.Err)
	}
	if err := checkColumns(df.Names()); err != nil {
		return nil, err
	}

	x1 := df.Col("x1").Float()
	y1 := df.Col("y1").Float()
	x2 := df.Col("x2").Float()
	y2 := df.Col("y2").Float()
	categories, err := df.Col("category_id").Int()
	if err != nil {
		return nil, fmt.Errorf("invalid category_id: %w", err)
	}

	rows := make([]boxRow, df.Nrow())
	for i := range rows {
		rows[i] = boxRow{
			box:        [4]float64{x1[i], y1[i], x2[i], y2[i]},
			categoryID: categories[i],
		}
	}
	return rows, nil
}

// headerOnly returns the column names of a CSV holding a header row and
// nothing else.
func headerOnly(data []byte) ([]string, bool) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(records) != 1 {
		return nil, false
	}
	return records[0], true
}

func checkColumns(names []string) error {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[strings.TrimSpace(name)] = true
	}
	for _, col := range boxColumns {
		if !present[col] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}
