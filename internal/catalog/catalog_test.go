package catalog

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/pkg/dataset"
	"github.com/tendant/simple-detection-data/pkg/mask"
)

func sampleRecords() []dataset.Record {
	bm := mask.NewBitmask(2, 2)
	bm.Set(1, 0)
	return []dataset.Record{
		{FileName: "a.png", ImageID: 0, Annotations: []dataset.Annotation{{BBox: [4]float64{1, 2, 3, 4}, CategoryID: 1}}},
		{FileName: "b.png", ImageID: 1, Height: 2, Width: 2, Annotations: []dataset.Annotation{
			{BBox: [4]float64{1, 0, 2, 1}, Segmentation: mask.Encode(bm)},
		}},
	}
}

func TestCatalogBuildsOnce(t *testing.T) {
	c := New(nil, nil)
	calls := 0
	err := c.Register("yeast", func(context.Context) ([]dataset.Record, error) {
		calls++
		return sampleRecords(), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	first, err := c.Get(context.Background(), "yeast")
	if err != nil {
		t.Fatal(err)
	}
	first[0].Annotations[0].BBox[0] = 99

	second, err := c.Get(context.Background(), "yeast")
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("build called %d times", calls)
	}
	if second[0].Annotations[0].BBox[0] != 1 {
		t.Error("cached records were modified through a returned copy")
	}
}

func TestCatalogErrors(t *testing.T) {
	c := New(nil, nil)
	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("err = %v", err)
	}

	build := func(context.Context) ([]dataset.Record, error) { return nil, nil }
	if err := c.Register("a", build); err != nil {
		t.Fatal(err)
	}
	if err := c.Register("a", build); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("err = %v", err)
	}
	if err := c.Register("0", build); err != nil {
		t.Fatal(err)
	}
	if names := c.Names(); len(names) != 2 || names[0] != "0" || names[1] != "a" {
		t.Errorf("names = %v", names)
	}
}

func TestCatalogRetriesFailedBuild(t *testing.T) {
	c := New(nil, nil)
	fail := true
	c.Register("flaky", func(context.Context) ([]dataset.Record, error) {
		if fail {
			fail = false
			return nil, errors.New("disk unavailable")
		}
		return sampleRecords(), nil
	})
	if _, err := c.Get(context.Background(), "flaky"); err == nil {
		t.Fatal("expected first build to fail")
	}
	records, err := c.Get(context.Background(), "flaky")
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %v, err = %v", records, err)
	}
}

func TestCatalogUsesStore(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, nil)
	c.Register("yeast", func(context.Context) ([]dataset.Record, error) { return sampleRecords(), nil })
	if _, err := c.Get(context.Background(), "yeast"); err != nil {
		t.Fatal(err)
	}
	saved, _ := store.Load(context.Background(), "yeast")
	if len(saved) != 2 {
		t.Fatalf("store holds %d records", len(saved))
	}

	// a fresh catalog reads the store instead of building
	fresh := New(store, nil)
	fresh.Register("yeast", func(context.Context) ([]dataset.Record, error) {
		t.Error("build called despite stored records")
		return nil, nil
	})
	records, err := fresh.Get(context.Background(), "yeast")
	if err != nil || len(records) != 2 {
		t.Fatalf("records = %v, err = %v", records, err)
	}
}

func TestMetadataMapsCategories(t *testing.T) {
	md := NewMetadata(map[string]map[int]int{"yeast": {7: 0, 9: 1}})
	var mapper geometry.CategoryMapper = md

	if id, ok := mapper.Map("yeast", 9); !ok || id != 1 {
		t.Errorf("Map(yeast, 9) = %d, %v", id, ok)
	}
	if id, mapped := geometry.MapOrRaw(md, "yeast", 3); mapped || id != 3 {
		t.Errorf("unmapped id = %d, %v", id, mapped)
	}
	if _, ok := md.CategoryMapping("other"); ok {
		t.Error("unknown dataset has a table")
	}
	table, _ := md.CategoryMapping("yeast")
	table[7] = 5
	if id, _ := md.Map("yeast", 7); id != 0 {
		t.Error("returned table aliases internal state")
	}
	if id, ok := md.Map("Yeast", 9); !ok || id != 1 {
		t.Errorf("Map(Yeast, 9) = %d, %v; names should match case-insensitively", id, ok)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	name := "catalog-test-" + t.Name()
	defer db.ExecContext(ctx, `DELETE FROM dataset_records WHERE dataset = $1`, name)

	if err := store.Save(ctx, name, sampleRecords()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// saving again replaces rows rather than duplicating them
	if err := store.Save(ctx, name, sampleRecords()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	records, err := store.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 || records[1].FileName != "b.png" {
		t.Fatalf("records = %+v", records)
	}
	seg := records[1].Annotations[0].Segmentation
	if seg == nil || seg.Area() != 1 {
		t.Errorf("segmentation = %+v", seg)
	}
}
