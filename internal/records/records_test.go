package records

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/internal/storage"
)

func writeFile(t *testing.T, root, name string, body []byte) {
	t.Helper()
	p := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, body, 0644); err != nil {
		t.Fatal(err)
	}
}

func writeMask(t *testing.T, root, name string, w, h int, pixels [][2]int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, p := range pixels {
		img.SetGray(p[0], p[1], color.Gray{Y: 255})
	}
	p := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func newBuilder(t *testing.T, root string) *Builder {
	t.Helper()
	fs, err := storage.NewFilesystemStorage(root)
	if err != nil {
		t.Fatal(err)
	}
	return NewBuilder(fs, nil, nil)
}

func TestBuildCSVSingleBox(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", nil)
	writeFile(t, root, "a.csv", []byte("x1,y1,x2,y2,category_id\n10,10,50,50,0\n"))

	records, err := newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{})
	if err != nil {
		t.Fatalf("BuildCSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.FileName != filepath.Join(root, "a.jpg") || r.ImageID != 0 {
		t.Errorf("record = %+v", r)
	}
	if len(r.Annotations) != 1 {
		t.Fatalf("got %d annotations, want 1", len(r.Annotations))
	}
	a := r.Annotations[0]
	if a.BBox != [4]float64{10, 10, 50, 50} || a.CategoryID != 0 || a.IsCrowd || a.Segmentation != nil {
		t.Errorf("annotation = %+v", a)
	}
}

func TestBuildCSVScaling(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", nil)
	writeFile(t, root, "a.csv", []byte("x1,y1,x2,y2,category_id\n10,10,50,50,0\n"))

	records, err := newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{
		Scaling: true,
		Eroder:  geometry.NewEroder(geometry.ErodeWidthDriven),
	})
	if err != nil {
		t.Fatal(err)
	}
	box := records[0].Annotations[0].BBox
	// each side moves by (x2-x1)*0.25
	if want := [4]float64{20, 20, 40, 40}; box != want {
		t.Errorf("box = %v, want %v", box, want)
	}
}

func TestBuildCSVOrderSuffixAndMapping(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "imgs/b.png", nil)
	writeFile(t, root, "imgs/a.tif", nil)
	writeFile(t, root, "imgs/notes.txt", nil)
	writeFile(t, root, "imgs/a_gt.csv", []byte("x1,y1,x2,y2,category_id,score\n1,2,3,4,7,0.9\n5,6,7,8,3,0.1\n"))
	writeFile(t, root, "imgs/b_gt.csv", []byte("category_id,x1,y1,x2,y2\n7,0,0,1,1\n"))

	mapper := geometry.StaticMapper{"yeast": {7: 1}}
	records, err := newBuilder(t, root).BuildCSV(context.Background(), "imgs", CSVOptions{
		Dataset:   "yeast",
		Suffix:    "_gt",
		DoMapping: true,
		Mapper:    mapper,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if filepath.Base(records[0].FileName) != "a.tif" || records[1].ImageID != 1 {
		t.Errorf("records out of order: %s, %d", records[0].FileName, records[1].ImageID)
	}
	first := records[0].Annotations
	if first[0].CategoryID != 1 || first[1].CategoryID != 3 {
		t.Errorf("categories = %d, %d; want 1 (mapped), 3 (raw)", first[0].CategoryID, first[1].CategoryID)
	}
	if first[1].BBox != [4]float64{5, 6, 7, 8} {
		t.Errorf("second box = %v", first[1].BBox)
	}

	// mapping disabled keeps raw ids
	records, err = newBuilder(t, root).BuildCSV(context.Background(), "imgs", CSVOptions{
		Dataset: "yeast",
		Suffix:  "_gt",
		Mapper:  mapper,
	})
	if err != nil {
		t.Fatal(err)
	}
	if records[1].Annotations[0].CategoryID != 7 {
		t.Errorf("category = %d, want raw 7", records[1].Annotations[0].CategoryID)
	}
}

func TestBuildCSVMissingAnnotation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", nil)
	writeFile(t, root, "a.csv", []byte("x1,y1,x2,y2,category_id\n1,1,2,2,0\n"))
	writeFile(t, root, "b.jpg", nil)

	_, err := newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{})
	if !errors.Is(err, ErrAnnotationNotFound) {
		t.Fatalf("err = %v, want ErrAnnotationNotFound", err)
	}
}

func TestBuildCSVMissingColumn(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.png", nil)
	writeFile(t, root, "a.csv", []byte("x1,y1,x2,label\n1,1,2,0\n"))

	_, err := newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestBuildCSVHeaderOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", nil)
	writeFile(t, root, "a.csv", []byte("x1,y1,x2,y2,category_id\n"))
	writeFile(t, root, "b.jpg", nil)
	writeFile(t, root, "b.csv", []byte("x1,y1,x2,y2,category_id\n1,1,5,5,2\n"))

	records, err := newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Annotations == nil || len(records[0].Annotations) != 0 {
		t.Errorf("a.jpg annotations = %#v, want empty", records[0].Annotations)
	}
	if len(records[1].Annotations) != 1 || records[1].Annotations[0].CategoryID != 2 {
		t.Errorf("b.jpg annotations = %+v", records[1].Annotations)
	}

	writeFile(t, root, "a.csv", []byte("x1,y1,x2,label\n"))
	_, err = newBuilder(t, root).BuildCSV(context.Background(), "", CSVOptions{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("err = %v, want ErrMissingColumn", err)
	}
}

func TestAnnotationAndMaskKeys(t *testing.T) {
	if got := AnnotationKey(filepath.Join("train", "x.tif"), "_boxes"); got != filepath.Join("train", "x_boxes.csv") {
		t.Errorf("AnnotationKey = %s", got)
	}
	if got := MaskKey(filepath.Join("val", "interval.png"), "_daughter"); got != filepath.Join("masks", "interval_daughter.png") {
		t.Errorf("MaskKey = %s", got)
	}
}

func TestBuildMasks(t *testing.T) {
	root := t.TempDir()
	writeMask(t, root, "train/c1.png", 6, 4, [][2]int{{0, 0}})
	writeMask(t, root, "masks/c1_ATP6-NG.png", 6, 4, [][2]int{{1, 1}, {2, 1}, {2, 2}})
	writeMask(t, root, "masks/c1_mtKate2.png", 6, 4, [][2]int{{2, 2}, {3, 3}})
	writeMask(t, root, "masks/c1_daughter.png", 6, 4, [][2]int{{5, 0}})

	records, err := newBuilder(t, root).BuildMasks(context.Background(), "train", MaskOptions{})
	if err != nil {
		t.Fatalf("BuildMasks: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	r := records[0]
	if r.Height != 4 || r.Width != 6 {
		t.Errorf("size = %dx%d, want 4x6", r.Height, r.Width)
	}
	if len(r.Annotations) != 3 {
		t.Fatalf("got %d annotations", len(r.Annotations))
	}

	wantBoxes := [][4]float64{{1, 1, 3, 3}, {2, 2, 4, 4}, {5, 0, 6, 1}}
	for i, a := range r.Annotations {
		if a.CategoryID != i {
			t.Errorf("annotation %d category = %d", i, a.CategoryID)
		}
		if a.BBox != wantBoxes[i] {
			t.Errorf("annotation %d box = %v, want %v", i, a.BBox, wantBoxes[i])
		}
		if a.Segmentation == nil {
			t.Fatalf("annotation %d has no segmentation", i)
		}
	}
	if got := r.Annotations[0].Segmentation.Area(); got != 3 {
		t.Errorf("first mask area = %d, want 3", got)
	}
	bm, err := r.Annotations[1].Segmentation.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bm.At(3, 3) || bm.At(1, 1) {
		t.Errorf("decoded mask wrong")
	}

	sem := r.SemSeg
	if sem == nil || sem.Height != 4 || sem.Width != 6 {
		t.Fatalf("semantic mask = %+v", sem)
	}
	at := func(x, y int) int32 { return sem.Labels[y*6+x] }
	if at(1, 1) != 1 || at(2, 2) != 2 || at(3, 3) != 2 || at(5, 0) != 3 || at(0, 0) != 0 {
		t.Errorf("semantic labels = %v", sem.Labels)
	}
}

func TestBuildMasksEmptyMask(t *testing.T) {
	root := t.TempDir()
	writeMask(t, root, "train/c1.png", 4, 4, nil)
	writeMask(t, root, "masks/c1_ATP6-NG.png", 4, 4, nil)

	_, err := newBuilder(t, root).BuildMasks(context.Background(), "train", MaskOptions{
		Channels: []MaskChannel{{Suffix: "_ATP6-NG", CategoryID: 0}},
	})
	if !errors.Is(err, geometry.ErrNoRegions) {
		t.Fatalf("err = %v, want ErrNoRegions", err)
	}
}

func TestBuildMasksMissingMask(t *testing.T) {
	root := t.TempDir()
	writeMask(t, root, "val/c1.png", 4, 4, nil)
	writeMask(t, root, "masks/c1_ATP6-NG.png", 4, 4, [][2]int{{1, 1}})

	_, err := newBuilder(t, root).BuildMasks(context.Background(), "val", MaskOptions{})
	if !errors.Is(err, ErrMaskNotFound) {
		t.Fatalf("err = %v, want ErrMaskNotFound", err)
	}
}
