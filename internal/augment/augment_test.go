package augment

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/tendant/simple-detection-data/internal/ndarray"
	"github.com/tendant/simple-detection-data/pkg/dataset"
	"github.com/tendant/simple-detection-data/pkg/mask"
)

func ramp(h, w, c int) *ndarray.Array {
	a := ndarray.New(h, w, c)
	for i := range a.Data {
		a.Data[i] = float64(i / c)
	}
	return a
}

func closeTo(a, b [4]float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestIdentityRoundTrip(t *testing.T) {
	seg := mask.Encode(mask.NewBitmask(4, 4))
	annos := []dataset.Annotation{
		{BBox: [4]float64{1.5, 2.25, 3.75, 4}, CategoryID: 2, Segmentation: seg},
		{BBox: [4]float64{0, 0, 10, 10}, CategoryID: 0},
	}
	boxes, err := FromAnnotations(annos, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	img := ramp(16, 16, 3)
	_, out, err := Apply(rand.New(rand.NewSource(1)), Identity{}, img, boxes, true)
	if err != nil {
		t.Fatal(err)
	}
	back := ToAnnotations(out, annos)
	if len(back) != len(annos) {
		t.Fatalf("got %d annotations", len(back))
	}
	for i := range annos {
		if !closeTo(back[i].BBox, annos[i].BBox) {
			t.Errorf("box %d = %v, want %v", i, back[i].BBox, annos[i].BBox)
		}
		if back[i].CategoryID != annos[i].CategoryID || back[i].BBoxMode != dataset.XYXYAbs {
			t.Errorf("annotation %d = %+v", i, back[i])
		}
	}
	if back[0].Segmentation != seg || back[1].Segmentation != nil {
		t.Error("segmentation not reattached by position")
	}
}

func TestFromAnnotationsXYWH(t *testing.T) {
	boxes, err := FromAnnotations([]dataset.Annotation{{BBox: [4]float64{1, 2, 3, 4}, BBoxMode: dataset.XYWHAbs}}, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if b := boxes.Boxes[0]; b.X2 != 4 || b.Y2 != 6 {
		t.Errorf("box = %+v", b)
	}
}

func TestFlipLR(t *testing.T) {
	img := ramp(2, 3, 1)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 1, Y2: 2, Label: 4}}, Height: 2, Width: 3}

	out, got, err := FlipLR{P: 1}.Augment(nil, img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0, 0) != 2 || out.At(1, 2, 0) != 3 {
		t.Errorf("flipped data = %v", out.Data)
	}
	if b := got.Boxes[0]; b.X1 != 2 || b.X2 != 3 || b.Y1 != 0 || b.Y2 != 2 || b.Label != 4 {
		t.Errorf("box = %+v", b)
	}
	if img.At(0, 0, 0) != 0 || boxes.Boxes[0].X1 != 0 {
		t.Error("input modified")
	}
}

func TestFlipUD(t *testing.T) {
	img := ramp(2, 3, 1)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 1, Y2: 1}}, Height: 2, Width: 3}

	out, got, err := FlipUD{P: 1}.Augment(nil, img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0, 0) != 3 || out.At(1, 0, 0) != 0 {
		t.Errorf("flipped data = %v", out.Data)
	}
	if b := got.Boxes[0]; b.Y1 != 1 || b.Y2 != 2 {
		t.Errorf("box = %+v", b)
	}
}

func TestRot90(t *testing.T) {
	img := ramp(2, 3, 1)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 1, Y2: 2}}, Height: 2, Width: 3}

	out, got, err := Rot90{P: 1}.Augment(nil, img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 3 || out.Shape[1] != 2 {
		t.Fatalf("shape = %v, want [3 2 1]", out.Shape)
	}
	// first row of the rotated image is the first column read bottom-up
	if out.At(0, 0, 0) != 3 || out.At(0, 1, 0) != 0 || out.At(2, 0, 0) != 5 {
		t.Errorf("rotated data = %v", out.Data)
	}
	if got.Height != 3 || got.Width != 2 {
		t.Errorf("boxes shape = %dx%d", got.Height, got.Width)
	}
	if b := got.Boxes[0]; !closeTo([4]float64{b.X1, b.Y1, b.X2, b.Y2}, [4]float64{0, 0, 2, 1}) {
		t.Errorf("box = %+v", b)
	}
}

func TestZeroProbabilityIsNoop(t *testing.T) {
	img := ramp(2, 2, 3)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 1, Y2: 1}}, Height: 2, Width: 2}
	aug := Sequence{FlipLR{}, FlipUD{}, Rot90{}}
	out, got, err := aug.Augment(rand.New(rand.NewSource(3)), img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if out != img || got.Boxes[0] != boxes.Boxes[0] {
		t.Error("expected untouched inputs")
	}
}

func TestApplyInferenceKeepsBoxes(t *testing.T) {
	img := ramp(2, 3, 3)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 1, Y2: 2}}, Height: 2, Width: 3}

	out, got, err := Apply(nil, FlipLR{P: 1}, img, boxes, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0, 0) != 2 {
		t.Error("image was not augmented")
	}
	if got.Boxes[0] != boxes.Boxes[0] {
		t.Errorf("box = %+v, want unchanged", got.Boxes[0])
	}
}

func TestResizeMax(t *testing.T) {
	img := ramp(4, 8, 3)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 0, Y1: 0, X2: 8, Y2: 4}}, Height: 4, Width: 8}

	out, got, err := ResizeMax{MaxSize: 4}.Augment(nil, img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 4 || out.Shape[2] != 3 {
		t.Fatalf("shape = %v", out.Shape)
	}
	lo, hi := img.MinMax()
	olo, ohi := out.MinMax()
	if olo < lo || ohi > hi {
		t.Errorf("values [%v, %v] outside [%v, %v]", olo, ohi, lo, hi)
	}
	if b := got.Boxes[0]; !closeTo([4]float64{b.X1, b.Y1, b.X2, b.Y2}, [4]float64{0, 0, 4, 2}) {
		t.Errorf("box = %+v", b)
	}

	small, same, err := ResizeMax{MaxSize: 16}.Augment(nil, img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if small != img || same.Width != 8 {
		t.Error("image within bound was resized")
	}
}

func TestResizeMaxKeepsSixteenBitDepth(t *testing.T) {
	img := ndarray.New(8, 8, 3)
	for i := range img.Data {
		img.Data[i] = 1000
	}
	for c := 0; c < 3; c++ {
		img.Set(65535, 0, 0, c)
		img.Set(0, 7, 7, c)
	}

	out, _, err := ResizeMax{MaxSize: 4}.Augment(nil, img, BoxesOnImage{Height: 8, Width: 8})
	if err != nil {
		t.Fatal(err)
	}
	if v := out.At(1, 2, 0); math.Abs(v-1000) > 1 {
		t.Errorf("flat region = %v, want 1000 within one level", v)
	}
}

func TestSeededSequenceIsDeterministic(t *testing.T) {
	img := ramp(5, 7, 3)
	boxes := BoxesOnImage{Boxes: []BoundingBox{{X1: 1, Y1: 1, X2: 3, Y2: 4}}, Height: 5, Width: 7}
	aug := DefaultPolicy(nil, 0, true, 5, 7)

	_, a, err := aug.Augment(rand.New(rand.NewSource(42)), img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := aug.Augment(rand.New(rand.NewSource(42)), img, boxes)
	if err != nil {
		t.Fatal(err)
	}
	if a.Boxes[0] != b.Boxes[0] || a.Height != b.Height {
		t.Errorf("same seed gave %+v and %+v", a, b)
	}
}

func TestPolicyRegistry(t *testing.T) {
	if _, ok := DefaultPolicy(nil, 0, false, 10, 10).(Identity); !ok {
		t.Error("default inference policy without a size bound should be identity")
	}

	r := NewPolicyRegistry(nil)
	r.Register("yeast", func([]string, int, bool, int, int) Augmenter { return FlipLR{P: 1} })

	if _, ok := r.Policy([]string{"other", "yeast"}, 0, true, 4, 4).(FlipLR); !ok {
		t.Error("registered policy not used")
	}
	if _, ok := r.Policy([]string{"other"}, 0, true, 4, 4).(Sequence); !ok {
		t.Error("fallback policy not used")
	}
	if _, ok := r.Policy([]string{"Yeast"}, 0, true, 4, 4).(FlipLR); !ok {
		t.Error("dataset names should match case-insensitively")
	}
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("identity")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p(nil, 100, true, 4, 4).(Identity); !ok {
		t.Error("identity policy should not augment")
	}
	if p, err = PolicyByName(""); err != nil {
		t.Fatal(err)
	}
	if _, ok := p(nil, 0, true, 4, 4).(Sequence); !ok {
		t.Error("empty name should select the default policy")
	}
	if _, err := PolicyByName("mosaic"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("err = %v, want ErrUnknownPolicy", err)
	}
}
