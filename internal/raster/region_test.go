package raster

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRegionValidate(t *testing.T) {
	valid := Region{X: 10, Y: 10, Width: 100, Height: 50, Rotation: 180}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []Region{
		{Width: 0, Height: 10},
		{Width: 10, Height: -1},
		{X: -5, Y: 0, Width: 10, Height: 10},
		{Width: 10, Height: 10, Rotation: 45},
	}
	for _, r := range cases {
		if err := r.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", r)
		}
	}
}

func TestQuantizeRotation(t *testing.T) {
	cases := map[float64]int{
		0:     0,
		44:    0,
		46:    90,
		90:    90,
		135:   180,
		269:   270,
		359:   0,
		360:   0,
		400.0: 0,
		410.0: 90,
	}
	for input, want := range cases {
		if got := QuantizeRotation(input); got != want {
			t.Errorf("QuantizeRotation(%v) = %d, want %d", input, got, want)
		}
	}
}

func TestContourPointDecodesBothForms(t *testing.T) {
	var r Region
	payload := `{"x":0,"y":0,"width":500,"height":500,"confidence":0.9,
		"contour":[[30,30],{"x":470,"y":30},[470.4,469.6]]}`
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Point{{30, 30}, {470, 30}, {470, 470}}
	if !reflect.DeepEqual(r.Contour, want) {
		t.Fatalf("contour = %+v, want %+v", r.Contour, want)
	}

	var bad Point
	if err := json.Unmarshal([]byte(`[30]`), &bad); err == nil {
		t.Error("single-coordinate pair should not decode")
	}
}

func TestHasUsableContour(t *testing.T) {
	r := Region{Contour: []Point{{0, 0}, {10, 0}}}
	if r.HasUsableContour() {
		t.Error("two points should not form a usable contour")
	}
	r.Contour = append(r.Contour, Point{10, 10})
	if !r.HasUsableContour() {
		t.Error("three points should form a usable contour")
	}
}

func TestResolveOverlapsSeparatesBoxes(t *testing.T) {
	regions := []Region{
		{X: 0, Y: 0, Width: 120, Height: 100},
		{X: 100, Y: 0, Width: 100, Height: 100},
	}
	fixed := ResolveOverlaps(regions)

	a, b := fixed[0], fixed[1]
	if a.X+a.Width > b.X {
		t.Fatalf("boxes still overlap after resolution: %+v vs %+v", a, b)
	}
	// Originals untouched.
	if regions[0].Width != 120 {
		t.Fatal("input slice was mutated")
	}
}

func TestResolveOverlapsLeavesDisjointBoxes(t *testing.T) {
	regions := []Region{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 200, Y: 200, Width: 100, Height: 100},
	}
	fixed := ResolveOverlaps(regions)
	for i := range regions {
		if !reflect.DeepEqual(fixed[i], regions[i]) {
			t.Errorf("disjoint region %d changed: %+v -> %+v", i, regions[i], fixed[i])
		}
	}
}
