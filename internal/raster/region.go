package raster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// CoordSpace is the upper bound of the normalized coordinate space used by
// detection results. Coordinates are independent of the source pixel size.
const CoordSpace = 1000

// Point is a vertex in the normalized 0-1000 coordinate space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UnmarshalJSON accepts both contour vertex encodings providers emit: the
// [x,y] pair the detection prompt asks for and the {"x":..,"y":..} object
// form. Fractional coordinates are rounded to the nearest integer.
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("contour point needs 2 coordinates, got %d", len(pair))
		}
		p.X = int(pair[0] + 0.5)
		p.Y = int(pair[1] + 0.5)
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.X = int(obj.X + 0.5)
	p.Y = int(obj.Y + 0.5)
	return nil
}

// Region is a detected sub-photo within a scan. Coordinates and the optional
// contour live in the normalized 0-1000 space. Rotation records how far the
// photo currently appears rotated clockwise from upright, quantized to a
// multiple of 90 degrees.
type Region struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
	Rotation   int     `json:"rotation_angle"`
	Label      string  `json:"label,omitempty"`
	Reasoning  string  `json:"rotation_reasoning,omitempty"`
	Contour    []Point `json:"contour,omitempty"`
	NeedsFill  bool    `json:"needs_outpaint"`
}

// Validate checks the region invariants: positive extent and a rotation hint
// that is a multiple of 90.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region extent must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("region origin must be non-negative, got (%d,%d)", r.X, r.Y)
	}
	if r.Rotation%90 != 0 {
		return fmt.Errorf("rotation hint %d is not a multiple of 90", r.Rotation)
	}
	return nil
}

// QuantizeRotation snaps an arbitrary detector angle to the nearest multiple
// of 90 in [0,360).
func QuantizeRotation(degrees float64) int {
	quantized := int(degrees/90+0.5) * 90
	quantized %= 360
	if quantized < 0 {
		quantized += 360
	}
	return quantized
}

// ErrEmptyContour indicates a contour with too few points to describe a
// polygon; callers skip outpainting in that case.
var ErrEmptyContour = errors.New("contour has fewer than 3 points")

// HasUsableContour reports whether the region carries a polygon that can
// drive generative edge fill.
func (r Region) HasUsableContour() bool {
	return len(r.Contour) >= 3
}

// ResolveOverlaps shrinks pairs of overlapping regions apart along the axis
// of least overlap so each pixel of the scan belongs to at most one crop.
// The input slice is not modified.
func ResolveOverlaps(regions []Region) []Region {
	fixed := make([]Region, len(regions))
	copy(fixed, regions)

	for i := 0; i < len(fixed); i++ {
		for j := i + 1; j < len(fixed); j++ {
			a, b := fixed[i], fixed[j]
			hOverlap := min(a.X+a.Width, b.X+b.Width) - max(a.X, b.X)
			vOverlap := min(a.Y+a.Height, b.Y+b.Height) - max(a.Y, b.Y)
			if hOverlap <= 0 || vOverlap <= 0 {
				continue
			}

			shrink := min(hOverlap, vOverlap)/2 + 1
			if hOverlap <= vOverlap {
				if fixed[i].X < fixed[j].X {
					fixed[i].Width = max(fixed[i].Width-shrink, 1)
					fixed[j].X += shrink
					fixed[j].Width = max(fixed[j].Width-shrink, 1)
				} else {
					fixed[j].Width = max(fixed[j].Width-shrink, 1)
					fixed[i].X += shrink
					fixed[i].Width = max(fixed[i].Width-shrink, 1)
				}
			} else {
				if fixed[i].Y < fixed[j].Y {
					fixed[i].Height = max(fixed[i].Height-shrink, 1)
					fixed[j].Y += shrink
					fixed[j].Height = max(fixed[j].Height-shrink, 1)
				} else {
					fixed[j].Height = max(fixed[j].Height-shrink, 1)
					fixed[i].Y += shrink
					fixed[i].Height = max(fixed[i].Height-shrink, 1)
				}
			}
		}
	}
	return fixed
}
