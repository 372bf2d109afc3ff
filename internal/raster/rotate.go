package raster

import "image"

// CorrectionFor returns the clockwise rotation that restores a region to
// upright given its rotation hint. The hint records the existing clockwise
// deviation, so the correction is (360 - hint) mod 360.
func CorrectionFor(hintDegrees int) int {
	hint := hintDegrees % 360
	if hint < 0 {
		hint += 360
	}
	// Hints are quantized to multiples of 90; floor non-conforming values.
	hint = (hint / 90) * 90
	return (360 - hint) % 360
}

// Swaps reports whether rotating by the given clockwise angle exchanges
// output width and height.
func Swaps(degreesCW int) bool {
	d := degreesCW % 360
	if d < 0 {
		d += 360
	}
	return d == 90 || d == 270
}

// Rotate returns src rotated clockwise by the given multiple of 90 degrees.
// Angles are normalized mod 360; 0 returns a copy.
func Rotate(src image.Image, degreesCW int) *image.NRGBA {
	d := degreesCW % 360
	if d < 0 {
		d += 360
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var dst *image.NRGBA
	switch d {
	case 90, 270:
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
	default:
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch d {
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			default:
				dst.Set(x, y, c)
			}
		}
	}
	return dst
}
