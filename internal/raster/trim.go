package raster

import (
	"image"
	"image/draw"
)

const (
	trimBrightnessThreshold = 60
	trimMinDarkFraction     = 0.55
	trimMaxFraction         = 0.08
	trimMinDimension        = 20
)

// TrimDarkEdges removes mostly-dark border rows and columns left by the
// scanner background around a corrected crop. At most trimMaxFraction of
// each side is removed; rasters smaller than trimMinDimension are returned
// unchanged.
func TrimDarkEdges(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := toNRGBA(src)
	if w < trimMinDimension || h < trimMinDimension {
		return nrgba
	}

	maxTrimX := int(float64(w) * trimMaxFraction)
	maxTrimY := int(float64(h) * trimMaxFraction)

	isDark := func(x, y int) bool {
		i := nrgba.PixOffset(x, y)
		sum := int(nrgba.Pix[i]) + int(nrgba.Pix[i+1]) + int(nrgba.Pix[i+2])
		return sum/3 < trimBrightnessThreshold
	}

	darkColumn := func(x int) bool {
		dark := 0
		for y := 0; y < h; y++ {
			if isDark(x, y) {
				dark++
			}
		}
		return float64(dark)/float64(h) >= trimMinDarkFraction
	}
	darkRow := func(y int) bool {
		dark := 0
		for x := 0; x < w; x++ {
			if isDark(x, y) {
				dark++
			}
		}
		return float64(dark)/float64(w) >= trimMinDarkFraction
	}

	left := 0
	for x := 0; x < maxTrimX; x++ {
		if !darkColumn(x) {
			break
		}
		left = x + 1
	}
	right := w
	for x := w - 1; x >= w-maxTrimX && x >= 0; x-- {
		if !darkColumn(x) {
			break
		}
		right = x
	}
	top := 0
	for y := 0; y < maxTrimY; y++ {
		if !darkRow(y) {
			break
		}
		top = y + 1
	}
	bottom := h
	for y := h - 1; y >= h-maxTrimY && y >= 0; y-- {
		if !darkRow(y) {
			break
		}
		bottom = y
	}

	newW := max(right-left, 1)
	newH := max(bottom-top, 1)
	if newW == w && newH == h {
		return nrgba
	}

	trimmed := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(trimmed, trimmed.Bounds(), nrgba, image.Pt(left, top), draw.Src)
	return trimmed
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == image.Pt(0, 0) {
		return n
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}
