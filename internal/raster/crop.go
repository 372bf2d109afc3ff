package raster

import (
	"fmt"
	"image"
	"image/draw"
	"math"
)

// DefaultPadding is the fraction of each box dimension added around the crop
// before clamping to the source bounds.
const DefaultPadding = 0.02

// PixBox is a rectangle in source pixel coordinates.
type PixBox struct {
	X int
	Y int
	W int
	H int
}

// PixelBox converts a normalized region box into source pixel coordinates,
// expands it symmetrically by padFraction of its own width/height, and clamps
// the result so it never exceeds the source raster. The returned box is at
// least 1x1.
func PixelBox(r Region, srcW, srcH int, padFraction float64) PixBox {
	if padFraction < 0 {
		padFraction = 0
	}

	fx := float64(r.X) / CoordSpace * float64(srcW)
	fy := float64(r.Y) / CoordSpace * float64(srcH)
	fw := float64(r.Width) / CoordSpace * float64(srcW)
	fh := float64(r.Height) / CoordSpace * float64(srcH)

	// Symmetric expansion: padFraction of the dimension in total, half per side.
	padX := fw * padFraction / 2
	padY := fh * padFraction / 2
	fx -= padX
	fy -= padY
	fw += 2 * padX
	fh += 2 * padY

	if fx < 0 {
		fx = 0
	}
	if fy < 0 {
		fy = 0
	}
	if fx+fw > float64(srcW) {
		fw = float64(srcW) - fx
	}
	if fy+fh > float64(srcH) {
		fh = float64(srcH) - fy
	}

	box := PixBox{
		X: int(math.Round(fx)),
		Y: int(math.Round(fy)),
		W: int(math.Round(fw)),
		H: int(math.Round(fh)),
	}
	if box.W < 1 {
		box.W = 1
	}
	if box.H < 1 {
		box.H = 1
	}
	if box.X+box.W > srcW {
		box.X = max(srcW-box.W, 0)
		box.W = min(box.W, srcW)
	}
	if box.Y+box.H > srcH {
		box.Y = max(srcH-box.H, 0)
		box.H = min(box.H, srcH)
	}
	return box
}

// Crop extracts the padded region from src and applies rotation correction so
// the returned raster is upright. The second return value is the pixel box
// that was extracted before rotation; outpainting needs it to scale contours.
func Crop(src image.Image, r Region, padFraction float64) (*image.NRGBA, PixBox, error) {
	if src == nil {
		return nil, PixBox{}, fmt.Errorf("source raster is nil")
	}
	if err := r.Validate(); err != nil {
		return nil, PixBox{}, err
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW < 1 || srcH < 1 {
		return nil, PixBox{}, fmt.Errorf("source raster is empty")
	}

	box := PixelBox(r, srcW, srcH, padFraction)
	cropped := image.NewNRGBA(image.Rect(0, 0, box.W, box.H))
	draw.Draw(cropped, cropped.Bounds(), src, image.Pt(bounds.Min.X+box.X, bounds.Min.Y+box.Y), draw.Src)

	correction := CorrectionFor(r.Rotation)
	if correction == 0 {
		return cropped, box, nil
	}
	return Rotate(cropped, correction), box, nil
}

// ContourPixels maps a normalized contour into crop-local pixel coordinates
// for the given extracted box. Points are clamped to the crop bounds.
func ContourPixels(contour []Point, srcW, srcH int, box PixBox) []image.Point {
	if len(contour) == 0 {
		return nil
	}
	points := make([]image.Point, 0, len(contour))
	for _, p := range contour {
		px := int(math.Round(float64(p.X)/CoordSpace*float64(srcW))) - box.X
		py := int(math.Round(float64(p.Y)/CoordSpace*float64(srcH))) - box.Y
		px = min(max(px, 0), box.W-1)
		py = min(max(py, 0), box.H-1)
		points = append(points, image.Pt(px, py))
	}
	return points
}
