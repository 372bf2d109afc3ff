package raster

import (
	"image"
	"image/color"
	"testing"
)

func borderedImage(w, h, border int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	dark := color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	light := color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < border || y < border || x >= w-border || y >= h-border {
				img.Set(x, y, dark)
			} else {
				img.Set(x, y, light)
			}
		}
	}
	return img
}

func TestTrimDarkEdgesRemovesBorder(t *testing.T) {
	// 4px dark border on 100x100 is within the 8% trim allowance.
	img := borderedImage(100, 100, 4)
	trimmed := TrimDarkEdges(img)

	if trimmed.Bounds().Dx() != 92 || trimmed.Bounds().Dy() != 92 {
		t.Fatalf("trimmed to %dx%d, want 92x92", trimmed.Bounds().Dx(), trimmed.Bounds().Dy())
	}
	corner := trimmed.NRGBAAt(0, 0)
	if corner.R < 100 {
		t.Fatalf("expected light corner after trim, got %v", corner)
	}
}

func TestTrimDarkEdgesRespectsMaxFraction(t *testing.T) {
	// 20px dark border exceeds the 8% allowance; only 8 columns/rows go.
	img := borderedImage(100, 100, 20)
	trimmed := TrimDarkEdges(img)

	if trimmed.Bounds().Dx() != 84 || trimmed.Bounds().Dy() != 84 {
		t.Fatalf("trimmed to %dx%d, want 84x84", trimmed.Bounds().Dx(), trimmed.Bounds().Dy())
	}
}

func TestTrimDarkEdgesSkipsTinyImages(t *testing.T) {
	img := borderedImage(12, 12, 3)
	trimmed := TrimDarkEdges(img)
	if trimmed.Bounds().Dx() != 12 || trimmed.Bounds().Dy() != 12 {
		t.Fatalf("tiny image should not be trimmed, got %dx%d", trimmed.Bounds().Dx(), trimmed.Bounds().Dy())
	}
}

func TestTrimDarkEdgesNoDarkBorder(t *testing.T) {
	img := borderedImage(50, 50, 0)
	trimmed := TrimDarkEdges(img)
	if trimmed.Bounds().Dx() != 50 || trimmed.Bounds().Dy() != 50 {
		t.Fatalf("clean image should be unchanged, got %dx%d", trimmed.Bounds().Dx(), trimmed.Bounds().Dy())
	}
}
