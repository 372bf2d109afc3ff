// Package raster implements the local geometry applied to scanned images:
// normalized-box to pixel conversion, padded cropping, quantized rotation
// correction, scanner-background trimming, and overlap resolution between
// detected regions.
//
// Everything here is pure and deterministic for fixed inputs. Remote work
// (detection, outpainting, restoration) never happens in this package, which
// keeps the numeric paths unit-testable without network fakes.
package raster
