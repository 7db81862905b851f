// Package page defines the in-memory page images that flow between the
// raster, cleaning, and skew stages.
//
// A Raster is an 8-bit grayscale buffer in row-major order. A Binary is a
// Raster whose samples are all 0 or 255; the only way to obtain one is through
// NewBinary, which checks every sample. Stages never mutate their input and
// always return a fresh buffer.
package page
