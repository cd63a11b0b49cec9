// Package imaging holds the frame-level image operations the reader needs:
// orientation, OCR preparation, text-region cropping, preview thumbnails and
// colour handling for the terminal preview.
//
// All operations take standard image.Image values and never mutate their
// input. Coordinates are absolute in the source image's bounds, with (0,0)
// at the top-left of a zero-origin image.
//
// # Rotation
//
// Camera frames carry rotation metadata: the clockwise rotation, in degrees,
// that makes the frame upright. Orient applies it. Only multiples of 90 are
// accepted.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless.
package imaging
