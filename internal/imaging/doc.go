// Package imaging provides the pixel-level core of scan restoration.
//
// It covers four concerns:
//
//   - Color: conversion between device RGB and the 8-bit perceptual Lab scale,
//     hex reference tones, and color distance (color.go).
//   - Masks: the immutable binary Mask type and its resampling (mask.go).
//   - Compositing: Gaussian feathering of masks into alpha maps and
//     alpha-weighted blending of two images (composite.go).
//   - Edge tone: scanning inward from every edge for the paper tone and
//     turning the result into a crop rectangle (tone.go, crop.go).
//
// Ingest helpers (Normalize, DamageMap, CannyEdges) and file I/O (Load, Save,
// ImageCache) round out the package.
//
// # Coordinate System
//
// All coordinates are 0-based with (0,0) at the top-left corner. Every image
// produced by this package is anchored at (0,0) regardless of the bounds of
// its input. For rectangles, Min is inclusive and Max is exclusive.
//
// # Channel Order
//
// Images are *image.NRGBA in R,G,B,A order. Alpha is carried through
// compositing but the restoration stages always work on opaque scans.
//
// # Thread Safety
//
// Operations are stateless and safe to call concurrently. Row loops run in
// parallel internally (bild/parallel); results never depend on the number of
// workers. ImageCache is safe for concurrent use.
//
// # Errors
//
// Failures wrap one of the sentinel errors ErrImageDecode,
// ErrInvalidColorFormat, ErrDimensionMismatch or ErrInvalidParameter, so
// callers can test them with errors.Is.
package imaging
