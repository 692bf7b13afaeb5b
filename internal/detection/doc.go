// Package detection separates subject matter from paper in scanned images.
//
// The central operation is Segment, which turns a scan into a binary
// foreground mask (255 = ink or paint, 0 = paper) using classical image
// processing only. No model is trained or loaded.
//
// # Algorithm Overview
//
// Segmentation follows a fixed pipeline, each stage exposed on its own:
//
//  1. AdaptiveThreshold: compare each pixel's lightness with its local mean
//  2. Open and Close: morphological cleanup with a small structuring element
//  3. RemoveSmallComponents: drop 8-connected regions below a size floor
//  4. FillHoles: fill the hollow interior of large dark regions
//  5. Border clearing: zero a thin band along every edge
//
// Overlay renders a tinted preview of a mask for visual QA.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Confidence Scores
//
// A Segmentation carries a confidence in [0,1]. It is a fixed heuristic
// score for the method, not a per-image estimate.
//
// # Limitations
//
// These heuristics work best on light paper with darker subject matter.
// Pale pencil close to the paper tone, or dark paper with light paint, will
// segment poorly.
package detection
