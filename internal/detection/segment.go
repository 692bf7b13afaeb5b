package detection

import (
	"image"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// SegmentOptions tunes foreground segmentation. Zero values select the
// defaults returned by DefaultSegmentOptions.
type SegmentOptions struct {
	// Window is the side of the local-mean window for thresholding (odd).
	Window int `json:"window" yaml:"window"`

	// Margin is how much darker than its neighbourhood mean (8-bit L units)
	// a pixel must be to count as ink.
	Margin float64 `json:"margin" yaml:"margin"`

	// OpenSize is the element size of the speck-removing opening.
	OpenSize int `json:"open_size" yaml:"open_size"`

	// CloseSize and CloseIterations control the gap-filling closing.
	CloseSize       int `json:"close_size" yaml:"close_size"`
	CloseIterations int `json:"close_iterations" yaml:"close_iterations"`

	// FinalCloseSize is the element size of the smoothing closing applied
	// after small regions are dropped.
	FinalCloseSize int `json:"final_close_size" yaml:"final_close_size"`

	// MinAreaFraction drops regions smaller than this fraction of the image.
	MinAreaFraction float64 `json:"min_area_fraction" yaml:"min_area_fraction"`

	// MaxHoleFraction fills enclosed background holes up to this fraction of
	// the image. Large solid dark areas have no contrast with their own
	// neighbourhood and come out of the threshold hollow.
	MaxHoleFraction float64 `json:"max_hole_fraction" yaml:"max_hole_fraction"`

	// BorderFraction clears a band of this fraction of the shorter side
	// along every edge, where scanner shadows and lid edges live.
	BorderFraction float64 `json:"border_fraction" yaml:"border_fraction"`

	// Confidence is the heuristic quality score attached to the mask.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// DefaultSegmentOptions returns the tuned defaults for paper scans.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		Window:          51,
		Margin:          7,
		OpenSize:        5,
		CloseSize:       5,
		CloseIterations: 2,
		FinalCloseSize:  7,
		MinAreaFraction: 0.0005,
		MaxHoleFraction: 0.01,
		BorderFraction:  0.02,
		Confidence:      0.60,
	}
}

// WithDefaults returns a copy of o with every zero field replaced by its
// default.
func (o SegmentOptions) WithDefaults() SegmentOptions {
	d := DefaultSegmentOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.Margin == 0 {
		o.Margin = d.Margin
	}
	if o.OpenSize <= 0 {
		o.OpenSize = d.OpenSize
	}
	if o.CloseSize <= 0 {
		o.CloseSize = d.CloseSize
	}
	if o.CloseIterations <= 0 {
		o.CloseIterations = d.CloseIterations
	}
	if o.FinalCloseSize <= 0 {
		o.FinalCloseSize = d.FinalCloseSize
	}
	if o.MinAreaFraction == 0 {
		o.MinAreaFraction = d.MinAreaFraction
	}
	if o.MaxHoleFraction == 0 {
		o.MaxHoleFraction = d.MaxHoleFraction
	}
	if o.BorderFraction == 0 {
		o.BorderFraction = d.BorderFraction
	}
	if o.Confidence == 0 {
		o.Confidence = d.Confidence
	}
	return o
}

// Segmentation is the result of foreground segmentation.
type Segmentation struct {
	// Mask marks subject pixels with 255.
	Mask imaging.Mask `json:"-"`

	// Confidence is the heuristic quality score in [0,1].
	Confidence float64 `json:"confidence"`

	// Regions is the number of regions that survived size filtering.
	Regions int `json:"regions"`

	// ForegroundFraction is the share of pixels marked as subject.
	ForegroundFraction float64 `json:"foreground_fraction"`

	// BorderPx is the width of the cleared band along each edge.
	BorderPx int `json:"border_px"`
}

// Segment separates subject from paper and returns the binary mask.
//
// It never fails on a well-formed image; see Analyze for the algorithm.
func Segment(img image.Image, opts SegmentOptions) imaging.Mask {
	return Analyze(img, opts).Mask
}

// Analyze segments img and reports statistics alongside the mask.
//
// # Algorithm
//
//  1. Convert to perceptual Lab and take the 8-bit L channel.
//  2. Adaptive threshold: a pixel is ink when the mean of its Window-sized
//     neighbourhood is more than Margin above it.
//  3. Opening with an OpenSize element removes specks; closing with a CloseSize
//     element, CloseIterations times, bridges small gaps.
//  4. 8-connected regions below MinAreaFraction of the image are dropped.
//  5. A closing with a FinalCloseSize element smooths outlines, then enclosed
//     holes up to MaxHoleFraction of the image are filled.
//  6. A band of BorderFraction of the shorter side is cleared on every edge.
//
// The mask is strictly binary and has the dimensions of img.
func Analyze(img image.Image, opts SegmentOptions) *Segmentation {
	opts = opts.WithDefaults()
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return &Segmentation{Mask: imaging.NewMask(image.NewGray(image.Rect(0, 0, w, h))), Confidence: opts.Confidence}
	}

	l := imaging.ToPerceptual(img).Luminance()
	plane := AdaptiveThreshold(l, opts.Window, opts.Margin)
	plane = Open(plane, opts.OpenSize)
	plane = Close(plane, opts.CloseSize, opts.CloseIterations)

	minArea := int(float64(w*h) * opts.MinAreaFraction)
	plane, regions := RemoveSmallComponents(plane, minArea)

	plane = Close(plane, opts.FinalCloseSize, 1)
	plane = FillHoles(plane, int(float64(w*h)*opts.MaxHoleFraction))

	border := int(float64(min(w, h)) * opts.BorderFraction)
	clearBorder(plane, border)

	mask := imaging.NewMask(plane)
	return &Segmentation{
		Mask:               mask,
		Confidence:         opts.Confidence,
		Regions:            regions,
		ForegroundFraction: float64(mask.Count()) / float64(w*h),
		BorderPx:           border,
	}
}

// clearBorder zeroes a band of n pixels along every edge. n <= 0 is a no-op.
func clearBorder(g *image.Gray, n int) {
	if n <= 0 {
		return
	}
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		if y < n || y >= h-n {
			clear(row)
			continue
		}
		clear(row[:min(n, w)])
		clear(row[max(w-n, 0):])
	}
}
