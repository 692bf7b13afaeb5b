package imaging

import (
	"fmt"
	"image"
	"sort"
	"sync"
)

// Side identifies one edge of an image.
type Side int

// The four image edges, in the order they are reported.
const (
	Top Side = iota
	Bottom
	Left
	Right
)

// Sides lists every edge in reporting order.
var Sides = []Side{Top, Bottom, Left, Right}

func (s Side) String() string {
	switch s {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// EdgeOffsets is the number of pixels to trim from each edge, before any
// safety margin.
type EdgeOffsets struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Get returns the offset recorded for side s.
func (o EdgeOffsets) Get(s Side) int {
	switch s {
	case Top:
		return o.Top
	case Bottom:
		return o.Bottom
	case Left:
		return o.Left
	default:
		return o.Right
	}
}

func (o *EdgeOffsets) set(s Side, v int) {
	switch s {
	case Top:
		o.Top = v
	case Bottom:
		o.Bottom = v
	case Left:
		o.Left = v
	default:
		o.Right = v
	}
}

// ScanOptions tunes the edge-tone scan.
type ScanOptions struct {
	// BandPx is the thickness of the band measured at each step.
	BandPx int

	// StepPx is how far the band moves inward after a miss.
	StepPx int

	// Threshold is the largest distance to the target tone that still counts
	// as a match.
	Threshold float64

	// MaxCropFraction caps the offset at this fraction of the dimension
	// perpendicular to the edge.
	MaxCropFraction float64

	// Distance compares band medians with the target. Nil selects
	// ColorDistance.
	Distance DistanceFunc
}

// DefaultScanOptions returns the paper-tone scan defaults: 24 px band, 8 px
// step, threshold 10 and an 18% cap.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{BandPx: 24, StepPx: 8, Threshold: 10, MaxCropFraction: 0.18}
}

func (o ScanOptions) validate() error {
	switch {
	case o.BandPx < 1:
		return fmt.Errorf("%w: band_px must be >= 1, got %d", ErrInvalidParameter, o.BandPx)
	case o.StepPx < 1:
		return fmt.Errorf("%w: step_px must be >= 1, got %d", ErrInvalidParameter, o.StepPx)
	case o.Threshold < 0:
		return fmt.Errorf("%w: threshold must be >= 0, got %g", ErrInvalidParameter, o.Threshold)
	case o.MaxCropFraction < 0 || o.MaxCropFraction > 1:
		return fmt.Errorf("%w: max crop fraction must be within [0,1], got %g", ErrInvalidParameter, o.MaxCropFraction)
	}
	return nil
}

// ScanSample records one measured band during a scan.
type ScanSample struct {
	Offset   int             `json:"offset"`
	Distance float64         `json:"distance"`
	Median   PerceptualColor `json:"median"`
}

// ScanTrace holds the samples measured on every side, for diagnostics.
type ScanTrace map[Side][]ScanSample

// ScanEdges determines how far to trim each side of an image so that the
// remaining border matches the target paper tone.
//
// For every side the scan starts at offset 0 and measures the component-wise
// median color of a band BandPx thick, offset pixels in from that edge. The
// first offset whose median lies within Threshold of target is the result.
// Otherwise the band moves StepPx further in, for as long as the offset stays
// below the cap of int(MaxCropFraction*dimension); if the cap is reached the
// deepest offset examined is returned. Every result is therefore a multiple of
// StepPx below the cap, or 0 when the cap allows no step at all.
func ScanEdges(lab *LabImage, target PerceptualColor, opts ScanOptions) (EdgeOffsets, error) {
	off, _, err := scan(lab, target, opts, false)
	return off, err
}

// ScanEdgesTrace is ScanEdges that also returns every measured band.
func ScanEdgesTrace(lab *LabImage, target PerceptualColor, opts ScanOptions) (EdgeOffsets, ScanTrace, error) {
	return scan(lab, target, opts, true)
}

func scan(lab *LabImage, target PerceptualColor, opts ScanOptions, keepTrace bool) (EdgeOffsets, ScanTrace, error) {
	if err := opts.validate(); err != nil {
		return EdgeOffsets{}, nil, err
	}
	if lab == nil || lab.Width == 0 || lab.Height == 0 {
		return EdgeOffsets{}, nil, fmt.Errorf("%w: empty image", ErrInvalidParameter)
	}
	dist := opts.Distance
	if dist == nil {
		dist = ColorDistance
	}

	results := make([]int, len(Sides))
	traces := make([][]ScanSample, len(Sides))

	// Sides are independent; each goroutine owns one slot.
	var wg sync.WaitGroup
	for i, side := range Sides {
		wg.Add(1)
		go func(i int, side Side) {
			defer wg.Done()
			results[i], traces[i] = scanSide(lab, side, target, opts, dist, keepTrace)
		}(i, side)
	}
	wg.Wait()

	var offsets EdgeOffsets
	var trace ScanTrace
	if keepTrace {
		trace = make(ScanTrace, len(Sides))
	}
	for i, side := range Sides {
		offsets.set(side, results[i])
		if keepTrace {
			trace[side] = traces[i]
		}
	}
	return offsets, trace, nil
}

func scanSide(lab *LabImage, side Side, target PerceptualColor, opts ScanOptions, dist DistanceFunc, keepTrace bool) (int, []ScanSample) {
	dim := lab.Height
	if side == Left || side == Right {
		dim = lab.Width
	}
	limit := int(float64(dim) * opts.MaxCropFraction)

	var samples []ScanSample
	result := 0
	for offset := 0; offset < limit; offset += opts.StepPx {
		med, ok := medianColor(lab, bandRect(lab.Width, lab.Height, side, offset, opts.BandPx))
		if !ok {
			break
		}
		d := dist(med, target)
		if keepTrace {
			samples = append(samples, ScanSample{Offset: offset, Distance: d, Median: med})
		}
		result = offset
		if d <= opts.Threshold {
			break
		}
	}
	return result, samples
}

// bandRect returns the band of thickness band located offset pixels in from
// side, clamped to the image.
func bandRect(w, h int, side Side, offset, band int) image.Rectangle {
	var r image.Rectangle
	switch side {
	case Top:
		r = image.Rect(0, offset, w, offset+band)
	case Bottom:
		r = image.Rect(0, h-offset-band, w, h-offset)
	case Left:
		r = image.Rect(offset, 0, offset+band, h)
	default:
		r = image.Rect(w-offset-band, 0, w-offset, h)
	}
	return r.Intersect(image.Rect(0, 0, w, h))
}

// medianColor computes the component-wise median over r. Even sample counts
// average the two middle values. ok is false for an empty rectangle.
func medianColor(lab *LabImage, r image.Rectangle) (PerceptualColor, bool) {
	n := r.Dx() * r.Dy()
	if n <= 0 {
		return PerceptualColor{}, false
	}
	ls := make([]float64, 0, n)
	as := make([]float64, 0, n)
	bs := make([]float64, 0, n)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := (y*lab.Width + x) * 3
			ls = append(ls, lab.Pix[i])
			as = append(as, lab.Pix[i+1])
			bs = append(bs, lab.Pix[i+2])
		}
	}
	return PerceptualColor{L: Median(ls), A: Median(as), B: Median(bs)}, true
}

// Median sorts values in place and returns their median. Even counts average
// the two middle values. It returns 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
