package restore

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	imgutil "github.com/disintegration/imaging"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// IngestResult holds the preprocessing outputs of a scan.
type IngestResult struct {
	Normalized *image.NRGBA
	DamageMap  *image.Gray
}

// Ingest normalizes exposure and estimates where the scan is damaged.
func Ingest(img image.Image, opts imaging.DamageMapOptions) *IngestResult {
	return &IngestResult{
		Normalized: imaging.Normalize(img),
		DamageMap:  imaging.DamageMap(img, opts),
	}
}

// BackgroundOptions tunes background cleanup.
type BackgroundOptions struct {
	// Strength is how far (0..1) the paper's b channel is pulled toward
	// TargetB. Higher values remove more yellowing.
	Strength float64 `yaml:"strength" json:"strength"`

	// TargetB is the neutral b value on the 8-bit Lab scale.
	TargetB float64 `yaml:"target_b" json:"target_b"`

	// FeatherRadius softens the boundary between kept subject and cleaned
	// paper.
	FeatherRadius int `yaml:"feather_radius" json:"feather_radius"`

	// MedianRadius is the radius of the median filter applied to paper
	// lightness. Zero disables denoising.
	MedianRadius float64 `yaml:"median_radius" json:"median_radius"`

	// MinBackgroundPixels is the number of paper pixels needed to estimate
	// the paper tone from paper alone; below it the whole image is used.
	MinBackgroundPixels int `yaml:"min_background_pixels" json:"min_background_pixels"`
}

// DefaultBackgroundOptions returns the tuned defaults.
func DefaultBackgroundOptions() BackgroundOptions {
	return BackgroundOptions{
		Strength:            0.55,
		TargetB:             128,
		FeatherRadius:       13,
		MedianRadius:        1.5,
		MinBackgroundPixels: 1000,
	}
}

// BackgroundResult is the output of BackgroundClean.
type BackgroundResult struct {
	// Image is the cleaned scan.
	Image *image.NRGBA `json:"-"`

	// Delta is the per-channel absolute difference from the input.
	Delta *image.NRGBA `json:"-"`

	// PaperB is the estimated b median of the paper before correction.
	PaperB float64 `json:"paper_b"`

	// BackgroundPixels is the number of pixels treated as paper.
	BackgroundPixels int `json:"background_pixels"`

	// WholeImageEstimate reports that too few paper pixels existed and the
	// b median was taken over the whole image.
	WholeImageEstimate bool `json:"whole_image_estimate"`
}

// BackgroundClean reduces paper yellowing and grain outside the subject.
//
// Paper pixels (mask == 0) have their b channel shifted toward TargetB by
// Strength times the distance between TargetB and the paper's median b, and
// their lightness replaced by a median-filtered version. The cleaned image is
// then composited under the original through the feathered mask, so subject
// pixels keep their original values and the transition is soft.
//
// The mask is resampled with nearest-neighbour when its size differs from img.
func BackgroundClean(img image.Image, mask imaging.Mask, opts BackgroundOptions) (*BackgroundResult, error) {
	src := imgutil.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	mask, err := imaging.ResampleMask(mask, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to fit mask to image: %w", err)
	}

	lab := imaging.ToPerceptual(src)
	n := w * h

	var paperB, allB []float64
	allB = make([]float64, 0, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b := lab.Pix[(y*w+x)*3+2]
			allB = append(allB, b)
			if !mask.IsForeground(x, y) {
				paperB = append(paperB, b)
			}
		}
	}

	res := &BackgroundResult{BackgroundPixels: len(paperB)}
	if len(paperB) > opts.MinBackgroundPixels {
		res.PaperB = imaging.Median(paperB)
	} else {
		res.PaperB = imaging.Median(allB)
		res.WholeImageEstimate = true
	}
	shift := (opts.TargetB - res.PaperB) * opts.Strength

	var denoised *image.RGBA
	if opts.MedianRadius > 0 {
		denoised = effect.Median(lab.Luminance(), opts.MedianRadius)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.IsForeground(x, y) {
				continue
			}
			i := (y*w + x) * 3
			lab.Pix[i+2] += shift
			if denoised != nil {
				db := denoised.Bounds()
				lab.Pix[i] = float64(denoised.Pix[denoised.PixOffset(db.Min.X+x, db.Min.Y+y)])
			}
		}
	}
	cleaned := lab.ToNRGBA()

	out, err := imaging.Composite(src, cleaned, imaging.Feather(mask, opts.FeatherRadius))
	if err != nil {
		return nil, fmt.Errorf("failed to blend cleaned background: %w", err)
	}
	delta, err := imaging.AbsDiff(src, out)
	if err != nil {
		return nil, fmt.Errorf("failed to compute background delta: %w", err)
	}
	res.Image = out
	res.Delta = delta
	return res, nil
}

// BorderRepair repairs the damaged margin of a scan.
type BorderRepair interface {
	// Name identifies the operation in run manifests.
	Name() string

	// NeedsMask reports whether Repair reads the foreground mask.
	NeedsMask() bool

	// Repair returns the repaired image. Implementations that do not need
	// a mask accept the zero Mask.
	Repair(img image.Image, mask imaging.Mask) (*image.NRGBA, error)
}

// FillBorder paints the border band with the paper tone, feathered inward,
// without touching subject pixels inside the band.
type FillBorder struct {
	FillHex        string
	BorderFraction float64
	FeatherRadius  int
}

// Name implements BorderRepair.
func (FillBorder) Name() string { return "border_fill" }

// NeedsMask implements BorderRepair.
func (FillBorder) NeedsMask() bool { return true }

// Repair implements BorderRepair.
//
// The band is max(2, BorderFraction*min(width, height)) pixels wide on every
// side. Foreground pixels are removed from the band, the band is feathered
// with FeatherRadius, and the fill color is blended in with that weight.
func (f FillBorder) Repair(img image.Image, mask imaging.Mask) (*image.NRGBA, error) {
	fill, err := imaging.ParseHexRGB(f.FillHex)
	if err != nil {
		return nil, err
	}
	if f.BorderFraction < 0 || f.BorderFraction >= 0.5 {
		return nil, fmt.Errorf("%w: border fraction must be within [0,0.5), got %g", imaging.ErrInvalidParameter, f.BorderFraction)
	}
	src := imgutil.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	mask, err = imaging.ResampleMask(mask, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to fit mask to image: %w", err)
	}

	band := max(2, int(float64(min(w, h))*f.BorderFraction))
	weights := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inBand := x < band || y < band || x >= w-band || y >= h-band
			if inBand && !mask.IsForeground(x, y) {
				weights.Pix[y*weights.Stride+x] = 255
			}
		}
	}

	paper := image.NewNRGBA(src.Bounds())
	c := color.NRGBA{R: fill.R, G: fill.G, B: fill.B, A: 255}
	for i := 0; i < len(paper.Pix); i += 4 {
		paper.Pix[i], paper.Pix[i+1], paper.Pix[i+2], paper.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return imaging.Composite(paper, src, imaging.FeatherGray(weights, f.FeatherRadius))
}

// CropBorder trims a fixed fraction of every edge.
type CropBorder struct {
	CropFraction float64
}

// Name implements BorderRepair.
func (CropBorder) Name() string { return "border_crop" }

// NeedsMask implements BorderRepair.
func (CropBorder) NeedsMask() bool { return false }

// Repair implements BorderRepair. The mask is ignored.
func (c CropBorder) Repair(img image.Image, _ imaging.Mask) (*image.NRGBA, error) {
	b := img.Bounds()
	rect, err := imaging.BorderCropRect(b.Dx(), b.Dy(), c.CropFraction)
	if err != nil {
		return nil, err
	}
	return imaging.CropTo(img, rect)
}

// AutoCropOptions tunes the paper-tone auto crop.
type AutoCropOptions struct {
	TargetHex       string  `yaml:"target_hex" json:"target_hex"`
	BandPx          int     `yaml:"band_px" json:"band_px"`
	StepPx          int     `yaml:"step_px" json:"step_px"`
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	SafetyMarginPx  int     `yaml:"safety_margin_px" json:"safety_margin_px"`
	MaxCropFraction float64 `yaml:"max_crop_fraction" json:"max_crop_fraction"`

	// Distance names the color metric: "euclidean" (default) or "ciede2000".
	Distance string `yaml:"distance" json:"distance"`
}

// DefaultAutoCropOptions returns the tuned defaults.
func DefaultAutoCropOptions() AutoCropOptions {
	scan := imaging.DefaultScanOptions()
	return AutoCropOptions{
		TargetHex:       "f2eee4",
		BandPx:          scan.BandPx,
		StepPx:          scan.StepPx,
		Threshold:       scan.Threshold,
		SafetyMarginPx:  12,
		MaxCropFraction: scan.MaxCropFraction,
		Distance:        "euclidean",
	}
}

// AutoCropResult is the output of AutoCropPaper.
type AutoCropResult struct {
	Image   *image.NRGBA        `json:"-"`
	Offsets imaging.EdgeOffsets `json:"offsets"`
	Rect    image.Rectangle     `json:"rect"`
	Trace   imaging.ScanTrace   `json:"-"`
}

// AutoCropPaper crops each side inward until the edge band matches the
// reference paper tone, then keeps a safety margin.
func AutoCropPaper(img image.Image, opts AutoCropOptions) (*AutoCropResult, error) {
	target, err := imaging.ParseReferenceTone(opts.TargetHex)
	if err != nil {
		return nil, err
	}
	dist, err := imaging.DistanceByName(opts.Distance)
	if err != nil {
		return nil, err
	}
	if opts.SafetyMarginPx < 0 {
		return nil, fmt.Errorf("%w: safety margin must be >= 0, got %d", imaging.ErrInvalidParameter, opts.SafetyMarginPx)
	}

	lab := imaging.ToPerceptual(img)
	offsets, trace, err := imaging.ScanEdgesTrace(lab, target, imaging.ScanOptions{
		BandPx:          opts.BandPx,
		StepPx:          opts.StepPx,
		Threshold:       opts.Threshold,
		MaxCropFraction: opts.MaxCropFraction,
		Distance:        dist,
	})
	if err != nil {
		return nil, err
	}

	rect := imaging.CropRect(lab.Width, lab.Height, offsets, opts.SafetyMarginPx)
	cropped, err := imaging.CropTo(img, rect)
	if err != nil {
		return nil, err
	}
	return &AutoCropResult{Image: cropped, Offsets: offsets, Rect: rect, Trace: trace}, nil
}
