package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Normalize gently evens out exposure by equalizing the histogram of the
// perceptual L channel while leaving the chroma channels untouched. Each pixel
// is shifted by the equalization of its 8-bit L bin, so a sheet that needs no
// equalization comes back unchanged.
func Normalize(img image.Image) *image.NRGBA {
	lab := ToPerceptual(img)
	lut := equalizeLUT(imaging.Histogram(lab.Luminance()))
	for i := 0; i < lab.Width*lab.Height; i++ {
		q := clampUint8(lab.Pix[i*3])
		lab.Pix[i*3] += float64(lut[q]) - float64(q)
	}
	return lab.ToNRGBA()
}

// equalizeLUT builds a histogram-equalization lookup table from a normalized
// 256-bin histogram. A histogram with a single occupied bin maps to identity.
func equalizeLUT(hist [256]float64) [256]uint8 {
	var lut [256]uint8
	var cdf [256]float64
	sum := 0.0
	cdfMin := -1.0
	for i, v := range hist {
		sum += v
		cdf[i] = sum
		if cdfMin < 0 && v > 0 {
			cdfMin = sum
		}
	}
	span := sum - cdfMin
	if cdfMin < 0 || span <= 1e-12 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	for i := range lut {
		lut[i] = clampUint8(math.Max(0, cdf[i]-cdfMin) / span * 255)
	}
	return lut
}

// DamageMapOptions tunes the heuristic damage estimate.
type DamageMapOptions struct {
	// IlluminationRadius is the Gaussian radius used to estimate the
	// low-frequency illumination of the sheet.
	IlluminationRadius float64 `json:"illumination_radius" yaml:"illumination_radius"`

	// CannyLow and CannyHigh are the hysteresis thresholds for the noise term.
	CannyLow  int `json:"canny_low" yaml:"canny_low"`
	CannyHigh int `json:"canny_high" yaml:"canny_high"`
}

// DefaultDamageMapOptions returns the defaults used by ingest.
func DefaultDamageMapOptions() DamageMapOptions {
	return DamageMapOptions{IlluminationRadius: 8, CannyLow: 50, CannyHigh: 150}
}

// DamageMap estimates where a scan is damaged: the absolute difference between
// the grayscale image and its illumination (yellowing and stains) plus Canny
// edges (grain and scratches), min-max normalized to 0..255.
func DamageMap(img image.Image, opts DamageMapOptions) *image.Gray {
	gray := effect.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	illum := blur.Gaussian(gray, opts.IlluminationRadius)
	ib := illum.Bounds()
	edges := CannyEdges(img, opts.CannyLow, opts.CannyHigh)

	raw := make([]int, w*h)
	lo, hi := math.MaxInt, math.MinInt
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := gray.Pix[gray.PixOffset(b.Min.X+x, b.Min.Y+y)]
			// bild keeps gray in every RGBA channel
			l := illum.Pix[illum.PixOffset(ib.Min.X+x, ib.Min.Y+y)]
			v := min(absDiff(g, l)+int(edges.Pix[y*edges.Stride+x]), 255)
			raw[y*w+x] = v
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if hi == lo {
		return out
	}
	scale := 255.0 / float64(hi-lo)
	for i, v := range raw {
		out.Pix[i] = clampUint8(float64(v-lo) * scale)
	}
	return out
}
