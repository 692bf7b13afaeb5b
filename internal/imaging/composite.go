package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// AlphaMap is a per-pixel blend weight in [0,1], stored row-major. It is built
// by Feather and consumed by Composite within a single stage.
type AlphaMap struct {
	Width  int
	Height int
	Pix    []float64
}

// NewAlphaMap returns a map of the given size filled with value.
func NewAlphaMap(width, height int, value float64) AlphaMap {
	pix := make([]float64, width*height)
	if value != 0 {
		for i := range pix {
			pix[i] = value
		}
	}
	return AlphaMap{Width: width, Height: height, Pix: pix}
}

// At returns the weight at (x, y).
func (a AlphaMap) At(x, y int) float64 {
	return a.Pix[y*a.Width+x]
}

// Bounds returns the map rectangle anchored at (0,0).
func (a AlphaMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, a.Width, a.Height)
}

// Feather turns a binary mask into a smooth weighting map.
//
// The mask is normalized to [0,1] and smoothed with an isotropic Gaussian of
// odd size k, where k is radius rounded up to the next odd integer. Sigma
// follows the kernel size (0.3*((k-1)/2-1)+0.8), borders are mirrored without
// repeating the edge pixel, and the result is clamped to [0,1]. Pixels deep
// inside a solid foreground region stay at 1.
func Feather(mask Mask, radius int) AlphaMap {
	return FeatherGray(mask.gray, radius)
}

// FeatherGray is Feather for an arbitrary 8-bit weight plane, where 255 maps
// to full weight.
func FeatherGray(g *image.Gray, radius int) AlphaMap {
	if g == nil {
		return AlphaMap{}
	}
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	src := make([]float64, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			src[y*w+x] = float64(g.Pix[off+x]) / 255.0
		}
	}

	kernel := gaussianKernel(oddKernelSize(radius))
	half := len(kernel) / 2

	tmp := make([]float64, w*h)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := src[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var sum float64
				for k, kv := range kernel {
					sum += row[reflect101(x+k-half, w)] * kv
				}
				tmp[y*w+x] = sum
			}
		}
	})

	out := NewAlphaMap(w, h, 0)
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				var sum float64
				for k, kv := range kernel {
					sum += tmp[reflect101(y+k-half, h)*w+x] * kv
				}
				out.Pix[y*w+x] = clampFloat(sum, 0, 1)
			}
		}
	})
	return out
}

// oddKernelSize rounds a feather radius up to the next odd kernel size.
func oddKernelSize(radius int) int {
	if radius < 1 {
		return 1
	}
	if radius%2 == 0 {
		return radius + 1
	}
	return radius
}

// gaussianKernel returns a normalized 1-D Gaussian of odd length k.
func gaussianKernel(k int) []float64 {
	sigma := 0.3*(float64(k-1)*0.5-1) + 0.8
	half := k / 2
	kernel := make([]float64, k)
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 mirrors an out-of-range index back into [0, n) without repeating
// the edge sample (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// Composite blends two equally sized images: a*alpha + b*(1-alpha).
//
// The blend is computed in floating point per channel and rounded to the
// nearest 8-bit value. alpha == 1 reproduces a exactly and alpha == 0
// reproduces b exactly. a, b and alpha must share the same width and height;
// resampling is the caller's job.
func Composite(a, b image.Image, alpha AlphaMap) (*image.NRGBA, error) {
	an := imaging.Clone(a)
	bn := imaging.Clone(b)
	w, h := an.Bounds().Dx(), an.Bounds().Dy()
	if bn.Bounds().Dx() != w || bn.Bounds().Dy() != h {
		return nil, fmt.Errorf("%w: images %dx%d and %dx%d", ErrDimensionMismatch,
			w, h, bn.Bounds().Dx(), bn.Bounds().Dy())
	}
	if alpha.Width != w || alpha.Height != h || len(alpha.Pix) != w*h {
		return nil, fmt.Errorf("%w: image %dx%d and alpha %dx%d", ErrDimensionMismatch,
			w, h, alpha.Width, alpha.Height)
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				al := alpha.Pix[y*w+x]
				i := y*out.Stride + x*4
				for c := 0; c < 4; c++ {
					v := float64(an.Pix[i+c])*al + float64(bn.Pix[i+c])*(1-al)
					out.Pix[i+c] = clampUint8(v)
				}
			}
		}
	})
	return out, nil
}

// AbsDiff returns the per-channel absolute difference of two equally sized
// images, with an opaque alpha channel.
func AbsDiff(a, b image.Image) (*image.NRGBA, error) {
	an := imaging.Clone(a)
	bn := imaging.Clone(b)
	if !an.Bounds().Eq(bn.Bounds()) {
		return nil, fmt.Errorf("%w: images %v and %v", ErrDimensionMismatch, an.Bounds().Size(), bn.Bounds().Size())
	}
	out := image.NewNRGBA(an.Bounds())
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = uint8(absDiff(an.Pix[i+c], bn.Pix[i+c]))
		}
		out.Pix[i+3] = 255
	}
	return out, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// clampUint8 rounds v to the nearest integer and clips it to 0..255.
func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
