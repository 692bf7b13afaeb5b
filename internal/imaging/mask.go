package imaging

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Mask is a binary foreground mask: 255 marks subject pixels (ink, paint),
// 0 marks background paper.
//
// A Mask is immutable once constructed. Every constructor copies its input and
// no accessor hands out the backing buffer for writing, so stages that need to
// edit a mask (for example to clear the border band) work on a copy obtained
// from Gray.
type Mask struct {
	gray *image.Gray
}

// NewMask builds a Mask from a grayscale plane. Any non-zero value becomes 255.
// The result is re-based so that its bounds start at (0,0).
func NewMask(g *image.Gray) Mask {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		src := g.Pix[off : off+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			if v > 0 {
				dst[x] = 255
			}
		}
	}
	return Mask{gray: out}
}

// MaskFromImage converts any image to a Mask. Pixels with non-zero luminance
// are foreground.
func MaskFromImage(img image.Image) Mask {
	if g, ok := img.(*image.Gray); ok {
		return NewMask(g)
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return NewMask(g)
}

// Width returns the mask width in pixels.
func (m Mask) Width() int {
	if m.gray == nil {
		return 0
	}
	return m.gray.Bounds().Dx()
}

// Height returns the mask height in pixels.
func (m Mask) Height() int {
	if m.gray == nil {
		return 0
	}
	return m.gray.Bounds().Dy()
}

// Bounds returns the mask rectangle, always anchored at (0,0).
func (m Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width(), m.Height())
}

// IsZero reports whether the mask was never initialised.
func (m Mask) IsZero() bool {
	return m.gray == nil
}

// At returns the mask value (0 or 255) at (x, y). Out-of-bounds reads return 0.
func (m Mask) At(x, y int) uint8 {
	if m.gray == nil || x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return 0
	}
	return m.gray.Pix[y*m.gray.Stride+x]
}

// IsForeground reports whether (x, y) is marked as subject.
func (m Mask) IsForeground(x, y int) bool {
	return m.At(x, y) != 0
}

// Count returns the number of foreground pixels.
func (m Mask) Count() int {
	if m.gray == nil {
		return 0
	}
	n := 0
	for _, v := range m.gray.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Gray returns a writable copy of the mask plane.
func (m Mask) Gray() *image.Gray {
	if m.gray == nil {
		return image.NewGray(image.Rectangle{})
	}
	out := image.NewGray(m.gray.Bounds())
	copy(out.Pix, m.gray.Pix)
	return out
}

// Image exposes the mask as a read-only image for encoding.
func (m Mask) Image() image.Image {
	if m.gray == nil {
		return image.NewGray(image.Rectangle{})
	}
	return maskView{m.gray}
}

// maskView hides the concrete *image.Gray so encoders cannot mutate it.
type maskView struct {
	g *image.Gray
}

func (v maskView) ColorModel() color.Model { return color.GrayModel }
func (v maskView) Bounds() image.Rectangle { return v.g.Bounds() }
func (v maskView) At(x, y int) color.Color { return v.g.GrayAt(x, y) }

// ResampleMask resizes a mask to width x height with nearest-neighbour
// sampling, so the result stays strictly binary. A mask that already has the
// requested size is returned unchanged.
func ResampleMask(m Mask, width, height int) (Mask, error) {
	if width <= 0 || height <= 0 {
		return Mask{}, fmt.Errorf("%w: mask target size %dx%d", ErrInvalidParameter, width, height)
	}
	if m.IsZero() {
		return Mask{}, fmt.Errorf("%w: empty mask", ErrDimensionMismatch)
	}
	if m.Width() == width && m.Height() == height {
		return m, nil
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), m.gray, m.gray.Bounds(), draw.Src, nil)
	return NewMask(dst), nil
}
