package detection

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Morphology operates on binary planes (0 or 255). The structuring element
// of size n spans n pixels centred on the pixel, n rounded down to odd, with
// the neighbourhood shape of bild's spatial filters.

// Erode shrinks foreground regions by the element of the given size.
func Erode(g *image.Gray, size int) *image.Gray {
	if size <= 1 {
		return binarize(g)
	}
	return binarize(effect.Erode(g, elementRadius(size)))
}

// Dilate grows foreground regions by the element of the given size.
func Dilate(g *image.Gray, size int) *image.Gray {
	if size <= 1 {
		return binarize(g)
	}
	return binarize(effect.Dilate(g, elementRadius(size)))
}

// Open removes specks narrower than the element: erode, then dilate.
func Open(g *image.Gray, size int) *image.Gray {
	return Dilate(Erode(g, size), size)
}

// Close fills gaps narrower than the element: dilate, then erode.
//
// With more than one iteration, all dilations run before all erosions, so
// two iterations bridge gaps twice as wide as one.
func Close(g *image.Gray, size, iterations int) *image.Gray {
	if iterations < 1 {
		iterations = 1
	}
	out := g
	for i := 0; i < iterations; i++ {
		out = Dilate(out, size)
	}
	for i := 0; i < iterations; i++ {
		out = Erode(out, size)
	}
	return out
}

// elementRadius keeps the bild kernel odd and centred.
func elementRadius(size int) float64 {
	return float64(size / 2)
}

// binarize converts any image into a 0/255 plane anchored at (0,0). Pixels
// at or above mid-gray become 255.
func binarize(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				if src.Pix[off+x] >= 128 {
					out.Pix[y*out.Stride+x] = 255
				}
			}
		}
	case *image.RGBA:
		// bild results carry the gray level in every color channel.
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				if src.Pix[off+x*4] >= 128 {
					out.Pix[y*out.Stride+x] = 255
				}
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				if r>>8 >= 128 {
					out.Pix[y*out.Stride+x] = 255
				}
			}
		}
	}
	return out
}
