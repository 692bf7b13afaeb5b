package detection

import (
	"image"
)

// integralImage is a summed-area table of an 8-bit plane. Entry (x, y) holds
// the sum of every pixel above and to the left of (x, y), so the table is one
// row and one column larger than the source.
type integralImage struct {
	width  int
	height int
	sums   []uint64
}

func newIntegralImage(g *image.Gray) integralImage {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	ii := integralImage{width: w, height: h, sums: make([]uint64, (w+1)*(h+1))}
	stride := w + 1
	for y := 0; y < h; y++ {
		var row uint64
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			row += uint64(g.Pix[off+x])
			ii.sums[(y+1)*stride+x+1] = ii.sums[y*stride+x+1] + row
		}
	}
	return ii
}

// window returns the square of side size centred on (x, y), clipped to the
// image.
func (ii integralImage) window(x, y, size int) image.Rectangle {
	half := size / 2
	r := image.Rect(x-half, y-half, x-half+size, y-half+size)
	return r.Intersect(image.Rect(0, 0, ii.width, ii.height))
}

func (ii integralImage) sum(r image.Rectangle) uint64 {
	stride := ii.width + 1
	return ii.sums[r.Max.Y*stride+r.Max.X] - ii.sums[r.Min.Y*stride+r.Max.X] -
		ii.sums[r.Max.Y*stride+r.Min.X] + ii.sums[r.Min.Y*stride+r.Min.X]
}

// mean returns the average value inside r. r must not be empty.
func (ii integralImage) mean(r image.Rectangle) float64 {
	return float64(ii.sum(r)) / float64(r.Dx()*r.Dy())
}

// AdaptiveThreshold marks pixels that are darker than their surroundings.
//
// A pixel becomes 255 when the mean of the window x window neighbourhood
// around it exceeds its own value by more than margin; everything else is 0.
// Windows are clipped at the image edges, so border pixels are compared with
// the part of the neighbourhood that exists.
func AdaptiveThreshold(g *image.Gray, window int, margin float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}

	ii := newIntegralImage(g)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			if ii.mean(ii.window(x, y, window))-float64(g.Pix[off+x]) > margin {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
