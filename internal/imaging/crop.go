package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropRect turns per-side trim offsets into the rectangle to keep.
//
// The safety margin is added to every side, then the rectangle is clamped so
// that it always lies inside the image and is at least 1x1. It never fails,
// even when offsets plus margin exceed the image dimensions.
func CropRect(width, height int, off EdgeOffsets, margin int) image.Rectangle {
	x0 := off.Left + margin
	x1 := width - (off.Right + margin)
	y0 := off.Top + margin
	y1 := height - (off.Bottom + margin)

	x0 = max(0, min(x0, width-2))
	x1 = max(x0+1, min(x1, width))
	y0 = max(0, min(y0, height-2))
	y1 = max(y0+1, min(y1, height))
	return image.Rect(x0, y0, x1, y1)
}

// BorderCropRect trims a fixed fraction of the width from the left and right
// edges and the same fraction of the height from the top and bottom.
func BorderCropRect(width, height int, fraction float64) (image.Rectangle, error) {
	if fraction < 0 || fraction >= 0.5 {
		return image.Rectangle{}, fmt.Errorf("%w: crop fraction must be within [0,0.5), got %g", ErrInvalidParameter, fraction)
	}
	dx := int(float64(width) * fraction)
	dy := int(float64(height) * fraction)
	return CropRect(width, height, EdgeOffsets{Top: dy, Bottom: dy, Left: dx, Right: dx}, 0), nil
}

// CropTo extracts rect from img. The rectangle is interpreted relative to the
// image origin and the result is anchored at (0,0).
func CropTo(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	b := img.Bounds()
	r := rect.Add(b.Min)
	if r.Empty() || !r.In(b) {
		return nil, fmt.Errorf("%w: crop region (%d,%d)-(%d,%d) outside image bounds %dx%d",
			ErrInvalidParameter, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, r), nil
}
