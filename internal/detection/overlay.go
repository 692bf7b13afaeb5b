package detection

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// DefaultOverlayTint is the preview color for foreground pixels.
var DefaultOverlayTint = color.NRGBA{R: 0, G: 255, B: 0, A: 255}

// DefaultOverlayAlpha is the opacity of the preview tint.
const DefaultOverlayAlpha = 0.25

// Overlay renders a QA preview: foreground pixels are blended toward tint
// with the given opacity, background pixels are left untouched. The mask is
// resampled to the image size when they differ.
func Overlay(img image.Image, mask imaging.Mask, tint color.NRGBA, alpha float64) (*image.NRGBA, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: overlay alpha must be within [0,1], got %g", imaging.ErrInvalidParameter, alpha)
	}
	base, err := imaging.CropTo(img, image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare overlay: %w", err)
	}
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	mask, err = imaging.ResampleMask(mask, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to fit mask to image: %w", err)
	}

	tinted := image.NewNRGBA(base.Bounds())
	copy(tinted.Pix, base.Pix)
	weights := imaging.NewAlphaMap(w, h, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.IsForeground(x, y) {
				tinted.SetNRGBA(x, y, color.NRGBA{R: tint.R, G: tint.G, B: tint.B, A: base.NRGBAAt(x, y).A})
				weights.Pix[y*w+x] = alpha
			}
		}
	}
	return imaging.Composite(tinted, base, weights)
}
