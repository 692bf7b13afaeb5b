package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestCropRect(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		off    EdgeOffsets
		margin int
		want   image.Rectangle
	}{
		{"no trim", 100, 80, EdgeOffsets{}, 0, image.Rect(0, 0, 100, 80)},
		{"margin only", 100, 80, EdgeOffsets{}, 12, image.Rect(12, 12, 88, 68)},
		{"offsets and margin", 100, 80, EdgeOffsets{Top: 8, Bottom: 0, Left: 16, Right: 4}, 2,
			image.Rect(18, 10, 94, 78)},
		{"oversized trim", 50, 40, EdgeOffsets{Top: 100, Bottom: 100, Left: 100, Right: 100}, 0,
			image.Rect(48, 38, 49, 39)},
		{"opposing sides cross", 10, 10, EdgeOffsets{Left: 6, Right: 6}, 0,
			image.Rect(6, 0, 7, 10)},
		{"single pixel image", 1, 1, EdgeOffsets{Top: 3}, 5, image.Rect(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CropRect(tt.w, tt.h, tt.off, tt.margin); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropRect_AlwaysInside(t *testing.T) {
	for w := 1; w <= 30; w += 7 {
		for h := 1; h <= 30; h += 5 {
			for o := 0; o <= 40; o += 9 {
				for margin := 0; margin <= 20; margin += 10 {
					off := EdgeOffsets{Top: o, Bottom: o / 2, Left: o / 3, Right: o}
					r := CropRect(w, h, off, margin)
					if r.Empty() || !r.In(image.Rect(0, 0, w, h)) {
						t.Fatalf("CropRect(%d, %d, %+v, %d) = %v", w, h, off, margin, r)
					}
				}
			}
		}
	}
}

func TestBorderCropRect(t *testing.T) {
	r, err := BorderCropRect(100, 200, 0.04)
	if err != nil {
		t.Fatalf("BorderCropRect failed: %v", err)
	}
	if r != image.Rect(4, 8, 96, 192) {
		t.Errorf("got %v, want (4,8)-(96,192)", r)
	}

	for _, f := range []float64{-0.1, 0.5, 2} {
		if _, err := BorderCropRect(100, 100, f); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("fraction %v: got %v, want ErrInvalidParameter", f, err)
		}
	}
}

func TestCropTo(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	img.SetNRGBA(5, 6, color.NRGBA{255, 0, 0, 255})

	out, err := CropTo(img, image.Rect(5, 6, 15, 16))
	if err != nil {
		t.Fatalf("CropTo failed: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 10, 10) {
		t.Errorf("bounds: got %v", out.Bounds())
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("origin pixel: got %v", got)
	}
}

func TestCropTo_SubImageOrigin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	img.SetNRGBA(12, 12, color.NRGBA{0, 0, 255, 255})
	sub := img.SubImage(image.Rect(10, 10, 20, 20))

	out, err := CropTo(sub, image.Rect(2, 2, 4, 4))
	if err != nil {
		t.Fatalf("CropTo failed: %v", err)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("got %v, want blue", got)
	}
}

func TestCropTo_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)

	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 11, 10),
		image.Rect(-1, 0, 5, 5),
		image.Rect(3, 3, 3, 8),
	} {
		if _, err := CropTo(img, r); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("CropTo(%v): got %v, want ErrInvalidParameter", r, err)
		}
	}
}
