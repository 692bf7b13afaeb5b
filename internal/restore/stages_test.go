package restore

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// yellowed is a typical aged paper tone.
var yellowed = color.NRGBA{R: 235, G: 225, B: 190, A: 255}

// paper is the default reference paper tone f2eee4.
var paper = color.NRGBA{R: 242, G: 238, B: 228, A: 255}

// createScan builds a solid image with a dark square of side size centered
// in it.
func createScan(width, height int, bg color.NRGBA, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	x0, y0 := (width-size)/2, (height-size)/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := bg
			if x >= x0 && x < x0+size && y >= y0 && y < y0+size {
				c = color.NRGBA{R: 40, G: 30, B: 30, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// createMask marks the rectangle r as foreground.
func createMask(width, height int, r image.Rectangle) imaging.Mask {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return imaging.NewMask(g)
}

func labB(c color.NRGBA) float64 {
	return imaging.PerceptualFromRGB(c.R, c.G, c.B).B
}

func TestIngest(t *testing.T) {
	img := createScan(80, 60, yellowed, 20)
	res := Ingest(img, imaging.DefaultDamageMapOptions())

	if got := res.Normalized.Bounds().Size(); got != image.Pt(80, 60) {
		t.Errorf("normalized size = %v, want 80x60", got)
	}
	if got := res.DamageMap.Bounds().Size(); got != image.Pt(80, 60) {
		t.Errorf("damage map size = %v, want 80x60", got)
	}
}

func TestBackgroundClean(t *testing.T) {
	img := createScan(200, 200, yellowed, 40)
	mask := createMask(200, 200, image.Rect(80, 80, 120, 120))
	opts := DefaultBackgroundOptions()
	opts.FeatherRadius = 1
	opts.MedianRadius = 0

	res, err := BackgroundClean(img, mask, opts)
	if err != nil {
		t.Fatalf("BackgroundClean failed: %v", err)
	}

	t.Run("paper loses yellow", func(t *testing.T) {
		before := labB(img.NRGBAAt(20, 20))
		after := labB(res.Image.NRGBAAt(20, 20))
		if before-after < 4 {
			t.Errorf("b went from %.1f to %.1f, want a shift toward 128", before, after)
		}
		if res.PaperB <= 128 {
			t.Errorf("PaperB = %.1f, want > 128 for yellowed paper", res.PaperB)
		}
	})

	t.Run("subject untouched", func(t *testing.T) {
		for _, p := range []image.Point{{80, 80}, {100, 100}, {119, 119}} {
			if got, want := res.Image.NRGBAAt(p.X, p.Y), img.NRGBAAt(p.X, p.Y); got != want {
				t.Errorf("%v: got %v, want %v", p, got, want)
			}
			if d := res.Delta.NRGBAAt(p.X, p.Y); d.R != 0 || d.G != 0 || d.B != 0 {
				t.Errorf("%v: delta %v, want zero", p, d)
			}
		}
	})

	t.Run("statistics", func(t *testing.T) {
		if res.BackgroundPixels != 200*200-40*40 {
			t.Errorf("BackgroundPixels = %d, want %d", res.BackgroundPixels, 200*200-40*40)
		}
		if res.WholeImageEstimate {
			t.Error("WholeImageEstimate = true, want false")
		}
	})
}

func TestBackgroundClean_SmallImageUsesWholeImage(t *testing.T) {
	img := createScan(20, 20, yellowed, 4)
	mask := createMask(20, 20, image.Rect(8, 8, 12, 12))

	res, err := BackgroundClean(img, mask, DefaultBackgroundOptions())
	if err != nil {
		t.Fatalf("BackgroundClean failed: %v", err)
	}
	if !res.WholeImageEstimate {
		t.Error("WholeImageEstimate = false, want true with fewer than 1000 paper pixels")
	}
}

func TestBackgroundClean_ResamplesMask(t *testing.T) {
	img := createScan(200, 100, yellowed, 20)
	mask := createMask(100, 50, image.Rect(45, 20, 55, 30))

	res, err := BackgroundClean(img, mask, DefaultBackgroundOptions())
	if err != nil {
		t.Fatalf("BackgroundClean failed: %v", err)
	}
	if got := res.Image.Bounds().Size(); got != image.Pt(200, 100) {
		t.Errorf("size = %v, want 200x100", got)
	}
}

func TestBackgroundClean_EmptyMask(t *testing.T) {
	img := createScan(20, 20, yellowed, 4)
	if _, err := BackgroundClean(img, imaging.Mask{}, DefaultBackgroundOptions()); !errors.Is(err, imaging.ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestFillBorder(t *testing.T) {
	gray := color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	img := createScan(100, 100, gray, 0)
	fill := color.NRGBA{R: 0xf2, G: 0xee, B: 0xe4, A: 255}

	tests := []struct {
		name     string
		fraction float64
		mask     image.Rectangle
		filled   []image.Point
		kept     []image.Point
	}{
		{
			name:     "ten percent band",
			fraction: 0.1,
			filled:   []image.Point{{0, 0}, {2, 50}, {50, 95}, {99, 99}},
			kept:     []image.Point{{10, 10}, {50, 50}, {89, 89}},
		},
		{
			name:     "band never thinner than two pixels",
			fraction: 0,
			filled:   []image.Point{{1, 1}, {98, 50}},
			kept:     []image.Point{{2, 2}, {50, 50}},
		},
		{
			name:     "subject in band is preserved",
			fraction: 0.1,
			mask:     image.Rect(0, 40, 6, 60),
			filled:   []image.Point{{2, 20}},
			kept:     []image.Point{{2, 50}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repair := FillBorder{FillHex: "f2eee4", BorderFraction: tt.fraction, FeatherRadius: 1}
			out, err := repair.Repair(img, createMask(100, 100, tt.mask))
			if err != nil {
				t.Fatalf("Repair failed: %v", err)
			}
			for _, p := range tt.filled {
				if got := out.NRGBAAt(p.X, p.Y); got != fill {
					t.Errorf("%v: got %v, want fill %v", p, got, fill)
				}
			}
			for _, p := range tt.kept {
				if got := out.NRGBAAt(p.X, p.Y); got != gray {
					t.Errorf("%v: got %v, want original %v", p, got, gray)
				}
			}
		})
	}
}

func TestFillBorder_Errors(t *testing.T) {
	img := createScan(20, 20, paper, 0)
	mask := createMask(20, 20, image.Rectangle{})

	if _, err := (FillBorder{FillHex: "nope", FeatherRadius: 1}).Repair(img, mask); !errors.Is(err, imaging.ErrInvalidColorFormat) {
		t.Errorf("bad hex: err = %v, want ErrInvalidColorFormat", err)
	}
	if _, err := (FillBorder{FillHex: "f2eee4", BorderFraction: 0.5}).Repair(img, mask); !errors.Is(err, imaging.ErrInvalidParameter) {
		t.Errorf("bad fraction: err = %v, want ErrInvalidParameter", err)
	}
	if _, err := (FillBorder{FillHex: "f2eee4"}).Repair(img, imaging.Mask{}); err == nil {
		t.Error("empty mask: expected error")
	}
}

func TestCropBorder(t *testing.T) {
	img := createScan(100, 50, paper, 0)
	img.SetNRGBA(10, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	repair := CropBorder{CropFraction: 0.1}
	if repair.NeedsMask() {
		t.Error("CropBorder must not need a mask")
	}
	out, err := repair.Repair(img, imaging.Mask{})
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if got := out.Bounds(); got != image.Rect(0, 0, 80, 40) {
		t.Errorf("bounds = %v, want (0,0)-(80,40)", got)
	}
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("origin pixel = %v, want the marked pixel", got)
	}

	if _, err := (CropBorder{CropFraction: 0.5}).Repair(img, imaging.Mask{}); !errors.Is(err, imaging.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestBorderRepairInterface(t *testing.T) {
	repairs := []BorderRepair{FillBorder{}, CropBorder{}}
	names := map[string]bool{}
	for _, r := range repairs {
		names[r.Name()] = true
	}
	if !names["border_fill"] || !names["border_crop"] {
		t.Errorf("names = %v", names)
	}
}

func TestAutoCropPaper(t *testing.T) {
	t.Run("clean paper keeps only the safety margin", func(t *testing.T) {
		img := createScan(200, 200, paper, 0)
		res, err := AutoCropPaper(img, DefaultAutoCropOptions())
		if err != nil {
			t.Fatalf("AutoCropPaper failed: %v", err)
		}
		if res.Offsets != (imaging.EdgeOffsets{}) {
			t.Errorf("offsets = %+v, want zero", res.Offsets)
		}
		if res.Rect != image.Rect(12, 12, 188, 188) {
			t.Errorf("rect = %v, want (12,12)-(188,188)", res.Rect)
		}
		if got := res.Image.Bounds().Size(); got != image.Pt(176, 176) {
			t.Errorf("size = %v, want 176x176", got)
		}
	})

	t.Run("dark top edge is trimmed", func(t *testing.T) {
		img := createScan(200, 200, paper, 0)
		for y := 0; y < 40; y++ {
			for x := 0; x < 200; x++ {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
		res, err := AutoCropPaper(img, DefaultAutoCropOptions())
		if err != nil {
			t.Fatalf("AutoCropPaper failed: %v", err)
		}
		// Bands at 0, 8, 16 and 24 are mostly black; the band at 32 is
		// mostly paper.
		if res.Offsets.Top != 32 {
			t.Errorf("top = %d, want 32", res.Offsets.Top)
		}
		if got := res.Image.Bounds().Size(); got != image.Pt(176, 144) {
			t.Errorf("size = %v, want 176x144", got)
		}
		if n := len(res.Trace[imaging.Top]); n != 5 {
			t.Errorf("top trace has %d samples, want 5", n)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		img := createScan(50, 50, paper, 0)
		bad := []func(o *AutoCropOptions){
			func(o *AutoCropOptions) { o.TargetHex = "xyz" },
			func(o *AutoCropOptions) { o.Distance = "manhattan" },
			func(o *AutoCropOptions) { o.SafetyMarginPx = -1 },
			func(o *AutoCropOptions) { o.StepPx = 0 },
		}
		for i, mutate := range bad {
			opts := DefaultAutoCropOptions()
			mutate(&opts)
			if _, err := AutoCropPaper(img, opts); err == nil {
				t.Errorf("case %d: expected error", i)
			}
		}
	})
}

func TestAutoCropPaper_CIEDE2000(t *testing.T) {
	img := createScan(100, 100, paper, 0)
	opts := DefaultAutoCropOptions()
	opts.Distance = "ciede2000"

	res, err := AutoCropPaper(img, opts)
	if err != nil {
		t.Fatalf("AutoCropPaper failed: %v", err)
	}
	for _, s := range imaging.Sides {
		if d := res.Trace[s][0].Distance; math.Abs(d) > 1 {
			t.Errorf("%s: distance %.2f, want ~0 on reference paper", s, d)
		}
	}
}
