package imaging

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

// createMask builds a mask where fn reports foreground pixels.
func createMask(width, height int, fn func(x, y int) bool) Mask {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if fn(x, y) {
				g.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return NewMask(g)
}

func TestFeather_SolidInteriorStaysOne(t *testing.T) {
	mask := createMask(60, 60, func(x, y int) bool { return true })
	alpha := Feather(mask, 13)

	for i, v := range alpha.Pix {
		if math.Abs(v-1) > 1e-6 {
			t.Fatalf("pixel %d: got %f, want ~1", i, v)
		}
	}
}

func TestFeather_InteriorOfRegion(t *testing.T) {
	// 60x60 foreground square centered in 100x100; pixels further than the
	// kernel half-width from the boundary must stay at 1.
	mask := createMask(100, 100, func(x, y int) bool {
		return x >= 20 && x < 80 && y >= 20 && y < 80
	})
	alpha := Feather(mask, 13)

	for y := 27; y < 73; y++ {
		for x := 27; x < 73; x++ {
			if v := alpha.At(x, y); math.Abs(v-1) > 1e-6 {
				t.Fatalf("(%d,%d): got %f, want ~1", x, y, v)
			}
		}
	}
	for y := 0; y < 13; y++ {
		for x := 0; x < 100; x++ {
			if v := alpha.At(x, y); v > 1e-6 {
				t.Fatalf("(%d,%d): got %f, want ~0", x, y, v)
			}
		}
	}
}

func TestFeather_EmptyMask(t *testing.T) {
	mask := createMask(20, 20, func(x, y int) bool { return false })
	alpha := Feather(mask, 31)
	for i, v := range alpha.Pix {
		if v != 0 {
			t.Fatalf("pixel %d: got %f, want 0", i, v)
		}
	}
}

func TestFeather_SmoothTransition(t *testing.T) {
	mask := createMask(64, 8, func(x, y int) bool { return x >= 32 })
	alpha := Feather(mask, 13)

	prev := -1.0
	for x := 0; x < 64; x++ {
		v := alpha.At(x, 4)
		if v < 0 || v > 1 {
			t.Fatalf("x=%d: %f outside [0,1]", x, v)
		}
		if v < prev-1e-12 {
			t.Fatalf("x=%d: %f decreased from %f", x, v, prev)
		}
		prev = v
	}
	if v := alpha.At(31, 4); v <= 0 || v >= 1 {
		t.Errorf("boundary weight: got %f, want strictly between 0 and 1", v)
	}
}

func TestFeather_EvenRadiusRoundsUp(t *testing.T) {
	mask := createMask(30, 30, func(x, y int) bool { return x+y < 30 })
	even := Feather(mask, 12)
	odd := Feather(mask, 13)
	for i := range even.Pix {
		if even.Pix[i] != odd.Pix[i] {
			t.Fatalf("pixel %d: radius 12 gave %f, radius 13 gave %f", i, even.Pix[i], odd.Pix[i])
		}
	}
}

func TestGaussianKernel(t *testing.T) {
	for _, k := range []int{1, 3, 13, 31} {
		kernel := gaussianKernel(k)
		if len(kernel) != k {
			t.Fatalf("k=%d: length %d", k, len(kernel))
		}
		sum := 0.0
		for i, v := range kernel {
			sum += v
			if math.Abs(v-kernel[k-1-i]) > 1e-15 {
				t.Errorf("k=%d: kernel not symmetric at %d", k, i)
			}
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("k=%d: sum %f, want 1", k, sum)
		}
	}
}

func TestReflect101(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 5, 0},
		{4, 5, 4},
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{-3, 1, 0},
		{-7, 3, 1},
	}

	for _, tt := range tests {
		if got := reflect101(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect101(%d, %d): got %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestComposite_Identity(t *testing.T) {
	a := createInMemoryImage(10, 10, color.NRGBA{10, 20, 30, 255})
	b := createInMemoryImage(10, 10, color.NRGBA{200, 210, 220, 255})

	tests := []struct {
		name  string
		alpha float64
		want  color.NRGBA
	}{
		{"alpha one keeps a", 1, color.NRGBA{10, 20, 30, 255}},
		{"alpha zero keeps b", 0, color.NRGBA{200, 210, 220, 255}},
		{"alpha half blends", 0.5, color.NRGBA{105, 115, 125, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Composite(a, b, NewAlphaMap(10, 10, tt.alpha))
			if err != nil {
				t.Fatalf("Composite failed: %v", err)
			}
			for y := 0; y < 10; y++ {
				for x := 0; x < 10; x++ {
					if got := out.NRGBAAt(x, y); got != tt.want {
						t.Fatalf("(%d,%d): got %v, want %v", x, y, got, tt.want)
					}
				}
			}
		})
	}
}

func TestComposite_DimensionMismatch(t *testing.T) {
	a := createInMemoryImage(10, 10, color.White)
	b := createInMemoryImage(10, 12, color.White)

	if _, err := Composite(a, b, NewAlphaMap(10, 10, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("image mismatch: got %v, want ErrDimensionMismatch", err)
	}
	if _, err := Composite(a, a, NewAlphaMap(9, 10, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("alpha mismatch: got %v, want ErrDimensionMismatch", err)
	}
}

func TestAbsDiff(t *testing.T) {
	a := createInMemoryImage(4, 4, color.NRGBA{10, 200, 30, 255})
	b := createInMemoryImage(4, 4, color.NRGBA{20, 100, 30, 255})

	out, err := AbsDiff(a, b)
	if err != nil {
		t.Fatalf("AbsDiff failed: %v", err)
	}
	if got, want := out.NRGBAAt(2, 2), (color.NRGBA{10, 100, 0, 255}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := AbsDiff(a, createInMemoryImage(3, 4, color.White)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestClampUint8(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{0.49, 0},
		{0.5, 1},
		{127.6, 128},
		{254.5, 255},
		{300, 255},
	}
	for _, tt := range tests {
		if got := clampUint8(tt.in); got != tt.want {
			t.Errorf("clampUint8(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
