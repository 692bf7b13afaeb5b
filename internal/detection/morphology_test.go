package detection

import (
	"image"
	"image/color"
	"testing"
)

func TestOpen_RemovesSpecks(t *testing.T) {
	g := createPlane(40, 40, func(x, y int) bool {
		return (x == 5 && y == 5) || (x >= 15 && x < 35 && y >= 15 && y < 35)
	})

	out := Open(g, 5)
	if out.GrayAt(5, 5).Y != 0 {
		t.Error("isolated speck survived opening")
	}
	if out.GrayAt(25, 25).Y != 255 {
		t.Error("solid block lost its interior")
	}
	if n := countOn(out); n > 400 {
		t.Errorf("opening grew the block: %d pixels", n)
	}
}

func TestClose_BridgesGap(t *testing.T) {
	// Two blocks separated by a two-pixel gap at columns 20 and 21.
	g := createPlane(42, 30, func(x, y int) bool {
		return y >= 5 && y < 25 && x >= 5 && x < 37 && x != 20 && x != 21
	})

	out := Close(g, 5, 1)
	if out.GrayAt(20, 15).Y != 255 || out.GrayAt(21, 15).Y != 255 {
		t.Error("closing did not bridge the gap")
	}
	if out.GrayAt(2, 15).Y != 0 || out.GrayAt(20, 1).Y != 0 {
		t.Error("closing grew the shape outward")
	}
}

func TestMorphology_OutputIsBinary(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 7)
	}

	for name, out := range map[string]*image.Gray{
		"erode":  Erode(g, 3),
		"dilate": Dilate(g, 3),
		"open":   Open(g, 5),
		"close":  Close(g, 5, 2),
	} {
		for i, v := range out.Pix {
			if v != 0 && v != 255 {
				t.Fatalf("%s: pixel %d has value %d", name, i, v)
			}
		}
	}
}

func TestErodeDilate_SizeOne(t *testing.T) {
	g := createPlane(5, 5, func(x, y int) bool { return x == 2 && y == 2 })
	if Erode(g, 1).GrayAt(2, 2).Y != 255 {
		t.Error("size 1 erosion should be the identity")
	}
	if countOn(Dilate(g, 1)) != 1 {
		t.Error("size 1 dilation should be the identity")
	}
}

func TestBinarize(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(2, 3, 5, 4))
	rgba.Set(2, 3, color.RGBA{127, 127, 127, 255})
	rgba.Set(3, 3, color.RGBA{128, 128, 128, 255})
	rgba.Set(4, 3, color.RGBA{255, 255, 255, 255})

	out := binarize(rgba)
	if out.Bounds() != image.Rect(0, 0, 3, 1) {
		t.Fatalf("bounds: got %v", out.Bounds())
	}
	want := []uint8{0, 255, 255}
	for x, w := range want {
		if got := out.GrayAt(x, 0).Y; got != w {
			t.Errorf("x=%d: got %d, want %d", x, got, w)
		}
	}
}
