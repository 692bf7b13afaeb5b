package imaging

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// The perceptual space is CIE L*a*b* (D65) stored on the 8-bit scale used by
// common scanner tooling: L in 0..255 (L*·255/100), a and b offset by 128.
// Thresholds throughout the restoration stages are expressed in these units.
const (
	labLScale   = 255.0
	labABScale  = 100.0
	labABOffset = 128.0
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// PerceptualColor is a color coordinate in the 8-bit Lab scale.
//
// L is the luminance-like axis; A and B are the chroma-like axes with 128 as
// neutral gray.
type PerceptualColor struct {
	L float64 `json:"l"`
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// PerceptualFromRGB converts one 8-bit device color to perceptual coordinates.
func PerceptualFromRGB(r, g, b uint8) PerceptualColor {
	c := colorful.Color{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
	l, a, bb := c.Lab()
	return PerceptualColor{
		L: l * labLScale,
		A: a*labABScale + labABOffset,
		B: bb*labABScale + labABOffset,
	}
}

func (p PerceptualColor) colorful() colorful.Color {
	return colorful.Lab(p.L/labLScale, (p.A-labABOffset)/labABScale, (p.B-labABOffset)/labABScale)
}

// RGB converts back to 8-bit device color, clamping out-of-gamut values.
func (p PerceptualColor) RGB() RGBColor {
	r, g, b := p.colorful().Clamped().RGB255()
	return RGBColor{R: r, G: g, B: b}
}

// LabImage is an image converted to perceptual coordinates. Pix holds three
// float64 values (L, A, B) per pixel in row-major order.
type LabImage struct {
	Width  int
	Height int
	Pix    []float64
}

// NewLabImage allocates a zeroed perceptual image.
func NewLabImage(width, height int) *LabImage {
	return &LabImage{Width: width, Height: height, Pix: make([]float64, width*height*3)}
}

// At returns the perceptual color at (x, y).
func (li *LabImage) At(x, y int) PerceptualColor {
	i := (y*li.Width + x) * 3
	return PerceptualColor{L: li.Pix[i], A: li.Pix[i+1], B: li.Pix[i+2]}
}

// Set stores a perceptual color at (x, y).
func (li *LabImage) Set(x, y int, p PerceptualColor) {
	i := (y*li.Width + x) * 3
	li.Pix[i], li.Pix[i+1], li.Pix[i+2] = p.L, p.A, p.B
}

// Luminance returns the L channel rounded and clipped to 8 bits.
func (li *LabImage) Luminance() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, li.Width, li.Height))
	for i := 0; i < li.Width*li.Height; i++ {
		g.Pix[i] = clampUint8(li.Pix[i*3])
	}
	return g
}

// ToNRGBA converts the perceptual image back to device color. Values outside
// the 8-bit Lab range are clipped before conversion.
func (li *LabImage) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, li.Width, li.Height))
	parallel.Line(li.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < li.Width; x++ {
				p := li.At(x, y)
				p.L, p.A, p.B = clampFloat(p.L, 0, 255), clampFloat(p.A, 0, 255), clampFloat(p.B, 0, 255)
				c := p.RGB()
				o := out.PixOffset(x, y)
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = c.R, c.G, c.B, 255
			}
		}
	})
	return out
}

// ToPerceptual converts every pixel of img into perceptual coordinates.
//
// Rows are converted in parallel; each worker memoizes the colors it has
// already seen, which keeps flat paper regions cheap. The result does not
// depend on the number of workers.
func ToPerceptual(img image.Image) *LabImage {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := NewLabImage(w, h)

	parallel.Line(h, func(start, end int) {
		memo := make(map[uint32]PerceptualColor)
		for y := start; y < end; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				r, g, b := row[x*4], row[x*4+1], row[x*4+2]
				key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
				p, ok := memo[key]
				if !ok {
					p = PerceptualFromRGB(r, g, b)
					memo[key] = p
				}
				out.Set(x, y, p)
			}
		}
	})
	return out
}

// ParseHexRGB parses a six-digit hex color such as "f2eee4" or "#F2EEE4".
func ParseHexRGB(hex string) (RGBColor, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return RGBColor{}, fmt.Errorf("%w: expected 6 hex digits like f2eee4, got %q", ErrInvalidColorFormat, hex)
	}
	val, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGBColor{}, fmt.Errorf("%w: %q is not hexadecimal", ErrInvalidColorFormat, hex)
	}
	return RGBColor{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val)}, nil
}

// ParseReferenceTone parses a six-digit hex color into perceptual coordinates.
func ParseReferenceTone(hex string) (PerceptualColor, error) {
	c, err := ParseHexRGB(hex)
	if err != nil {
		return PerceptualColor{}, err
	}
	return PerceptualFromRGB(c.R, c.G, c.B), nil
}

// ToneHex is the inverse of ParseReferenceTone: six lowercase hex digits
// without a leading '#'.
func ToneHex(p PerceptualColor) string {
	return strings.TrimPrefix(p.colorful().Clamped().Hex(), "#")
}

// ColorDistance is the Euclidean distance between two perceptual colors.
//
// This approximates perceptual difference well enough for threshold
// comparisons against a paper tone. It is not a calibrated color-science
// metric; use CIEDE2000Distance where that matters.
func ColorDistance(a, b PerceptualColor) float64 {
	dl, da, db := a.L-b.L, a.A-b.A, a.B-b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// CIEDE2000Distance returns the CIEDE2000 color difference in standard ΔE00
// units.
func CIEDE2000Distance(a, b PerceptualColor) float64 {
	return a.colorful().DistanceCIEDE2000(b.colorful()) * 100
}

// DistanceFunc measures how far apart two perceptual colors are.
type DistanceFunc func(a, b PerceptualColor) float64

// DistanceByName resolves a configured metric name. The empty string selects
// the Euclidean default.
func DistanceByName(name string) (DistanceFunc, error) {
	switch strings.ToLower(name) {
	case "", "euclidean":
		return ColorDistance, nil
	case "ciede2000", "de2000":
		return CIEDE2000Distance, nil
	default:
		return nil, fmt.Errorf("%w: unknown distance metric %q", ErrInvalidParameter, name)
	}
}

// ToneSample contains the color at one pixel in the representations an
// operator needs to pick a reference paper tone.
type ToneSample struct {
	X    int             `json:"x"`
	Y    int             `json:"y"`
	Hex  string          `json:"hex"`  // Hex format "#RRGGBB"
	Tone string          `json:"tone"` // Six hex digits, usable as a reference tone
	RGB  RGBColor        `json:"rgb"`
	Lab  PerceptualColor `json:"lab"`
}

// SampleTone extracts the color at (x, y).
//
// Returns an error if the coordinates are outside the image bounds.
func SampleTone(img image.Image, x, y int) (*ToneSample, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	r, g, b, _ := img.At(x, y).RGBA()
	r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)

	return &ToneSample{
		X:    x,
		Y:    y,
		Hex:  fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
		Tone: fmt.Sprintf("%02x%02x%02x", r8, g8, b8),
		RGB:  RGBColor{R: r8, G: g8, B: b8},
		Lab:  PerceptualFromRGB(r8, g8, b8),
	}, nil
}

// Region represents a rectangular region within an image.
//
// (X1, Y1) is inclusive, (X2, Y2) is exclusive.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// RegionTone returns the component-wise median perceptual color of a region,
// along with its hex tone. It is the robust way to measure a paper tone from
// a patch that may contain stray marks.
func RegionTone(img image.Image, region Region) (*ToneSample, error) {
	bounds := img.Bounds()
	r := image.Rect(region.X1, region.Y1, region.X2, region.Y2)
	if r.Empty() || !r.In(bounds) {
		return nil, fmt.Errorf("%w: region (%d,%d)-(%d,%d) outside image bounds or empty",
			ErrInvalidParameter, region.X1, region.Y1, region.X2, region.Y2)
	}
	lab := ToPerceptual(imaging.Crop(img, r))
	med, ok := medianColor(lab, image.Rect(0, 0, lab.Width, lab.Height))
	if !ok {
		return nil, fmt.Errorf("%w: empty region", ErrInvalidParameter)
	}
	c := med.RGB()
	return &ToneSample{
		X:    region.X1,
		Y:    region.Y1,
		Hex:  fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B),
		Tone: ToneHex(med),
		RGB:  c,
		Lab:  med,
	}, nil
}
