package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/parallel"
)

// CannyEdges performs Canny-style edge detection and returns a binary plane
// where 255 marks an edge pixel.
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - thresholdLow: gradients below this (0-255) are discarded. Typical: 50.
//   - thresholdHigh: gradients above this are always kept. Typical: 150.
//
// # Algorithm
//
//  1. Grayscale conversion (bild effect.Grayscale).
//  2. 5x5 Gaussian blur, sigma ≈ 1.4, to suppress paper grain.
//  3. Sobel gradients: magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx).
//  4. Non-maximum suppression along the gradient direction.
//  5. Hysteresis: strong pixels are kept, weak pixels only next to a strong one.
//
// Thresholds are on the 0-255 intensity scale of the gradient magnitude.
func CannyEdges(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	g := effect.Grayscale(img)
	b := g.Bounds()
	width, height := b.Dx(), b.Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return result
	}

	gray := make([]float64, width*height)
	for y := 0; y < height; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < width; x++ {
			gray[y*width+x] = float64(g.Pix[off+x]) / 255.0
		}
	}

	blurred := gaussianBlur(gray, width, height)

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	sobelX := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var gx, gy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := blurred[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)]
						gx += v * sobelX[ky+1][kx+1]
						gy += v * sobelY[ky+1][kx+1]
					}
				}
				magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
				direction[y*width+x] = math.Atan2(gy, gx)
			}
		}
	})

	suppressed := make([]float64, width*height)
	at := func(x, y int) float64 { return magnitude[y*width+x] }
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			angle := direction[y*width+x]
			mag := at(x, y)

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = at(x-1, y), at(x+1, y)
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = at(x+1, y-1), at(x-1, y+1)
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = at(x, y-1), at(x, y+1)
			default:
				n1, n2 = at(x-1, y-1), at(x+1, y+1)
			}
			if mag >= n1 && mag >= n2 {
				suppressed[y*width+x] = mag
			}
		}
	}

	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y*width+x]
			switch {
			case val >= highThresh:
				result.Pix[y*result.Stride+x] = 255
			case val >= lowThresh:
				if hasStrongNeighbor(suppressed, width, height, x, y, highThresh) {
					result.Pix[y*result.Stride+x] = 255
				}
			}
		}
	}
	return result
}

func hasStrongNeighbor(suppressed []float64, width, height, x, y int, high float64) bool {
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			if suppressed[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)] >= high {
				return true
			}
		}
	}
	return false
}

// gaussianBlur applies a 5x5 Gaussian blur (sigma ≈ 1.4, kernel sum 273).
// Border pixels use replicated edge values.
func gaussianBlur(img []float64, width, height int) []float64 {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	result := make([]float64, width*height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for ky := -2; ky <= 2; ky++ {
					for kx := -2; kx <= 2; kx++ {
						sum += img[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)] * kernel[ky+2][kx+2]
					}
				}
				result[y*width+x] = sum / kernelSum
			}
		}
	})
	return result
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
