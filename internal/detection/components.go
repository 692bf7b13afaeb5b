package detection

import (
	"image"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Component is one connected region of a binary plane.
type Component struct {
	// Label is the 1-based id assigned during labelling.
	Label int `json:"label"`

	// Area is the number of pixels in the region.
	Area int `json:"area"`

	// Bounds is the bounding box, min inclusive and max exclusive.
	Bounds image.Rectangle `json:"bounds"`

	// TouchesBorder reports whether the region reaches the image edge.
	TouchesBorder bool `json:"touches_border"`
}

// Connectivity selects which neighbours join a region.
type Connectivity int

const (
	// FourConnected joins horizontal and vertical neighbours only.
	FourConnected Connectivity = 4
	// EightConnected also joins diagonal neighbours.
	EightConnected Connectivity = 8
)

var (
	neighbors4 = []Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	neighbors8 = []Point{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

// labeling is the result of connected-component labelling: one label per
// pixel (0 for pixels outside every region) and one Component per label.
type labeling struct {
	width      int
	height     int
	labels     []int32
	components []Component
}

// labelComponents finds the regions of pixels whose membership equals want.
func labelComponents(g *image.Gray, want bool, conn Connectivity) labeling {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	member := make([]bool, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			member[y*w+x] = (g.Pix[off+x] != 0) == want
		}
	}

	steps := neighbors8
	if conn == FourConnected {
		steps = neighbors4
	}

	lb := labeling{width: w, height: h, labels: make([]int32, w*h)}
	var stack []Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !member[y*w+x] || lb.labels[y*w+x] != 0 {
				continue
			}
			id := int32(len(lb.components) + 1)
			c, st := floodFill(member, lb.labels, x, y, w, h, id, steps, stack[:0])
			stack = st
			lb.components = append(lb.components, c)
		}
	}
	return lb
}

// floodFill performs an iterative flood fill from a seed, labelling every
// reachable member pixel with id.
//
// Uses a stack (not recursion) so large regions cannot overflow the call
// stack. The stack buffer is returned for reuse.
func floodFill(member []bool, labels []int32, startX, startY, width, height int, id int32, steps []Point, stack []Point) (Component, []Point) {
	c := Component{
		Label:  int(id),
		Bounds: image.Rect(startX, startY, startX+1, startY+1),
	}
	labels[startY*width+startX] = id
	stack = append(stack, Point{X: startX, Y: startY})

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.Area++
		c.Bounds = c.Bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
		if p.X == 0 || p.Y == 0 || p.X == width-1 || p.Y == height-1 {
			c.TouchesBorder = true
		}

		for _, d := range steps {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || nx >= width || ny < 0 || ny >= height {
				continue
			}
			i := ny*width + nx
			if !member[i] || labels[i] != 0 {
				continue
			}
			labels[i] = id
			stack = append(stack, Point{X: nx, Y: ny})
		}
	}
	return c, stack
}

// ConnectedComponents lists the 8-connected foreground regions of a binary
// plane in raster order of their first pixel.
func ConnectedComponents(g *image.Gray) []Component {
	return labelComponents(g, true, EightConnected).components
}

// RemoveSmallComponents keeps only the 8-connected foreground regions with at
// least minArea pixels. It returns the cleaned plane and the number of
// regions kept.
func RemoveSmallComponents(g *image.Gray, minArea int) (*image.Gray, int) {
	lb := labelComponents(g, true, EightConnected)
	keep := make([]bool, len(lb.components)+1)
	kept := 0
	for _, c := range lb.components {
		if c.Area >= minArea {
			keep[c.Label] = true
			kept++
		}
	}

	out := image.NewGray(image.Rect(0, 0, lb.width, lb.height))
	for i, l := range lb.labels {
		if keep[l] {
			out.Pix[i] = 255
		}
	}
	return out, kept
}

// FillHoles turns enclosed background regions of at most maxArea pixels into
// foreground. Background regions are 4-connected, the complement of 8-connected
// foreground, and a region touching the image edge is never a hole.
func FillHoles(g *image.Gray, maxArea int) *image.Gray {
	out := binarize(g)
	if maxArea <= 0 {
		return out
	}
	lb := labelComponents(out, false, FourConnected)
	fill := make([]bool, len(lb.components)+1)
	for _, c := range lb.components {
		if !c.TouchesBorder && c.Area <= maxArea {
			fill[c.Label] = true
		}
	}
	for i, l := range lb.labels {
		if fill[l] {
			out.Pix[i] = 255
		}
	}
	return out
}
