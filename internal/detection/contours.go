package detection

import (
	"image"
)

// DefaultMinArea is the minimum filled area, in pixels, a region must exceed
// to become a candidate.
const DefaultMinArea = 2000

// Candidate is a region of the mask suspected of containing a coin.
type Candidate struct {
	// Bounds is the axis-aligned bounding rectangle in mask coordinates.
	Bounds image.Rectangle `json:"bounds"`

	// Area is the number of pixels enclosed by the outer boundary.
	Area int `json:"area"`
}

// Extractor finds outer boundaries in a mask and filters them by area.
type Extractor struct {
	minArea int
}

// NewExtractor returns an Extractor that keeps regions with area > minArea.
func NewExtractor(minArea int) *Extractor {
	return &Extractor{minArea: minArea}
}

// MinArea returns the area threshold.
func (e *Extractor) MinArea() int {
	return e.minArea
}

// Extract returns the candidates found in mask.
//
// A pixel is "on" when its gray value is non-zero. The returned bounds are
// relative to the mask origin.
func (e *Extractor) Extract(mask *image.Gray) []Candidate {
	bounds := mask.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	on := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			on[y*width+x] = mask.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y != 0
		}
	}

	outside := fillBackground(on, width, height)

	candidates := make([]Candidate, 0)
	visited := make([]bool, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if visited[i] || outside[i] {
				continue
			}

			region := fillRegion(outside, visited, x, y, width, height)
			if region.Area > e.minArea {
				candidates = append(candidates, region)
			}
		}
	}

	return candidates
}

// fillBackground marks every off pixel 4-connected to the image border.
func fillBackground(on []bool, width, height int) []bool {
	outside := make([]bool, width*height)
	stack := make([]image.Point, 0, 2*(width+height))

	push := func(x, y int) {
		i := y*width + x
		if !on[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, image.Pt(x, y))
		}
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X > 0 {
			push(p.X-1, p.Y)
		}
		if p.X < width-1 {
			push(p.X+1, p.Y)
		}
		if p.Y > 0 {
			push(p.X, p.Y-1)
		}
		if p.Y < height-1 {
			push(p.X, p.Y+1)
		}
	}

	return outside
}

// fillRegion flood-fills the 8-connected region of non-background pixels
// containing (startX, startY) and returns its area and bounding box.
//
// Uses an explicit stack rather than recursion so large regions cannot
// overflow the goroutine stack.
func fillRegion(outside, visited []bool, startX, startY, width, height int) Candidate {
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	area := 0

	visited[startY*width+startX] = true
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		area++
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				i := ny*width + nx
				if visited[i] || outside[i] {
					continue
				}
				visited[i] = true
				stack = append(stack, image.Pt(nx, ny))
			}
		}
	}

	return Candidate{
		Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
		Area:   area,
	}
}
