package imaging

import (
	"image"
	"image/color"
	"math"
)

// Canny performs Canny edge detection on an image that has already been
// smoothed.
//
// The result is a binary grayscale image with the same bounds as img: edge
// pixels are 255, everything else is 0.
//
// Parameters:
//   - img: Smoothed source image (color or grayscale).
//   - thresholdLow: Weak-edge gradient threshold on the 0-255 intensity scale.
//   - thresholdHigh: Strong-edge gradient threshold on the 0-255 intensity scale.
//
// # Algorithm
//
//  1. Luminance: ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B)
//  2. Gradient: Sobel operators, magnitude = sqrt(Gx² + Gy²)
//  3. Non-maximum suppression along the quantized gradient direction
//  4. Hysteresis: pixels at or above thresholdHigh seed edges, which then
//     grow through 8-connected pixels at or above thresholdLow
//
// Smoothing is not part of this function; Preprocessor applies it first.
func Canny(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := luminance(img)
	magnitude, direction := sobel(gray, width, height)
	suppressed := suppressNonMaxima(magnitude, direction, width, height)

	result := image.NewGray(bounds)
	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	// Seed with strong edges, then grow into connected weak edges.
	stack := make([]image.Point, 0, 256)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] >= highThresh {
				result.SetGray(x+bounds.Min.X, y+bounds.Min.Y, color.Gray{255})
				stack = append(stack, image.Pt(x, y))
			}
		}
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				px, py := p.X+kx, p.Y+ky
				if px < 0 || py < 0 || px >= width || py >= height {
					continue
				}
				if suppressed[py][px] < lowThresh {
					continue
				}
				if result.GrayAt(px+bounds.Min.X, py+bounds.Min.Y).Y == 255 {
					continue
				}
				result.SetGray(px+bounds.Min.X, py+bounds.Min.Y, color.Gray{255})
				stack = append(stack, image.Pt(px, py))
			}
		}
	}

	return result
}

// luminance converts img to a row-major plane of intensities in [0, 1].
func luminance(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, height)
	for y := 0; y < height; y++ {
		gray[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			rf := float64(r>>8) / 255.0
			gf := float64(g>>8) / 255.0
			bf := float64(b>>8) / 255.0
			gray[y][x] = 0.299*rf + 0.587*gf + 0.114*bf
		}
	}
	return gray
}

// sobel returns per-pixel gradient magnitude and direction.
// Border pixels use clamped (replicated) neighbours.
func sobel(gray [][]float64, width, height int) (magnitude, direction [][]float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([][]float64, height)
	direction = make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)

		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					gx += gray[py][px] * sobelX[ky+1][kx+1]
					gy += gray[py][px] * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// suppressNonMaxima keeps only pixels that are local maxima along their
// gradient direction. The outermost ring of pixels is always suppressed.
func suppressNonMaxima(magnitude, direction [][]float64, width, height int) [][]float64 {
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := direction[y][x]
			mag := magnitude[y][x]

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			default:
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}
	return suppressed
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
