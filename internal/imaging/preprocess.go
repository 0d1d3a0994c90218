package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// ErrInvalidFrame is returned when a frame has no pixels.
var ErrInvalidFrame = errors.New("invalid frame dimensions")

// PreprocessConfig controls how a frame is turned into an edge mask.
type PreprocessConfig struct {
	// BlurRadius is the Gaussian radius. A radius of 2 gives a 5-tap kernel.
	BlurRadius float64

	// CannyLow and CannyHigh are the hysteresis thresholds (0-255).
	CannyLow  int
	CannyHigh int

	// DilateIterations bridges gaps in broken outlines; ErodeIterations thins
	// them back toward the true contour.
	DilateIterations int
	ErodeIterations  int

	// MorphRadius is the structuring element radius for dilation and erosion.
	MorphRadius float64
}

// DefaultPreprocessConfig returns the thresholds tuned for coins on a plain
// background under indoor lighting.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		BlurRadius:       2,
		CannyLow:         90,
		CannyHigh:        140,
		DilateIterations: 2,
		ErodeIterations:  1,
		MorphRadius:      2,
	}
}

// Validate reports configuration values the preprocessor cannot work with.
func (c PreprocessConfig) Validate() error {
	switch {
	case c.BlurRadius < 0:
		return fmt.Errorf("blur radius must be >= 0, got %v", c.BlurRadius)
	case c.CannyLow < 0 || c.CannyHigh > 255:
		return fmt.Errorf("canny thresholds must be within 0-255, got %d/%d", c.CannyLow, c.CannyHigh)
	case c.CannyLow > c.CannyHigh:
		return fmt.Errorf("canny low threshold %d exceeds high threshold %d", c.CannyLow, c.CannyHigh)
	case c.DilateIterations < 0 || c.ErodeIterations < 0:
		return fmt.Errorf("morphology iterations must be >= 0, got %d/%d", c.DilateIterations, c.ErodeIterations)
	case c.MorphRadius < 0:
		return fmt.Errorf("morphology radius must be >= 0, got %v", c.MorphRadius)
	}
	return nil
}

// Preprocessor converts frames into binary edge masks.
type Preprocessor struct {
	cfg PreprocessConfig
}

// NewPreprocessor returns a Preprocessor for cfg.
func NewPreprocessor(cfg PreprocessConfig) (*Preprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocess config: %w", err)
	}
	return &Preprocessor{cfg: cfg}, nil
}

// Config returns the configuration the preprocessor was built with.
func (p *Preprocessor) Config() PreprocessConfig {
	return p.cfg
}

// Process returns the edge mask for frame.
//
// The mask has the frame's width and height with its origin at (0,0); pixels
// on a (closed) edge are 255 and all others 0.
//
// # Algorithm
//
//  1. Gaussian smoothing (bild/blur) to suppress sensor noise
//  2. Canny edge detection with the configured thresholds
//  3. Dilation DilateIterations times to reconnect broken arcs into loops
//  4. Erosion ErodeIterations times to thin the outline back
//  5. Re-binarization at the midpoint level
func (p *Preprocessor) Process(frame image.Image) (*image.Gray, error) {
	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, bounds.Dx(), bounds.Dy())
	}
	if bounds.Min != (image.Point{}) {
		frame = imaging.Clone(frame)
	}

	smoothed := blur.Gaussian(frame, p.cfg.BlurRadius)
	var out image.Image = Canny(smoothed, p.cfg.CannyLow, p.cfg.CannyHigh)

	for i := 0; i < p.cfg.DilateIterations; i++ {
		out = effect.Dilate(out, p.cfg.MorphRadius)
	}
	for i := 0; i < p.cfg.ErodeIterations; i++ {
		out = effect.Erode(out, p.cfg.MorphRadius)
	}

	return segment.Threshold(out, 128), nil
}
