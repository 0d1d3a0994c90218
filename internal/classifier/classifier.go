// Package classifier turns a cropped coin region into a denomination and a
// confidence using a pretrained image classification model.
//
// The model itself is a black box behind the Model interface. This package
// owns the pre-processing (resize, normalization, tensor layout) and the
// post-processing (argmax, registry lookup). It does not apply the acceptance
// threshold; that is the caller's policy.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/coin-counter/internal/coins"
)

var (
	// ErrModelMismatch is returned when the model's output vector length does
	// not equal the registry size.
	ErrModelMismatch = errors.New("model output does not match denomination registry")

	// ErrEmptyCrop is returned for crops without pixels. Callers are expected to
	// drop degenerate regions before classification.
	ErrEmptyCrop = errors.New("empty crop")
)

// Model runs inference on a single preprocessed sample.
//
// input is an NHWC float32 tensor of shape [1, height, width, 3]. The returned
// slice is the probability vector over the registry, in registry order.
type Model interface {
	Predict(input []float32) ([]float32, error)
}

// ChannelOrder is the channel layout the model was trained with.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

// ParseChannelOrder parses "rgb" or "bgr" (case-insensitive).
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToLower(s) {
	case "rgb":
		return RGB, nil
	case "bgr":
		return BGR, nil
	default:
		return RGB, fmt.Errorf("unknown channel order %q", s)
	}
}

func (o ChannelOrder) String() string {
	if o == BGR {
		return "bgr"
	}
	return "rgb"
}

// Config describes the model input.
type Config struct {
	InputWidth   int
	InputHeight  int
	ChannelOrder ChannelOrder
}

// DefaultConfig returns the 224x224 RGB input of the bundled model.
func DefaultConfig() Config {
	return Config{
		InputWidth:   224,
		InputHeight:  224,
		ChannelOrder: RGB,
	}
}

// Prediction is the classifier's best guess for one crop.
type Prediction struct {
	// Index is the argmax position in the model output.
	Index int

	Denomination coins.Denomination

	// Confidence is the probability at Index.
	Confidence float64
}

// Classifier maps crops to denominations.
//
// A Classifier is not safe for concurrent use: the underlying Model is
// typically a single inference session. The input tensor is allocated fresh
// for every call.
type Classifier struct {
	model    Model
	registry *coins.Registry
	cfg      Config
}

// New returns a Classifier after checking the model/registry contract.
//
// A check inference on an all-zero tensor must return exactly registry.Len()
// values; otherwise New fails with ErrModelMismatch.
func New(model Model, registry *coins.Registry, cfg Config) (*Classifier, error) {
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid model input size %dx%d", cfg.InputWidth, cfg.InputHeight)
	}

	c := &Classifier{model: model, registry: registry, cfg: cfg}

	out, err := model.Predict(make([]float32, c.tensorLen()))
	if err != nil {
		return nil, fmt.Errorf("failed to run check inference: %w", err)
	}
	if len(out) != registry.Len() {
		return nil, fmt.Errorf("%w: model has %d outputs, registry has %d denominations",
			ErrModelMismatch, len(out), registry.Len())
	}

	return c, nil
}

// Classify returns the most probable denomination for crop.
//
// An argmax index that does not resolve in the registry yields an error
// wrapping coins.ErrUnknownDenomination.
func (c *Classifier) Classify(crop image.Image) (Prediction, error) {
	if crop.Bounds().Empty() {
		return Prediction{}, ErrEmptyCrop
	}

	out, err := c.model.Predict(c.Tensor(crop))
	if err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	if len(out) != c.registry.Len() {
		return Prediction{}, fmt.Errorf("%w: got %d outputs, want %d", ErrModelMismatch, len(out), c.registry.Len())
	}

	index, confidence := argmax(out)
	d, err := c.registry.At(index)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Index:        index,
		Denomination: d,
		Confidence:   float64(confidence),
	}, nil
}

// Tensor resizes crop to the model input size and returns it as a normalized
// NHWC tensor. Channel values are v/127 - 1, roughly [-1, 1].
func (c *Classifier) Tensor(crop image.Image) []float32 {
	resized := imaging.Resize(crop, c.cfg.InputWidth, c.cfg.InputHeight, imaging.Linear)

	tensor := make([]float32, c.tensorLen())
	for y := 0; y < c.cfg.InputHeight; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < c.cfg.InputWidth; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			if c.cfg.ChannelOrder == BGR {
				r, b = b, r
			}
			i := (y*c.cfg.InputWidth + x) * 3
			tensor[i] = normalize(r)
			tensor[i+1] = normalize(g)
			tensor[i+2] = normalize(b)
		}
	}
	return tensor
}

// Config returns the model input configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

func (c *Classifier) tensorLen() int {
	return c.cfg.InputWidth * c.cfg.InputHeight * 3
}

// normalize maps 0..255 onto the [-1, 1] range the model was trained on.
func normalize(v uint8) float32 {
	return float32(v)/127.0 - 1
}

func argmax(values []float32) (int, float32) {
	best := -1
	var bestVal float32
	for i, v := range values {
		if best == -1 || v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}
