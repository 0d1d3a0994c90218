package classifier

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/coin-counter/internal/coins"
)

// fakeModel returns scripted outputs and records its inputs.
type fakeModel struct {
	outputs [][]float32
	err     error
	calls   int
	inputs  [][]float32
}

func (m *fakeModel) Predict(input []float32) ([]float32, error) {
	m.calls++
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	out := m.outputs[0]
	if len(m.outputs) > 1 {
		m.outputs = m.outputs[1:]
	}
	return out, nil
}

func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func smallConfig() Config {
	return Config{InputWidth: 8, InputHeight: 8, ChannelOrder: RGB}
}

func TestNew_ChecksModelOutputSize(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}

	if _, err := New(model, coins.DefaultRegistry(), smallConfig()); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if model.calls != 1 {
		t.Errorf("startup inferences: got %d, want 1", model.calls)
	}
	if len(model.inputs[0]) != 8*8*3 {
		t.Errorf("startup tensor length: got %d, want %d", len(model.inputs[0]), 8*8*3)
	}
}

func TestNew_OutputSizeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		output []float32
	}{
		{"too few", []float32{0.5, 0.5}},
		{"too many", []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.5}},
		{"empty", []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{outputs: [][]float32{tt.output}}
			_, err := New(model, coins.DefaultRegistry(), smallConfig())
			if !errors.Is(err, ErrModelMismatch) {
				t.Errorf("got %v, want ErrModelMismatch", err)
			}
		})
	}
}

func TestNew_CheckInferenceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&fakeModel{err: boom}, coins.DefaultRegistry(), smallConfig())
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped startup inference error", err)
	}
}

func TestNew_InvalidInputSize(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{1, 0, 0, 0, 0}}}
	_, err := New(model, coins.DefaultRegistry(), Config{InputWidth: 0, InputHeight: 224})
	if err == nil {
		t.Error("expected error for zero input width")
	}
}

func TestClassify_Argmax(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{
		{0.2, 0.2, 0.2, 0.2, 0.2},
		{0.05, 0.8, 0.1, 0.03, 0.02},
	}}
	c, err := New(model, coins.DefaultRegistry(), smallConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pred, err := c.Classify(solidImage(40, 40, color.White))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if pred.Index != 1 {
		t.Errorf("Index: got %d, want 1", pred.Index)
	}
	if pred.Denomination.Class != "50_cents" {
		t.Errorf("Class: got %s, want 50_cents", pred.Denomination.Class)
	}
	if math.Abs(pred.Confidence-0.8) > 1e-6 {
		t.Errorf("Confidence: got %v, want 0.8", pred.Confidence)
	}
}

func TestClassify_DoesNotThreshold(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.3, 0.2, 0.2, 0.2, 0.1}}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	pred, err := c.Classify(solidImage(10, 10, color.Black))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if pred.Denomination.Class != "1_real" || math.Abs(pred.Confidence-0.3) > 1e-6 {
		t.Errorf("got %+v, want low-confidence 1_real", pred)
	}
}

func TestClassify_RuntimeMismatch(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{
		{0.2, 0.2, 0.2, 0.2, 0.2},
		{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.4},
	}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	_, err := c.Classify(solidImage(10, 10, color.White))
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("got %v, want ErrModelMismatch", err)
	}
}

func TestClassify_InferenceError(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	boom := errors.New("session lost")
	model.err = boom
	_, err := c.Classify(solidImage(10, 10, color.White))
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped inference error", err)
	}
	if errors.Is(err, coins.ErrUnknownDenomination) || errors.Is(err, ErrModelMismatch) {
		t.Error("inference errors must not look like contract violations")
	}
}

func TestClassify_EmptyCrop(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	_, err := c.Classify(image.NewRGBA(image.Rect(0, 0, 0, 10)))
	if !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("got %v, want ErrEmptyCrop", err)
	}
	if model.calls != 1 {
		t.Errorf("model invoked for empty crop: %d calls", model.calls)
	}
}

func TestTensor_Normalization(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	tests := []struct {
		name  string
		color color.Color
		want  [3]float32
	}{
		{"black", color.Black, [3]float32{-1, -1, -1}},
		{"white", color.White, [3]float32{255.0/127.0 - 1, 255.0/127.0 - 1, 255.0/127.0 - 1}},
		{"red", color.RGBA{255, 0, 0, 255}, [3]float32{255.0/127.0 - 1, -1, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := c.Tensor(solidImage(30, 20, tt.color))

			if len(tensor) != 8*8*3 {
				t.Fatalf("tensor length: got %d, want %d", len(tensor), 8*8*3)
			}
			for ch := 0; ch < 3; ch++ {
				if math.Abs(float64(tensor[ch]-tt.want[ch])) > 1e-5 {
					t.Errorf("channel %d: got %v, want %v", ch, tensor[ch], tt.want[ch])
				}
			}
		})
	}
}

func TestTensor_BGR(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}
	cfg := smallConfig()
	cfg.ChannelOrder = BGR
	c, _ := New(model, coins.DefaultRegistry(), cfg)

	tensor := c.Tensor(solidImage(8, 8, color.RGBA{255, 0, 0, 255}))
	if tensor[0] != -1 || math.Abs(float64(tensor[2])-(255.0/127.0-1)) > 1e-5 {
		t.Errorf("BGR layout: got %v, want red in the last channel", tensor[:3])
	}
}

func TestTensor_FreshBuffer(t *testing.T) {
	model := &fakeModel{outputs: [][]float32{{0.2, 0.2, 0.2, 0.2, 0.2}}}
	c, _ := New(model, coins.DefaultRegistry(), smallConfig())

	a := c.Tensor(solidImage(8, 8, color.White))
	b := c.Tensor(solidImage(8, 8, color.Black))
	if &a[0] == &b[0] {
		t.Error("tensor buffer reused across calls")
	}
	if a[0] == b[0] {
		t.Error("second tensor overwrote the first")
	}
}

func TestParseChannelOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelOrder
		wantErr bool
	}{
		{"rgb", RGB, false},
		{"BGR", BGR, false},
		{"Rgb", RGB, false},
		{"hsv", RGB, true},
	}

	for _, tt := range tests {
		got, err := ParseChannelOrder(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChannelOrder(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseChannelOrder(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		values   []float32
		wantIdx  int
		wantConf float32
	}{
		{[]float32{0.1, 0.7, 0.2}, 1, 0.7},
		{[]float32{0.9}, 0, 0.9},
		{[]float32{0.4, 0.4, 0.2}, 0, 0.4},
		{[]float32{-3, -1, -2}, 1, -1},
		{nil, -1, 0},
	}

	for _, tt := range tests {
		idx, conf := argmax(tt.values)
		if idx != tt.wantIdx || conf != tt.wantConf {
			t.Errorf("argmax(%v): got (%d, %v), want (%d, %v)", tt.values, idx, conf, tt.wantIdx, tt.wantConf)
		}
	}
}
