package opencv

import (
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// ErrModelLoad is returned when the model artifact is missing or cannot be
// loaded.
var ErrModelLoad = errors.New("failed to load model")

// Net runs an ONNX image classifier through the OpenCV DNN module.
//
// The model must take a single NHWC float32 input of shape [1, h, w, 3] and
// produce one probability vector. A Net is not safe for concurrent use; the
// pipeline runs one inference at a time.
type Net struct {
	net    gocv.Net
	width  int
	height int
}

// LoadNet loads the ONNX model at path for inputs of width x height.
func LoadNet(path string, width, height int) (*Net, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s is not a readable ONNX model", ErrModelLoad, path)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Net{net: net, width: width, height: height}, nil
}

// Predict runs one inference. input must hold width*height*3 values.
func (n *Net) Predict(input []float32) ([]float32, error) {
	if want := n.width * n.height * 3; len(input) != want {
		return nil, fmt.Errorf("input tensor has %d values, want %d", len(input), want)
	}

	blob := gocv.NewMatWithSizes([]int{1, n.height, n.width, 3}, gocv.MatTypeCV32F)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	copy(data, input)

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, errors.New("model produced no output")
	}

	probs, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}

	out := make([]float32, len(probs))
	copy(out, probs)
	return out, nil
}

// Close releases the network.
func (n *Net) Close() error {
	return n.net.Close()
}
