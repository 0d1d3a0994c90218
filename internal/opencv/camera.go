package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/coin-counter/internal/capture"
)

// Camera reads frames from a video capture device.
type Camera struct {
	device int
	video  *gocv.VideoCapture
	frame  gocv.Mat
}

// OpenCamera opens the capture device with the given index.
//
// The device stays locked until Close is called.
func OpenCamera(device int) (*Camera, error) {
	video, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %d: %w", device, err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("capture device %d is not available", device)
	}

	return &Camera{
		device: device,
		video:  video,
		frame:  gocv.NewMat(),
	}, nil
}

// Read grabs the next frame. A device that returns no data yields
// capture.ErrNoFrame.
func (c *Camera) Read() (image.Image, error) {
	if ok := c.video.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("%w: device %d returned no data", capture.ErrNoFrame, c.device)
	}

	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrNoFrame, err)
	}
	return img, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.frame.Close()
	return c.video.Close()
}

var _ capture.Source = (*Camera)(nil)
