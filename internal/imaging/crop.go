package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ErrDegenerateRegion is returned when a region clips to zero width or height.
var ErrDegenerateRegion = errors.New("degenerate region")

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Region returns the part of frame covered by r.
//
// r is given relative to the frame origin (mask coordinates) and is clipped to
// the frame bounds. When the frame supports SubImage the returned image shares
// its pixels with the frame instead of copying them, so it is only valid for as
// long as the frame is. A region that clips to zero width or height returns
// ErrDegenerateRegion.
func Region(frame image.Image, r image.Rectangle) (image.Image, error) {
	bounds := frame.Bounds()
	clipped := r.Add(bounds.Min).Intersect(bounds)
	if clipped.Dx() <= 0 || clipped.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %v outside %v", ErrDegenerateRegion, r, bounds)
	}

	if s, ok := frame.(subImager); ok {
		return s.SubImage(clipped), nil
	}
	return imaging.Crop(frame, clipped), nil
}

// Fit resizes frame to exactly width x height with its origin at (0,0).
func Fit(frame image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(frame, width, height, imaging.Linear)
}

// MaskResult contains an edge mask encoded as base64 PNG.
type MaskResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	OnPixels    int    `json:"on_pixels"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeMask encodes mask as a base64 PNG.
func EncodeMask(mask *image.Gray) (*MaskResult, error) {
	on := 0
	for _, v := range mask.Pix {
		if v != 0 {
			on++
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}

	return &MaskResult{
		Width:       mask.Bounds().Dx(),
		Height:      mask.Bounds().Dy(),
		OnPixels:    on,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
