package opencv

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Windows shows images in native OpenCV windows, one per title.
type Windows struct {
	windows map[string]*gocv.Window
}

// NewWindows returns an empty window set. Windows are created on first use.
func NewWindows() *Windows {
	return &Windows{windows: make(map[string]*gocv.Window)}
}

// Show displays img in the window named title and pumps the event loop once.
func (w *Windows) Show(title string, img image.Image) error {
	win, ok := w.windows[title]
	if !ok {
		win = gocv.NewWindow(title)
		w.windows[title] = win
	}

	var (
		mat gocv.Mat
		err error
	)
	if gray, isGray := img.(*image.Gray); isGray {
		mat, err = gocv.ImageGrayToMatGray(gray)
	} else {
		mat, err = gocv.ImageToMatRGB(img)
	}
	if err != nil {
		return fmt.Errorf("failed to convert image for %s: %w", title, err)
	}
	defer mat.Close()

	win.IMShow(mat)
	win.WaitKey(1)
	return nil
}

// Close destroys every window.
func (w *Windows) Close() error {
	var errs []error
	for title, win := range w.windows {
		if err := win.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", title, err))
		}
		delete(w.windows, title)
	}
	return errors.Join(errs...)
}
