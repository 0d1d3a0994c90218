package render

import (
	"fmt"
	"image"

	"github.com/ironsheep/coin-counter/internal/pipeline"
)

// Window titles.
const (
	SourceWindow       = "Source"
	PreprocessedWindow = "Pre-processed"
)

// Display shows an image in a named window.
type Display interface {
	Show(title string, img image.Image) error
}

// Screen renders every cycle to a Display: the annotated frame and,
// optionally, the edge mask.
type Screen struct {
	display   Display
	annotator *Annotator
	showMask  bool
}

// NewScreen returns a Screen. It implements pipeline.Renderer.
func NewScreen(display Display, annotator *Annotator, showMask bool) *Screen {
	return &Screen{
		display:   display,
		annotator: annotator,
		showMask:  showMask,
	}
}

// Render annotates result and shows it.
func (s *Screen) Render(result *pipeline.FrameResult) error {
	if err := s.display.Show(SourceWindow, s.annotator.Annotate(result)); err != nil {
		return fmt.Errorf("failed to show %s: %w", SourceWindow, err)
	}
	if s.showMask && result.Mask != nil {
		if err := s.display.Show(PreprocessedWindow, result.Mask); err != nil {
			return fmt.Errorf("failed to show %s: %w", PreprocessedWindow, err)
		}
	}
	return nil
}

var _ pipeline.Renderer = (*Screen)(nil)
