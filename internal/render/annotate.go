// Package render draws pipeline results onto frames and hands them to a
// display.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/coin-counter/internal/pipeline"
)

const (
	boxThickness = 2
	labelOffset  = 10

	// The total box is anchored to the top-right corner.
	totalBoxRight  = 40
	totalBoxWidth  = 170
	totalBoxTop    = 30
	totalBoxBottom = 80
	totalTextInset = 10
	totalBaseline  = 60
)

// Palette holds the overlay colours.
type Palette struct {
	Box             color.RGBA
	Label           color.RGBA
	TotalBackground color.RGBA
	TotalText       color.RGBA
}

// Default overlay colours.
const (
	DefaultBoxColor        = "#00ff00"
	DefaultLabelColor      = "#00ff00"
	DefaultTotalBackground = "#000000"
	DefaultTotalText       = "#ffffff"
)

// DefaultPalette returns green boxes and labels with white-on-black totals.
func DefaultPalette() Palette {
	return Palette{
		Box:             color.RGBA{G: 255, A: 255},
		Label:           color.RGBA{G: 255, A: 255},
		TotalBackground: color.RGBA{A: 255},
		TotalText:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// ParsePalette builds a palette from "#rrggbb" or "#rgb" strings.
func ParsePalette(box, label, totalBackground, totalText string) (Palette, error) {
	var p Palette
	for _, c := range []struct {
		hex string
		dst *color.RGBA
	}{
		{box, &p.Box},
		{label, &p.Label},
		{totalBackground, &p.TotalBackground},
		{totalText, &p.TotalText},
	} {
		if len(c.hex) != len("#rgb") && len(c.hex) != len("#rrggbb") {
			return Palette{}, fmt.Errorf("invalid colour %q: want #rgb or #rrggbb", c.hex)
		}
		parsed, err := colorful.Hex(c.hex)
		if err != nil {
			return Palette{}, fmt.Errorf("invalid colour %q: %w", c.hex, err)
		}
		r, g, b := parsed.Clamped().RGB255()
		*c.dst = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p, nil
}

// FormatTotal renders a total as it appears on the overlay, e.g. "R$ 1.50".
func FormatTotal(currency string, total float64) string {
	return fmt.Sprintf("%s %.2f", currency, total)
}

// Annotator draws detections and the frame total.
type Annotator struct {
	palette  Palette
	currency string
	face     font.Face
}

// NewAnnotator returns an Annotator that prefixes totals with currency.
func NewAnnotator(currency string, palette Palette) *Annotator {
	return &Annotator{
		palette:  palette,
		currency: currency,
		face:     basicfont.Face7x13,
	}
}

// Annotate returns a copy of the result frame with every detection boxed,
// accepted detections labelled, and the total drawn in the top-right corner.
// The result frame itself is not modified.
func (a *Annotator) Annotate(result *pipeline.FrameResult) *image.RGBA {
	bounds := result.Frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), result.Frame, bounds.Min, draw.Src)

	for _, d := range result.Detections {
		r := d.Candidate.Bounds
		a.drawBox(out, r)
		if d.Accepted {
			a.drawText(out, r.Min.X, r.Min.Y-labelOffset, d.Denomination.Label, a.palette.Label)
		}
	}

	width := out.Bounds().Dx()
	box := image.Rect(width-totalBoxRight-totalBoxWidth, totalBoxTop, width-totalBoxRight, totalBoxBottom)
	draw.Draw(out, box, image.NewUniform(a.palette.TotalBackground), image.Point{}, draw.Src)
	a.drawText(out, box.Min.X+totalTextInset, totalBaseline, FormatTotal(a.currency, result.Total), a.palette.TotalText)

	return out
}

func (a *Annotator) drawBox(img *image.RGBA, r image.Rectangle) {
	src := image.NewUniform(a.palette.Box)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}

// drawText draws s with its baseline at y.
func (a *Annotator) drawText(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: a.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
