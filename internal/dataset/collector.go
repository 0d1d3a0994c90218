// Package dataset captures labelled training images, one folder per
// denomination, for retraining the coin classifier.
package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ironsheep/coin-counter/internal/capture"
	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/render"
)

const jpegQuality = 95

// Config controls a collection session.
type Config struct {
	// BaseDir receives one sub-directory per denomination class.
	BaseDir string

	// PerClass is the number of images captured per denomination.
	PerClass int

	// Interval is the minimum time between two captures.
	Interval time.Duration

	// FrameWidth and FrameHeight are the saved image size.
	FrameWidth  int
	FrameHeight int
}

// DefaultConfig returns 100 images per class, 100ms apart, at 640x480.
func DefaultConfig() Config {
	return Config{
		BaseDir:     "images",
		PerClass:    100,
		Interval:    100 * time.Millisecond,
		FrameWidth:  640,
		FrameHeight: 480,
	}
}

// Collector walks the registry and, for every denomination the operator
// confirms, saves PerClass frames as <BaseDir>/<class>/<class>_<n>.jpg.
type Collector struct {
	cfg      Config
	registry *coins.Registry
	source   capture.Source
	display  render.Display
	in       *bufio.Scanner
	out      io.Writer
	log      logrus.FieldLogger
}

// NewCollector returns a Collector that prompts on out and reads answers from in.
func NewCollector(cfg Config, registry *coins.Registry, source capture.Source, in io.Reader, out io.Writer, log logrus.FieldLogger) (*Collector, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("dataset directory is required")
	}
	if cfg.PerClass <= 0 {
		return nil, fmt.Errorf("invalid images per class %d", cfg.PerClass)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("invalid capture interval %v", cfg.Interval)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Collector{
		cfg:      cfg,
		registry: registry,
		source:   source,
		in:       bufio.NewScanner(in),
		out:      out,
		log:      log,
	}, nil
}

// SetDisplay shows every captured frame in a window titled "<label> Coin".
func (c *Collector) SetDisplay(d render.Display) {
	c.display = d
}

// Collect runs the session and returns the number of images saved per class.
//
// The session ends early, without error, when the operator's input ends or the
// frame source is exhausted. Cancellation is checked between frames.
func (c *Collector) Collect(ctx context.Context) (map[string]int, error) {
	saved := make(map[string]int)

	for _, d := range c.registry.All() {
		fmt.Fprintf(c.out, "Insert %s coin...\n", d.Label)
		fmt.Fprintln(c.out, "Start capturing? (y/n)")
		fmt.Fprint(c.out, ">>> ")

		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return saved, fmt.Errorf("failed to read answer: %w", err)
			}
			c.log.Info("input closed, ending collection")
			return saved, nil
		}
		if strings.TrimSpace(c.in.Text()) != "y" {
			c.log.WithField("class", d.Class).Info("skipping denomination")
			continue
		}

		n, err := c.collectClass(ctx, d)
		if n > 0 {
			saved[d.Class] = n
		}
		if errors.Is(err, io.EOF) {
			c.log.WithField("class", d.Class).Warn("frame source exhausted")
			return saved, nil
		}
		if err != nil {
			return saved, err
		}
	}

	return saved, nil
}

func (c *Collector) collectClass(ctx context.Context, d coins.Denomination) (int, error) {
	dir := filepath.Join(c.cfg.BaseDir, d.Class)
	limiter := rate.NewLimiter(rate.Every(c.cfg.Interval), 1)

	count := 0
	for count < c.cfg.PerClass {
		if err := limiter.Wait(ctx); err != nil {
			return count, err
		}

		frame, err := c.source.Read()
		if errors.Is(err, capture.ErrNoFrame) {
			c.log.WithError(err).Debug("no frame, retrying")
			continue
		}
		if err != nil {
			return count, err
		}

		frame = c.normalise(frame)
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", d.Class, count+1))
		if err := imaging.SaveJPEG(path, frame, jpegQuality); err != nil {
			return count, err
		}
		count++

		if c.display != nil {
			if err := c.display.Show(d.Label+" Coin", frame); err != nil {
				c.log.WithError(err).Warn("failed to show frame")
			}
		}
		fmt.Fprintf(c.out, "Captured %d images for %s coin.\n", count, d.Label)
	}

	return count, nil
}

func (c *Collector) normalise(frame image.Image) image.Image {
	b := frame.Bounds()
	if c.cfg.FrameWidth <= 0 || c.cfg.FrameHeight <= 0 {
		return frame
	}
	if b.Dx() == c.cfg.FrameWidth && b.Dy() == c.cfg.FrameHeight {
		return frame
	}
	return imaging.Fit(frame, c.cfg.FrameWidth, c.cfg.FrameHeight)
}
