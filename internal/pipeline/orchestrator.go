// Package pipeline drives the per-frame coin counting cycle.
//
// One cycle acquires a frame, normalises it, turns it into an edge mask,
// extracts candidate regions, classifies each candidate, gates the results by
// confidence and sums the accepted denominations. The total is recomputed from
// scratch every cycle; nothing is carried over between frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/coin-counter/internal/capture"
	"github.com/ironsheep/coin-counter/internal/classifier"
	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
)

// ErrNoSource is returned by Step when the orchestrator has no frame source.
var ErrNoSource = errors.New("no frame source configured")

// Preprocessor turns a frame into a binary edge mask.
type Preprocessor interface {
	Process(frame image.Image) (*image.Gray, error)
}

// Extractor finds candidate regions in a mask.
type Extractor interface {
	Extract(mask *image.Gray) []detection.Candidate
}

// Classifier classifies a single cropped region.
type Classifier interface {
	Classify(crop image.Image) (classifier.Prediction, error)
}

// Renderer receives the outcome of every successful cycle.
type Renderer interface {
	Render(result *FrameResult) error
}

// Config holds the orchestrator settings.
type Config struct {
	// FrameWidth and FrameHeight are the resolution every frame is
	// normalised to before preprocessing.
	FrameWidth  int
	FrameHeight int

	// Confidence is the acceptance threshold. Results must exceed it strictly.
	Confidence float64
}

// DefaultConfig returns 640x480 frames and a 0.7 confidence threshold.
func DefaultConfig() Config {
	return Config{
		FrameWidth:  640,
		FrameHeight: 480,
		Confidence:  0.7,
	}
}

// Stages are the collaborators of one cycle. Source and Renderer are optional:
// without a Source only Process can be used, and without a Renderer results are
// only returned.
type Stages struct {
	Source       capture.Source
	Preprocessor Preprocessor
	Extractor    Extractor
	Classifier   Classifier
	Renderer     Renderer
}

// Detection is the classification of one candidate region.
type Detection struct {
	Candidate detection.Candidate `json:"candidate"`
	coins.Classification
	Accepted bool `json:"accepted"`
}

// FrameResult is everything a cycle produced.
type FrameResult struct {
	// Frame is the normalised frame the detections refer to.
	Frame image.Image `json:"-"`

	Mask       *image.Gray `json:"-"`
	Detections []Detection `json:"detections"`
	Total      float64     `json:"total"`
}

// Accepted returns the classifications that passed the confidence gate.
func (r *FrameResult) Accepted() []coins.Classification {
	accepted := make([]coins.Classification, 0, len(r.Detections))
	for _, d := range r.Detections {
		if d.Accepted {
			accepted = append(accepted, d.Classification)
		}
	}
	return accepted
}

// Stats counts cycles. Skipped cycles had no frame; failed cycles had a
// frame but could not be completed.
type Stats struct {
	Processed int     `json:"processed"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	LastTotal float64 `json:"last_total"`
}

// Orchestrator runs cycles. It is single-threaded: Step, Run and Process must
// not be called concurrently.
type Orchestrator struct {
	cfg    Config
	stages Stages
	log    logrus.FieldLogger
	stats  Stats
}

// New validates cfg and the required stages.
func New(cfg Config, stages Stages, log logrus.FieldLogger) (*Orchestrator, error) {
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}
	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return nil, fmt.Errorf("confidence threshold %v outside [0, 1]", cfg.Confidence)
	}
	if stages.Preprocessor == nil || stages.Extractor == nil || stages.Classifier == nil {
		return nil, errors.New("preprocessor, extractor and classifier are required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Orchestrator{cfg: cfg, stages: stages, log: log}, nil
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Stats returns the cycle counters so far.
func (o *Orchestrator) Stats() Stats {
	return o.stats
}

// Process runs every stage after acquisition on frame.
//
// Candidates whose crop clips to nothing are dropped without being classified.
// Any classification error aborts the frame.
func (o *Orchestrator) Process(frame image.Image) (*FrameResult, error) {
	frame = o.Normalise(frame)

	mask, err := o.stages.Preprocessor.Process(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess frame: %w", err)
	}

	candidates := o.stages.Extractor.Extract(mask)
	detections := make([]Detection, 0, len(candidates))
	all := make([]coins.Classification, 0, len(candidates))
	for _, c := range candidates {
		crop, err := imaging.Region(frame, c.Bounds)
		if errors.Is(err, imaging.ErrDegenerateRegion) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to crop candidate %v: %w", c.Bounds, err)
		}

		pred, err := o.stages.Classifier.Classify(crop)
		if err != nil {
			return nil, fmt.Errorf("failed to classify candidate %v: %w", c.Bounds, err)
		}

		cls := coins.Classification{
			Denomination: pred.Denomination,
			Confidence:   pred.Confidence,
		}
		all = append(all, cls)
		detections = append(detections, Detection{
			Candidate:      c,
			Classification: cls,
			Accepted:       cls.Passes(o.cfg.Confidence),
		})
	}

	return &FrameResult{
		Frame:      frame,
		Mask:       mask,
		Detections: detections,
		Total:      coins.Total(coins.Accepted(all, o.cfg.Confidence)),
	}, nil
}

// Step runs exactly one cycle: acquire, process, render.
//
// The returned error is the raw cycle error; Run decides which ones are fatal.
// Render failures are logged and never returned.
func (o *Orchestrator) Step() (*FrameResult, error) {
	if o.stages.Source == nil {
		return nil, ErrNoSource
	}

	frame, err := o.stages.Source.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			o.stats.Skipped++
		}
		return nil, err
	}

	result, err := o.Process(frame)
	if err != nil {
		o.stats.Failed++
		return nil, err
	}

	o.stats.Processed++
	o.stats.LastTotal = result.Total

	if o.stages.Renderer != nil {
		if err := o.stages.Renderer.Render(result); err != nil {
			o.log.WithError(err).Warn("failed to render frame")
		}
	}

	return result, nil
}

// Run loops over Step until ctx is cancelled, the source is exhausted, or a
// fatal error occurs.
//
// Cancellation is checked between cycles only, so an in-flight cycle always
// completes. An exhausted source ends the loop with a nil error and a
// cancelled context with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := o.Step()
		switch {
		case err == nil:
			o.log.WithFields(logrus.Fields{
				"detections": len(result.Detections),
				"accepted":   len(result.Accepted()),
				"total":      result.Total,
			}).Debug("frame processed")
		case errors.Is(err, io.EOF):
			o.log.WithField("stats", o.stats).Info("frame source exhausted")
			return nil
		case errors.Is(err, capture.ErrNoFrame):
			o.log.WithError(err).Debug("no frame, skipping cycle")
		case errors.Is(err, ErrNoSource) || isFatal(err):
			return err
		default:
			o.log.WithError(err).Warn("cycle failed")
		}
	}
}

// Normalise resizes frame to the configured resolution with its origin at
// (0,0). Frames already in that shape are returned as is.
func (o *Orchestrator) Normalise(frame image.Image) image.Image {
	b := frame.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == o.cfg.FrameWidth && b.Dy() == o.cfg.FrameHeight {
		return frame
	}
	if b.Empty() {
		return frame
	}
	return imaging.Fit(frame, o.cfg.FrameWidth, o.cfg.FrameHeight)
}

// isFatal reports errors that no later cycle can recover from: the model and
// the registry disagree, or the source delivers frames without pixels.
func isFatal(err error) bool {
	return errors.Is(err, coins.ErrUnknownDenomination) ||
		errors.Is(err, classifier.ErrModelMismatch) ||
		errors.Is(err, imaging.ErrInvalidFrame)
}
