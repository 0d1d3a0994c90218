package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/coin-counter/internal/capture"
	"github.com/ironsheep/coin-counter/internal/classifier"
	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/config"
	"github.com/ironsheep/coin-counter/internal/dataset"
	"github.com/ironsheep/coin-counter/internal/detection"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/logging"
	"github.com/ironsheep/coin-counter/internal/opencv"
	"github.com/ironsheep/coin-counter/internal/pipeline"
	"github.com/ironsheep/coin-counter/internal/render"
	"github.com/ironsheep/coin-counter/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("coin-counter - real-time coin counting from a camera")
	fmt.Println()
	fmt.Println("Usage: coin-counter [options] [count|collect|serve] [options]")
	fmt.Println()
	fmt.Println("Modes:")
	fmt.Println("  count      Count coins on the live camera feed (default)")
	fmt.Println("  collect    Capture labelled training images per denomination")
	fmt.Println("  serve      MCP server over stdin/stdout for still images")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --replay DIR     Read frames from image files in DIR instead of the camera")
	fmt.Println("  --loop           Restart the replay after the last file")
	fmt.Println("  --env FILE       Load settings from FILE (default .env)")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (COIN_COUNTER_ prefix):")
	fmt.Println("  DEVICE, FRAME_WIDTH, FRAME_HEIGHT, MIN_AREA, CONFIDENCE,")
	fmt.Println("  MODEL_PATH, MODEL_INPUT_SIZE, CHANNEL_ORDER, REGISTRY_PATH,")
	fmt.Println("  CANNY_LOW, CANNY_HIGH, DILATE_ITERATIONS, ERODE_ITERATIONS, MORPH_RADIUS,")
	fmt.Println("  DATASET_DIR, DATASET_PER_CLASS, DATASET_INTERVAL, CURRENCY, SHOW_MASK,")
	fmt.Println("  BOX_COLOR, LABEL_COLOR, TOTAL_BACKGROUND, TOTAL_TEXT, LOG_LEVEL, LOG_FILE")
}

func main() {
	// Handle --version and --help before anything touches devices
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("coin-counter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
	}

	os.Exit(run(os.Args[1:]))
}

// options are the command line settings. Everything else comes from the
// environment.
type options struct {
	mode    string
	replay  string
	loop    bool
	envFile string
}

// parseArgs reads the flags and the mode. Flags may appear before or after
// the mode; anything left over is an error.
func parseArgs(args []string) (options, error) {
	opts := options{mode: "count"}

	fs := flag.NewFlagSet("coin-counter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.replay, "replay", "", "directory of frames to replay")
	fs.BoolVar(&opts.loop, "loop", false, "loop the replay")
	fs.StringVar(&opts.envFile, "env", ".env", "settings file")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		opts.mode = fs.Arg(0)
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return options{}, err
		}
		if fs.NArg() > 0 {
			return options{}, fmt.Errorf("unexpected arguments after %s: %s", opts.mode, strings.Join(fs.Args(), " "))
		}
	}

	switch opts.mode {
	case "count", "collect", "serve":
	default:
		return options{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
	return opts, nil
}

func run(args []string) int {
	opts, err := parseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		usage()
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "coin-counter: %v\n\n", err)
		usage()
		return 2
	}
	mode := opts.mode

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coin-counter: %v\n", err)
		return 1
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "coin-counter: %v\n", err)
		return 1
	}
	defer logger.Close()

	log := logger.Run().WithField("mode", mode)
	log.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
	}).Debug("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "count":
		err = runCount(ctx, cfg, opts.replay, opts.loop, log)
	case "collect":
		err = runCollect(ctx, cfg, opts.replay, opts.loop, log)
	case "serve":
		err = runServe(ctx, cfg, log)
	}

	if errors.Is(err, context.Canceled) {
		log.Info("exiting")
		return 0
	}
	if err != nil {
		log.WithError(err).Error("stopped")
		return 1
	}
	return 0
}

func openSource(cfg *config.Config, replay string, loop bool, log logrus.FieldLogger) (capture.Source, error) {
	if replay != "" {
		src, err := capture.OpenDir(replay, loop)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"dir":    replay,
			"frames": src.Len(),
			"loop":   loop,
		}).Info("replaying frames")
		return src, nil
	}
	log.WithField("device", cfg.Device).Info("opening camera")
	return opencv.OpenCamera(cfg.Device)
}

// newPipeline loads the model and wires every stage except the frame source
// and the renderer.
func newPipeline(cfg *config.Config, registry *coins.Registry, log logrus.FieldLogger) (pipeline.Stages, *opencv.Net, error) {
	pre, err := imaging.NewPreprocessor(cfg.Preprocess())
	if err != nil {
		return pipeline.Stages{}, nil, err
	}

	clsCfg := cfg.Classifier()
	net, err := opencv.LoadNet(cfg.ModelPath, clsCfg.InputWidth, clsCfg.InputHeight)
	if err != nil {
		return pipeline.Stages{}, nil, err
	}

	cls, err := classifier.New(net, registry, clsCfg)
	if err != nil {
		net.Close()
		return pipeline.Stages{}, nil, err
	}

	ext := detection.NewExtractor(cfg.MinArea)

	preCfg := pre.Config()
	modelCfg := cls.Config()
	log.WithFields(logrus.Fields{
		"model":         cfg.ModelPath,
		"model_input":   fmt.Sprintf("%dx%d", modelCfg.InputWidth, modelCfg.InputHeight),
		"channels":      modelCfg.ChannelOrder.String(),
		"denominations": registry.Len(),
		"canny":         fmt.Sprintf("%d/%d", preCfg.CannyLow, preCfg.CannyHigh),
		"dilate":        preCfg.DilateIterations,
		"erode":         preCfg.ErodeIterations,
		"min_area":      ext.MinArea(),
	}).Info("pipeline ready")

	return pipeline.Stages{
		Preprocessor: pre,
		Extractor:    ext,
		Classifier:   cls,
	}, net, nil
}

func runCount(ctx context.Context, cfg *config.Config, replay string, loop bool, log logrus.FieldLogger) error {
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	stages, net, err := newPipeline(cfg, registry, log)
	if err != nil {
		return err
	}
	defer net.Close()

	source, err := openSource(cfg, replay, loop, log)
	if err != nil {
		return err
	}
	defer source.Close()

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}

	windows := opencv.NewWindows()
	defer windows.Close()

	stages.Source = source
	stages.Renderer = render.NewScreen(windows, render.NewAnnotator(cfg.Currency, palette), cfg.ShowMask)

	orch, err := pipeline.New(cfg.Pipeline(), stages, log)
	if err != nil {
		return err
	}

	pc := orch.Config()
	log.WithFields(logrus.Fields{
		"frame":      fmt.Sprintf("%dx%d", pc.FrameWidth, pc.FrameHeight),
		"confidence": pc.Confidence,
	}).Info("counting coins...")
	err = orch.Run(ctx)
	log.WithField("stats", orch.Stats()).Info("counter stopped")
	return err
}

func runCollect(ctx context.Context, cfg *config.Config, replay string, loop bool, log logrus.FieldLogger) error {
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	source, err := openSource(cfg, replay, loop, log)
	if err != nil {
		return err
	}
	defer source.Close()

	windows := opencv.NewWindows()
	defer windows.Close()

	collector, err := dataset.NewCollector(cfg.Dataset(), registry, source, os.Stdin, os.Stdout, log)
	if err != nil {
		return err
	}
	collector.SetDisplay(windows)

	saved, err := collector.Collect(ctx)
	log.WithField("saved", saved).Info("collection finished")
	return err
}

func runServe(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	stages, net, err := newPipeline(cfg, registry, log)
	if err != nil {
		return err
	}
	defer net.Close()

	orch, err := pipeline.New(cfg.Pipeline(), stages, log)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Counter:      orch,
		Preprocessor: stages.Preprocessor,
		Registry:     registry,
		MinArea:      cfg.MinArea,
		Currency:     cfg.Currency,
		Version:      Version,
		Log:          log,
	})
	if err != nil {
		return err
	}

	log.Info("serving MCP on stdio")
	return srv.Run(ctx, os.Stdin, os.Stdout)
}
