// Package config loads the coin counter settings from the environment.
//
// Values come from COIN_COUNTER_* variables. A .env file in the working
// directory is loaded first when present; variables already set in the
// environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ironsheep/coin-counter/internal/classifier"
	"github.com/ironsheep/coin-counter/internal/coins"
	"github.com/ironsheep/coin-counter/internal/dataset"
	"github.com/ironsheep/coin-counter/internal/imaging"
	"github.com/ironsheep/coin-counter/internal/pipeline"
	"github.com/ironsheep/coin-counter/internal/render"
)

// Prefix is prepended to every variable name.
const Prefix = "COIN_COUNTER_"

var validate = validator.New()

// Config holds every setting of the coin counter.
type Config struct {
	Device      int `validate:"gte=0"`
	FrameWidth  int `validate:"gt=0"`
	FrameHeight int `validate:"gt=0"`

	MinArea    int     `validate:"gte=0"`
	Confidence float64 `validate:"gte=0,lte=1"`

	ModelPath      string `validate:"required"`
	ModelInputSize int    `validate:"gt=0"`
	ChannelOrder   string `validate:"oneof=rgb bgr"`
	RegistryPath   string

	CannyLow         int     `validate:"gte=0,lte=255"`
	CannyHigh        int     `validate:"gtefield=CannyLow,lte=255"`
	DilateIterations int     `validate:"gte=0"`
	ErodeIterations  int     `validate:"gte=0"`
	MorphRadius      float64 `validate:"gte=0"`

	DatasetDir      string        `validate:"required"`
	DatasetPerClass int           `validate:"gt=0"`
	DatasetInterval time.Duration `validate:"gte=0"`

	Currency string `validate:"required"`
	ShowMask bool

	BoxColor        string `validate:"hexcolor"`
	LabelColor      string `validate:"hexcolor"`
	TotalBackground string `validate:"hexcolor"`
	TotalText       string `validate:"hexcolor"`

	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string
}

// Default returns the built-in settings.
func Default() Config {
	pre := imaging.DefaultPreprocessConfig()
	return Config{
		Device:           0,
		FrameWidth:       640,
		FrameHeight:      480,
		MinArea:          2000,
		Confidence:       0.7,
		ModelPath:        "model/keras_model.onnx",
		ModelInputSize:   224,
		ChannelOrder:     "rgb",
		CannyLow:         pre.CannyLow,
		CannyHigh:        pre.CannyHigh,
		DilateIterations: pre.DilateIterations,
		ErodeIterations:  pre.ErodeIterations,
		MorphRadius:      pre.MorphRadius,
		DatasetDir:       "images",
		DatasetPerClass:  100,
		DatasetInterval:  100 * time.Millisecond,
		Currency:         "R$",
		ShowMask:         true,
		BoxColor:         render.DefaultBoxColor,
		LabelColor:       render.DefaultLabelColor,
		TotalBackground:  render.DefaultTotalBackground,
		TotalText:        render.DefaultTotalText,
		LogLevel:         "info",
	}
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Missing .env files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.setInt("DEVICE", &cfg.Device)
	p.setInt("FRAME_WIDTH", &cfg.FrameWidth)
	p.setInt("FRAME_HEIGHT", &cfg.FrameHeight)
	p.setInt("MIN_AREA", &cfg.MinArea)
	p.setFloat("CONFIDENCE", &cfg.Confidence)
	p.setString("MODEL_PATH", &cfg.ModelPath)
	p.setInt("MODEL_INPUT_SIZE", &cfg.ModelInputSize)
	p.setString("CHANNEL_ORDER", &cfg.ChannelOrder)
	p.setString("REGISTRY_PATH", &cfg.RegistryPath)
	p.setInt("CANNY_LOW", &cfg.CannyLow)
	p.setInt("CANNY_HIGH", &cfg.CannyHigh)
	p.setInt("DILATE_ITERATIONS", &cfg.DilateIterations)
	p.setInt("ERODE_ITERATIONS", &cfg.ErodeIterations)
	p.setFloat("MORPH_RADIUS", &cfg.MorphRadius)
	p.setString("DATASET_DIR", &cfg.DatasetDir)
	p.setInt("DATASET_PER_CLASS", &cfg.DatasetPerClass)
	p.setDuration("DATASET_INTERVAL", &cfg.DatasetInterval)
	p.setString("CURRENCY", &cfg.Currency)
	p.setBool("SHOW_MASK", &cfg.ShowMask)
	p.setString("BOX_COLOR", &cfg.BoxColor)
	p.setString("LABEL_COLOR", &cfg.LabelColor)
	p.setString("TOTAL_BACKGROUND", &cfg.TotalBackground)
	p.setString("TOTAL_TEXT", &cfg.TotalText)
	p.setString("LOG_LEVEL", &cfg.LogLevel)
	p.setString("LOG_FILE", &cfg.LogFile)

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}

	cfg.ChannelOrder = strings.ToLower(cfg.ChannelOrder)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Registry returns the configured denomination registry: the file at
// RegistryPath, or the built-in one when it is empty.
func (c *Config) Registry() (*coins.Registry, error) {
	if c.RegistryPath == "" {
		return coins.DefaultRegistry(), nil
	}
	return coins.LoadRegistry(c.RegistryPath)
}

// Preprocess returns the edge mask settings.
func (c *Config) Preprocess() imaging.PreprocessConfig {
	pre := imaging.DefaultPreprocessConfig()
	pre.CannyLow = c.CannyLow
	pre.CannyHigh = c.CannyHigh
	pre.DilateIterations = c.DilateIterations
	pre.ErodeIterations = c.ErodeIterations
	pre.MorphRadius = c.MorphRadius
	return pre
}

// Classifier returns the model input settings.
func (c *Config) Classifier() classifier.Config {
	order, _ := classifier.ParseChannelOrder(c.ChannelOrder)
	return classifier.Config{
		InputWidth:   c.ModelInputSize,
		InputHeight:  c.ModelInputSize,
		ChannelOrder: order,
	}
}

// Pipeline returns the orchestrator settings.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		FrameWidth:  c.FrameWidth,
		FrameHeight: c.FrameHeight,
		Confidence:  c.Confidence,
	}
}

// Palette returns the overlay colours.
func (c *Config) Palette() (render.Palette, error) {
	return render.ParsePalette(c.BoxColor, c.LabelColor, c.TotalBackground, c.TotalText)
}

// Dataset returns the training-data capture settings.
func (c *Config) Dataset() dataset.Config {
	return dataset.Config{
		BaseDir:     c.DatasetDir,
		PerClass:    c.DatasetPerClass,
		Interval:    c.DatasetInterval,
		FrameWidth:  c.FrameWidth,
		FrameHeight: c.FrameHeight,
	}
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(Prefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key, v string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s%s=%q: %w", Prefix, key, v, err))
}

func (p *parser) setString(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) setInt(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) setFloat(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = f
}

func (p *parser) setBool(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}

func (p *parser) setDuration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = d
}
