package restore

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/restoration-studio/internal/detection"
	"github.com/ironsheep/restoration-studio/internal/imaging"
)

// Environment variables that override configuration file values.
const (
	EnvConfig    = "RESTORE_CONFIG"
	EnvRunsDir   = "RESTORE_RUNS_DIR"
	EnvS3Bucket  = "RESTORE_S3_BUCKET"
	EnvAWSRegion = "RESTORE_AWS_REGION"
)

// Config holds every tunable of the restoration pipeline. The heuristic
// constants were tuned on real scans; they are exposed so that unusual paper
// or artwork can be handled without code changes.
type Config struct {
	RunsDir    string                   `yaml:"runs_dir"`
	Segment    detection.SegmentOptions `yaml:"segment"`
	Background BackgroundOptions        `yaml:"background"`
	Border     BorderOptions            `yaml:"border"`
	AutoCrop   AutoCropOptions          `yaml:"autocrop"`
	Damage     imaging.DamageMapOptions `yaml:"damage"`
	Overlay    OverlayOptions           `yaml:"overlay"`
	Publish    PublishConfig            `yaml:"publish"`
}

// BorderOptions configures both border repair operations.
type BorderOptions struct {
	FillHex        string  `yaml:"fill_hex"`
	BorderFraction float64 `yaml:"border_fraction"`
	FeatherRadius  int     `yaml:"feather_radius"`
	CropFraction   float64 `yaml:"crop_fraction"`
}

// OverlayOptions configures the segmentation preview.
type OverlayOptions struct {
	TintHex string  `yaml:"tint"`
	Alpha   float64 `yaml:"alpha"`
}

// PublishConfig selects where finished runs are published. An empty Bucket
// publishes to Dir on the local filesystem.
type PublishConfig struct {
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Prefix      string `yaml:"prefix"`
	Dir         string `yaml:"dir"`
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RunsDir:    "runs",
		Segment:    detection.DefaultSegmentOptions(),
		Background: DefaultBackgroundOptions(),
		Border: BorderOptions{
			FillHex:        "f2eee4",
			BorderFraction: 0.06,
			FeatherRadius:  31,
			CropFraction:   0.04,
		},
		AutoCrop: DefaultAutoCropOptions(),
		Damage:   imaging.DefaultDamageMapOptions(),
		Overlay:  OverlayOptions{TintHex: "00ff00", Alpha: 0.25},
		Publish:  PublishConfig{Region: "us-east-2", Dir: "published", Concurrency: 4},
	}
}

// LoadConfig builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty), then environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRunsDir); v != "" {
		c.RunsDir = v
	}
	if v := os.Getenv(EnvS3Bucket); v != "" {
		c.Publish.Bucket = v
	}
	if v := os.Getenv(EnvAWSRegion); v != "" {
		c.Publish.Region = v
	}
}

// Validate rejects values no stage can work with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.RunsDir != "", "runs_dir must not be empty")
	check(c.Segment.Window >= 3, "segment.window must be >= 3")
	check(c.Segment.MinAreaFraction >= 0 && c.Segment.MinAreaFraction < 1, "segment.min_area_fraction must be within [0,1)")
	check(c.Segment.BorderFraction >= 0 && c.Segment.BorderFraction < 0.5, "segment.border_fraction must be within [0,0.5)")
	check(c.Segment.Confidence >= 0 && c.Segment.Confidence <= 1, "segment.confidence must be within [0,1]")
	check(c.Background.Strength >= 0 && c.Background.Strength <= 1, "background.strength must be within [0,1]")
	check(c.Background.FeatherRadius >= 1, "background.feather_radius must be >= 1")
	check(c.Border.BorderFraction >= 0 && c.Border.BorderFraction < 0.5, "border.border_fraction must be within [0,0.5)")
	check(c.Border.CropFraction >= 0 && c.Border.CropFraction < 0.5, "border.crop_fraction must be within [0,0.5)")
	check(c.Border.FeatherRadius >= 1, "border.feather_radius must be >= 1")
	check(c.AutoCrop.BandPx >= 1, "autocrop.band_px must be >= 1")
	check(c.AutoCrop.StepPx >= 1, "autocrop.step_px must be >= 1")
	check(c.AutoCrop.Threshold >= 0, "autocrop.threshold must be >= 0")
	check(c.AutoCrop.SafetyMarginPx >= 0, "autocrop.safety_margin_px must be >= 0")
	check(c.AutoCrop.MaxCropFraction >= 0 && c.AutoCrop.MaxCropFraction <= 1, "autocrop.max_crop_fraction must be within [0,1]")
	check(c.Overlay.Alpha >= 0 && c.Overlay.Alpha <= 1, "overlay.alpha must be within [0,1]")
	check(c.Publish.Concurrency >= 1, "publish.concurrency must be >= 1")

	for _, hex := range []string{c.Border.FillHex, c.AutoCrop.TargetHex, c.Overlay.TintHex} {
		if _, err := imaging.ParseHexRGB(hex); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := imaging.DistanceByName(c.AutoCrop.Distance); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", imaging.ErrInvalidParameter, errors.Join(errs...))
	}
	return nil
}
