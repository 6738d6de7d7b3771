// Package config loads civil's settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// CIVIL_* environment variables (a .env file in the working directory is
// honored by the CLI). Command-line flags are applied last by the caller.
//
// Usage Example:
//
//	cfg, err := config.Load("")
//	trainCfg := cfg.Training.TrainConfig()
//
// Environment variables use the nested field names, for example
// CIVIL_STEMMER, CIVIL_TRAINING_TREES or CIVIL_FETCH_TIMEOUT=45s.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/chriscorrea/civil/internal/dataset"
	"github.com/chriscorrea/civil/internal/model"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CIVIL"

var validate = validator.New()

// Config holds all settings.
type Config struct {
	Database string   `yaml:"database" envconfig:"DATABASE" validate:"required"`
	Stemmer  string   `yaml:"stemmer" envconfig:"STEMMER" validate:"oneof=lancaster porter2 snowball"`
	Training Training `yaml:"training" envconfig:"TRAINING"`
	Fetch    Fetch    `yaml:"fetch" envconfig:"FETCH"`
}

// Training holds model training parameters.
type Training struct {
	TextColumn     string  `yaml:"text_column" envconfig:"TEXT_COLUMN" validate:"required"`
	Seed           int64   `yaml:"seed" envconfig:"SEED"`
	TestFraction   float64 `yaml:"test_fraction" envconfig:"TEST_FRACTION" validate:"gt=0,lt=1"`
	NegativeRatio  float64 `yaml:"negative_ratio" envconfig:"NEGATIVE_RATIO" validate:"gte=0"`
	MinDF          int     `yaml:"min_df" envconfig:"MIN_DF" validate:"gte=1"`
	Trees          int     `yaml:"trees" envconfig:"TREES" validate:"gte=1,lte=10000"`
	MaxDepth       int     `yaml:"max_depth" envconfig:"MAX_DEPTH" validate:"gte=0"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" validate:"gte=1"`
	Workers        int     `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// Fetch limits how prediction inputs are read.
type Fetch struct {
	MaxBytes  int64         `yaml:"max_bytes" envconfig:"MAX_BYTES" validate:"gt=0"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT" validate:"required"`
}

// Default returns the built-in settings.
func Default() *Config {
	train := model.DefaultTrainConfig()
	return &Config{
		Database: DefaultDatabasePath(),
		Stemmer:  "lancaster",
		Training: Training{
			TextColumn:     dataset.DefaultTextColumn,
			Seed:           train.Seed,
			TestFraction:   train.TestFraction,
			NegativeRatio:  train.NegativeRatio,
			MinDF:          train.MinDF,
			Trees:          train.Trees,
			MaxDepth:       train.MaxDepth,
			MinSamplesLeaf: train.MinSamplesLeaf,
		},
		Fetch: Fetch{
			MaxBytes:  10 << 20,
			Timeout:   30 * time.Second,
			UserAgent: "civil/1.0",
		},
	}
}

// DefaultDatabasePath is the model registry location used when none is configured.
func DefaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "civil-models.db"
	}
	return filepath.Join(dir, "civil", "models.db")
}

// DefaultFile is the YAML file read when Load gets no explicit path.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "civil", "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. An empty path reads DefaultFile when it exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultFile()
		if _, err := os.Stat(file); file == "" || errors.Is(err, os.ErrNotExist) {
			file = ""
		}
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	slog.Debug("Config file loaded", "path", path)
	return nil
}

// Validate canonicalizes the stemmer name the way stem.ByName reads it, then
// checks every setting against its constraints.
func (c *Config) Validate() error {
	c.Stemmer = strings.ToLower(strings.TrimSpace(c.Stemmer))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// TrainConfig converts the training settings for model.Train.
func (t Training) TrainConfig() model.TrainConfig {
	return model.TrainConfig{
		Seed:           t.Seed,
		TestFraction:   t.TestFraction,
		NegativeRatio:  t.NegativeRatio,
		MinDF:          t.MinDF,
		Trees:          t.Trees,
		MaxDepth:       t.MaxDepth,
		MinSamplesLeaf: t.MinSamplesLeaf,
		Workers:        t.Workers,
	}
}
