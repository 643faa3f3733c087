// Package config loads the kvgverify configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/adammathes/kvgverify/pkg/validate"
)

// DefaultPath is read when no configuration file is named explicitly.
const DefaultPath = "kvgverify.yaml"

// Config is the contents of a configuration file.
type Config struct {
	Directory   string      `yaml:"directory" validate:"required"`
	Files       Files       `yaml:"files"`
	Validations Validations `yaml:"validations"`
	Repair      Repair      `yaml:"repair"`
	Jobs        int         `yaml:"jobs" validate:"gte=1,lte=256"`
	LogLevel    string      `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsFile string      `yaml:"metrics_file"`
}

// Files selects diagram files by id. A '*' matches any run of characters.
type Files struct {
	Included []string `yaml:"included" validate:"min=1,dive,required"`
	Excluded []string `yaml:"excluded" validate:"dive,required"`
}

type Validations struct {
	Enabled           []string          `yaml:"enabled" validate:"min=1,dive,rule"`
	Advisory          []string          `yaml:"advisory" validate:"dive,rule"`
	CanvasSize        int               `yaml:"canvas_size" validate:"gt=0"`
	MaxNumberDistance float64           `yaml:"max_number_distance" validate:"gte=0"`
	StrokeRootStyle   map[string]string `yaml:"stroke_root_style" validate:"dive,keys,required,endkeys"`
	NumberRootStyle   map[string]string `yaml:"number_root_style" validate:"dive,keys,required,endkeys"`
}

// Repair controls where repaired files are written. An empty OutputDir
// overwrites files in place.
type Repair struct {
	OutputDir string `yaml:"output_dir"`
	DryRun    bool   `yaml:"dry_run"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	opts := validate.DefaultOptions()
	return &Config{
		Directory: "kanji",
		Files:     Files{Included: []string{"*"}},
		Validations: Validations{
			Enabled:           []string{string(validate.All)},
			CanvasSize:        opts.CanvasSize,
			MaxNumberDistance: opts.MaxNumberDistance,
			StrokeRootStyle:   opts.StrokeRootStyle,
			NumberRootStyle:   opts.NumberRootStyle,
		},
		Jobs:     4,
		LogLevel: "info",
	}
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = configValidate.RegisterValidation("rule", validateRule)
}

// validateRule accepts "all" and the name of every known rule.
func validateRule(fl validator.FieldLevel) bool {
	r := validate.Rule(fl.Field().String())
	if r == validate.All {
		return true
	}
	_, ok := validate.Lookup(r)
	return ok
}

// Load reads the configuration file at path over the defaults. An empty
// path reads DefaultPath if it exists and returns the defaults otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			return Default(), nil
		}
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data over the defaults and validates
// the result. Unknown keys are an error. A style given in the file
// replaces the default style instead of extending it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Validations.StrokeRootStyle = nil
	cfg.Validations.NumberRootStyle = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	defaults := validate.DefaultOptions()
	if cfg.Validations.StrokeRootStyle == nil {
		cfg.Validations.StrokeRootStyle = defaults.StrokeRootStyle
	}
	if cfg.Validations.NumberRootStyle == nil {
		cfg.Validations.NumberRootStyle = defaults.NumberRootStyle
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the field constraints of c.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	// drop the root struct name
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "rule":
		return fmt.Sprintf("%s: unknown validation rule %q", field, fe.Value())
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
}

// Options converts the validations section to rule engine options.
func (c *Config) Options() validate.Options {
	v := c.Validations
	opts := validate.Options{
		CanvasSize:        v.CanvasSize,
		MaxNumberDistance: v.MaxNumberDistance,
		StrokeRootStyle:   v.StrokeRootStyle,
		NumberRootStyle:   v.NumberRootStyle,
	}
	for _, r := range v.Enabled {
		opts.Rules = append(opts.Rules, validate.Rule(r))
	}
	for _, r := range v.Advisory {
		opts.Advisory = append(opts.Advisory, validate.Rule(r))
	}
	return opts
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
