package main

import (
	"os"
	"slices"

	"github.com/binzume/rigconv/converter"
	"github.com/binzume/rigconv/geom"
	"github.com/binzume/rigconv/logger"
	"github.com/binzume/rigconv/spine"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the rigconv.yaml file. Command line flags take precedence.
type Config struct {
	SampleRate    float32 `yaml:"sampleRate" validate:"gt=0"`
	Workers       int     `yaml:"workers" validate:"min=1"`
	LogLevel      string  `yaml:"logLevel" validate:"loglevel"`
	LogJSON       bool    `yaml:"logJSON"`
	LenientBones  bool    `yaml:"lenientBones"`
	RotationOrder string  `yaml:"rotationOrder" validate:"oneof=XYZ YXZ ZXY ZYX"`
	Atlas         string  `yaml:"atlas"`
	Output        string  `yaml:"output"`
}

func DefaultConfig() *Config {
	return &Config{
		SampleRate:    30,
		Workers:       4,
		LogLevel:      "info",
		RotationOrder: "ZYX",
		Output:        ".",
	}
}

var rotationOrders = map[string]geom.RotationOrder{
	"XYZ": geom.RotationOrderXYZ,
	"YXZ": geom.RotationOrderYXZ,
	"ZXY": geom.RotationOrderZXY,
	"ZYX": geom.RotationOrderZYX,
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// registerValidators adds the config-specific validation tags.
func registerValidators(v *validator.Validate) error {
	return v.RegisterValidation("loglevel", validateLogLevel)
}

func validateLogLevel(fl validator.FieldLevel) bool {
	return slices.Contains(logger.Levels, logger.LogLevel(fl.Field().String()))
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := registerValidators(v); err != nil {
		return err
	}
	return errors.Wrap(v.Struct(c), "invalid config")
}

func (c *Config) Logger() logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.LogLevel(c.LogLevel)
	cfg.JSON = c.LogJSON
	return logger.NewLogger(cfg)
}

// Options builds the compiler options, loading the atlas file if one is set.
func (c *Config) Options() (*converter.Options, error) {
	opts := converter.DefaultOptions()
	opts.SampleRate = c.SampleRate
	opts.StrictBoneReferences = !c.LenientBones
	opts.RotationOrder = rotationOrders[c.RotationOrder]
	if c.Atlas != "" {
		atlas, err := spine.LoadAtlas(c.Atlas)
		if err != nil {
			return nil, err
		}
		opts.Atlas = atlas
	}
	return opts, nil
}
