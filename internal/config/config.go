package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/san-kum/seird/internal/dynamo"
	"github.com/san-kum/seird/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStart       = 0.0
	DefaultEnd         = 90.0
	DefaultStep        = 1.0
	DefaultTolerance   = 1e-2
	DefaultMaxHalvings = 30
)

type Config struct {
	Name         string         `yaml:"name" toml:"name" json:"name"`
	Start        float64        `yaml:"start" toml:"start" json:"start"`
	End          float64        `yaml:"end" toml:"end" json:"end"`
	Step         float64        `yaml:"step" toml:"step" json:"step"`
	Tolerance    float64        `yaml:"tolerance" toml:"tolerance" json:"tolerance"`
	MaxHalvings  int            `yaml:"max_halvings" toml:"max_halvings" json:"max_halvings"`
	ExactHorizon bool           `yaml:"exact_horizon" toml:"exact_horizon" json:"exact_horizon"`
	Params       models.Params  `yaml:"params" toml:"params" json:"params"`
	Initial      models.Initial `yaml:"initial" toml:"initial" json:"initial"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:        "novosibirsk",
		Start:       DefaultStart,
		End:         DefaultEnd,
		Step:        DefaultStep,
		Tolerance:   DefaultTolerance,
		MaxHalvings: DefaultMaxHalvings,
		Params:      models.DefaultParams(),
		Initial:     models.DefaultInitial(),
	}
}

// Load reads a YAML or TOML file on top of the defaults. The format is
// chosen by extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	case ".yaml", ".yml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		data = out
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if err := c.Initial.Validate(); err != nil {
		return err
	}
	if c.End <= c.Start {
		return fmt.Errorf("%w: end %g must be after start %g", dynamo.ErrParameterBounds, c.End, c.Start)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %g", dynamo.ErrParameterBounds, c.Step)
	}
	if (c.End-c.Start)/c.Step >= dynamo.MaxSteps {
		return fmt.Errorf("%w: step %g is too small for [%g, %g]", dynamo.ErrStepTooSmall, c.Step, c.Start, c.End)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", dynamo.ErrParameterBounds, c.Tolerance)
	}
	if c.MaxHalvings < 0 {
		return fmt.Errorf("%w: max_halvings must not be negative, got %d", dynamo.ErrParameterBounds, c.MaxHalvings)
	}
	return nil
}

func (c *Config) SimConfig() dynamo.Config {
	return dynamo.Config{
		Start:        c.Start,
		End:          c.End,
		Step:         c.Step,
		Tolerance:    c.Tolerance,
		MaxHalvings:  c.MaxHalvings,
		ExactHorizon: c.ExactHorizon,
	}
}
