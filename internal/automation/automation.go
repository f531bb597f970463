package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/san-kum/seird/internal/config"
	"github.com/san-kum/seird/internal/dynamo"
	"github.com/san-kum/seird/internal/integrators"
	"github.com/san-kum/seird/internal/metrics"
	"github.com/san-kum/seird/internal/models"
	"github.com/san-kum/seird/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of forecasts
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`

	dir string
}

// ScenarioStep builds one run configuration. The preset (or the defaults) is
// loaded first, then the config file, then the overrides.
type ScenarioStep struct {
	Name      string    `yaml:"name"`
	Preset    string    `yaml:"preset"`
	Config    string    `yaml:"config"`
	Overrides yaml.Node `yaml:"overrides"`
}

// StepResult is the outcome of one scenario step. Err holds a
// *dynamo.ConvergenceError when the step hit its halving cap.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *dynamo.Result
	Err    error
}

// LoadScenario loads a scenario from a YAML file. Config paths inside the
// scenario are relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("load scenario %s: no steps", path)
	}

	scenario.dir = filepath.Dir(path)
	return &scenario, nil
}

// Resolve builds the configuration for one step.
func (s *Scenario) Resolve(step ScenarioStep) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if step.Preset != "" {
		cfg = config.GetPreset(step.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", step.Preset)
		}
	}

	if step.Config != "" {
		path := step.Config
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if !step.Overrides.IsZero() {
		if err := step.Overrides.Decode(cfg); err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
	}

	if step.Name != "" {
		cfg.Name = step.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewSimulator wires the model, the Heun integrator and the default metrics
// for cfg.
func NewSimulator(cfg *config.Config, log zerolog.Logger) *sim.Simulator {
	s := sim.New(models.NewSEIRD(cfg.Params), integrators.NewHeun()).WithLogger(log)
	for _, m := range metrics.Defaults(cfg.Initial.Population) {
		s.AddMetric(m)
	}
	return s
}

// Solve runs the convergence loop for cfg.
func Solve(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dynamo.Result, error) {
	return NewSimulator(cfg, log).Run(ctx, cfg.Initial.State(), cfg.SimConfig())
}

// RunScenario executes all steps in order. A step that fails to converge is
// recorded and the scenario moves on; any other failure stops it.
func RunScenario(ctx context.Context, scenario *Scenario, log zerolog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := scenario.Resolve(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		log.Info().
			Int("step", i+1).
			Int("of", len(scenario.Steps)).
			Str("name", cfg.Name).
			Msg("running scenario step")

		result, err := Solve(ctx, cfg, log)
		var convErr *dynamo.ConvergenceError
		if err != nil && !errors.As(err, &convErr) {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{
			Name:   cfg.Name,
			Config: cfg,
			Result: result,
			Err:    err,
		})
	}

	return results, nil
}

// ParameterSweep runs the forecast across evenly spaced values of one rate
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult holds the converged outcome for one parameter value
type SweepResult struct {
	Value     float64      `json:"value"`
	Final     dynamo.State `json:"final"`
	Step      float64      `json:"step"`
	Halvings  int          `json:"halvings"`
	Converged bool         `json:"converged"`
	Peak      float64      `json:"peak_infected"`
}

// Values returns the sampled parameter values, Min and Max included.
func (p *ParameterSweep) Values() []float64 {
	if p.NumSteps == 1 {
		return []float64{p.Min}
	}

	values := make([]float64, p.NumSteps)
	paramStep := (p.Max - p.Min) / float64(p.NumSteps-1)
	for i := range values {
		values[i] = p.Min + float64(i)*paramStep
	}
	values[len(values)-1] = p.Max
	return values
}

// RunSweep executes a parameter sweep, one value after another
func RunSweep(ctx context.Context, sweep *ParameterSweep, log zerolog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one value, got %d", sweep.NumSteps)
	}
	if sweep.Max < sweep.Min {
		return nil, fmt.Errorf("sweep range is empty: [%g, %g]", sweep.Min, sweep.Max)
	}

	base := sweep.Base
	if base == nil {
		base = config.DefaultConfig()
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i, v := range sweep.Values() {
		params, err := base.Params.With(sweep.Param, v)
		if err != nil {
			return nil, err
		}

		cfg := *base
		cfg.Params = params
		if err := cfg.Validate(); err != nil {
			return results, err
		}

		result, err := Solve(ctx, &cfg, log)
		var convErr *dynamo.ConvergenceError
		if err != nil && !errors.As(err, &convErr) {
			return results, err
		}

		results = append(results, SweepResult{
			Value:     v,
			Final:     result.Final,
			Step:      result.Step,
			Halvings:  result.Halvings(),
			Converged: result.Converged,
			Peak:      result.Metrics["peak_infected"],
		})

		log.Info().
			Int("value", i+1).
			Int("of", sweep.NumSteps).
			Str("param", sweep.Param).
			Float64(sweep.Param, v).
			Msg("sweep value done")
	}

	return results, nil
}
