package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/san-kum/seird/internal/dynamo"
)

// Simulator drives an integrator to a converged answer by halving the step
// and restarting from the same initial state until two successive deceased
// totals agree within the tolerance.
type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	onAttempt  func(dynamo.Attempt)
	log        zerolog.Logger
}

func New(dyn dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        zerolog.Nop(),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// OnAttempt registers fn to be called after every completed pass.
func (s *Simulator) OnAttempt(fn func(dynamo.Attempt)) { s.onAttempt = fn }

func (s *Simulator) WithLogger(l zerolog.Logger) *Simulator {
	s.log = l
	return s
}

// Run integrates x0 over the configured horizon, first with cfg.Step and then
// with successively halved steps. Each attempt starts again from x0.
//
// When cfg.MaxHalvings is reached the partial result is returned together
// with a *dynamo.ConvergenceError.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if !x0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}

	result := &dynamo.Result{
		Attempts: make([]dynamo.Attempt, 0),
		Metrics:  make(map[string]float64),
	}

	h := cfg.Step
	x, attempt, err := s.pass(x0, cfg, 0, h)
	if err != nil {
		return result, err
	}
	s.record(result, x, attempt)
	prev := x.D

	for k := 1; ; k++ {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		if cfg.MaxHalvings > 0 && k > cfg.MaxHalvings {
			last := result.Attempts[len(result.Attempts)-1]
			return result, &dynamo.ConvergenceError{
				Attempts:  cfg.MaxHalvings,
				Step:      last.Step,
				LastDelta: last.Delta,
			}
		}

		h /= 2
		if err := checkStep(cfg, h); err != nil {
			return result, err
		}
		x, attempt, err = s.pass(x0, cfg, k, h)
		if err != nil {
			return result, err
		}
		attempt.Delta = math.Abs(x.D - prev)
		prev = x.D
		s.record(result, x, attempt)

		if attempt.Delta <= cfg.Tolerance {
			result.Converged = true
			s.log.Debug().
				Int("halvings", k).
				Float64("step", h).
				Float64("deceased", x.D).
				Msg("converged")
			return result, nil
		}
	}
}

func (s *Simulator) pass(x0 dynamo.State, cfg dynamo.Config, index int, h float64) (dynamo.State, dynamo.Attempt, error) {
	for _, m := range s.metrics {
		m.Reset()
	}

	observers := make([]dynamo.Observer, 0, len(s.metrics)+len(s.observers))
	for _, m := range s.metrics {
		observers = append(observers, m)
	}
	observers = append(observers, s.observers...)

	x, stats := s.integrator.Integrate(s.dyn, x0, cfg.Start, cfg.End, h, cfg.ExactHorizon, observers...)
	if !x.IsValid() {
		return x, dynamo.Attempt{}, &dynamo.SimError{
			Attempt: index,
			Step:    stats.Steps,
			Time:    stats.Time,
			Wrapped: dynamo.ErrInvalidState,
		}
	}

	return x, dynamo.Attempt{
		Index:    index,
		Step:     h,
		Deceased: x.D,
		Stats:    stats,
	}, nil
}

func (s *Simulator) record(result *dynamo.Result, x dynamo.State, attempt dynamo.Attempt) {
	result.Final = x
	result.Step = attempt.Step
	result.Attempts = append(result.Attempts, attempt)
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.Debug().
		Int("attempt", attempt.Index).
		Float64("step", attempt.Step).
		Float64("delta", attempt.Delta).
		Int("steps", attempt.Stats.Steps).
		Msg("pass complete")

	if s.onAttempt != nil {
		s.onAttempt(attempt)
	}
}

func (s *Simulator) validateConfig(cfg dynamo.Config) error {
	if !(cfg.Step > 0) {
		return fmt.Errorf("step must be positive, got %f", cfg.Step)
	}
	if !(cfg.End > cfg.Start) {
		return fmt.Errorf("end must be after start, got [%f, %f]", cfg.Start, cfg.End)
	}
	if !(cfg.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %g", cfg.Tolerance)
	}
	if cfg.MaxHalvings < 0 {
		return fmt.Errorf("max halvings must not be negative, got %d", cfg.MaxHalvings)
	}
	return checkStep(cfg, cfg.Step)
}

func checkStep(cfg dynamo.Config, h float64) error {
	if n := (cfg.End - cfg.Start) / h; !(n < dynamo.MaxSteps) {
		return fmt.Errorf("%w: h=%g needs %g steps, limit %d", dynamo.ErrStepTooSmall, h, n, dynamo.MaxSteps)
	}
	return nil
}
