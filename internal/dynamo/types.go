package dynamo

import "math"

// MaxSteps bounds the number of steps in one pass. A step small enough to
// need more is rejected before the pass starts.
const MaxSteps = 1 << 40

// State holds the five sub-populations at one point in simulated time.
type State struct {
	S float64 `json:"s" yaml:"s" toml:"s"`
	E float64 `json:"e" yaml:"e" toml:"e"`
	I float64 `json:"i" yaml:"i" toml:"i"`
	R float64 `json:"r" yaml:"r" toml:"r"`
	D float64 `json:"d" yaml:"d" toml:"d"`
}

func (s State) Add(other State) State {
	return State{
		S: s.S + other.S,
		E: s.E + other.E,
		I: s.I + other.I,
		R: s.R + other.R,
		D: s.D + other.D,
	}
}

func (s State) Scale(factor float64) State {
	return State{
		S: s.S * factor,
		E: s.E * factor,
		I: s.I * factor,
		R: s.R * factor,
		D: s.D * factor,
	}
}

// Total is S+E+I+R+D, the quantity the continuous model conserves.
func (s State) Total() float64 {
	return s.S + s.E + s.I + s.R + s.D
}

func (s State) IsValid() bool {
	for _, v := range s.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NonNegative reports whether every compartment is >= 0.
func (s State) NonNegative() bool {
	return s.S >= 0 && s.E >= 0 && s.I >= 0 && s.R >= 0 && s.D >= 0
}

// Vector returns the compartments in S, E, I, R, D order.
func (s State) Vector() []float64 {
	return []float64{s.S, s.E, s.I, s.R, s.D}
}

// System is an autonomous ODE right-hand side.
type System interface {
	Derive(x State) State
}

// Integrator runs one fixed-step pass over [start, end].
type Integrator interface {
	Integrate(dyn System, x0 State, start, end, h float64, exact bool, observers ...Observer) (State, Stats)
}

type Observer interface {
	OnStep(x State, t float64)
}

type Metric interface {
	Observer
	Name() string
	Value() float64
	Reset()
}

// Config describes the time grid and the convergence target.
type Config struct {
	Start     float64
	End       float64
	Step      float64
	Tolerance float64
	// MaxHalvings caps the outer loop; zero means no cap.
	MaxHalvings int
	// ExactHorizon drops the extra step past End and shortens the last step
	// so the final state lands on End.
	ExactHorizon bool
}

func DefaultConfig() Config {
	return Config{
		Start:       0,
		End:         90,
		Step:        1,
		Tolerance:   1e-2,
		MaxHalvings: 30,
	}
}

// Stats summarises one integration pass.
type Stats struct {
	Steps       int     `json:"steps"`
	Evaluations int     `json:"evaluations"`
	LastStep    float64 `json:"last_step"`
	Time        float64 `json:"time"`
}

// Attempt records one full pass of the convergence loop. Index 0 is the
// initial pass and carries no delta.
type Attempt struct {
	Index    int     `json:"index"`
	Step     float64 `json:"step"`
	Delta    float64 `json:"delta"`
	Deceased float64 `json:"deceased"`
	Stats    Stats   `json:"stats"`
}

type Result struct {
	Final     State              `json:"final"`
	Step      float64            `json:"step"`
	Converged bool               `json:"converged"`
	Attempts  []Attempt          `json:"attempts"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Halvings is the number of attempts after the initial pass.
func (r *Result) Halvings() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return len(r.Attempts) - 1
}
