package models

import (
	"fmt"
	"math"

	"github.com/san-kum/seird/internal/dynamo"
)

// Params are the epidemiological rate constants of the SEIR-D system.
type Params struct {
	Mortality            float64 `yaml:"mortality" toml:"mortality" json:"mortality"`
	InfectedRecovery     float64 `yaml:"infected_recovery" toml:"infected_recovery" json:"infected_recovery"`
	ExposedRecovery      float64 `yaml:"exposed_recovery" toml:"exposed_recovery" json:"exposed_recovery"`
	ExposedTransmission  float64 `yaml:"exposed_transmission" toml:"exposed_transmission" json:"exposed_transmission"`
	InfectedTransmission float64 `yaml:"infected_transmission" toml:"infected_transmission" json:"infected_transmission"`
	SymptomOnset         float64 `yaml:"symptom_onset" toml:"symptom_onset" json:"symptom_onset"`
	Reinfection          float64 `yaml:"reinfection" toml:"reinfection" json:"reinfection"`
	Contact              float64 `yaml:"contact" toml:"contact" json:"contact"`
}

// DefaultParams returns the COVID-19 rates fitted for the Novosibirsk region.
func DefaultParams() Params {
	return Params{
		Mortality:            0.0188,
		InfectedRecovery:     0.999,
		ExposedRecovery:      0.952,
		ExposedTransmission:  0.999,
		InfectedTransmission: 0.999,
		SymptomOnset:         0.042,
		Reinfection:          0,
		Contact:              1,
	}
}

func (p Params) Map() map[string]float64 {
	return map[string]float64{
		"mortality":             p.Mortality,
		"infected_recovery":     p.InfectedRecovery,
		"exposed_recovery":      p.ExposedRecovery,
		"exposed_transmission":  p.ExposedTransmission,
		"infected_transmission": p.InfectedTransmission,
		"symptom_onset":         p.SymptomOnset,
		"reinfection":           p.Reinfection,
		"contact":               p.Contact,
	}
}

// With returns a copy of p with the named rate replaced.
func (p Params) With(name string, v float64) (Params, error) {
	switch name {
	case "mortality":
		p.Mortality = v
	case "infected_recovery":
		p.InfectedRecovery = v
	case "exposed_recovery":
		p.ExposedRecovery = v
	case "exposed_transmission":
		p.ExposedTransmission = v
	case "infected_transmission":
		p.InfectedTransmission = v
	case "symptom_onset":
		p.SymptomOnset = v
	case "reinfection":
		p.Reinfection = v
	case "contact":
		p.Contact = v
	default:
		return p, fmt.Errorf("unknown parameter: %s", name)
	}
	return p, nil
}

// Validate rejects negative and non-finite rates.
func (p Params) Validate() error {
	for name, v := range p.Map() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s = %g", dynamo.ErrParameterBounds, name, v)
		}
	}
	return nil
}

// Initial holds the starting compartment sizes. Susceptible is derived so
// the compartments add up to Population.
type Initial struct {
	Population float64 `yaml:"population" toml:"population" json:"population"`
	Exposed    float64 `yaml:"exposed" toml:"exposed" json:"exposed"`
	Infected   float64 `yaml:"infected" toml:"infected" json:"infected"`
	Recovered  float64 `yaml:"recovered" toml:"recovered" json:"recovered"`
	Deceased   float64 `yaml:"deceased" toml:"deceased" json:"deceased"`
}

func DefaultInitial() Initial {
	return Initial{
		Population: 2798170,
		Exposed:    99,
		Infected:   0,
		Recovered:  24,
		Deceased:   0,
	}
}

func (in Initial) Susceptible() float64 {
	return in.Population - in.Infected - in.Exposed - in.Recovered - in.Deceased
}

func (in Initial) State() dynamo.State {
	return dynamo.State{
		S: in.Susceptible(),
		E: in.Exposed,
		I: in.Infected,
		R: in.Recovered,
		D: in.Deceased,
	}
}

func (in Initial) Validate() error {
	if in.Population <= 0 {
		return fmt.Errorf("%w: population must be positive, got %g", dynamo.ErrParameterBounds, in.Population)
	}
	for name, v := range map[string]float64{
		"exposed":   in.Exposed,
		"infected":  in.Infected,
		"recovered": in.Recovered,
		"deceased":  in.Deceased,
	} {
		if v < 0 {
			return fmt.Errorf("%w: initial %s must be non-negative, got %g", dynamo.ErrParameterBounds, name, v)
		}
	}
	if in.Susceptible() < 0 {
		return fmt.Errorf("%w: initial compartments exceed population %g", dynamo.ErrParameterBounds, in.Population)
	}
	return nil
}

// SEIRD is the five-compartment epidemic model. It holds its rates by value
// and never changes them.
type SEIRD struct {
	p Params
}

func NewSEIRD(p Params) *SEIRD {
	return &SEIRD{p: p}
}

func (m *SEIRD) Params() Params { return m.p }

// Derive evaluates the right-hand side at x. N is taken from x itself, and
// nothing is clamped: negative or oversized compartments pass straight through.
func (m *SEIRD) Derive(x dynamo.State) dynamo.State {
	n := x.Total()
	infection := m.p.Contact * (m.p.InfectedTransmission*x.S*x.I + m.p.ExposedTransmission*x.S*x.E) / n

	return dynamo.State{
		S: -infection + m.p.Reinfection*x.R,
		E: infection - (m.p.SymptomOnset+m.p.ExposedRecovery)*x.E,
		I: m.p.SymptomOnset*x.E - m.p.InfectedRecovery*x.I - m.p.Mortality*x.I,
		R: m.p.InfectedRecovery*x.I + m.p.ExposedRecovery*x.E - m.p.Reinfection*x.R,
		D: m.p.Mortality * x.I,
	}
}
