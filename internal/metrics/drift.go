package metrics

import (
	"math"

	"github.com/san-kum/seird/internal/dynamo"
)

// PopulationDrift tracks the largest relative gap between S+E+I+R+D and the
// reference population seen during a pass.
type PopulationDrift struct {
	name       string
	population float64
	maxDrift   float64
}

func NewPopulationDrift(population float64) *PopulationDrift {
	return &PopulationDrift{
		name:       "population_drift",
		population: population,
	}
}

func (p *PopulationDrift) Name() string { return p.name }

func (p *PopulationDrift) OnStep(x dynamo.State, t float64) {
	if p.population == 0 {
		return
	}
	drift := math.Abs(x.Total()-p.population) / math.Abs(p.population)
	p.maxDrift = math.Max(p.maxDrift, drift)
}

func (p *PopulationDrift) Value() float64 {
	return p.maxDrift
}

func (p *PopulationDrift) Reset() {
	p.maxDrift = 0
}
