package metrics

import "github.com/san-kum/seird/internal/dynamo"

// Positivity is the share of steps on which every compartment stayed >= 0.
// A value under 1 means the step is too coarse for the trajectory to be
// physically meaningful.
type Positivity struct {
	name       string
	violations int
	samples    int
}

func NewPositivity() *Positivity {
	return &Positivity{name: "positivity"}
}

func (p *Positivity) Name() string {
	return p.name
}

func (p *Positivity) OnStep(x dynamo.State, t float64) {
	p.samples++
	if !x.NonNegative() {
		p.violations++
	}
}

func (p *Positivity) Value() float64 {
	if p.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(p.violations)/float64(p.samples)
}

func (p *Positivity) Reset() {
	p.violations = 0
	p.samples = 0
}
