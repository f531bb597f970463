package metrics

import "github.com/san-kum/seird/internal/dynamo"

// DeceasedDecreases counts steps on which D went down.
type DeceasedDecreases struct {
	name     string
	last     float64
	started  bool
	decrease int
}

func NewDeceasedDecreases() *DeceasedDecreases {
	return &DeceasedDecreases{name: "deceased_decreases"}
}

func (d *DeceasedDecreases) Name() string { return d.name }

func (d *DeceasedDecreases) OnStep(x dynamo.State, t float64) {
	if d.started && x.D < d.last {
		d.decrease++
	}
	d.last = x.D
	d.started = true
}

func (d *DeceasedDecreases) Value() float64 {
	return float64(d.decrease)
}

func (d *DeceasedDecreases) Reset() {
	d.last = 0
	d.started = false
	d.decrease = 0
}

// Defaults returns the metrics every run records.
func Defaults(population float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewPopulationDrift(population),
		NewPositivity(),
		NewDeceasedDecreases(),
		NewPeakInfected(),
	}
}
