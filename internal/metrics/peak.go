package metrics

import "github.com/san-kum/seird/internal/dynamo"

// PeakInfected remembers the largest I seen during a pass and the day it
// occurred.
type PeakInfected struct {
	name string
	peak float64
	day  float64
}

func NewPeakInfected() *PeakInfected {
	return &PeakInfected{name: "peak_infected"}
}

func (p *PeakInfected) Name() string { return p.name }

func (p *PeakInfected) OnStep(x dynamo.State, t float64) {
	if x.I > p.peak {
		p.peak = x.I
		p.day = t
	}
}

func (p *PeakInfected) Value() float64 { return p.peak }

// Day is the time of the peak, or zero when I never rose above zero.
func (p *PeakInfected) Day() float64 { return p.day }

func (p *PeakInfected) Reset() {
	p.peak = 0
	p.day = 0
}
