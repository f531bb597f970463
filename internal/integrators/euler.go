package integrators

import "github.com/san-kum/seird/internal/dynamo"

// Euler is the explicit predictor stage. Every compartment is advanced from
// the same pre-step state.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, h float64) dynamo.State {
	return e.advance(x, dyn.Derive(x), h)
}

func (e *Euler) advance(x, dx dynamo.State, h float64) dynamo.State {
	return x.Add(dx.Scale(h))
}
