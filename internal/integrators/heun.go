package integrators

import (
	"math"

	"github.com/san-kum/seird/internal/dynamo"
)

// Heun is the improved Euler (trapezoidal predictor-corrector) method.
type Heun struct {
	predictor *Euler
	evals     int
}

func NewHeun() *Heun {
	return &Heun{predictor: NewEuler()}
}

// Step returns x + h/2 * (f(x) + f(x + h*f(x))).
func (hn *Heun) Step(dyn dynamo.System, x dynamo.State, h float64) dynamo.State {
	k1 := dyn.Derive(x)
	predicted := hn.predictor.advance(x, k1, h)
	k2 := dyn.Derive(predicted)
	hn.evals += 2

	return x.Add(k1.Add(k2).Scale(h / 2))
}

// StepCount is the number of steps one pass takes over [start, end].
//
// By default it is ceil((end-start)/h) + 1, which carries the state one step
// past end. With exact set the extra step is dropped. The result saturates
// at dynamo.MaxSteps.
func StepCount(start, end, h float64, exact bool) int {
	if h <= 0 || end <= start {
		return 0
	}
	q := (end - start) / h
	if !(q < dynamo.MaxSteps) {
		return dynamo.MaxSteps
	}
	if exact {
		// Absorb rounding so an exact multiple does not gain a zero-length step.
		return int(math.Ceil(q - 1e-9))
	}
	return int(math.Ceil(q)) + 1
}

// Integrate advances x0 across [start, end] with a fixed step h and returns
// the last committed state. Observers see every committed state; nothing is
// retained between steps.
func (hn *Heun) Integrate(dyn dynamo.System, x0 dynamo.State, start, end, h float64, exact bool, observers ...dynamo.Observer) (dynamo.State, dynamo.Stats) {
	n := StepCount(start, end, h, exact)
	hn.evals = 0

	x := x0
	t := start
	step := h
	for k := 0; k < n; k++ {
		step = h
		if exact && k == n-1 {
			step = end - (start + float64(k)*h)
		}

		x = hn.Step(dyn, x, step)
		if exact && k == n-1 {
			t = end
		} else {
			t = start + float64(k+1)*h
		}

		for _, obs := range observers {
			obs.OnStep(x, t)
		}
	}

	return x, dynamo.Stats{
		Steps:       n,
		Evaluations: hn.evals,
		LastStep:    step,
		Time:        t,
	}
}
