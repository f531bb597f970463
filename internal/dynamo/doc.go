// Package dynamo provides the core simulation primitives for the SEIR-D solver.
//
// The package defines the value types shared by the model, the integrator and
// the convergence loop:
//
//   - [State]: the five compartments S, E, I, R, D at one instant
//   - [System]: interface for autonomous ODE systems (dX/dt = f(X))
//   - [Observer]: per-step hook called with every committed state
//   - [Config]: time horizon, initial step, tolerance and halving cap
//   - [Result]: converged state plus the sequence of attempts
//
// # Example
//
//	dyn := models.NewSEIRD(models.DefaultParams())
//	s := sim.New(dyn, integrators.NewHeun())
//	result, err := s.Run(ctx, models.DefaultInitial().State(), dynamo.DefaultConfig())
//
// # Thread Safety
//
// State is a plain value and is safe to copy between goroutines. Integrators
// and simulators are NOT thread-safe; give each goroutine its own.
package dynamo
