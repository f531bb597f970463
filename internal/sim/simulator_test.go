package sim_test

import (
	"bytes"
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/seird/internal/dynamo"
	"github.com/san-kum/seird/internal/integrators"
	"github.com/san-kum/seird/internal/metrics"
	"github.com/san-kum/seird/internal/models"
	"github.com/san-kum/seird/internal/sim"
)

type blowUp struct{}

func (b *blowUp) Derive(x dynamo.State) dynamo.State {
	return dynamo.State{S: math.Inf(1)}
}

type passCounter struct{ steps int }

func (p *passCounter) OnStep(x dynamo.State, t float64) { p.steps++ }

var _ = Describe("Simulator", func() {
	var (
		in  models.Initial
		dyn *models.SEIRD
		cfg dynamo.Config
	)

	BeforeEach(func() {
		in = models.DefaultInitial()
		dyn = models.NewSEIRD(models.DefaultParams())
		cfg = dynamo.DefaultConfig()
	})

	newSimulator := func() *sim.Simulator {
		return sim.New(dyn, integrators.NewHeun())
	}

	Describe("the default Novosibirsk run", func() {
		It("converges after eight halvings", func() {
			result, err := newSimulator().Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Converged).To(BeTrue())
			Expect(result.Halvings()).To(Equal(8))
			Expect(result.Step).To(Equal(1.0 / 256))
			Expect(result.Final.D).To(BeNumerically("~", 60.98196, 1e-4))
			Expect(result.Final.Total()).To(BeNumerically("~", in.Population, in.Population*1e-6))
		})

		It("records each halving with a shrinking delta", func() {
			result, err := newSimulator().Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())

			first := result.Attempts[0]
			Expect(first.Index).To(Equal(0))
			Expect(first.Step).To(Equal(1.0))
			Expect(first.Stats.Steps).To(Equal(91))

			for i := 1; i < len(result.Attempts); i++ {
				a := result.Attempts[i]
				Expect(a.Index).To(Equal(i))
				Expect(a.Step).To(Equal(result.Attempts[i-1].Step / 2))
				if i > 1 {
					Expect(a.Delta).To(BeNumerically("<=", result.Attempts[i-1].Delta))
				}
			}

			last := result.Attempts[len(result.Attempts)-1]
			Expect(last.Delta).To(BeNumerically("<=", cfg.Tolerance))
			Expect(result.Attempts[len(result.Attempts)-2].Delta).To(BeNumerically(">", cfg.Tolerance))
		})

		It("is deterministic", func() {
			a, err := newSimulator().Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())
			b, err := newSimulator().Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Final).To(Equal(b.Final))
			Expect(a.Attempts).To(Equal(b.Attempts))
		})

		It("behaves the same without a cap", func() {
			cfg.MaxHalvings = 0
			result, err := newSimulator().Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Halvings()).To(Equal(8))
		})
	})

	Describe("metrics and observers", func() {
		It("reports the final pass values", func() {
			s := newSimulator()
			for _, m := range metrics.Defaults(in.Population) {
				s.AddMetric(m)
			}
			counter := &passCounter{}
			s.AddObserver(counter)

			result, err := s.Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Metrics).To(HaveKeyWithValue("positivity", 1.0))
			Expect(result.Metrics).To(HaveKeyWithValue("deceased_decreases", 0.0))
			Expect(result.Metrics["population_drift"]).To(BeNumerically("<", 1e-6))

			total := 0
			for _, a := range result.Attempts {
				total += a.Stats.Steps
			}
			Expect(counter.steps).To(Equal(total))
		})

		It("streams attempts to the callback", func() {
			s := newSimulator()
			var seen []int
			s.OnAttempt(func(a dynamo.Attempt) { seen = append(seen, a.Index) })

			result, err := s.Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(HaveLen(len(result.Attempts)))
			Expect(seen[0]).To(Equal(0))
		})

		It("logs every pass at debug level", func() {
			var buf bytes.Buffer
			s := newSimulator().WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			_, err := s.Run(context.Background(), in.State(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring(`"message":"pass complete"`))
			Expect(buf.String()).To(ContainSubstring(`"message":"converged"`))
		})
	})

	Describe("failure modes", func() {
		It("stops at the halving cap", func() {
			cfg.MaxHalvings = 3
			result, err := newSimulator().Run(context.Background(), in.State(), cfg)

			Expect(err).To(MatchError(dynamo.ErrNotConverged))
			var convErr *dynamo.ConvergenceError
			Expect(errors.As(err, &convErr)).To(BeTrue())
			Expect(convErr.Attempts).To(Equal(3))
			Expect(convErr.Step).To(Equal(0.125))
			Expect(convErr.LastDelta).To(BeNumerically(">", cfg.Tolerance))

			Expect(result.Converged).To(BeFalse())
			Expect(result.Attempts).To(HaveLen(4))
		})

		It("gives up when the context is canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			result, err := newSimulator().Run(ctx, in.State(), cfg)
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(result.Attempts).To(HaveLen(1))
		})

		It("refuses a step whose pass would overflow the step count", func() {
			cfg.Step = 1e-300
			result, err := newSimulator().Run(context.Background(), in.State(), cfg)

			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			Expect(result).To(BeNil())
		})

		It("stops halving before a pass exceeds the step limit", func() {
			cfg.Start, cfg.End = 0, 1
			cfg.Step = 1.5 / float64(dynamo.MaxSteps)
			cfg.MaxHalvings = 0
			s := sim.New(models.NewSEIRD(models.DefaultParams()), frozen{})

			result, err := s.Run(context.Background(), in.State(), cfg)
			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			Expect(result.Converged).To(BeFalse())
			Expect(result.Attempts).To(HaveLen(1))
		})

		It("rejects a pass that leaves the finite range", func() {
			s := sim.New(&blowUp{}, integrators.NewHeun())
			_, err := s.Run(context.Background(), in.State(), cfg)

			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			var simErr *dynamo.SimError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Attempt).To(Equal(0))
		})

		DescribeTable("invalid configs",
			func(mutate func(c *dynamo.Config)) {
				mutate(&cfg)
				result, err := newSimulator().Run(context.Background(), in.State(), cfg)
				Expect(err).To(HaveOccurred())
				Expect(result).To(BeNil())
			},
			Entry("zero step", func(c *dynamo.Config) { c.Step = 0 }),
			Entry("negative step", func(c *dynamo.Config) { c.Step = -1 }),
			Entry("empty horizon", func(c *dynamo.Config) { c.End = c.Start }),
			Entry("zero tolerance", func(c *dynamo.Config) { c.Tolerance = 0 }),
			Entry("negative cap", func(c *dynamo.Config) { c.MaxHalvings = -1 }),
			Entry("step below the pass limit", func(c *dynamo.Config) { c.Step = 1e-300 }),
		)
	})
})

// frozen returns the initial state without stepping.
type frozen struct{}

func (frozen) Integrate(dyn dynamo.System, x0 dynamo.State, start, end, h float64, exact bool, observers ...dynamo.Observer) (dynamo.State, dynamo.Stats) {
	return x0, dynamo.Stats{}
}
