package report

import (
	"fmt"
	"io"
	"math"

	"github.com/san-kum/seird/internal/dynamo"
	"github.com/san-kum/seird/internal/models"
)

// Printer writes the run transcript: the initial data, one line per
// halving, the forecast and the population check.
type Printer struct {
	w      io.Writer
	styles Styles
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styles: NewStyles(w)}
}

func (p *Printer) row(label string, value any, note string) {
	fmt.Fprintf(p.w, " %s %s %s\n",
		p.styles.Label.Render(label+" ="),
		p.styles.Value.Render(fmt.Sprint(value)),
		p.styles.Subtle.Render("("+note+")"))
}

func (p *Printer) InitialConditions(in models.Initial, start, end float64) {
	fmt.Fprintf(p.w, "\n %s\n", p.styles.Title.Render("SEIR-D model input"))
	p.row("N0", floor(in.Population), "total population")
	p.row("S0", floor(in.Susceptible()), "susceptible")
	p.row("E0", floor(in.Exposed), "exposed, asymptomatic")
	p.row("I0", floor(in.Infected), "infected, symptomatic")
	p.row("R0", floor(in.Recovered), "recovered")
	p.row("D0", floor(in.Deceased), "deceased")
	fmt.Fprintf(p.w, " a = %d (first day), b = %d (last day)\n\n", floor(start), floor(end))
}

func (p *Printer) Solving() {
	fmt.Fprintf(p.w, " %s\n", p.styles.Title.Render("Solving the system..."))
}

// Attempt prints one halving line. The initial pass has no delta and is skipped.
func (p *Printer) Attempt(a dynamo.Attempt) {
	if a.Index == 0 {
		return
	}
	fmt.Fprintf(p.w, " %d: delta = %f, h = %f\n", a.Index, a.Delta, a.Step)
}

func (p *Printer) Forecast(final dynamo.State, end float64) {
	fmt.Fprintf(p.w, "\n %s\n", p.styles.Title.Render(fmt.Sprintf("SEIR-D forecast for day %d", floor(end))))
	p.row("S", floor(final.S), "susceptible")
	p.row("E", floor(final.E), "exposed, asymptomatic")
	p.row("I", floor(final.I), "infected, symptomatic")
	p.row("R", floor(final.R), "recovered")
	p.row("D", floor(final.D), "deceased")
}

// Estimate prints the extrapolated step-free deceased total.
func (p *Printer) Estimate(limit, order float64) {
	fmt.Fprintf(p.w, " %s %s %s\n",
		p.styles.Label.Render("D(h->0) ~"),
		p.styles.Value.Render(fmt.Sprintf("%.6f", limit)),
		p.styles.Subtle.Render(fmt.Sprintf("(observed order %.2f)", order)))
}

func (p *Printer) NotConverged(err error) {
	fmt.Fprintf(p.w, "\n %s %v\n", p.styles.Error.Render("Error!"), err)
}

// Population prints the outcome of CheckPopulation and returns it.
func (p *Printer) Population(final dynamo.State, population float64) bool {
	n, ok := CheckPopulation(final, population)
	if ok {
		fmt.Fprintf(p.w, " N = %d = N0 = %d\n %s\n\n", n, floor(population), p.styles.OK.Render("The whole population is accounted for."))
	} else {
		fmt.Fprintf(p.w, " %s\n N = %d != N0 = %d\n\n", p.styles.Error.Render("Error!"), n, floor(population))
	}
	return ok
}

// CheckPopulation rounds S+E+I+R+D to the nearest person and compares it
// with the initial population.
func CheckPopulation(final dynamo.State, population float64) (int64, bool) {
	n := int64(math.Round(final.Total()))
	return n, n == int64(math.Round(population))
}

func floor(v float64) int64 {
	return int64(math.Floor(v))
}
