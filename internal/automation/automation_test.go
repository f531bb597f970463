package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/san-kum/seird/internal/config"
	"github.com/san-kum/seird/internal/dynamo"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "short.toml", "name = \"short\"\nend = 30.0\n")
	path := writeFile(t, dir, "scenario.yaml", `name: lockdown
description: baseline against halved contact
steps:
  - preset: novosibirsk
  - preset: isolation
    name: isolation-early
    overrides:
      end: 45
      max_halvings: 2
      params:
        contact: 0.25
  - config: short.toml
`)

	scenario, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if scenario.Name != "lockdown" || len(scenario.Steps) != 3 {
		t.Fatalf("unexpected scenario: %+v", scenario)
	}

	cfg, err := scenario.Resolve(scenario.Steps[1])
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Name != "isolation-early" {
		t.Errorf("expected step name to win, got %s", cfg.Name)
	}
	if cfg.End != 45 || cfg.MaxHalvings != 2 || cfg.Params.Contact != 0.25 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Params.Mortality != 0.0188 || cfg.Step != config.DefaultStep {
		t.Errorf("overrides must keep untouched fields: %+v", cfg)
	}

	cfg, err = scenario.Resolve(scenario.Steps[2])
	if err != nil {
		t.Fatalf("resolve relative config failed: %v", err)
	}
	if cfg.Name != "short" || cfg.End != 30 {
		t.Errorf("expected short.toml, got %+v", cfg)
	}
}

func TestLoadScenarioRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no steps", "name: empty\n"},
		{"bad yaml", "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "scenario.yaml", tt.content)
			if _, err := LoadScenario(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResolveRejects(t *testing.T) {
	scenario := &Scenario{}
	tests := []struct {
		name string
		step ScenarioStep
	}{
		{"unknown preset", ScenarioStep{Preset: "nope"}},
		{"missing config", ScenarioStep{Config: "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := scenario.Resolve(tt.step); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.yaml", `name: compare
steps:
  - preset: novosibirsk
  - preset: novosibirsk
    name: capped
    overrides:
      max_halvings: 2
`)

	scenario, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	results, err := RunScenario(context.Background(), scenario, zerolog.Nop())
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Err != nil || !results[0].Result.Converged {
		t.Errorf("expected first step to converge, got %v", results[0].Err)
	}
	if math.Abs(results[0].Result.Final.D-60.98196) > 1e-3 {
		t.Errorf("expected D ~60.98196, got %f", results[0].Result.Final.D)
	}

	if !errors.Is(results[1].Err, dynamo.ErrNotConverged) {
		t.Errorf("expected capped step to report ErrNotConverged, got %v", results[1].Err)
	}
	if results[1].Name != "capped" || results[1].Result.Halvings() != 2 {
		t.Errorf("unexpected capped result: %s, %d halvings", results[1].Name, results[1].Result.Halvings())
	}
}

func TestRunScenarioStopsOnBadStep(t *testing.T) {
	scenario := &Scenario{Steps: []ScenarioStep{{Preset: "novosibirsk", Name: "ok"}, {Preset: "nope"}}}

	results, err := RunScenario(context.Background(), scenario, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(results) != 1 {
		t.Errorf("expected the completed step to be kept, got %d", len(results))
	}
}

func TestSweepValues(t *testing.T) {
	tests := []struct {
		sweep ParameterSweep
		want  []float64
	}{
		{ParameterSweep{Min: 0.5, Max: 1, NumSteps: 3}, []float64{0.5, 0.75, 1}},
		{ParameterSweep{Min: 0.2, Max: 0.4, NumSteps: 1}, []float64{0.2}},
		{ParameterSweep{Min: 0, Max: 0.3, NumSteps: 4}, []float64{0, 0.1, 0.2, 0.3}},
	}

	for _, tt := range tests {
		got := tt.sweep.Values()
		if len(got) != len(tt.want) {
			t.Fatalf("expected %d values, got %d", len(tt.want), len(got))
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("value %d: expected %g, got %g", i, tt.want[i], got[i])
			}
		}
	}
}

func TestRunSweepContact(t *testing.T) {
	sweep := &ParameterSweep{Param: "contact", Min: 0.5, Max: 1, NumSteps: 3}

	results, err := RunSweep(context.Background(), sweep, zerolog.Nop())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].Final.D <= results[i-1].Final.D {
			t.Errorf("deceased should grow with contact: %g then %g", results[i-1].Final.D, results[i].Final.D)
		}
	}

	// At half contact the outbreak dies out and one halving is enough.
	if results[0].Halvings != 1 || results[0].Final.D > 1 {
		t.Errorf("unexpected half-contact result: %+v", results[0])
	}

	last := results[2]
	if !last.Converged || last.Halvings != 8 {
		t.Errorf("expected default contact to converge after 8 halvings, got %+v", last)
	}
	if math.Abs(last.Final.D-60.98196) > 1e-3 {
		t.Errorf("expected D ~60.98196, got %f", last.Final.D)
	}
	if last.Peak <= 0 {
		t.Errorf("expected a positive infected peak, got %f", last.Peak)
	}
}

func TestRunSweepRejects(t *testing.T) {
	tests := []struct {
		name  string
		sweep ParameterSweep
	}{
		{"unknown param", ParameterSweep{Param: "gamma", Min: 0, Max: 1, NumSteps: 2}},
		{"no values", ParameterSweep{Param: "contact", Min: 0, Max: 1}},
		{"inverted range", ParameterSweep{Param: "contact", Min: 1, Max: 0, NumSteps: 2}},
		{"negative rate", ParameterSweep{Param: "mortality", Min: -1, Max: 0, NumSteps: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunSweep(context.Background(), &tt.sweep, zerolog.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
