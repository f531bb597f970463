package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/seird/internal/analysis"
	"github.com/san-kum/seird/internal/automation"
	"github.com/san-kum/seird/internal/config"
	"github.com/san-kum/seird/internal/dynamo"
	"github.com/san-kum/seird/internal/logging"
	"github.com/san-kum/seird/internal/report"
	"github.com/san-kum/seird/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir      string
	configFile   string
	preset       string
	start        float64
	end          float64
	step         float64
	eps          float64
	maxHalvings  int
	exactHorizon bool
	jsonOut      bool
	save         bool

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
)

var errPopulation = errors.New("population check failed")

// main runs the seird command tree and exits with status 1 when a command fails.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "seird",
		Short:         "SEIR-D epidemic forecast with step-halving convergence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".seird", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the model until the deceased total converges",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset parameter set")
	runCmd.Flags().Float64Var(&start, "start", config.DefaultStart, "first day")
	runCmd.Flags().Float64Var(&end, "end", config.DefaultEnd, "last day")
	runCmd.Flags().Float64Var(&step, "step", config.DefaultStep, "initial step in days")
	runCmd.Flags().Float64Var(&eps, "eps", config.DefaultTolerance, "convergence tolerance on deceased")
	runCmd.Flags().IntVar(&maxHalvings, "max-halvings", config.DefaultMaxHalvings, "halving cap, 0 for none")
	runCmd.Flags().BoolVar(&exactHorizon, "exact-horizon", false, "stop exactly on the last day instead of one step past it")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run under the data directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available parameter presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&jsonOut, "json", false, "print the results as JSON")
	batchCmd.Flags().BoolVar(&save, "save", false, "store every run under the data directory")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "forecast across a range of one rate",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "base preset")
	sweepCmd.Flags().StringVar(&configFile, "config", "", "base config file (yaml or toml)")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "contact", "rate to vary")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 6, "number of values")
	sweepCmd.Flags().BoolVar(&jsonOut, "json", false, "print the results as JSON")

	rootCmd.AddCommand(runCmd, presetsCmd, listCmd, showCmd, batchCmd, sweepCmd)
	return rootCmd
}

func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	// Config file overrides preset.
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// CLI flags override both.
	if cmd.Flags().Changed("start") {
		cfg.Start = start
	}
	if cmd.Flags().Changed("end") {
		cfg.End = end
	}
	if cmd.Flags().Changed("step") {
		cfg.Step = step
	}
	if cmd.Flags().Changed("eps") {
		cfg.Tolerance = eps
	}
	if cmd.Flags().Changed("max-halvings") {
		cfg.MaxHalvings = maxHalvings
	}
	if cmd.Flags().Changed("exact-horizon") {
		cfg.ExactHorizon = exactHorizon
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type runOutput struct {
	Config       *config.Config `json:"config"`
	Result       *dynamo.Result `json:"result"`
	PopulationOK bool           `json:"population_ok"`
	Extrapolated *float64       `json:"extrapolated,omitempty"`
	RunID        string         `json:"run_id,omitempty"`
	Error        string         `json:"error,omitempty"`
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New("seird", os.Stderr, logging.ProfileRuntime)

	s := automation.NewSimulator(cfg, logger)

	out := cmd.OutOrStdout()
	printer := report.NewPrinter(out)
	if !jsonOut {
		printer.InitialConditions(cfg.Initial, cfg.Start, cfg.End)
		printer.Solving()
		s.OnAttempt(printer.Attempt)
	}

	logger.Debug().
		Str("name", cfg.Name).
		Float64("step", cfg.Step).
		Float64("tolerance", cfg.Tolerance).
		Int("max_halvings", cfg.MaxHalvings).
		Msg("starting run")

	result, runErr := s.Run(cmd.Context(), cfg.Initial.State(), cfg.SimConfig())
	if result == nil {
		return runErr
	}

	var convErr *dynamo.ConvergenceError
	if runErr != nil && !errors.As(runErr, &convErr) {
		return runErr
	}

	_, popOK := report.CheckPopulation(result.Final, cfg.Initial.Population)
	limit, hasLimit := analysis.Extrapolate(result.Attempts)

	var runID string
	if save {
		runID, err = saveRun(cfg, result)
		if err != nil {
			return err
		}
		logger.Info().Str("run_id", runID).Msg("run saved")
	}

	if jsonOut {
		payload := runOutput{Config: cfg, Result: result, PopulationOK: popOK, RunID: runID}
		if hasLimit {
			payload.Extrapolated = &limit
		}
		if runErr != nil {
			payload.Error = runErr.Error()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return err
		}
	} else {
		if runErr != nil {
			printer.NotConverged(runErr)
		}
		printer.Forecast(result.Final, cfg.End)
		if hasLimit {
			orders := analysis.ObservedOrder(result.Attempts)
			printer.Estimate(limit, orders[len(orders)-1])
		}
		printer.Population(result.Final, cfg.Initial.Population)
		if runID != "" {
			fmt.Fprintf(out, " run id: %s\n", runID)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !popOK {
		return errPopulation
	}
	return nil
}

func saveRun(cfg *config.Config, result *dynamo.Result) (string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(cfg, result)
}

type batchOutput struct {
	Name      string       `json:"name"`
	Converged bool         `json:"converged"`
	Step      float64      `json:"step"`
	Halvings  int          `json:"halvings"`
	Final     dynamo.State `json:"final"`
	RunID     string       `json:"run_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	logger := logging.New("seird", os.Stderr, logging.ProfileRuntime)
	results, err := automation.RunScenario(cmd.Context(), scenario, logger)
	if err != nil {
		return err
	}

	rows := make([]batchOutput, 0, len(results))
	for _, r := range results {
		row := batchOutput{
			Name:      r.Name,
			Converged: r.Result.Converged,
			Step:      r.Result.Step,
			Halvings:  r.Result.Halvings(),
			Final:     r.Result.Final,
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		if save {
			if row.RunID, err = saveRun(r.Config, r.Result); err != nil {
				return err
			}
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if scenario.Name != "" {
		fmt.Fprintf(out, "scenario %s: %d steps\n", scenario.Name, len(rows))
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTEP\tHALVINGS\tCONVERGED\tDECEASED\tRUN")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%g\t%d\t%v\t%.2f\t%s\n",
			row.Name, row.Step, row.Halvings, row.Converged, row.Final.D, row.RunID)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New("seird", os.Stderr, logging.ProfileRuntime)
	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:     base,
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
	}, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEP\tHALVINGS\tCONVERGED\tPEAK_I\tDECEASED\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%g\t%d\t%v\t%.2f\t%.2f\n",
			r.Value, r.Step, r.Halvings, r.Converged, r.Peak, r.Final.D)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTACT\tMORTALITY\tREINFECTION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name).Params
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", name, p.Contact, p.Mortality, p.Reinfection)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDAYS\tSTEP\tHALVINGS\tCONVERGED\tDECEASED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g-%g\t%g\t%d\t%v\t%.2f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Config.Start,
			run.Config.End,
			run.Step,
			run.Halvings,
			run.Converged,
			run.Final.D,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	attempts, err := st.LoadAttempts(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*storage.RunMetadata
		Attempts []dynamo.Attempt `json:"attempts"`
	}{meta, attempts})
}
