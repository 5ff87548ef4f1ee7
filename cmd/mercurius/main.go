package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/mercurius/internal/analysis"
	"github.com/san-kum/mercurius/internal/config"
	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/export"
	"github.com/san-kum/mercurius/internal/mercurius"
	"github.com/san-kum/mercurius/internal/metrics"
	"github.com/san-kum/mercurius/internal/sim"
	"github.com/san-kum/mercurius/internal/storage"
)

var (
	dataDir     string
	verbose     bool
	dt          float64
	duration    float64
	seed        int64
	coordinates string
	safeMode    bool
	collisions  bool
	ensemble    int
	perturb     float64
	configFile  string
	preset      string
	noSave      bool
	outFile     string
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mercurius",
		Short:         "hybrid symplectic n-body integrator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mercurius", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&preset, "preset", "planetary/three_body", "preset as category/name")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or ini)")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().StringVar(&coordinates, "coordinates", config.DefaultCoordinates, "democratic heliocentric (dh) or whds")
	runCmd.Flags().BoolVar(&safeMode, "safe", false, "synchronize after every step")
	runCmd.Flags().BoolVar(&collisions, "collisions", false, "merge colliding bodies")
	runCmd.Flags().IntVar(&ensemble, "ensemble", 0, "number of perturbed runs")
	runCmd.Flags().Float64Var(&perturb, "perturb", 1e-6, "relative position perturbation for ensemble runs")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy error of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [category]",
		Short: "list preset categories or the presets of one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw the orbits of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")

	dumpCmd := &cobra.Command{
		Use:   "dump-config [category/name]",
		Short: "write a preset as a yaml config",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpConfig,
	}
	dumpCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, presetsCmd, exportJSONCmd, exportSVGCmd, dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func lookupPreset(name string) (*config.Config, error) {
	category, key, ok := strings.Cut(name, "/")
	if !ok {
		return nil, fmt.Errorf("preset %q: expected category/name", name)
	}
	cfg := config.GetPreset(category, key)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available in %s: %v)", name, category, config.ListPresets(category))
	}
	return cfg, nil
}

// loadConfig resolves the preset or config file and applies the flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg, err = lookupPreset(preset)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("coordinates") {
		cfg.Integrator.Coordinates = coordinates
	}
	if flags.Changed("safe") {
		cfg.Integrator.SafeMode = safeMode
	}
	if flags.Changed("collisions") {
		cfg.Integrator.Collisions = collisions
	}
	if flags.Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSimulator(in sim.Integrator, logger *slog.Logger) *sim.Simulator {
	s := sim.New(in, logger)
	for _, m := range defaultMetrics() {
		s.AddMetric(m)
	}
	return s
}

func defaultMetrics() []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergyDrift(nil),
		metrics.NewAngularMomentumDrift(),
		metrics.NewStability(100),
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if ensemble > 0 {
		return runEnsemble(ctx, cfg, logger)
	}

	sys, err := cfg.System()
	if err != nil {
		return err
	}
	in, err := cfg.NewIntegrator(logger)
	if err != nil {
		return err
	}

	fmt.Printf("running %s with %d bodies...\n", cfg.Name, sys.N())
	start := time.Now()

	result, err := newSimulator(in, logger).Run(ctx, sys, cfg.SimConfig())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	info := storage.RunInfo{
		Name:        cfg.Name,
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Coordinates: cfg.Integrator.Coordinates,
		Stats:       statsMap(in.Stats),
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err = st.Save(info, result)
		if err != nil {
			return err
		}
	}

	fmt.Println(summary(runID, elapsed, sys, in, result))
	if len(result.Energies) > 1 {
		fmt.Println(energyGraph(result.Energies, "relative energy error"))
	}
	return nil
}

func statsMap(s mercurius.Stats) map[string]int {
	return map[string]int{
		"steps":           s.Steps,
		"encounter_steps": s.EncounterSteps,
		"substeps":        s.Substeps,
		"stalls":          s.Stalls,
		"collisions":      s.Collisions,
		"max_encounter_n": s.MaxEncounterN,
	}
}

func summary(runID string, elapsed time.Duration, sys *dynamo.System, in *mercurius.Integrator, result *dynamo.Result) string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	lines := []string{headerStyle.Render("mercurius")}
	if runID != "" {
		lines = append(lines, row("run id", runID))
	}
	lines = append(lines,
		row("elapsed", elapsed.Round(time.Millisecond).String()),
		row("time", fmt.Sprintf("%.4f", sys.T)),
		row("bodies", fmt.Sprintf("%d", sys.N())),
		row("steps", fmt.Sprintf("%d", result.StepsTaken)),
		row("encounter steps", fmt.Sprintf("%d", in.Stats.EncounterSteps)),
		row("substeps", fmt.Sprintf("%d", in.Stats.Substeps)),
		row("collisions", fmt.Sprintf("%d", in.Stats.Collisions)),
		row("energy drift", fmt.Sprintf("%.3e", result.EnergyDrift)),
	)
	for _, name := range []string{"angular_momentum_drift", "stability"} {
		if v, ok := result.Metrics[name]; ok {
			lines = append(lines, row(strings.ReplaceAll(name, "_", " "), fmt.Sprintf("%.3e", v)))
		}
	}
	if in.Stats.Stalls > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d encounter steps stalled", in.Stats.Stalls)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func relativeError(energies []float64) []float64 {
	out := make([]float64, len(energies))
	e0 := energies[0]
	for i, e := range energies {
		if e0 != 0 {
			out[i] = (e - e0) / math.Abs(e0)
		} else {
			out[i] = e - e0
		}
	}
	return out
}

func energyGraph(energies []float64, caption string) string {
	return asciigraph.Plot(relativeError(energies),
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

func runEnsemble(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	setup := func(run int) (*dynamo.System, sim.Integrator, error) {
		sys, err := cfg.System()
		if err != nil {
			return nil, nil, err
		}
		if run > 0 {
			config.Perturb(sys, cfg.Seed+int64(run), perturb)
		}
		in, err := cfg.NewIntegrator(logger.With(slog.Int("run", run)))
		if err != nil {
			return nil, nil, err
		}
		return sys, in, nil
	}

	fmt.Printf("running %d perturbed copies of %s...\n", ensemble, cfg.Name)
	start := time.Now()

	results, err := sim.NewEnsemble(setup, ensemble).WithMetrics(defaultMetrics).Run(ctx, cfg.SimConfig())
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n\n", time.Since(start).Round(time.Millisecond))

	lyapunov := analysis.LyapunovSpectrum(results[0], results)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTEPS\tBODIES\tENERGY DRIFT\tL DRIFT\tSTABILITY\tLYAPUNOV")
	for i, r := range results {
		bodies := 0
		if len(r.Snapshots) > 0 {
			bodies = len(r.Snapshots[len(r.Snapshots)-1])
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%.3e\t%.3e\t%.3f\t%.4f\n",
			i, r.StepsTaken, bodies, r.EnergyDrift,
			r.Metrics["angular_momentum_drift"], r.Metrics["stability"], lyapunov[i])
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tDT\tCOORDS\tBODIES\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.4f\t%s\t%d\t%.2e\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Coordinates,
			run.Bodies,
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	times, energies, err := st.LoadEnergies(runID)
	if err != nil {
		return err
	}
	if len(energies) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("samples: %d (t = %.3f .. %.3f)\n\n", len(energies), times[0], times[len(times)-1])
	fmt.Println(energyGraph(energies, "relative energy error vs time"))

	snaps, snapTimes, err := st.LoadSnapshots(runID)
	if err != nil || len(snaps) == 0 {
		return nil
	}

	periods := analysis.OrbitalPeriods(snaps, snapTimes)
	if len(periods) > 0 {
		ids := make([]int, 0, len(periods))
		for id := range periods {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		fmt.Println("\ndominant periods:")
		for _, id := range ids {
			fmt.Printf("  body %d: %.4f\n", id, periods[id])
		}
	}
	counts := make([]float64, len(snaps))
	for i, s := range snaps {
		counts[i] = float64(len(s))
	}
	if counts[0] != counts[len(counts)-1] {
		fmt.Println()
		fmt.Println(asciigraph.Plot(counts,
			asciigraph.Height(6),
			asciigraph.Width(80),
			asciigraph.Caption("bodies"),
		))
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, c := range config.Categories() {
			fmt.Printf("%s:\n", c)
			for _, p := range config.ListPresets(c) {
				fmt.Printf("  %s/%s\n", c, p)
			}
		}
		return nil
	}

	presets := config.ListPresets(args[0])
	if len(presets) == 0 {
		fmt.Printf("no presets for category: %s\n", args[0])
		return nil
	}
	fmt.Printf("presets for %s:\n", args[0])
	for _, p := range presets {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	snaps, times, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	_, energies, err := st.LoadEnergies(runID)
	if err != nil {
		return err
	}

	info := storage.RunInfo{
		Name:        meta.Name,
		Seed:        meta.Seed,
		Dt:          meta.Dt,
		Duration:    meta.Duration,
		Coordinates: meta.Coordinates,
		Stats:       meta.Stats,
	}
	result := &dynamo.Result{
		Snapshots:   snaps,
		Times:       times,
		Energies:    energies,
		Metrics:     meta.Metrics,
		EnergyDrift: meta.EnergyDrift,
		StepsTaken:  meta.Steps,
	}

	if outFile == "" {
		return storage.ExportJSONStdout(info, result)
	}
	if err := storage.ExportJSON(outFile, info, result); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	snaps, _, err := st.LoadSnapshots(args[0])
	if err != nil {
		return err
	}

	svg := export.OrbitsSVG(snaps, 800, 800)
	if svg == "" {
		return fmt.Errorf("no data to draw")
	}
	if outFile == "" {
		_, err := fmt.Println(svg)
		return err
	}
	if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func dumpConfig(cmd *cobra.Command, args []string) error {
	cfg, err := lookupPreset(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		outFile = "/dev/stdout"
	}
	return config.Save(outFile, cfg)
}
