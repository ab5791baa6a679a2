package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/gravtree/internal/analysis"
	"github.com/san-kum/gravtree/internal/automation"
	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/config"
	"github.com/san-kum/gravtree/internal/export"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
	"github.com/san-kum/gravtree/internal/integrators"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/morton"
	"github.com/san-kum/gravtree/internal/optim"
	"github.com/san-kum/gravtree/internal/sim"
	"github.com/san-kum/gravtree/internal/storage"
	"github.com/san-kum/gravtree/internal/tracing"
	"github.com/san-kum/gravtree/internal/viz"
	"github.com/san-kum/gravtree/internal/workers"
)

var version = "dev"

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string

	distribution   string
	method         string
	integratorName string
	numBodies      int
	seed           int64
	dt             float64
	duration       float64
	theta          float64
	softening      float64
	gravity        float64
	numWorkers     int
	forkThreshold  int
	outputEvery    int
	metricsAddr    string

	// plot
	plotBody int
	// export
	outputPath string
	// bench
	benchSizes []int
	benchReps  int
	// accuracy
	sweepThetas []float64
	// keys
	keyLimit  int
	showTree  bool
	treeDepth int
	// export-svg
	svgCells bool
	svgDepth int
	svgSize  int
	svgBody  int
	// scenario
	saveAll bool
	// ensemble
	trials int
	// tune
	tuneThetas     []float64
	tuneThresholds []int
	tuneTol        float64
	tuneCost       string

	shutdownTracing func(context.Context) error
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gravtree",
		Short:         "barnes-hut n-body gravity lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(logLevel)
			shutdown, err := tracing.Init("gravtree", version)
			if err != nil {
				return err
			}
			shutdownTracing = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(context.Background())
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravtree", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy, a body track and the final layout of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotBody, "body", 0, "body id to track")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run snapshots to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and snapshots to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSimFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure force pass cost against N",
		Args:  cobra.NoArgs,
		RunE:  benchScaling,
	}
	addSimFlags(benchCmd)
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{1000, 2000, 4000, 8000, 16000}, "body counts")
	benchCmd.Flags().IntVar(&benchReps, "reps", 3, "repetitions per size (fastest wins)")

	accuracyCmd := &cobra.Command{
		Use:   "accuracy",
		Short: "compare tree forces with the exact sum across theta",
		Args:  cobra.NoArgs,
		RunE:  accuracySweep,
	}
	addSimFlags(accuracyCmd)
	accuracyCmd.Flags().Float64SliceVar(&sweepThetas, "thetas", []float64{0, 0.25, 0.5, 0.75, 1.0}, "opening angles")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE:  listPresets,
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "print Morton keys and the quadtree of a small body set",
		Args:  cobra.NoArgs,
		RunE:  printKeys,
	}
	addSimFlags(keysCmd)
	keysCmd.Flags().IntVar(&keyLimit, "limit", 16, "number of keys to print")
	keysCmd.Flags().BoolVar(&showTree, "tree", false, "also print the quadtree")
	keysCmd.Flags().IntVar(&treeDepth, "tree-depth", 6, "deepest tree level to print")

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	addSimFlags(configCmd)

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the final layout of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().BoolVar(&svgCells, "cells", false, "draw the quadtree cells")
	exportSVGCmd.Flags().IntVar(&svgDepth, "depth", 6, "deepest cell level to draw")
	exportSVGCmd.Flags().IntVar(&svgSize, "size", 800, "image size in pixels")
	exportSVGCmd.Flags().IntVar(&svgBody, "body", -1, "body id whose track to draw (-1 = none)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	addSimFlags(scenarioCmd)
	scenarioCmd.Flags().BoolVar(&saveAll, "save-all", false, "store every step, not only those with save_as")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat a configuration over consecutive seeds",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addSimFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&trials, "trials", 10, "number of seeds")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "find the cheapest tree setting within an error tolerance",
		Args:  cobra.NoArgs,
		RunE:  tuneTree,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&tuneThetas, "thetas", []float64{0.2, 0.4, 0.6, 0.8, 1.0, 1.2}, "opening angles to try")
	tuneCmd.Flags().IntSliceVar(&tuneThresholds, "fork-thresholds", nil, "fork thresholds to try")
	tuneCmd.Flags().Float64Var(&tuneTol, "tol", 0.01, "largest acceptable relative RMS force error")
	tuneCmd.Flags().StringVar(&tuneCost, "cost", "interactions", "what to minimise (interactions, time)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, liveCmd, benchCmd,
		accuracyCmd, presetsCmd, keysCmd, configCmd, scenarioCmd, ensembleCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&distribution, "dist", config.DefaultDistribution, "initial distribution ("+strings.Join(initcond.Names(), ", ")+")")
	f.StringVar(&method, "method", config.DefaultMethod, "force method ("+strings.Join(force.Names(), ", ")+")")
	f.StringVar(&integratorName, "integrator", config.DefaultIntegrator, "integrator ("+strings.Join(integrators.Names(), ", ")+")")
	f.IntVarP(&numBodies, "bodies", "n", config.DefaultBodies, "number of bodies")
	f.Int64Var(&seed, "seed", 1, "random seed")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration")
	f.Float64Var(&theta, "theta", config.DefaultTheta, "opening angle")
	f.Float64Var(&softening, "softening", config.DefaultSoftening, "gravitational softening length")
	f.Float64Var(&gravity, "g", config.DefaultG, "gravitational constant")
	f.IntVar(&numWorkers, "workers", 0, "worker count (0 = all CPUs)")
	f.IntVar(&forkThreshold, "fork-threshold", config.DefaultForkThreshold, "smallest range built concurrently")
	f.IntVar(&outputEvery, "output-every", config.DefaultOutputEvery, "steps between snapshots (0 = final only)")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dist") {
		cfg.Distribution = distribution
	}
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integratorName
	}
	if flags.Changed("bodies") {
		cfg.Bodies = numBodies
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("theta") {
		cfg.Theta = theta
	}
	if flags.Changed("softening") {
		cfg.Softening = softening
	}
	if flags.Changed("g") {
		cfg.G = gravity
	}
	if flags.Changed("workers") {
		cfg.Workers = numWorkers
	}
	if flags.Changed("fork-threshold") {
		cfg.ForkThreshold = forkThreshold
	}
	if flags.Changed("output-every") {
		cfg.OutputEvery = outputEvery
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if cmd.Root().PersistentFlags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}

// lab is everything a command needs to simulate one configuration.
type lab struct {
	cfg      *config.Config
	law      *body.Law
	gen      initcond.Generator
	pool     *workers.Pool
	registry *prometheus.Registry
	rec      *metrics.Recorder
	log      *slog.Logger
}

func newLab(cfg *config.Config) (*lab, error) {
	gen, err := initcond.Get(cfg.Distribution)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &lab{
		cfg:      cfg,
		law:      &body.Law{G: cfg.G, Softening: cfg.Softening},
		gen:      gen,
		pool:     workers.New(cfg.Workers),
		registry: reg,
		rec:      metrics.NewRecorder(reg),
		log:      logger.WithComponent("cli"),
	}, nil
}

func (l *lab) bodies() []*body.Body {
	return l.gen(l.cfg.Bodies, l.cfg.Seed, l.law)
}

func (l *lab) forceOptions() force.Options {
	return force.Options{
		Theta:         l.cfg.Theta,
		Pool:          l.pool,
		ForkThreshold: l.cfg.ForkThreshold,
		Logger:        logger.WithComponent("barneshut"),
		Metrics:       l.rec,
	}
}

func (l *lab) calculator() (force.Calculator, error) {
	return force.New(l.cfg.Method, l.forceOptions())
}

func (l *lab) env() automation.Env {
	return automation.Env{Pool: l.pool, Metrics: l.rec, Logger: l.log}
}

// serveMetrics exposes the lab's registry until ctx ends, when an
// address is configured.
func (l *lab) serveMetrics(ctx context.Context) {
	if l.cfg.MetricsAddr == "" {
		return
	}
	l.log.Info("serving metrics", "addr", l.cfg.MetricsAddr)
	go func() {
		if err := metrics.Serve(ctx, l.cfg.MetricsAddr, l.registry); err != nil {
			l.log.Error("metrics server failed", "error", err)
		}
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	l.serveMetrics(ctx)

	fmt.Printf("running %s: %d bodies, %s/%s, theta %.2f, %d steps...\n",
		runName(cfg), cfg.Bodies, cfg.Method, cfg.Integrator, cfg.Theta, cfg.Steps())

	result, err := l.env().Simulate(ctx, cfg)
	if err != nil {
		if result == nil || !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Printf("interrupted after %d steps, saving partial run\n", result.StepsTaken)
	}

	runID, err := st.Save(runName(cfg), cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v (force %v)\n", result.WallTime.Round(time.Millisecond), result.ForceTime.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d, snapshots: %d\n", result.StepsTaken, len(result.Snapshots))
	fmt.Printf("interactions: %d direct, %d approx\n", result.Interactions.Direct, result.Interactions.Approx)
	if len(result.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		names := make([]string, 0, len(result.Metrics))
		for name := range result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %.6g\n", name, result.Metrics[name])
		}
	}
	return nil
}

func runName(cfg *config.Config) string {
	if cfg.Preset != "" {
		return cfg.Preset
	}
	return cfg.Distribution
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
	fmt.Fprintln(w, "ID\tTIME\tN\tMETHOD\tTHETA\tSTEPS\tWALL\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%d\t%.2fs\t%.2e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Config.Bodies,
			run.Config.Method,
			run.Config.Theta,
			run.Steps,
			run.WallSeconds,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

// restore rebuilds live bodies from a stored snapshot.
func restore(snap sim.Snapshot, law *body.Law) []*body.Body {
	bs := make([]*body.Body, len(snap.Bodies))
	for i, b := range snap.Bodies {
		bs[i] = body.New(b.ID, b.X, b.Y, b.VX, b.VY, b.Mass, law)
	}
	return bs
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("bodies: %d, method: %s, theta: %.2f\n", meta.Config.Bodies, meta.Config.Method, meta.Config.Theta)
	fmt.Printf("snapshots: %d\n\n", len(snaps))

	law := &body.Law{G: meta.Config.G, Softening: meta.Config.Softening}
	if len(snaps[0].Bodies) <= sim.MaxEnergyBodies {
		energy := make([]float64, len(snaps))
		for i, snap := range snaps {
			k, p := metrics.Energy(restore(snap, law))
			energy[i] = k + p
		}
		printPlot(energy, "total energy")
	}

	path := track(snaps, plotBody)
	xs, ys := make([]float64, len(path)), make([]float64, len(path))
	for i, p := range path {
		xs[i], ys[i] = p[0], p[1]
	}
	if len(xs) > 0 {
		printPlot(xs, fmt.Sprintf("body %d x", plotBody))
		printPlot(ys, fmt.Sprintf("body %d y", plotBody))
	}

	final, _ := storage.Final(snaps)
	bs := restore(final, law)
	canvas := viz.NewCanvas(60, 20)
	canvas.PlotBodies(viz.FitViewport(bs), bs)
	fmt.Printf("final layout (t=%.3f)\n%s", final.Time, canvas.String())
	return nil
}

// track collects the positions of body id across snapshots.
func track(snaps []sim.Snapshot, id int) [][2]float64 {
	var out [][2]float64
	for _, snap := range snaps {
		for _, b := range snap.Bodies {
			if b.ID == id {
				out = append(out, [2]float64{b.X, b.Y})
				break
			}
		}
	}
	return out
}

func treeView(bs []*body.Body) []barneshut.Body {
	view := make([]barneshut.Body, len(bs))
	for i, b := range bs {
		view[i] = b
	}
	return view
}

func printPlot(data []float64, caption string) {
	if len(data) < 2 {
		return
	}
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	))
	fmt.Println()
}

// output opens outputPath, or stdout when it is empty.
func output() (io.WriteCloser, error) {
	if outputPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outputPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := storage.WriteSnapshotsCSV(w, snaps); err != nil {
		return err
	}
	return w.Close()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := storage.ExportJSON(w, meta, snaps); err != nil {
		return err
	}
	return w.Close()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// the TUI owns the terminal
	if !cmd.Root().PersistentFlags().Changed("log-level") {
		logger.InitWriter(io.Discard, cfg.LogLevel)
	}

	l, err := newLab(cfg)
	if err != nil {
		return err
	}
	calc, err := l.calculator()
	if err != nil {
		return err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	l.serveMetrics(ctx)

	stepper, err := sim.NewStepper(ctx, calc, integ, l.bodies(), cfg.Dt)
	if err != nil {
		return err
	}

	m := viz.NewModel(ctx, stepper, fmt.Sprintf("%s · %d bodies", runName(cfg), cfg.Bodies))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func benchScaling(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sizes := append([]int(nil), benchSizes...)
	sort.Ints(sizes)

	fmt.Printf("benchmarking %s on %s, theta %.2f, %d workers\n\n", cfg.Method, cfg.Distribution, cfg.Theta, l.pool.Size())
	points, err := analysis.Scaling(ctx, cfg.Method, l.gen, sizes, cfg.Seed, l.law, benchReps, l.forceOptions())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tPREPARE\tQUERY\tINTERACTIONS\tPER BODY\tNS/BODY")
	ns := make([]float64, len(points))
	query := make([]float64, len(points))
	perBody := make([]float64, len(points))
	for i, p := range points {
		ns[i] = float64(p.N)
		query[i] = (p.Prepare + p.Query).Seconds()
		perBody[i] = p.PerBody()
		fmt.Fprintf(w, "%d\t%v\t%v\t%d\t%.1f\t%.0f\n",
			p.N,
			p.Prepare.Round(time.Microsecond),
			p.Query.Round(time.Microsecond),
			p.Interactions,
			p.PerBody(),
			float64((p.Prepare+p.Query).Nanoseconds())/float64(p.N),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\ninteraction exponent: %.3f\n", analysis.InteractionExponent(points))
	fmt.Printf("time exponent:        %.3f\n\n", analysis.Exponent(ns, query))
	printPlot(perBody, "interactions per body vs N")
	return nil
}

func accuracySweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	thetas := append([]float64(nil), sweepThetas...)
	sort.Float64s(thetas)

	bodies := l.bodies()
	fmt.Printf("accuracy on %d %s bodies\n\n", len(bodies), cfg.Distribution)
	results, err := analysis.ThetaSweep(ctx, bodies, thetas, l.forceOptions())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THETA\tRMS ERR\tMAX ERR\tDIRECT\tAPPROX\tSPEEDUP\tTREE\tEXACT")
	rms := make([]float64, len(results))
	for i, a := range results {
		rms[i] = a.RMS
		fmt.Fprintf(w, "%.2f\t%.2e\t%.2e\t%d\t%d\t%.1fx\t%v\t%v\n",
			a.Theta,
			a.RMS,
			a.Max,
			a.Interactions.Direct,
			a.Interactions.Approx,
			a.Speedup(),
			a.TreeTime.Round(time.Microsecond),
			a.ExactTime.Round(time.Microsecond),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	printPlot(rms, "relative RMS error vs theta")
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDIST\tN\tMETHOD\tTHETA\tDT\tDURATION")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.2f\t%g\t%g\n",
			name, p.Distribution, p.Bodies, p.Method, p.Theta, p.Dt, p.Duration)
	}
	return w.Flush()
}

func printKeys(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	bodies := l.bodies()
	mapper, err := morton.NewMapper(bodies)
	if err != nil {
		return err
	}

	sort.SliceStable(bodies, func(i, j int) bool { return mapper.Less(bodies[i], bodies[j]) })

	fmt.Printf("extent x [%g, %g] y [%g, %g], max range %g\n\n", mapper.XMin, mapper.XMax, mapper.YMin, mapper.YMax, mapper.MaxRange)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tX\tY\tQX\tQY\tKEY")
	for _, b := range bodies[:min(keyLimit, len(bodies))] {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%d\t%d\t%s\n",
			b.ID, b.PX, b.PY,
			mapper.QuantizeX(b.PX), mapper.QuantizeY(b.PY),
			morton.FormatKey(mapper.KeyOf(b)),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !showTree {
		return nil
	}

	model := barneshut.New(barneshut.WithPool(l.pool), barneshut.WithLogger(logger.WithComponent("barneshut")))
	if err := model.Build(context.Background(), treeView(bodies), cfg.Theta); err != nil {
		return err
	}

	st := model.Stats()
	fmt.Printf("\ntree: %d nodes, %d buckets, depth %d\n", st.Nodes, st.Buckets, st.MaxDepth)
	model.Walk(func(n *barneshut.Node, depth int) bool {
		if depth > treeDepth {
			return false
		}
		kinds := make([]string, len(n.Slots))
		for i, s := range n.Slots {
			kinds[i] = s.Kind.String()
		}
		fmt.Printf("%s[%d,%d) half=%.4g m=%.4g com=(%.4f, %.4f) %s\n",
			strings.Repeat("  ", depth), n.Lo, n.Hi, n.HalfWidth, n.M(), n.X(), n.Y(), strings.Join(kinds, " "))
		return true
	})
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cfg.Encode(os.Stdout)
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	final, ok := storage.Final(snaps)
	if !ok {
		return fmt.Errorf("run %s has no snapshots", runID)
	}

	bs := restore(final, &body.Law{G: meta.Config.G, Softening: meta.Config.Softening})
	scene := export.Scene{
		Title:  fmt.Sprintf("%s t=%.3f", meta.ID, final.Time),
		Bodies: bs,
		Width:  svgSize,
		Height: svgSize,
	}
	if svgCells {
		model := barneshut.New(barneshut.WithLogger(logger.WithComponent("barneshut")))
		if err := model.Build(context.Background(), treeView(bs), meta.Config.Theta); err != nil {
			return err
		}
		scene.Cells = model.Cells(svgDepth)
	}
	if svgBody >= 0 {
		scene.Track = track(snaps, svgBody)
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := export.SceneSVG(w, scene); err != nil {
		return err
	}
	return w.Close()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	l.serveMetrics(ctx)

	// steps may change the worker count, so each gets its own pool
	env := automation.Env{Metrics: l.rec, Logger: l.log}
	fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
	if sc.Description != "" {
		fmt.Println(sc.Description)
	}
	fmt.Println()

	results, runErr := automation.RunScenario(ctx, sc, cfg, env.Simulate)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tN\tMETHOD\tTHETA\tSTEPS\tWALL\tDRIFT\tRUN")
	for _, r := range results {
		runID := "-"
		if saveAll || r.SaveAs != "" {
			name := r.SaveAs
			if name == "" {
				name = r.Name
			}
			if runID, err = st.Save(name, r.Config, r.Result); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%.2f\t%d\t%v\t%.2e\t%s\n",
			r.Name,
			r.Config.Bodies,
			r.Config.Method,
			r.Config.Theta,
			r.Result.StepsTaken,
			r.Result.WallTime.Round(time.Millisecond),
			r.Result.EnergyDrift,
			runID,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if trials < 1 {
		return fmt.Errorf("trials must be positive, got %d", trials)
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	l.serveMetrics(ctx)

	fmt.Printf("ensemble of %d %s runs from seed %d\n\n", trials, runName(cfg), cfg.Seed)
	results, err := automation.RunEnsemble(ctx, cfg, trials, l.env().Simulate)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tDRIFT\tSTABLE\tWALL")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%.2e\t%v\t%v\n", r.Seed, r.Steps, r.EnergyDrift, r.Stable, r.Wall.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable, mean, maxDrift := automation.EnsembleStats(results)
	fmt.Printf("\nstable: %d, unstable: %d\n", stable, unstable)
	fmt.Printf("drift mean %.2e, max %.2e\n", mean, maxDrift)
	return nil
}

func tuneTree(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	var cost optim.Cost
	switch tuneCost {
	case "interactions":
		cost = optim.CostInteractions
	case "time":
		cost = optim.CostTime
	default:
		return fmt.Errorf("unknown cost %q (interactions, time)", tuneCost)
	}
	l, err := newLab(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	params := []string{"theta"}
	ranges := [][]float64{tuneThetas}
	if len(tuneThresholds) > 0 {
		thresholds := make([]float64, len(tuneThresholds))
		for i, t := range tuneThresholds {
			thresholds[i] = float64(t)
		}
		params = append(params, "fork_threshold")
		ranges = append(ranges, thresholds)
	}

	bodies := l.bodies()
	fmt.Printf("tuning on %d %s bodies, tolerance %.2e\n\n", len(bodies), cfg.Distribution, tuneTol)
	gs := optim.NewGridSearch(params, ranges)
	best, value, all, err := gs.Search(ctx, optim.TreeObjective(bodies, tuneTol, cost, l.forceOptions()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(params, "\t"))+"\tCOST")
	for _, p := range all {
		cols := make([]string, 0, len(params)+1)
		for _, name := range params {
			cols = append(cols, fmt.Sprintf("%g", p.Params[name]))
		}
		switch {
		case p.Err != nil:
			cols = append(cols, "error: "+p.Err.Error())
		case math.IsInf(p.Value, 1):
			cols = append(cols, "over tolerance")
		default:
			cols = append(cols, fmt.Sprintf("%.4g", p.Value))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if best == nil {
		return fmt.Errorf("no setting meets tolerance %g", tuneTol)
	}
	fmt.Print("\nbest:")
	for _, name := range optim.SortedKeys(best) {
		fmt.Printf(" %s=%g", name, best[name])
	}
	fmt.Printf(" (cost %.4g)\n", value)
	return nil
}
