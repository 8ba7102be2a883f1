package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/simtree/internal/analysis"
	"github.com/san-kum/simtree/internal/automation"
	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/engine"
	"github.com/san-kum/simtree/internal/experiment"
	"github.com/san-kum/simtree/internal/export"
	"github.com/san-kum/simtree/internal/integrators"
	"github.com/san-kum/simtree/internal/logging"
	"github.com/san-kum/simtree/internal/model"
	"github.com/san-kum/simtree/internal/optim"
	"github.com/san-kum/simtree/internal/storage"
	"github.com/san-kum/simtree/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	logFormat  string
	configFile string
	preset     string
	dt         float64
	duration   float64
	seed       int64
	integrator string
	sets       []string
	noSave     bool

	showConnectors bool
	showInputs     bool
	showOutputs    bool

	plotOutputs bool
	plotOverlay bool
	plotWidth   int
	plotHeight  int

	exportOut string

	frameRate     int
	stepsPerFrame int
	theme         string

	runs   int
	spread float64

	xColumn     string
	yColumn     string
	useOutputs  bool
	traceStates bool
	svgSize     int
	sweepParams []string
	sweepMetric string
	parallel    int
	spectrum    bool
	perturb     float64

	log *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "simtree",
		Short:         "component-tree multibody simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logLevel, logFormat, os.Stderr)
			if err != nil {
				return err
			}
			log = l
			slog.SetDefault(l)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".simtree", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	modelFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "", "preset as model/name, e.g. pendulum/small")
		cmd.Flags().StringArrayVar(&sets, "set", nil, "override a property, e.g. --set hinge.angle=0.5")
	}
	simFlags := func(cmd *cobra.Command) {
		modelFlags(cmd)
		cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
		cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
		cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
		cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator ("+strings.Join(integrators.Names(), ", ")+")")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store the result",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	simFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "print the component tree",
		Args:  cobra.NoArgs,
		RunE:  printTree,
	}
	modelFlags(treeCmd)
	treeCmd.Flags().BoolVar(&showConnectors, "connectors", true, "list connectors")
	treeCmd.Flags().BoolVar(&showInputs, "inputs", true, "list inputs")
	treeCmd.Flags().BoolVar(&showOutputs, "outputs", false, "list outputs")

	statesCmd := &cobra.Command{
		Use:   "states",
		Short: "print state variables of the initial state",
		Args:  cobra.NoArgs,
		RunE:  printStates,
	}
	modelFlags(statesCmd)

	outputsCmd := &cobra.Command{
		Use:   "outputs",
		Short: "print output values of the initial state",
		Args:  cobra.NoArgs,
		RunE:  printOutputs,
	}
	modelFlags(outputsCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list models with presets, or the presets of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, m := range config.ListModels() {
					fmt.Printf("%s: %s\n", m, strings.Join(config.ListPresets(m), ", "))
				}
				return nil
			}
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a config file to start from",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	modelFlags(initCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&plotOutputs, "outputs", false, "plot recorded outputs instead of states")
	plotCmd.Flags().BoolVar(&plotOverlay, "overlay", false, "draw every column in one chart")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "animate a model in the terminal",
		Args:  cobra.NoArgs,
		RunE:  watchModel,
	}
	simFlags(watchCmd)
	watchCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	watchCmd.Flags().IntVar(&stepsPerFrame, "steps", 2, "integration steps per frame")
	watchCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run perturbed copies of a model concurrently",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	simFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of members")
	ensembleCmd.Flags().Float64Var(&spread, "spread", 0.01, "initial state perturbation")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of experiments",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis and phase portrait of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().BoolVar(&useOutputs, "outputs", false, "analyze recorded outputs instead of states")
	analyzeCmd.Flags().StringVar(&xColumn, "x", "", "phase portrait x column (default first)")
	analyzeCmd.Flags().StringVar(&yColumn, "y", "", "phase portrait y column (default second)")

	traceCmd := &cobra.Command{
		Use:   "trace [run_id] [file.svg]",
		Short: "draw one stored column against another as SVG",
		Args:  cobra.ExactArgs(2),
		RunE:  traceRun,
	}
	traceCmd.Flags().BoolVar(&traceStates, "states", false, "read states instead of recorded outputs")
	traceCmd.Flags().StringVar(&xColumn, "x", "", "x column (default first)")
	traceCmd.Flags().StringVar(&yColumn, "y", "", "y column (default second)")
	traceCmd.Flags().IntVar(&svgSize, "size", 400, "image size in pixels")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [file.svg]",
		Short: "draw the initial configuration of a model as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotModel,
	}
	modelFlags(snapshotCmd)
	snapshotCmd.Flags().IntVar(&svgSize, "size", 400, "image size in pixels")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov",
		Short: "estimate Lyapunov exponents of a model",
		Args:  cobra.NoArgs,
		RunE:  lyapunovModel,
	}
	simFlags(lyapunovCmd)
	lyapunovCmd.Flags().BoolVar(&spectrum, "spectrum", false, "perturb every state variable in turn")
	lyapunovCmd.Flags().Float64Var(&perturb, "perturbation", 1e-8, "initial separation")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search properties for the smallest metric",
		Long: "grid search properties for the smallest metric.\n\n" +
			"Each --param is path.prop=values where values is a list (0,0.1,0.2)\n" +
			"or a range start:stop:count, e.g. --param hinge.damping=0:1:5",
		Args: cobra.NoArgs,
		RunE: sweepModel,
	}
	simFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "property grid, path.prop=values")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimize")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 for no limit)")

	rootCmd.AddCommand(runCmd, treeCmd, statesCmd, outputsCmd, presetsCmd, initCmd, listCmd, plotCmd, exportCmd, watchCmd, ensembleCmd,
		scenarioCmd, analyzeCmd, traceCmd, snapshotCmd, lyapunovCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves --config, --preset and the flag overrides, in that
// order of precedence from lowest to highest.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "" && preset != "":
		return nil, errors.New("use either --config or --preset")
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	case preset != "":
		m, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be model/name, got %q", preset)
		}
		cfg = config.GetPreset(m, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(m))
		}
	default:
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--set wants path.prop=value, got %q", kv)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
		if err := cfg.SetProperty(key, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

func setupExperiment(cmd *cobra.Command) (*experiment.Experiment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg, experiment.NewRegistry(), log)
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	return exp, nil
}

// buildModel builds the configured tree without wiring a simulator.
func buildModel(cmd *cobra.Command) (*model.Model, *engine.State, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	m, err := experiment.NewRegistry().BuildModel(cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	m.Log = log
	s, err := m.InitSystem()
	if err != nil {
		return nil, nil, err
	}
	return m, s, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	cfg := exp.Config()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s simulation...\n", cfg.Model.Name)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("energy drift: %.3e\n", result.EnergyDrift)
	fmt.Println()

	names, err := exp.Model().StateVariableNames()
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "final state", names, result.Final()))

	metricNames := make([]string, 0, len(result.Metrics))
	metricValues := make([]float64, 0, len(result.Metrics))
	for _, name := range sortedKeys(result.Metrics) {
		metricNames = append(metricNames, name)
		metricValues = append(metricValues, result.Metrics[name])
	}
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "metrics", metricNames, metricValues))

	if noSave {
		return nil
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	run, err := exp.Archive(result)
	if err != nil {
		return err
	}
	runID, err := st.Save(run)
	if err != nil {
		return err
	}
	log.Info("run stored", "id", runID, "dir", dataDir)
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func printTree(cmd *cobra.Command, args []string) error {
	m, _, err := buildModel(cmd)
	if err != nil {
		return err
	}
	fmt.Print(viz.RenderTree(viz.DefaultStyles, m, viz.TreeOptions{
		Connectors: showConnectors,
		Inputs:     showInputs,
		Outputs:    showOutputs,
	}))
	return nil
}

func printStates(cmd *cobra.Command, args []string) error {
	m, s, err := buildModel(cmd)
	if err != nil {
		return err
	}
	names, err := m.StateVariableNames()
	if err != nil {
		return err
	}
	values, err := m.StateVariableValues(s)
	if err != nil {
		return err
	}
	if err := m.Realize(s, engine.StageAcceleration); err != nil {
		return err
	}
	derivs, err := m.ComputeDerivatives(s)
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "state variables", names, values))
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "derivatives", names, derivs))
	return nil
}

func printOutputs(cmd *cobra.Command, args []string) error {
	m, s, err := buildModel(cmd)
	if err != nil {
		return err
	}
	if err := m.Realize(s, engine.StageReport); err != nil {
		return err
	}
	paths := m.FloatOutputs()
	values := make([]string, len(paths))
	for i, p := range paths {
		out, err := m.GetOutput(p)
		if err != nil {
			return err
		}
		if values[i], err = out.ValueString(s); err != nil {
			return err
		}
	}
	fmt.Println(viz.RenderStrings(viz.DefaultStyles, "outputs", paths, values))
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tSTEPS\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.2e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Steps,
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

	table, err := st.LoadStates(runID)
	if plotOutputs {
		table, err = st.LoadOutputs(runID)
	}
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d (t = %.2f..%.2f)\n", len(table.Rows), table.Times[0], table.Times[len(table.Times)-1])
	fmt.Println(viz.Separator(plotWidth))
	fmt.Println()

	if plotOverlay {
		series := make([][]float64, len(table.Names))
		for i, name := range table.Names {
			if series[i], err = table.Column(name); err != nil {
				return err
			}
		}
		fmt.Println(viz.PlotMany(strings.Join(table.Names, ", "), series, plotWidth, plotHeight))
		return nil
	}

	const maxPlots = 6
	for i, name := range table.Names {
		if i == maxPlots {
			fmt.Printf("... %d more columns\n", len(table.Names)-maxPlots)
			break
		}
		data, err := table.Column(name)
		if err != nil {
			return err
		}
		fmt.Println(viz.Plot(name, data, plotWidth, plotHeight))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	outputs, err := st.LoadOutputs(runID)
	if err != nil {
		return err
	}

	result := &dynamo.Result{
		Times:       states.Times,
		States:      make([]dynamo.State, len(states.Rows)),
		Metrics:     meta.Metrics,
		EnergyDrift: meta.EnergyDrift,
		StepsTaken:  meta.Steps,
	}
	for i, row := range states.Rows {
		result.States[i] = row
	}
	run := storage.Run{
		Model:       meta.Model,
		Integrator:  meta.Integrator,
		Dt:          meta.Dt,
		Duration:    meta.Duration,
		Seed:        meta.Seed,
		Adaptive:    meta.Adaptive,
		StateNames:  states.Names,
		Result:      result,
		Outputs:     outputs.Names,
		OutputTimes: outputs.Times,
		OutputRows:  outputs.Rows,
	}

	if exportOut == "" {
		return storage.ExportJSON(os.Stdout, run)
	}
	if err := storage.ExportJSONFile(exportOut, run); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", runID, exportOut)
	return nil
}

func watchModel(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	cfg := exp.Config()
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}
	w, err := viz.NewWatch(exp.Integrand(), integ, exp.Initial(), viz.WatchConfig{
		Title:         cfg.Model.Name,
		Dt:            cfg.Dt,
		StepsPerFrame: stepsPerFrame,
		FPS:           frameRate,
		Theme:         theme,
	})
	if err != nil {
		return err
	}
	return viz.RunWatch(w)
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := exp.RunEnsemble(ctx, runs, spread)
	if err != nil {
		return err
	}
	fmt.Printf("%d members completed in %v\n\n", len(results), time.Since(start))

	names, err := exp.Model().StateVariableNames()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	trials := automation.Summarize(results, automation.DefaultBound)
	header := "MEMBER\tSTEPS\tDRIFT\tSTABLE\tDIVERGENCE"
	for _, n := range names {
		header += "\t" + n
	}
	fmt.Fprintln(w, header)

	spreadOf := make([][2]float64, len(names))
	for j := range spreadOf {
		spreadOf[j] = [2]float64{math.Inf(1), math.Inf(-1)}
	}
	for i, r := range results {
		final := r.Final()
		line := fmt.Sprintf("%d\t%d\t%.2e\t%t\t%.2e", i, r.StepsTaken, r.Metrics["energy_drift"], trials[i].Stable, trials[i].MaxAbsDiff)
		for j, v := range final {
			line += fmt.Sprintf("\t%.4f", v)
			spreadOf[j][0] = math.Min(spreadOf[j][0], v)
			spreadOf[j][1] = math.Max(spreadOf[j][1], v)
		}
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	widths := make([]float64, len(names))
	for j, s := range spreadOf {
		widths[j] = s[1] - s[0]
	}
	stable, unstable := automation.Stats(trials)
	fmt.Printf("\nstable: %d  diverged: %d\n\n", stable, unstable)
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "final spread", names, widths))
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &automation.Runner{Registry: experiment.NewRegistry(), Store: st, Log: log}
	outcomes, err := r.Run(ctx, sc)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTEPS\tDRIFT\tRUN")
	for _, o := range outcomes {
		id := o.RunID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%.2e\t%s\n", o.Step, o.Result.StepsTaken, o.Result.EnergyDrift, id)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// loadTable reads states or outputs of a stored run.
func loadTable(runID string, outputs bool) (*storage.Table, error) {
	st := storage.New(dataDir)
	if outputs {
		return st.LoadOutputs(runID)
	}
	return st.LoadStates(runID)
}

// pickColumns returns the named columns, defaulting to the first two.
func pickColumns(table *storage.Table, x, y string) (string, string, []float64, []float64, error) {
	if x == "" || y == "" {
		if len(table.Names) < 2 {
			return "", "", nil, nil, fmt.Errorf("need two columns, run has %d", len(table.Names))
		}
		if x == "" {
			x = table.Names[0]
		}
		if y == "" {
			y = table.Names[1]
		}
	}
	xs, err := table.Column(x)
	if err != nil {
		return "", "", nil, nil, err
	}
	ys, err := table.Column(y)
	if err != nil {
		return "", "", nil, nil, err
	}
	return x, y, xs, ys, nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	table, err := loadTable(args[0], useOutputs)
	if err != nil {
		return err
	}
	if len(table.Rows) < 4 {
		return fmt.Errorf("run has only %d samples", len(table.Rows))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tFREQ (Hz)\tPERIOD (s)\tSPECTRUM")
	for _, name := range table.Names {
		col, err := table.Column(name)
		if err != nil {
			return err
		}
		freq, err := analysis.DominantFrequency(table.Times, col)
		if err != nil {
			return err
		}
		period := "-"
		if p, err := analysis.Period(table.Times, col); err == nil {
			period = fmt.Sprintf("%.4f", p)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%s\n", name, freq, period, viz.SparklineChart(analysis.PowerSpectrum(col), 24))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// a single column has no portrait
	x, y, xs, ys, err := pickColumns(table, xColumn, yColumn)
	if err != nil {
		return nil
	}
	portrait, err := analysis.NewPortrait(x, y, xs, ys)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(portrait.ASCII(60, 20))
	return nil
}

func traceRun(cmd *cobra.Command, args []string) error {
	table, err := loadTable(args[0], !traceStates)
	if err != nil {
		return err
	}
	x, y, xs, ys, err := pickColumns(table, xColumn, yColumn)
	if err != nil {
		return err
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.Trajectory(f, xs, ys, svgSize, svgSize, ""); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s against %s)\n", args[1], y, x)
	return nil
}

func snapshotModel(cmd *cobra.Command, args []string) error {
	m, s, err := buildModel(cmd)
	if err != nil {
		return err
	}
	if err := m.Realize(s, engine.StagePosition); err != nil {
		return err
	}
	fixed, err := m.Decorations(true, s)
	if err != nil {
		return err
	}
	moving, err := m.Decorations(false, s)
	if err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.Decorations(f, append(fixed, moving...), svgSize); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func lyapunovModel(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	cfg := exp.Config()
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	if !spectrum {
		l, err := analysis.LyapunovExponent(exp.Integrand(), integ, exp.Initial(), cfg.Dt, cfg.Duration, perturb)
		if err != nil {
			return err
		}
		fmt.Printf("largest lyapunov exponent: %.6f\n", l)
		return nil
	}

	exps, err := analysis.LyapunovSpectrum(exp.Integrand(), integ, exp.Initial(), cfg.Dt, cfg.Duration, perturb)
	if err != nil {
		return err
	}
	names, err := exp.Model().StateVariableNames()
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderValues(viz.DefaultStyles, "lyapunov exponents", names, exps))
	return nil
}

func sweepModel(cmd *cobra.Command, args []string) error {
	if len(sweepParams) == 0 {
		return errors.New("sweep needs at least one --param")
	}
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, p := range sweepParams {
		key, raw, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("--param wants path.prop=values, got %q", p)
		}
		vals, err := optim.ParseValues(raw)
		if err != nil {
			return err
		}
		names = append(names, key)
		ranges = append(ranges, vals)
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	g.SetLimit(parallel)

	run := func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
		cfg := base.Clone()
		for k, v := range params {
			if err := cfg.SetProperty(k, v); err != nil {
				return nil, err
			}
		}
		exp := experiment.New(cfg, experiment.NewRegistry(), log)
		if err := exp.Setup(); err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}
		return result.Metrics, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, trials, err := g.Search(ctx, run, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(names, "\t")+"\t"+strings.ToUpper(sweepMetric))
	for _, t := range trials {
		line := make([]string, 0, len(names)+1)
		for _, n := range names {
			line = append(line, strconv.FormatFloat(t.Params[n], 'g', 6, 64))
		}
		if t.Err != nil {
			line = append(line, "error: "+t.Err.Error())
		} else {
			line = append(line, fmt.Sprintf("%.6g", t.Value))
		}
		fmt.Fprintln(w, strings.Join(line, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Println()
	bestValues := make([]float64, len(names))
	for i, n := range names {
		bestValues[i] = best.Params[n]
	}
	fmt.Println(viz.RenderValues(viz.DefaultStyles, fmt.Sprintf("best %s = %.6g", sweepMetric, best.Value), names, bestValues))
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
