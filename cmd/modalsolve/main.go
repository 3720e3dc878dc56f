package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/arendil/modalsolve/internal/config"
	"github.com/arendil/modalsolve/internal/export"
	"github.com/arendil/modalsolve/internal/metrics"
	"github.com/arendil/modalsolve/internal/ode"
	"github.com/arendil/modalsolve/internal/srs"
	"github.com/arendil/modalsolve/internal/store"
	"github.com/arendil/modalsolve/internal/viz"
)

var (
	dataDir string
	dt      float64
	order   string
	workers int
	runName string
	// srs flags
	fmin    float64
	fmax    float64
	points  int
	qfactor float64
	resp    string
	srsDOF  int
	sigFile string
	sigRate float64
	pngOut  string
	// plot/export flags
	kind    string
	outFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modalsolve",
		Short: "structural-dynamics response analysis",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".modalsolve", "data directory")

	solveCmd := &cobra.Command{
		Use:   "solve [scenario.yaml]",
		Short: "solve a scenario and store the response",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	solveCmd.Flags().StringVar(&order, "order", config.DefaultOrder, "force interpolation order")
	solveCmd.Flags().IntVar(&workers, "workers", 0, "mode worker count (0 = all cores)")
	solveCmd.Flags().StringVar(&runName, "name", "", "run name override")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml...]",
		Short: "solve several scenarios concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}

	srsCmd := &cobra.Command{
		Use:   "srs [run_id]",
		Short: "shock response spectrum of a stored run or CSV signal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSRS,
	}
	srsCmd.Flags().Float64Var(&fmin, "fmin", config.DefaultFMin, "lowest spectrum frequency (Hz)")
	srsCmd.Flags().Float64Var(&fmax, "fmax", config.DefaultFMax, "highest spectrum frequency (Hz)")
	srsCmd.Flags().IntVar(&points, "points", config.DefaultFPoints, "spectrum frequency count")
	srsCmd.Flags().Float64Var(&qfactor, "q", config.DefaultQ, "oscillator quality factor")
	srsCmd.Flags().StringVar(&resp, "resp", "absacce", "response type")
	srsCmd.Flags().IntVar(&srsDOF, "dof", 0, "acceleration channel of the run")
	srsCmd.Flags().StringVar(&sigFile, "signal", "", "CSV signal instead of a stored run")
	srsCmd.Flags().Float64Var(&sigRate, "sr", 0, "sample rate of --signal (Hz)")
	srsCmd.Flags().StringVar(&pngOut, "png", "", "also write the spectrum as PNG")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  runList,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "render a stored run as PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlot,
	}
	plotCmd.Flags().StringVar(&kind, "kind", "disp", "channel kind: disp, vel or acc")
	plotCmd.Flags().StringVar(&outFile, "out", "response.png", "output file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "run.json", "output file")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse run channels interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runView,
	}

	rootCmd.AddCommand(solveCmd, batchCmd, srsCmd, listCmd, plotCmd, exportCmd, viewCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	// CLI flags override scenario values.
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("order") {
		cfg.Order = order
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	name := cfg.Name
	if runName != "" {
		name = runName
	}
	if name == "" {
		name = "run"
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	solver, force, err := buildSolve(cfg)
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(fmt.Sprintf("solving %s...", name)))
	start := time.Now()
	response, err := solver.Solve(context.Background(), force, cfg.Init.Displacement, cfg.Init.Velocity)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(name, solver, response, elapsed)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", viz.Value.Render(runID))
	fmt.Printf("dofs: %d  samples: %d  coupled: %v\n",
		response.DOFs(), response.Samples(), solver.System().Coupled)
	for _, w := range solver.Warnings() {
		fmt.Println(viz.Warn.Render("warning: " + w.String()))
	}

	t, peak := response.PeakDisp(0)
	fmt.Printf("peak disp dof 0: %s at t=%.4gs\n", viz.Value.Render(fmt.Sprintf("%.6g", peak)), t)

	if m, _, k, err := cfg.System.Matrices(); err == nil {
		energy := metrics.Energy(response, m, k)
		fmt.Printf("peak mechanical energy: %.6g\n", energy.Peak())
	}
	fmt.Println(viz.Sparkline(response.DispRow(0), "displacement, dof 0"))
	return nil
}

func buildSolve(cfg *config.Config) (*ode.Solver, *mat.Dense, error) {
	m, c, k, err := cfg.System.Matrices()
	if err != nil {
		return nil, nil, err
	}
	ord, err := ode.ParseOrder(cfg.Order)
	if err != nil {
		return nil, nil, err
	}

	opts := []ode.Option{ode.WithOrder(ord), ode.WithWorkers(cfg.Workers)}
	if cfg.CriticalTol > 0 {
		opts = append(opts, ode.WithCriticalTol(cfg.CriticalTol))
	}
	solver, err := ode.NewSolver(m, c, k, cfg.Dt, opts...)
	if err != nil {
		return nil, nil, err
	}

	var force *mat.Dense
	switch {
	case cfg.Force.CSV != "":
		force, err = store.ReadForceCSV(cfg.Force.CSV)
	case cfg.Force.Synth != nil:
		force, err = cfg.Force.Synth.Build(solver.DOFs(), cfg.Dt)
	default:
		err = fmt.Errorf("scenario has no force: set force.csv or force.synth")
	}
	if err != nil {
		return nil, nil, err
	}
	return solver, force, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.NumCPU())

	for _, path := range args {
		path := path
		g.Go(func() error {
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			name := cfg.Name
			if name == "" {
				name = path
			}
			solver, force, err := buildSolve(cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			start := time.Now()
			response, err := solver.Solve(ctx, force, cfg.Init.Displacement, cfg.Init.Velocity)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			runID, err := st.Save(name, solver, response, time.Since(start))
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", path, viz.Value.Render(runID))
			return nil
		})
	}
	return g.Wait()
}

func runSRS(cmd *cobra.Command, args []string) error {
	rt, err := srs.ParseResponseType(resp)
	if err != nil {
		return err
	}

	var sig []float64
	var sr float64
	var title string
	switch {
	case sigFile != "":
		if sigRate <= 0 {
			return fmt.Errorf("--signal requires --sr")
		}
		sig, err = store.ReadSignalCSV(sigFile)
		if err != nil {
			return err
		}
		sr = sigRate
		title = sigFile
	case len(args) == 1:
		run, err := store.New(dataDir).Load(args[0])
		if err != nil {
			return err
		}
		if srsDOF < 0 || srsDOF >= len(run.Acc) {
			return fmt.Errorf("dof %d out of range [0,%d)", srsDOF, len(run.Acc))
		}
		sig = run.Acc[srsDOF]
		sr = 1 / run.Meta.Dt
		title = fmt.Sprintf("%s acc dof %d", args[0], srsDOF)
	default:
		return fmt.Errorf("give a run id or --signal")
	}

	grid := config.SRSConfig{FMin: fmin, FMax: fmax, Points: points}.FreqGrid()
	spec, err := srs.Spectrum(sig, sr, grid, qfactor, srs.Options{Resp: rt})
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(fmt.Sprintf("SRS %s  Q=%.3g  %s", rt, qfactor, title)))
	fmt.Println(viz.Sparkline(spec, "peak response over log-spaced frequency"))
	if pngOut != "" {
		if err := export.SpectrumPNG(pngOut, grid, spec, title); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", pngOut)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	runs, err := store.New(dataDir).List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOFS\tSAMPLES\tDT\tORDER\tCOUPLED\tELAPSED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\t%v\t%s\n",
			r.ID, r.Name, r.DOFs, r.Samples, r.Dt, r.Order, r.Coupled, r.Elapsed)
	}
	return w.Flush()
}

func runPlot(cmd *cobra.Command, args []string) error {
	run, err := store.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	if err := export.ResponsePNG(outFile, run, kind); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	run, err := store.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	if err := store.ExportJSON(outFile, run); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	run, err := store.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	return viz.NewBrowser(run).Run()
}
