package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go-hep.org/x/hep/hbook"

	"github.com/san-kum/nboxsim/internal/config"
	"github.com/san-kum/nboxsim/internal/detector"
	"github.com/san-kum/nboxsim/internal/export"
	"github.com/san-kum/nboxsim/internal/logging"
	"github.com/san-kum/nboxsim/internal/storage"
	"github.com/san-kum/nboxsim/internal/viz"
)

var (
	dataDir      string
	macroFile    string
	geometryFile string
	detectorFile string
	sourceFile   string
	logLevel     string
	preset       string
	threads      int
	events       int
	seed         int64
	format       string
	flux         bool
	monoEnergy   float64
	// spectrum preview
	samples int
	bins    int
	svgOut  string
)

// main registers the commands and exits with status 1 when a command fails,
// which includes every configuration load error.
func main() {
	rootCmd := &cobra.Command{
		Use:   "nboxsim",
		Short: "He-3 neutron detector array simulation",
		Long: "Runs events through a moderator box holding He-3 proportional counters.\n" +
			"With -m the run settings file drives a batch run; without it an interactive session starts.",
		SilenceUsage: true,
		RunE:         runRoot,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultOutputDir, "directory holding runs and the run catalog")
	pf.StringVarP(&macroFile, "macro", "m", "", "run settings file (yaml); batch mode when set")
	pf.StringVarP(&geometryFile, "geometry", "g", "", "geometry file (json)")
	pf.StringVarP(&detectorFile, "detector", "d", "", "detector description file (json)")
	pf.StringVarP(&sourceFile, "source", "s", "", "source spectrum file (root, yaml or json)")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	pf.Float64Var(&monoEnergy, "mono", 0, "monoenergetic source energy in MeV")

	rootCmd.Flags().StringVar(&preset, "preset", "", "use preset run settings")
	rootCmd.Flags().IntVar(&threads, "threads", 0, "worker threads (0 = all cores)")
	rootCmd.Flags().IntVar(&events, "events", config.DefaultEvents, "events per run")
	rootCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "base random seed")
	rootCmd.Flags().StringVar(&format, "format", "root", "output format (root, arrow, csv)")
	rootCmd.Flags().BoolVar(&flux, "flux", false, "record the thermal flux map")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "load and check the configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}
			store.Describe(os.Stdout)
			layout := viz.NewCanvas(40, 16)
			layout.DrawLayout(store.Box(), store.Placements(), store.Types())
			fmt.Println()
			fmt.Print(layout.String())
			if svgOut != "" {
				svg := export.LayoutSVG(store.Box(), store.Placements(), store.Types(), 1)
				if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
					return err
				}
				fmt.Printf("layout written to %s\n", svgOut)
			}
			fmt.Println("configuration ok")
			return nil
		},
	}
	validateCmd.Flags().StringVar(&svgOut, "svg", "", "write the detector layout as svg")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum",
		Short: "sample the source spectrum and plot it",
		RunE:  previewSpectrum,
	}
	spectrumCmd.Flags().IntVar(&samples, "samples", 100000, "number of samples")
	spectrumCmd.Flags().IntVar(&bins, "bins", 60, "histogram bins")
	spectrumCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
	spectrumCmd.Flags().StringVar(&svgOut, "svg", "", "write the sampled histogram as svg")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run's metadata and detector results",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEVENTS\tFORMAT\tFLUX")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%s\t%v\n", name, p.Events, p.Format, p.Flux)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(validateCmd, spectrumCmd, listCmd, showCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers defaults, the preset, the run settings file and the
// flags that were set explicitly, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if macroFile != "" {
		loaded, err := config.LoadWith(macroFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load run settings: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.OutputDir = dataDir
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("events") {
		cfg.Events = events
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("flux") {
		cfg.Flux = flux
	}
	if flags.Changed("mono") {
		cfg.MonoEnergy = monoEnergy
	}
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if geometryFile != "" {
		cfg.Files.Geometry = geometryFile
	}
	if detectorFile != "" {
		cfg.Files.Detectors = detectorFile
	}
	if sourceFile != "" {
		cfg.Files.Source = sourceFile
	}
	return cfg, cfg.Validate()
}

func loadStore(cfg *config.Config) (*detector.Store, error) {
	store := detector.New()
	if cfg.Files.Detectors == "" {
		return nil, fmt.Errorf("%w: no detector description file (-d)", detector.ErrConfigLoad)
	}
	if cfg.Files.Geometry == "" {
		return nil, fmt.Errorf("%w: no geometry file (-g)", detector.ErrConfigLoad)
	}
	if err := store.LoadTypes(cfg.Files.Detectors); err != nil {
		return nil, err
	}
	if err := store.LoadGeometry(cfg.Files.Geometry); err != nil {
		return nil, err
	}
	if cfg.Files.Source != "" {
		if err := store.LoadSource(cfg.Files.Source); err != nil {
			return nil, err
		}
	}
	if cfg.MonoEnergy > 0 {
		if err := store.SetMonoEnergy(cfg.MonoEnergy); err != nil {
			return nil, err
		}
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}
	return store, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	interactive := macroFile == ""
	logOut := os.Stderr
	if interactive {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(cfg.OutputDir, "nboxsim.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	log := logging.NewLogger(cfg.LogLevel, logOut)

	store, err := loadStore(cfg)
	if err != nil {
		log.WithError(err).Error("error loading configuration")
		return err
	}

	b, err := newBatcher(cfg, store, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if interactive {
		return viz.Run(viz.NewModel(store, cfg.Events, b.Run))
	}

	store.Describe(os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := b.Run(ctx, cfg.Events, nil)
	if err != nil {
		return err
	}
	summary.Print(os.Stdout)
	return nil
}

func previewSpectrum(cmd *cobra.Command, args []string) error {
	if sourceFile == "" && monoEnergy <= 0 {
		return errors.New("spectrum needs a source file (-s) or --mono")
	}
	store := detector.New()
	if sourceFile != "" {
		if err := store.LoadSource(sourceFile); err != nil {
			return err
		}
	}
	if monoEnergy > 0 {
		if err := store.SetMonoEnergy(monoEnergy); err != nil {
			return err
		}
	}
	src := store.Source()

	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, 0, samples)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < samples; i++ {
		e, ok := src.Sample(rng)
		if !ok {
			return errors.New("source has no spectrum")
		}
		values = append(values, e)
		lo, hi = math.Min(lo, e), math.Max(hi, e)
	}
	if hi <= lo {
		hi = lo + math.Max(math.Abs(lo)*1e-3, 1e-12)
	}

	h := hbook.NewH1D(bins, lo, math.Nextafter(hi, math.Inf(1)))
	for _, v := range values {
		h.Fill(v, 1)
	}
	counts := make([]float64, len(h.Binning.Bins))
	for i, bin := range h.Binning.Bins {
		counts[i] = bin.SumW()
	}

	fmt.Printf("source: %s (%s)\n", store.SourcePath(), src.Kind())
	fmt.Printf("samples: %d\n", samples)
	fmt.Printf("range: %.6g - %.6g MeV\n", lo, hi)
	fmt.Printf("mean: %.6g MeV, std dev: %.6g MeV\n\n", h.XMean(), h.XStdDev())
	fmt.Println(asciigraph.Plot(counts, asciigraph.Height(12), asciigraph.Width(70),
		asciigraph.Caption("sampled energy [MeV bins]")))

	if svgOut != "" {
		if err := os.WriteFile(svgOut, []byte(export.HistogramToSVG(counts, 800, 400, "#00ff88")), 0644); err != nil {
			return err
		}
	}
	return nil
}

func openHistory(ctx context.Context) (*storage.History, func() error, error) {
	cat, err := storage.OpenCatalog(ctx, filepath.Join(dataDir, "catalog.db"))
	if err != nil {
		return nil, nil, err
	}
	return storage.NewHistory(storage.New(dataDir), cat), cat.Close, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h, closeFn, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	runs, err := h.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tID\tTIME\tEVENTS\tWITH HITS\tFORMAT\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Number,
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Counters.Events,
			r.Counters.EventsWithHits,
			r.Format,
			r.Source,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	h, closeFn, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := h.Run(ctx, args[0])
	if err != nil {
		return err
	}
	e := rec.Entry

	fmt.Printf("run: %d (%s)\n", e.Number, e.ID)
	fmt.Printf("time: %s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("events: %d, with hits: %d, workers: %d\n", e.Counters.Events, e.Counters.EventsWithHits, e.Workers)
	fmt.Printf("seed: %d, format: %s, source: %s\n\n", e.Seed, e.Format, e.Source)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHITS\tMEAN EDEP\tRATE")
	for _, d := range rec.Detectors {
		rate := 0.0
		if e.Counters.Events > 0 {
			rate = float64(d.Hits) / float64(e.Counters.Events)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f keV\t%.4f\n", d.ID, d.Name, d.Hits, d.MeanEdepKeV, rate)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	meta := rec.Meta
	if meta == nil {
		fmt.Printf("\nrun directory %s is gone\n", storage.New(dataDir).RunDir(e.ID))
		return nil
	}
	if len(meta.Metrics) > 0 {
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("\nmetrics:")
		for _, name := range names {
			fmt.Printf("  %s: %.6f\n", name, meta.Metrics[name])
		}
	}

	fmt.Println("\nfiles:")
	for _, f := range meta.Files {
		fmt.Printf("  %s\n", filepath.Join(storage.New(dataDir).RunDir(meta.ID), f))
	}
	return nil
}
