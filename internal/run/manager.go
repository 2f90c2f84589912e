package run

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nboxsim/internal/detector"
	"github.com/san-kum/nboxsim/internal/geometry"
	"github.com/san-kum/nboxsim/internal/hits"
	"github.com/san-kum/nboxsim/internal/logging"
	"github.com/san-kum/nboxsim/internal/metrics"
	"github.com/san-kum/nboxsim/internal/output"
	"github.com/san-kum/nboxsim/internal/spectrum"
	"github.com/san-kum/nboxsim/internal/transport"
)

const (
	DefaultProgressInterval = 1000
	DefaultGunEnergy        = 1.0 // MeV
)

// ErrInvalidOptions indicates run options that cannot start a run.
var ErrInvalidOptions = errors.New("run: invalid options")

type Options struct {
	RunID     string
	RunNumber int
	Events    int
	// Workers is the pool size; 0 means one per CPU. It is clamped to [1, Events].
	Workers int
	Seed    int64
	Format  output.Format
	Flux    bool
	// Dir receives the per-worker files.
	Dir string
	// GunEnergy is used when no source spectrum is configured, in MeV.
	GunEnergy        float64
	ProgressInterval int
}

// EngineFactory builds one worker's transport engine over that worker's geometry.
type EngineFactory func(g *geometry.Geometry) transport.Engine

// ProgressFunc is called from worker goroutines after every completed event.
type ProgressFunc func(done, total int64)

type Manager struct {
	store    *detector.Store
	opts     Options
	log      logrus.FieldLogger
	diag     *logging.Diagnostics
	engine   EngineFactory
	cache    *geometry.MaterialCache
	progress ProgressFunc
}

type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }

func WithDiagnostics(d *logging.Diagnostics) Option { return func(m *Manager) { m.diag = d } }

func WithEngine(f EngineFactory) Option { return func(m *Manager) { m.engine = f } }

func WithProgress(f ProgressFunc) Option { return func(m *Manager) { m.progress = f } }

// NewManager checks the store and options. The store must be validated and is
// not modified afterwards.
func NewManager(store *detector.Store, opts Options, o ...Option) (*Manager, error) {
	if store == nil || !store.IsValidated() {
		return nil, detector.ErrNotValidated
	}
	if !store.IsGeometryLoaded() {
		return nil, fmt.Errorf("%w: no geometry loaded", ErrInvalidOptions)
	}
	if opts.Events < 0 {
		return nil, fmt.Errorf("%w: events must be >= 0, got %d", ErrInvalidOptions, opts.Events)
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: output directory not set", ErrInvalidOptions)
	}
	if opts.Format == "" {
		opts.Format = output.FormatROOT
	}
	format, err := output.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format
	opts.Workers = clampWorkers(opts.Workers, opts.Events)
	if opts.GunEnergy <= 0 {
		opts.GunEnergy = DefaultGunEnergy
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	m := &Manager{
		store:  store,
		opts:   opts,
		log:    logging.Discard(),
		engine: func(g *geometry.Geometry) transport.Engine { return transport.NewRayCast(g) },
		cache:  geometry.NewMaterialCache(),
	}
	for _, fn := range o {
		fn(m)
	}
	return m, nil
}

func clampWorkers(n, events int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > events {
		n = events
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Manager) Options() Options { return m.opts }

// Run processes events 0..Events-1 and returns the merged summary. Per-worker
// state is built before any event starts; a failure there aborts the run
// without processing events.
func (m *Manager) Run(ctx context.Context) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	m.log.WithFields(logrus.Fields{
		"events":  m.opts.Events,
		"workers": m.opts.Workers,
		"format":  m.opts.Format,
		"source":  m.store.Source().Kind(),
	}).Info("starting run")

	if err := os.MkdirAll(m.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("run: create output dir: %w", err)
	}

	workers := make([]*worker, m.opts.Workers)
	for i := range workers {
		w, err := m.newWorker(i)
		if err != nil {
			for _, done := range workers[:i] {
				done.close()
			}
			return nil, err
		}
		workers[i] = w
	}

	events := make(chan int)
	var done int64
	total := int64(m.opts.Events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		for id := 0; id < m.opts.Events; id++ {
			select {
			case events <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, w := range workers {
		w := w
		g.Go(func() error {
			for id := range events {
				if err := w.process(id); err != nil {
					return fmt.Errorf("run: worker %d event %d: %w", w.id, id, err)
				}
				n := atomic.AddInt64(&done, 1)
				if n%int64(m.opts.ProgressInterval) == 0 {
					m.log.Infof("Progress: %d / %d events (%.1f%%)", n, total, 100*float64(n)/float64(total))
				}
				if m.progress != nil {
					m.progress(n, total)
				}
			}
			return nil
		})
	}

	runErr := g.Wait()

	var closeErr error
	for _, w := range workers {
		if err := w.close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	s := m.summarize(workers, time.Since(start))
	m.log.WithFields(logrus.Fields{
		"events":           s.Counters.Events,
		"events_with_hits": s.Counters.EventsWithHits,
		"elapsed":          s.Elapsed.Round(time.Millisecond),
	}).Info("run complete")
	return s, nil
}

func (m *Manager) summarize(workers []*worker, elapsed time.Duration) *Summary {
	names := workers[0].names
	stats := metrics.NewDetectorStats(names)
	edep := newEdepSpectrum()
	ms := metrics.Default()
	s := &Summary{
		RunID:     m.opts.RunID,
		RunNumber: m.opts.RunNumber,
		Workers:   len(workers),
		Format:    m.opts.Format,
		Source:    m.store.Source().Kind().String(),
		Elapsed:   elapsed,
	}
	for _, w := range workers {
		s.PerWorker = append(s.PerWorker, w.counters)
		s.Counters.Merge(w.counters)
		stats.Merge(w.stats)
		edep.Merge(w.edep)
		for i, mt := range ms {
			mt.Merge(w.metrics[i])
		}
		s.Files = append(s.Files, w.file.Paths()...)
	}
	s.Detectors = stats.Summaries(s.Counters.Events)
	s.EdepSpectrum = edep.Counts()
	s.Metrics = metrics.Values(ms)
	return s
}

func newEdepSpectrum() *metrics.EdepSpectrum { return metrics.NewEdepSpectrum(0, 800, 80) }

type worker struct {
	id       int
	seed     int64
	file     output.File
	set      *hits.Set
	names    []string
	asm      *output.Assembler
	flux     *output.FluxRecorder
	engine   transport.Engine
	handler  transport.StepHandler
	gen      *spectrum.Generator
	counters Counters
	stats    *metrics.DetectorStats
	edep     *metrics.EdepSpectrum
	metrics  []metrics.Metric
}

func (m *Manager) newWorker(id int) (*worker, error) {
	geo, err := geometry.Build(m.store, m.cache)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(m.opts.Dir, fmt.Sprintf("output_run%d_t%d", m.opts.RunNumber, id))
	file, err := output.Open(m.opts.Format, base)
	if err != nil {
		return nil, err
	}
	hitTable, err := file.Table(output.HitSchema)
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &worker{
		id:      id,
		seed:    m.opts.Seed,
		file:    file,
		set:     hits.NewSet(hits.NewRegistry(), geo.Names()),
		names:   geo.Names(),
		engine:  m.engine(geo),
		gen:     spectrum.NewGenerator(m.store.Source(), m.opts.GunEnergy),
		stats:   metrics.NewDetectorStats(geo.Names()),
		edep:    newEdepSpectrum(),
		metrics: metrics.Default(),
	}
	w.asm = output.NewAssembler(hitTable, w.set.Registry(), geo.Names(), &w.counters,
		output.WithObserver(w.observers()),
		output.WithLogger(m.log.WithField("worker", id)),
		output.WithDiagnostics(m.diag),
	)

	if m.opts.Flux {
		fluxTable, err := file.Table(output.FluxSchema)
		if err != nil {
			file.Close()
			return nil, err
		}
		w.flux = output.NewFluxRecorder(fluxTable)
	}

	var fluxHandler transport.StepHandler
	if w.flux != nil {
		fluxHandler = w.flux
	}
	w.handler = transport.Handlers(transport.StepHandlerFunc(w.deposit), fluxHandler)
	return w, nil
}

func (w *worker) observers() hitObservers {
	obs := hitObservers{w.stats, w.edep}
	for _, mt := range w.metrics {
		obs = append(obs, mt)
	}
	return obs
}

type hitObservers []output.HitObserver

func (o hitObservers) ObserveHit(h hits.Hit) {
	for _, x := range o {
		x.ObserveHit(h)
	}
}

// deposit routes sensitive-volume steps to the detector's aggregator.
func (w *worker) deposit(s transport.Step) {
	if s.DetectorID < 0 || !(s.Edep > 0) {
		return
	}
	if sd := w.set.Detector(s.DetectorID); sd != nil {
		sd.ProcessHits(hits.Deposit{Edep: s.Edep, Position: s.Pre, Time: s.Time})
	}
}

func (w *worker) process(eventID int) error {
	rng := rand.New(rand.NewSource(w.seed + int64(eventID)))
	primary := w.gen.Generate(rng)

	ev := w.set.BeginEvent(eventID)
	err := w.engine.Transport(eventID, primary, rng, w.handler)
	w.set.EndEvent()
	if err != nil {
		return err
	}
	if w.flux != nil {
		if err := w.flux.Err(); err != nil {
			return err
		}
	}

	if _, err := w.asm.EndOfEvent(ev); err != nil {
		return err
	}
	w.counters.Events++
	return nil
}

func (w *worker) close() error {
	w.counters.HitRows = w.asm.Rows()
	w.counters.Missing = int64(w.asm.Missing())
	if w.flux != nil {
		w.counters.FluxRows = w.flux.Rows()
	}
	return w.file.Close()
}
