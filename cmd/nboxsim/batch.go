package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/nboxsim/internal/config"
	"github.com/san-kum/nboxsim/internal/detector"
	"github.com/san-kum/nboxsim/internal/logging"
	"github.com/san-kum/nboxsim/internal/output"
	"github.com/san-kum/nboxsim/internal/run"
	"github.com/san-kum/nboxsim/internal/storage"
)

// batcher starts runs against one validated store, giving each run its own
// directory, diagnostics file and catalog entry.
type batcher struct {
	cfg     *config.Config
	store   *detector.Store
	log     *logrus.Logger
	st      *storage.Store
	catalog *storage.Catalog
}

func newBatcher(cfg *config.Config, store *detector.Store, log *logrus.Logger) (*batcher, error) {
	st := storage.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	catalog, err := storage.OpenCatalog(context.Background(), filepath.Join(cfg.OutputDir, "catalog.db"))
	if err != nil {
		return nil, err
	}
	return &batcher{cfg: cfg, store: store, log: log, st: st, catalog: catalog}, nil
}

// Run matches viz.Runner.
func (b *batcher) Run(ctx context.Context, events int, progress run.ProgressFunc) (*run.Summary, error) {
	number, err := b.catalog.NextNumber(ctx)
	if err != nil {
		return nil, err
	}
	if onDisk, err := b.st.NextNumber(); err == nil && onDisk > number {
		number = onDisk
	}

	meta, dir, err := b.st.NewRun(number)
	if err != nil {
		return nil, err
	}
	meta.Seed = b.cfg.Seed
	meta.Events = events
	meta.Flux = b.cfg.Flux
	meta.Detectors = b.cfg.Files.Detectors
	meta.Geometry = b.cfg.Files.Geometry
	meta.Spectrum = b.cfg.Files.Source

	diag, err := logging.NewDiagnostics(dir)
	if err != nil {
		return nil, err
	}
	defer diag.Close()

	log := b.log.WithFields(logrus.Fields{"run": number, "id": meta.ID})
	opts := []run.Option{run.WithLogger(log), run.WithDiagnostics(diag)}
	if progress != nil {
		opts = append(opts, run.WithProgress(progress))
	}
	m, err := run.NewManager(b.store, run.Options{
		RunID:            meta.ID,
		RunNumber:        number,
		Events:           events,
		Workers:          b.cfg.Threads,
		Seed:             b.cfg.Seed,
		Format:           output.Format(b.cfg.Format),
		Flux:             b.cfg.Flux,
		Dir:              dir,
		GunEnergy:        b.cfg.GunEnergy,
		ProgressInterval: b.cfg.ProgressInterval,
	}, opts...)
	if err != nil {
		return nil, err
	}
	log.Infof("Running with %d threads", m.Options().Workers)

	summary, err := m.Run(ctx)
	if err != nil {
		return nil, err
	}
	if n := diag.Count(); n > 0 {
		log.Warnf("%d diagnostics written to %s", n, filepath.Join(dir, "diagnostics.jsonl"))
	}

	if err := b.st.Save(meta, summary); err != nil {
		return nil, fmt.Errorf("failed to save run metadata: %w", err)
	}
	if err := b.catalog.Record(ctx, meta, storage.DetectorRows(summary.Detectors)); err != nil {
		return nil, err
	}
	return summary, nil
}

func (b *batcher) Close() error {
	return b.catalog.Close()
}
