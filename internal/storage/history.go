package storage

import (
	"context"
	"errors"
)

// History answers list and show queries. The catalog is authoritative; run
// directories are read only when the catalog has no rows for the query.
type History struct {
	st  *Store
	cat *Catalog
}

func NewHistory(st *Store, cat *Catalog) *History {
	return &History{st: st, cat: cat}
}

// RunRecord is one run as shown to the user. Meta is nil when the run
// directory no longer holds metadata.json.
type RunRecord struct {
	Entry     CatalogEntry
	Meta      *RunMetadata
	Detectors []DetectorRow
}

func (h *History) Runs(ctx context.Context) ([]CatalogEntry, error) {
	entries, err := h.cat.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	metas, err := h.st.List()
	if err != nil {
		return nil, err
	}
	for _, m := range metas {
		entries = append(entries, m.Entry())
	}
	return entries, nil
}

func (h *History) Run(ctx context.Context, id string) (*RunRecord, error) {
	meta, err := h.st.Load(id)
	if err != nil && !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}

	rec := &RunRecord{Meta: meta}
	entry, err := h.cat.Run(ctx, id)
	switch {
	case err == nil:
		rec.Entry = *entry
	case errors.Is(err, ErrRunNotFound) && meta != nil:
		rec.Entry = meta.Entry()
	default:
		return nil, err
	}

	rec.Detectors, err = h.cat.Detectors(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rec.Detectors) == 0 && meta != nil {
		ds, err := h.st.LoadDetectors(id)
		if err != nil {
			return nil, err
		}
		rec.Detectors = DetectorRows(ds)
	}
	return rec, nil
}

// Entry is the catalog view of a run directory's metadata.
func (m *RunMetadata) Entry() CatalogEntry {
	return CatalogEntry{
		ID:        m.ID,
		Number:    m.Number,
		StartedAt: m.Timestamp,
		Seed:      m.Seed,
		Workers:   m.Workers,
		Format:    m.Format,
		Source:    m.Source,
		Counters:  m.Counters,
		ElapsedMS: m.ElapsedMS,
	}
}
