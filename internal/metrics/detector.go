package metrics

import (
	"github.com/san-kum/nboxsim/internal/hits"
)

// DetectorStats counts hits and deposited energy per detector. Each worker
// keeps its own and they are merged at run end.
type DetectorStats struct {
	names []string
	hits  []int64
	edep  []float64 // MeV
}

func NewDetectorStats(names []string) *DetectorStats {
	return &DetectorStats{
		names: append([]string(nil), names...),
		hits:  make([]int64, len(names)),
		edep:  make([]float64, len(names)),
	}
}

func (d *DetectorStats) ObserveHit(h hits.Hit) {
	if h.DetectorID < 0 || h.DetectorID >= len(d.hits) {
		return
	}
	d.hits[h.DetectorID]++
	d.edep[h.DetectorID] += h.Edep
}

// Merge adds o into d. Both must describe the same detectors.
func (d *DetectorStats) Merge(o *DetectorStats) {
	if o == nil {
		return
	}
	for i := range d.hits {
		if i >= len(o.hits) {
			break
		}
		d.hits[i] += o.hits[i]
		d.edep[i] += o.edep[i]
	}
}

func (d *DetectorStats) Hits(id int) int64 {
	if id < 0 || id >= len(d.hits) {
		return 0
	}
	return d.hits[id]
}

func (d *DetectorStats) Reset() {
	for i := range d.hits {
		d.hits[i] = 0
		d.edep[i] = 0
	}
}

type DetectorSummary struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Hits        int64   `json:"hits"`
	MeanEdepKeV float64 `json:"mean_edep_kev"`
	Rate        float64 `json:"rate"`
}

// Summaries reports each detector, with Rate as hits per event.
func (d *DetectorStats) Summaries(events int64) []DetectorSummary {
	out := make([]DetectorSummary, len(d.names))
	for i, n := range d.names {
		s := DetectorSummary{ID: i, Name: n, Hits: d.hits[i]}
		if d.hits[i] > 0 {
			s.MeanEdepKeV = d.edep[i] / float64(d.hits[i]) * 1000
		}
		if events > 0 {
			s.Rate = float64(d.hits[i]) / float64(events)
		}
		out[i] = s
	}
	return out
}
