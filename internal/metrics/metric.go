package metrics

import (
	"math"

	"github.com/san-kum/nboxsim/internal/hits"
)

// Metric reduces the hits of a run to one number. Merge folds in another
// worker's metric of the same kind and ignores anything else.
type Metric interface {
	Name() string
	ObserveHit(h hits.Hit)
	Merge(o Metric)
	Value() float64
	Reset()
}

// Default is the set reported with every run.
func Default() []Metric {
	return []Metric{NewMeanEdep(), NewFullEnergyFraction(764, 20)}
}

// Values maps each metric's name to its value.
func Values(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// MeanEdep is the average deposited energy per hit in keV.
type MeanEdep struct {
	name    string
	samples int
	total   float64
}

func NewMeanEdep() *MeanEdep { return &MeanEdep{name: "mean_edep_kev"} }

func (m *MeanEdep) Name() string { return m.name }

func (m *MeanEdep) ObserveHit(h hits.Hit) {
	m.total += h.Edep * 1000
	m.samples++
}

func (m *MeanEdep) Merge(o Metric) {
	if other, ok := o.(*MeanEdep); ok {
		m.total += other.total
		m.samples += other.samples
	}
}

func (m *MeanEdep) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanEdep) Reset() {
	m.total = 0
	m.samples = 0
}

// FullEnergyFraction is the fraction of hits within tolerance of the full
// reaction energy; wall effect losses fall below it.
type FullEnergyFraction struct {
	name      string
	peak      float64 // keV
	tolerance float64 // keV
	samples   int
	inPeak    int
}

func NewFullEnergyFraction(peakKeV, toleranceKeV float64) *FullEnergyFraction {
	return &FullEnergyFraction{name: "full_energy_fraction", peak: peakKeV, tolerance: toleranceKeV}
}

func (f *FullEnergyFraction) Name() string { return f.name }

func (f *FullEnergyFraction) ObserveHit(h hits.Hit) {
	f.samples++
	if math.Abs(h.Edep*1000-f.peak) <= f.tolerance {
		f.inPeak++
	}
}

func (f *FullEnergyFraction) Merge(o Metric) {
	if other, ok := o.(*FullEnergyFraction); ok {
		f.samples += other.samples
		f.inPeak += other.inPeak
	}
}

func (f *FullEnergyFraction) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.inPeak) / float64(f.samples)
}

func (f *FullEnergyFraction) Reset() {
	f.samples = 0
	f.inPeak = 0
}

// EdepSpectrum histograms deposited energy in keV over [lo, hi).
type EdepSpectrum struct {
	lo, hi float64
	bins   []int64
}

func NewEdepSpectrum(lo, hi float64, nbins int) *EdepSpectrum {
	return &EdepSpectrum{lo: lo, hi: hi, bins: make([]int64, nbins)}
}

func (e *EdepSpectrum) ObserveHit(h hits.Hit) {
	kev := h.Edep * 1000
	if kev < e.lo || kev >= e.hi || len(e.bins) == 0 {
		return
	}
	i := int((kev - e.lo) / (e.hi - e.lo) * float64(len(e.bins)))
	if i >= len(e.bins) {
		i = len(e.bins) - 1
	}
	e.bins[i]++
}

func (e *EdepSpectrum) Merge(o *EdepSpectrum) {
	if o == nil {
		return
	}
	for i := range e.bins {
		if i < len(o.bins) {
			e.bins[i] += o.bins[i]
		}
	}
}

// Counts returns the bin contents as floats, ready for plotting.
func (e *EdepSpectrum) Counts() []float64 {
	out := make([]float64, len(e.bins))
	for i, c := range e.bins {
		out[i] = float64(c)
	}
	return out
}
