package spectrum

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Table is an empirical density over contiguous bins.
type Table struct {
	name     string
	edges    []float64
	contents []float64
	cdf      []float64
}

// NewTable builds a table from bin edges (len n+1, strictly increasing) and
// bin contents (len n, non-negative). The cumulative table is built here.
func NewTable(name string, edges, contents []float64) (*Table, error) {
	if len(contents) == 0 || len(edges) != len(contents)+1 {
		return nil, fmt.Errorf("spectrum: table %q needs n+1 edges for n bins, got %d edges and %d bins", name, len(edges), len(contents))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, fmt.Errorf("spectrum: table %q edges not increasing at bin %d", name, i-1)
		}
	}

	cdf := make([]float64, len(edges))
	for i, c := range contents {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: table %q bin %d = %g", ErrInvalidDensity, name, i, c)
		}
		cdf[i+1] = cdf[i] + c
	}

	total := cdf[len(cdf)-1]
	if total <= 0 {
		return nil, fmt.Errorf("%w: table %q", ErrEmptySpectrum, name)
	}
	for i := range cdf {
		cdf[i] /= total
	}
	cdf[len(cdf)-1] = 1

	return &Table{
		name:     name,
		edges:    append([]float64(nil), edges...),
		contents: append([]float64(nil), contents...),
		cdf:      cdf,
	}, nil
}

// UniformTable builds a table with nbins equal-width bins over [lo, hi).
func UniformTable(name string, lo, hi float64, contents []float64) (*Table, error) {
	n := len(contents)
	if n == 0 || !(hi > lo) {
		return nil, fmt.Errorf("spectrum: table %q needs hi > lo and at least one bin", name)
	}
	edges := make([]float64, n+1)
	w := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*w
	}
	edges[n] = hi
	return NewTable(name, edges, contents)
}

func (t *Table) Name() string { return t.name }

func (t *Table) Kind() Kind { return KindTable }

func (t *Table) Range() (float64, float64) { return t.edges[0], t.edges[len(t.edges)-1] }

func (t *Table) NumBins() int { return len(t.contents) }

// Mean is the content-weighted mean of bin centres.
func (t *Table) Mean() float64 {
	sum, w := 0.0, 0.0
	for i, c := range t.contents {
		sum += c * 0.5 * (t.edges[i] + t.edges[i+1])
		w += c
	}
	return sum / w
}

// Sample picks a bin proportionally to its content, then a uniform point inside it.
func (t *Table) Sample(rng *rand.Rand) float64 {
	r := rng.Float64()
	n := len(t.contents)
	k := sort.Search(n, func(i int) bool { return t.cdf[i+1] > r })
	if k >= n {
		k = n - 1
	}
	lo, hi := t.cdf[k], t.cdf[k+1]
	frac := 0.0
	if hi > lo {
		frac = (r - lo) / (hi - lo)
	}
	return t.edges[k] + frac*(t.edges[k+1]-t.edges[k])
}
