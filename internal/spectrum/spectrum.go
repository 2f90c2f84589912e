package spectrum

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptySpectrum indicates a density with no positive content to sample from.
	ErrEmptySpectrum = errors.New("spectrum: density has no positive content")

	// ErrInvalidDensity indicates a negative or non-finite density value.
	ErrInvalidDensity = errors.New("spectrum: density is negative or not finite")

	// ErrUnsupported indicates a file or object this package cannot decode.
	ErrUnsupported = errors.New("spectrum: unsupported source object")
)

// Kind identifies the active sampling strategy.
type Kind int

const (
	KindNone Kind = iota
	KindMono
	KindTable
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindMono:
		return "mono"
	case KindTable:
		return "histogram"
	case KindFunction:
		return "function"
	default:
		return "none"
	}
}

// Sampler draws one energy per call from the caller's random stream.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// Object is a named spectrum read from a source file.
type Object interface {
	Sampler
	Name() string
	Kind() Kind
	Range() (lo, hi float64)
}

// Mono is a monoenergetic source.
type Mono float64

func (m Mono) Sample(*rand.Rand) float64 { return float64(m) }

// Source is the active spectrum: exactly one strategy, or none.
type Source struct {
	kind    Kind
	sampler Sampler
}

func FromTable(t *Table) Source { return Source{kind: KindTable, sampler: t} }

func FromFunction(f *Function) Source { return Source{kind: KindFunction, sampler: f} }

func FromMono(energy float64) Source { return Source{kind: KindMono, sampler: Mono(energy)} }

func (s Source) Kind() Kind { return s.kind }

// Sample draws an energy. When no source is configured it returns (0, false) and the
// caller keeps whatever energy it already has.
func (s Source) Sample(rng *rand.Rand) (float64, bool) {
	if s.sampler == nil {
		return 0, false
	}
	return s.sampler.Sample(rng), true
}

// IsotropicDirection returns a unit vector uniformly distributed over the sphere.
// cos(theta) is drawn uniformly in [-1, 1], not theta itself.
func IsotropicDirection(rng *rand.Rand) r3.Vec {
	cosTheta := 2*rng.Float64() - 1
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * rng.Float64()
	return r3.Vec{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}
}
