package spectrum

import (
	"math"
	"math/rand"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// NeutronMass in MeV/c^2.
const NeutronMass = 939.56542

// Primary is one emitted source neutron.
type Primary struct {
	Position      r3.Vec  // mm
	Direction     r3.Vec  // unit
	KineticEnergy float64 // MeV
	P4            fmom.PxPyPzE
}

// Generator emits isotropic neutrons from a point. Energy comes from the
// configured source, or from the fallback when no source is configured.
type Generator struct {
	source   Source
	fallback float64
	origin   r3.Vec
}

func NewGenerator(src Source, fallbackMeV float64) *Generator {
	return &Generator{source: src, fallback: fallbackMeV}
}

// At moves the emission point.
func (g *Generator) At(origin r3.Vec) *Generator {
	g.origin = origin
	return g
}

func (g *Generator) Source() Source { return g.source }

func (g *Generator) Generate(rng *rand.Rand) Primary {
	ekin := g.fallback
	if e, ok := g.source.Sample(rng); ok {
		ekin = e
	}
	dir := IsotropicDirection(rng)

	etot := ekin + NeutronMass
	p := math.Sqrt(math.Max(etot*etot-NeutronMass*NeutronMass, 0))
	return Primary{
		Position:      g.origin,
		Direction:     dir,
		KineticEnergy: ekin,
		P4:            fmom.NewPxPyPzE(p*dir.X, p*dir.Y, p*dir.Z, etot),
	}
}
