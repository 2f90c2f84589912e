package transport

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nboxsim/internal/geometry"
	"github.com/san-kum/nboxsim/internal/spectrum"
)

// He-3(n,p)H-3 capture.
const (
	He3ThermalCrossSection = 5330.0  // barn at ThermalEnergy
	ThermalEnergy          = 2.53e-8 // MeV, kT at 293 K
	QValue                 = 0.764   // MeV
	ProtonEnergy           = 0.573   // MeV
	TritonEnergy           = 0.191   // MeV
	FluxEnergyCut          = 0.5e-6  // MeV
	barn                   = 1e-24   // cm2
	avogadro               = 6.02214076e23
	speedOfLight           = 299.792458 // mm/ns
)

// RayCast is a minimal engine: neutrons fly straight between collisions in the
// moderator, lose energy on hydrogen, and are captured in detector gas with
// probability 1 - exp(-n sigma(E) chord). A capture deposits the reaction
// products locally. It is a stand-in for a real transport code.
type RayCast struct {
	geo *geometry.Geometry

	// MeanFreePath is the moderator scattering length in mm.
	MeanFreePath float64
	// Absorption is the per-collision capture probability on hydrogen once thermal.
	Absorption    float64
	MaxCollisions int

	density []float64 // per detector, He-3 atoms per cm3
}

func NewRayCast(geo *geometry.Geometry) *RayCast {
	r := &RayCast{
		geo:           geo,
		MeanFreePath:  10,
		Absorption:    0.0165,
		MaxCollisions: 2000,
		density:       make([]float64, len(geo.Detectors)),
	}
	for i, d := range geo.Detectors {
		r.density[i] = d.Gas.Density / geometry.He3MolarMass * avogadro
	}
	return r
}

// CrossSection is the He-3 capture cross-section in barn, 1/v scaled.
func CrossSection(ekin float64) float64 {
	if ekin <= 0 {
		return 0
	}
	return He3ThermalCrossSection * math.Sqrt(ThermalEnergy/ekin)
}

// Speed in mm/ns, non-relativistic.
func Speed(ekin float64) float64 {
	return speedOfLight * math.Sqrt(2*ekin/spectrum.NeutronMass)
}

type crossing struct {
	id          int
	enter, exit float64
}

func (r *RayCast) Transport(eventID int, p spectrum.Primary, rng *rand.Rand, h StepHandler) error {
	pos, dir, ekin := p.Position, p.Direction, p.KineticEnergy
	t := 0.0

	for n := 0; n < r.MaxCollisions; n++ {
		if !r.geo.InModerator(pos) || ekin <= 0 {
			return nil
		}

		dist := -r.MeanFreePath * math.Log(1-rng.Float64())
		exit := r.boxExit(pos, dir)
		escaping := dist >= exit
		if escaping {
			dist = exit
		}

		if id, at, ok := r.capture(pos, dir, dist, ekin, rng); ok {
			end := r3.Add(pos, r3.Scale(at, dir))
			r.flux(h, eventID, pos, end, ekin, at, t)
			tc := t + at/Speed(ekin)
			d := r.geo.Detectors[id]
			for _, prod := range [2]struct {
				p Particle
				e float64
			}{{Proton, ProtonEnergy}, {Triton, TritonEnergy}} {
				h.OnStep(Step{
					EventID:       eventID,
					Particle:      prod.p,
					Volume:        d.Name,
					DetectorID:    id,
					Pre:           end,
					Post:          end,
					KineticEnergy: prod.e,
					Edep:          prod.e,
					Time:          tc,
				})
			}
			return nil
		}

		end := r3.Add(pos, r3.Scale(dist, dir))
		r.flux(h, eventID, pos, end, ekin, dist, t)
		t += dist / Speed(ekin)
		pos = end
		if escaping {
			return nil
		}

		if ekin > ThermalEnergy {
			ekin = math.Max(ekin*rng.Float64(), ThermalEnergy)
		} else if rng.Float64() < r.Absorption {
			return nil
		}
		dir = spectrum.IsotropicDirection(rng)
	}
	return nil
}

func (r *RayCast) flux(h StepHandler, eventID int, from, to r3.Vec, ekin, length, t float64) {
	h.OnStep(Step{
		EventID:       eventID,
		Particle:      Neutron,
		Volume:        geometry.ModeratorVolume,
		DetectorID:    -1,
		Pre:           from,
		Post:          to,
		KineticEnergy: ekin,
		Length:        length,
		Time:          t,
	})
}

// capture walks the gas volumes crossed by the segment in order and samples a
// capture in each. It returns the detector and the distance along dir.
func (r *RayCast) capture(pos, dir r3.Vec, dist, ekin float64, rng *rand.Rand) (int, float64, bool) {
	var hits []crossing
	for i, d := range r.geo.Detectors {
		if enter, exit, ok := chord(d, pos, dir, dist); ok {
			hits = append(hits, crossing{i, enter, exit})
		}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].enter < hits[b].enter })

	sigma := CrossSection(ekin) * barn
	for _, c := range hits {
		macro := r.density[c.id] * sigma / 10 // per mm
		length := c.exit - c.enter
		p := 1 - math.Exp(-macro*length)
		u := rng.Float64()
		if u < p {
			depth := -math.Log(1-u) / macro
			return c.id, c.enter + math.Min(depth, length), true
		}
	}
	return -1, 0, false
}

// chord intersects the segment pos + s*dir, s in [0, maxLen], with the gas
// cylinder of d.
func chord(d geometry.Detector, pos, dir r3.Vec, maxLen float64) (float64, float64, bool) {
	lo, hi := 0.0, maxLen

	px, py := pos.X-d.Position.X, pos.Y-d.Position.Y
	a := dir.X*dir.X + dir.Y*dir.Y
	c := px*px + py*py - d.InnerRadius*d.InnerRadius
	if a < 1e-15 {
		if c > 0 {
			return 0, 0, false
		}
	} else {
		b := 2 * (dir.X*px + dir.Y*py)
		disc := b*b - 4*a*c
		if disc <= 0 {
			return 0, 0, false
		}
		sq := math.Sqrt(disc)
		lo = math.Max(lo, (-b-sq)/(2*a))
		hi = math.Min(hi, (-b+sq)/(2*a))
	}

	zlo, zhi := d.Position.Z-d.HalfLength, d.Position.Z+d.HalfLength
	if math.Abs(dir.Z) < 1e-15 {
		if pos.Z < zlo || pos.Z > zhi {
			return 0, 0, false
		}
	} else {
		t0, t1 := (zlo-pos.Z)/dir.Z, (zhi-pos.Z)/dir.Z
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo = math.Max(lo, t0)
		hi = math.Min(hi, t1)
	}

	if hi <= lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// boxExit is the distance from an inside point to the moderator surface along dir.
func (r *RayCast) boxExit(pos, dir r3.Vec) float64 {
	half := [3]float64{r.geo.Box.X / 2, r.geo.Box.Y / 2, r.geo.Box.Z / 2}
	p := [3]float64{pos.X, pos.Y, pos.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	best := math.Inf(1)
	for i := 0; i < 3; i++ {
		switch {
		case d[i] > 0:
			best = math.Min(best, (half[i]-p[i])/d[i])
		case d[i] < 0:
			best = math.Min(best, (-half[i]-p[i])/d[i])
		}
	}
	return math.Max(best, 0)
}
