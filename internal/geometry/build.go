// Package geometry turns a validated detector configuration into placed detector volumes.
//
// Detectors are He-3 tubes with their axis along z, centred in the z=0 plane,
// inside a polyethylene moderator box centred on the origin. The index of a
// detector in Geometry.Detectors is its DetectorID.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nboxsim/internal/detector"
)

// ModeratorVolume is the name flux recording filters on.
const ModeratorVolume = "ModeratorBox"

// Detector is one placed tube.
type Detector struct {
	ID          int
	Name        string
	TypeName    string
	Position    r3.Vec
	OuterRadius float64 // mm
	InnerRadius float64 // mm, gas radius
	HalfLength  float64 // mm
	Gas         Material
}

// Contains reports whether p lies inside the gas volume.
func (d Detector) Contains(p r3.Vec) bool {
	dx, dy := p.X-d.Position.X, p.Y-d.Position.Y
	return dx*dx+dy*dy <= d.InnerRadius*d.InnerRadius && math.Abs(p.Z-d.Position.Z) <= d.HalfLength
}

// Geometry is the constructed world.
type Geometry struct {
	Box       detector.Box
	Moderator Material
	Wall      Material
	Detectors []Detector
}

// Build constructs one Detector per placement, in placement order. The store
// must have passed Validate. Gas materials come from cache, which may be shared.
func Build(store *detector.Store, cache *MaterialCache) (*Geometry, error) {
	if !store.IsValidated() {
		return nil, detector.ErrNotValidated
	}
	if !store.IsGeometryLoaded() {
		return nil, fmt.Errorf("geometry: no geometry loaded")
	}
	if cache == nil {
		cache = NewMaterialCache()
	}

	placements := store.Placements()
	g := &Geometry{
		Box:       store.Box(),
		Moderator: Polyethylene,
		Wall:      Aluminium,
		Detectors: make([]Detector, 0, len(placements)),
	}
	for i, p := range placements {
		t, err := store.Type(p.Type)
		if err != nil {
			return nil, &detector.PlacementError{Index: i, Placement: p.Name, Type: p.Type}
		}
		g.Detectors = append(g.Detectors, Detector{
			ID:          i,
			Name:        p.Name,
			TypeName:    t.Name,
			Position:    p.Position(),
			OuterRadius: t.OuterRadius(),
			InnerRadius: t.InnerRadius(),
			HalfLength:  t.Length / 2,
			Gas:         cache.Get(t.Name, t.Pressure),
		})
	}
	return g, nil
}

func (g *Geometry) NumDetectors() int { return len(g.Detectors) }

// Detector returns the detector with the given ID.
func (g *Geometry) Detector(id int) (Detector, error) {
	if id < 0 || id >= len(g.Detectors) {
		return Detector{}, fmt.Errorf("%w: %d not in [0, %d)", detector.ErrIndexOutOfRange, id, len(g.Detectors))
	}
	return g.Detectors[id], nil
}

// Names lists detector names in ID order.
func (g *Geometry) Names() []string {
	names := make([]string, len(g.Detectors))
	for i, d := range g.Detectors {
		names[i] = d.Name
	}
	return names
}

// InModerator reports whether p lies inside the moderator box.
func (g *Geometry) InModerator(p r3.Vec) bool {
	return math.Abs(p.X) <= g.Box.X/2 && math.Abs(p.Y) <= g.Box.Y/2 && math.Abs(p.Z) <= g.Box.Z/2
}
