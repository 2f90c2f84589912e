// Package transport is the boundary to the particle-transport engine.
//
// An Engine tracks one primary through the world and reports every step to a
// StepHandler. Hit aggregation and flux recording are step handlers; neither
// knows which engine drives them.
package transport

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nboxsim/internal/spectrum"
)

type Particle int

const (
	Neutron Particle = iota
	Proton
	Triton
	Gamma
)

func (p Particle) String() string {
	switch p {
	case Neutron:
		return "neutron"
	case Proton:
		return "proton"
	case Triton:
		return "triton"
	case Gamma:
		return "gamma"
	default:
		return "unknown"
	}
}

// Step is one transport step. Energies MeV, lengths mm, times ns.
type Step struct {
	EventID       int
	Particle      Particle
	Volume        string // physical volume of the pre-step point
	DetectorID    int    // -1 outside sensitive volumes
	Pre           r3.Vec
	Post          r3.Vec
	KineticEnergy float64 // at the pre-step point
	Edep          float64
	Length        float64
	Time          float64 // global time at the pre-step point
}

type StepHandler interface {
	OnStep(s Step)
}

type StepHandlerFunc func(Step)

func (f StepHandlerFunc) OnStep(s Step) { f(s) }

// Handlers fans each step out to every non-nil handler in order.
func Handlers(hs ...StepHandler) StepHandler {
	var out multi
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

type multi []StepHandler

func (m multi) OnStep(s Step) {
	for _, h := range m {
		h.OnStep(s)
	}
}

// Engine tracks a primary to completion. Implementations draw randomness only
// from rng so a worker's event is reproducible from its seed.
type Engine interface {
	Transport(eventID int, p spectrum.Primary, rng *rand.Rand, h StepHandler) error
}
