package output

import (
	"github.com/san-kum/nboxsim/internal/geometry"
	"github.com/san-kum/nboxsim/internal/transport"
)

// FluxRecorder writes thermal-neutron steps in the moderator to the flux table.
type FluxRecorder struct {
	w      Writer
	volume string
	cut    float64 // MeV
	err    error
}

// NewFluxRecorder records neutron steps in the moderator volume whose pre-step
// kinetic energy is at most transport.FluxEnergyCut.
func NewFluxRecorder(w Writer) *FluxRecorder {
	return &FluxRecorder{w: w, volume: geometry.ModeratorVolume, cut: transport.FluxEnergyCut}
}

func (f *FluxRecorder) OnStep(s transport.Step) {
	if f.err != nil || s.Particle != transport.Neutron || s.Volume != f.volume || s.KineticEnergy > f.cut {
		return
	}
	f.w.SetInt(ColFluxEventID, int32(s.EventID))
	f.w.SetFloat(ColFluxX, s.Pre.X)
	f.w.SetFloat(ColFluxY, s.Pre.Y)
	f.w.SetFloat(ColFluxZ, s.Pre.Z)
	f.w.SetFloat(ColFluxEnergy, s.KineticEnergy*1e6)
	f.w.SetFloat(ColFluxStepLength, s.Length)
	f.err = f.w.Commit()
}

// Err is the first write error; recording stops after it.
func (f *FluxRecorder) Err() error { return f.err }

func (f *FluxRecorder) Rows() int64 { return f.w.Rows() }

func (f *FluxRecorder) Close() error { return f.w.Close() }
