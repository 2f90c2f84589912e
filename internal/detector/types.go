package detector

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Type is one entry of the detector-type catalog. Lengths in mm, pressure in kPa.
type Type struct {
	Name          string  `json:"name" yaml:"name"`
	Diameter      float64 `json:"Diameter" yaml:"Diameter"`
	Length        float64 `json:"Length" yaml:"Length"`
	WallThickness float64 `json:"WallT" yaml:"WallT"`
	Pressure      float64 `json:"Pressure" yaml:"Pressure"`
}

func (t Type) OuterRadius() float64 { return t.Diameter / 2 }

func (t Type) InnerRadius() float64 { return t.Diameter/2 - t.WallThickness }

// Placement positions one detector instance in the box.
// Its index in the store is the DetectorID.
type Placement struct {
	Name string  `json:"name" yaml:"name"`
	Type string  `json:"type" yaml:"type"`
	R    float64 `json:"R" yaml:"R"`     // mm
	Phi  float64 `json:"Phi" yaml:"Phi"` // degrees, [0, 360)
}

// Position is (R cos phi, R sin phi, 0).
func (p Placement) Position() r3.Vec {
	return polar(p.R, p.Phi)
}

// polar returns the point at radius r and azimuth phiDeg in the z=0 plane.
func polar(r, phiDeg float64) r3.Vec {
	phi := phiDeg * math.Pi / 180
	return r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi)}
}

// Box is the moderator volume, full edge lengths in mm.
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (b Box) Volume() float64 { return b.X * b.Y * b.Z }

func normalizeDegrees(phi float64) float64 {
	phi = math.Mod(phi, 360)
	if phi < 0 {
		phi += 360
	}
	if phi >= 360 {
		phi = 0
	}
	return phi
}
