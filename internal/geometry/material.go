package geometry

import (
	"fmt"
	"sync"
)

// Physical constants for the fill gas.
const (
	RoomTemperature = 293.15   // K
	GasConstant     = 8.314    // J/(mol K)
	He3MolarMass    = 3.016029 // g/mol
	kPaToPa         = 1000.0
	gPerM3ToGPerCm3 = 1e-6
)

// Fixed materials of the setup, densities in g/cm3.
var (
	Polyethylene = Material{Name: "G4_POLYETHYLENE", Density: 0.94}
	Aluminium    = Material{Name: "G4_Al", Density: 2.699}
)

type Material struct {
	Name        string
	Density     float64 // g/cm3
	Pressure    float64 // kPa, zero for solids
	Temperature float64 // K
}

// GasDensity returns the He-3 density in g/cm3 at pressureKPa and room
// temperature, from the ideal-gas law rho = P M / (R T).
func GasDensity(pressureKPa float64) float64 {
	p := pressureKPa * kPaToPa
	return p * He3MolarMass / (GasConstant * RoomTemperature) * gPerM3ToGPerCm3
}

type materialKey struct {
	typeName string
	pressure float64
}

// MaterialCache memoises fill gases by (type, pressure). It is safe for
// concurrent use, so workers building their geometry can share one.
type MaterialCache struct {
	mu      sync.Mutex
	entries map[materialKey]Material
	misses  int
}

func NewMaterialCache() *MaterialCache {
	return &MaterialCache{entries: make(map[materialKey]Material)}
}

// Get returns the fill gas for a detector type, computing it on first use.
func (c *MaterialCache) Get(typeName string, pressureKPa float64) Material {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := materialKey{typeName, pressureKPa}
	if m, ok := c.entries[k]; ok {
		return m
	}
	m := Material{
		Name:        fmt.Sprintf("He3Gas_%s_%gkPa", typeName, pressureKPa),
		Density:     GasDensity(pressureKPa),
		Pressure:    pressureKPa,
		Temperature: RoomTemperature,
	}
	c.entries[k] = m
	c.misses++
	return m
}

// Len is the number of distinct materials built so far.
func (c *MaterialCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}
