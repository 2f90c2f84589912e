package detector

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Raw documents use pointer fields so a missing key is told apart from zero.
type typeDoc struct {
	Name     *string  `yaml:"name"`
	Diameter *float64 `yaml:"Diameter"`
	Length   *float64 `yaml:"Length"`
	WallT    *float64 `yaml:"WallT"`
	Pressure *float64 `yaml:"Pressure"`
}

type typesFile struct {
	Detectors *[]typeDoc `yaml:"detectors"`
}

type boxDoc struct {
	X *float64 `yaml:"x"`
	Y *float64 `yaml:"y"`
	Z *float64 `yaml:"z"`
}

type placementDoc struct {
	Name *string  `yaml:"name"`
	Type *string  `yaml:"type"`
	R    *float64 `yaml:"R"`
	Phi  *float64 `yaml:"Phi"`
}

type geometryFile struct {
	Box        *boxDoc         `yaml:"Box"`
	Placements *[]placementDoc `yaml:"Placements"`
}

var errMissingField = errors.New("missing required field")

func readDoc(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr(path, "cannot open file", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, loadErr(path, "parse error", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, loadErr(path, "empty document", nil)
	}
	return root.Content[0], nil
}

// parseTypes accepts {"detectors": [...]} or a bare array of type objects.
func parseTypes(path string) ([]Type, error) {
	node, err := readDoc(path)
	if err != nil {
		return nil, err
	}

	var docs []typeDoc
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&docs); err != nil {
			return nil, loadErr(path, "decode detectors", err)
		}
	case yaml.MappingNode:
		var f typesFile
		if err := node.Decode(&f); err != nil {
			return nil, loadErr(path, "decode detectors", err)
		}
		if f.Detectors == nil {
			return nil, loadErr(path, "missing 'detectors' array", nil)
		}
		docs = *f.Detectors
	default:
		return nil, loadErr(path, "expected object or array at top level", nil)
	}

	types := make([]Type, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if d.Name == nil || d.Diameter == nil || d.Length == nil || d.WallT == nil || d.Pressure == nil {
			return nil, loadErr(path, fmt.Sprintf("detector %d needs name, Diameter, Length, WallT and Pressure", i), errMissingField)
		}
		t := Type{
			Name:          *d.Name,
			Diameter:      *d.Diameter,
			Length:        *d.Length,
			WallThickness: *d.WallT,
			Pressure:      *d.Pressure,
		}
		if err := checkType(t); err != nil {
			return nil, loadErr(path, fmt.Sprintf("detector %d %q", i, t.Name), err)
		}
		if seen[t.Name] {
			return nil, loadErr(path, fmt.Sprintf("duplicate detector type %q", t.Name), nil)
		}
		seen[t.Name] = true
		types = append(types, t)
	}
	return types, nil
}

func checkType(t Type) error {
	if t.Name == "" {
		return errors.New("empty name")
	}
	for _, v := range [4]float64{t.Diameter, t.Length, t.WallThickness, t.Pressure} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("dimensions and pressure must be positive, got D=%g L=%g WallT=%g P=%g",
				t.Diameter, t.Length, t.WallThickness, t.Pressure)
		}
	}
	if t.WallThickness >= t.Diameter/2 {
		return fmt.Errorf("wall thickness %g leaves no gas volume in diameter %g", t.WallThickness, t.Diameter)
	}
	return nil
}

func parseGeometry(path string) (Box, []Placement, error) {
	node, err := readDoc(path)
	if err != nil {
		return Box{}, nil, err
	}
	if node.Kind != yaml.MappingNode {
		return Box{}, nil, loadErr(path, "expected object at top level", nil)
	}
	var f geometryFile
	if err := node.Decode(&f); err != nil {
		return Box{}, nil, loadErr(path, "decode geometry", err)
	}

	if f.Box == nil {
		return Box{}, nil, loadErr(path, "missing 'Box' section", nil)
	}
	if f.Box.X == nil || f.Box.Y == nil || f.Box.Z == nil {
		return Box{}, nil, loadErr(path, "Box needs x, y and z", errMissingField)
	}
	box := Box{X: *f.Box.X, Y: *f.Box.Y, Z: *f.Box.Z}
	for _, v := range [3]float64{box.X, box.Y, box.Z} {
		if !(v > 0) || math.IsInf(v, 0) {
			return Box{}, nil, loadErr(path, fmt.Sprintf("Box dimensions must be positive and finite, got (%g, %g, %g)", box.X, box.Y, box.Z), nil)
		}
	}

	if f.Placements == nil {
		return Box{}, nil, loadErr(path, "missing 'Placements' array", nil)
	}
	placements := make([]Placement, 0, len(*f.Placements))
	seen := make(map[string]bool, len(*f.Placements))
	for i, d := range *f.Placements {
		if d.Name == nil || d.Type == nil || d.R == nil || d.Phi == nil {
			return Box{}, nil, loadErr(path, fmt.Sprintf("placement %d needs name, type, R and Phi", i), errMissingField)
		}
		p := Placement{Name: *d.Name, Type: *d.Type, R: *d.R, Phi: *d.Phi}
		if p.R < 0 || math.IsNaN(p.R) || math.IsInf(p.R, 0) {
			return Box{}, nil, loadErr(path, fmt.Sprintf("placement %q has invalid radius %g", p.Name, p.R), nil)
		}
		if math.IsNaN(p.Phi) || math.IsInf(p.Phi, 0) {
			return Box{}, nil, loadErr(path, fmt.Sprintf("placement %q has invalid azimuth %g", p.Name, p.Phi), nil)
		}
		if seen[p.Name] {
			return Box{}, nil, loadErr(path, fmt.Sprintf("duplicate placement %q", p.Name), nil)
		}
		seen[p.Name] = true
		p.Phi = normalizeDegrees(p.Phi)
		placements = append(placements, p)
	}
	return box, placements, nil
}
