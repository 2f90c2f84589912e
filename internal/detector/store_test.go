package detector

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/nboxsim/internal/spectrum"
)

const standardTypes = `{
  "detectors": [
    {"name": "He3_1inch", "Diameter": 25.4, "Length": 1000, "WallT": 0.8, "Pressure": 405.3}
  ]
}`

const twoPlacements = `{
  "Box": {"x": 500, "y": 500, "z": 1000},
  "Placements": [
    {"name": "Det0", "type": "He3_1inch", "R": 0, "Phi": 0},
    {"name": "Det1", "type": "He3_1inch", "R": 100, "Phi": 0}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func loaded(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New()
	if err := s.LoadTypes(writeFile(t, dir, "det.json", standardTypes)); err != nil {
		t.Fatalf("LoadTypes failed: %v", err)
	}
	if err := s.LoadGeometry(writeFile(t, dir, "geo.json", twoPlacements)); err != nil {
		t.Fatalf("LoadGeometry failed: %v", err)
	}
	return s
}

func TestStore_StandardScenario(t *testing.T) {
	s := loaded(t)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if s.NumPlacements() != 2 {
		t.Fatalf("expected 2 placements, got %d", s.NumPlacements())
	}
	p1, err := s.Placement(1)
	if err != nil {
		t.Fatalf("Placement(1) failed: %v", err)
	}
	if p1.R != 100.0 {
		t.Errorf("expected R=100, got %v", p1.R)
	}

	typ, err := s.Type("He3_1inch")
	if err != nil {
		t.Fatalf("Type failed: %v", err)
	}
	if typ.Diameter != 25.4 || typ.Length != 1000 || typ.WallThickness != 0.8 || typ.Pressure != 405.3 {
		t.Errorf("unexpected type values %+v", typ)
	}
	if got := typ.InnerRadius(); got < 11.89 || got > 11.91 {
		t.Errorf("expected inner radius 11.9, got %v", got)
	}
}

func TestStore_PlacementIndex(t *testing.T) {
	s := loaded(t)
	n := s.NumPlacements()

	for i := 0; i < n; i++ {
		if _, err := s.Placement(i); err != nil {
			t.Errorf("Placement(%d) failed: %v", i, err)
		}
	}
	for _, i := range []int{-1, n} {
		if _, err := s.Placement(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Placement(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func TestStore_ValidateLoadOrder(t *testing.T) {
	dir := t.TempDir()
	det := writeFile(t, dir, "det.json", standardTypes)
	geo := writeFile(t, dir, "geo.json", twoPlacements)
	bad := writeFile(t, dir, "bad.json", `{
  "Box": {"x": 1, "y": 1, "z": 1},
  "Placements": [{"name": "X", "type": "Missing", "R": 0, "Phi": 0}]
}`)

	tests := []struct {
		name    string
		load    func(s *Store) error
		wantErr bool
	}{
		{"types then geometry", func(s *Store) error {
			if err := s.LoadTypes(det); err != nil {
				return err
			}
			return s.LoadGeometry(geo)
		}, false},
		{"geometry then types", func(s *Store) error {
			if err := s.LoadGeometry(geo); err != nil {
				return err
			}
			return s.LoadTypes(det)
		}, false},
		{"geometry without types", func(s *Store) error { return s.LoadGeometry(geo) }, true},
		{"unknown type", func(s *Store) error {
			if err := s.LoadGeometry(bad); err != nil {
				return err
			}
			return s.LoadTypes(det)
		}, true},
		{"nothing loaded", func(s *Store) error { return nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if err := tt.load(s); err != nil {
				t.Fatalf("load failed: %v", err)
			}
			err := s.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrReferentialIntegrity) {
					t.Errorf("expected ErrReferentialIntegrity, got %v", err)
				}
				if s.IsValidated() {
					t.Error("store should not be validated")
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if !s.IsValidated() {
				t.Error("store should be validated")
			}
		})
	}
}

func TestStore_PlacementErrorNamesOffender(t *testing.T) {
	dir := t.TempDir()
	s := New()
	if err := s.LoadTypes(writeFile(t, dir, "det.json", standardTypes)); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadGeometry(writeFile(t, dir, "geo.json", `{
  "Box": {"x": 1, "y": 1, "z": 1},
  "Placements": [
    {"name": "Good", "type": "He3_1inch", "R": 0, "Phi": 0},
    {"name": "Orphan", "type": "BF3", "R": 5, "Phi": 90}
  ]
}`)); err != nil {
		t.Fatal(err)
	}

	var pe *PlacementError
	if err := s.Validate(); !errors.As(err, &pe) {
		t.Fatalf("expected PlacementError, got %v", err)
	}
	if pe.Index != 1 || pe.Placement != "Orphan" || pe.Type != "BF3" {
		t.Errorf("unexpected placement error %+v", pe)
	}
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		types   string
		geo     string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "not json", types: `{{{`},
		{name: "no detectors key", types: `{"other": []}`},
		{name: "missing field", types: `{"detectors": [{"name": "a", "Diameter": 1, "Length": 1, "WallT": 0.1}]}`},
		{name: "negative pressure", types: `{"detectors": [{"name": "a", "Diameter": 1, "Length": 1, "WallT": 0.1, "Pressure": -1}]}`},
		{name: "wall too thick", types: `{"detectors": [{"name": "a", "Diameter": 1, "Length": 1, "WallT": 0.5, "Pressure": 1}]}`},
		{name: "duplicate type", types: `{"detectors": [
			{"name": "a", "Diameter": 1, "Length": 1, "WallT": 0.1, "Pressure": 1},
			{"name": "a", "Diameter": 2, "Length": 1, "WallT": 0.1, "Pressure": 1}]}`},
		{name: "no box", geo: `{"Placements": []}`},
		{name: "no placements", geo: `{"Box": {"x": 1, "y": 1, "z": 1}}`},
		{name: "box missing z", geo: `{"Box": {"x": 1, "y": 1}, "Placements": []}`},
		{name: "infinite box", geo: "Box: {x: .inf, y: 1, z: 1}\nPlacements: []\n"},
		{name: "zero box", geo: `{"Box": {"x": 0, "y": 1, "z": 1}, "Placements": []}`},
		{name: "negative radius", geo: `{"Box": {"x": 1, "y": 1, "z": 1}, "Placements": [{"name": "a", "type": "t", "R": -1, "Phi": 0}]}`},
		{name: "duplicate placement", geo: `{"Box": {"x": 1, "y": 1, "z": 1}, "Placements": [
			{"name": "a", "type": "t", "R": 1, "Phi": 0},
			{"name": "a", "type": "t", "R": 2, "Phi": 0}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := New()
			var err error
			switch {
			case tt.missing:
				err = s.LoadTypes(filepath.Join(dir, "nope.json"))
			case tt.types != "":
				err = s.LoadTypes(writeFile(t, dir, "det.json", tt.types))
			default:
				err = s.LoadGeometry(writeFile(t, dir, "geo.json", tt.geo))
			}
			if !errors.Is(err, ErrConfigLoad) {
				t.Errorf("expected ErrConfigLoad, got %v", err)
			}
			var le *LoadError
			if !errors.As(err, &le) || le.Path == "" {
				t.Errorf("expected LoadError with path, got %v", err)
			}
			if s.IsTypesLoaded() || s.IsGeometryLoaded() {
				t.Error("failed load must not mark the store loaded")
			}
		})
	}
}

func TestStore_BareTypeArray(t *testing.T) {
	s := New()
	path := writeFile(t, t.TempDir(), "det.json",
		`[{"name": "a", "Diameter": 25.4, "Length": 300, "WallT": 0.5, "Pressure": 1000}]`)
	if err := s.LoadTypes(path); err != nil {
		t.Fatalf("LoadTypes failed: %v", err)
	}
	if s.NumTypes() != 1 || !s.HasType("a") {
		t.Errorf("expected one type named a, got %v", s.Types())
	}
}

func TestStore_PhiNormalized(t *testing.T) {
	s := New()
	path := writeFile(t, t.TempDir(), "geo.json", `{
  "Box": {"x": 1, "y": 1, "z": 1},
  "Placements": [
    {"name": "a", "type": "t", "R": 1, "Phi": 360},
    {"name": "b", "type": "t", "R": 1, "Phi": -90},
    {"name": "c", "type": "t", "R": 1, "Phi": 450}
  ]
}`)
	if err := s.LoadGeometry(path); err != nil {
		t.Fatalf("LoadGeometry failed: %v", err)
	}
	want := []float64{0, 270, 90}
	for i, w := range want {
		p, _ := s.Placement(i)
		if p.Phi != w {
			t.Errorf("placement %d: expected Phi=%v, got %v", i, w, p.Phi)
		}
	}
}

func TestPlacement_Position(t *testing.T) {
	tests := []struct {
		p    Placement
		x, y float64
	}{
		{Placement{R: 0, Phi: 0}, 0, 0},
		{Placement{R: 100, Phi: 0}, 100, 0},
		{Placement{R: 100, Phi: 90}, 0, 100},
		{Placement{R: 50, Phi: 180}, -50, 0},
	}
	for _, tt := range tests {
		pos := tt.p.Position()
		if math.Abs(pos.X-tt.x) > 1e-9 || math.Abs(pos.Y-tt.y) > 1e-9 || pos.Z != 0 {
			t.Errorf("R=%v Phi=%v: expected (%v, %v, 0), got %+v", tt.p.R, tt.p.Phi, tt.x, tt.y, pos)
		}
	}
}

func TestStore_LoadSource(t *testing.T) {
	hist := `spectra:
  - name: h
    kind: histogram
    xmin: 0
    xmax: 2
    contents: [1, 1]
`
	fn := `spectra:
  - name: watt
    kind: function
    formula: "[0] * exp(-x/[1]) * sinh(sqrt([2]*x))"
    parameters: [1.0, 1.025, 2.926]
    xmin: 0
    xmax: 20
    npx: 1000
`
	both := hist + `  - name: g
    kind: function
    formula: "x"
    xmin: 0
    xmax: 1
`
	tests := []struct {
		name     string
		content  string
		wantErr  bool
		wantKind spectrum.Kind
	}{
		{"zero objects", "spectra: []\n", true, spectrum.KindNone},
		{"histogram", hist, false, spectrum.KindTable},
		{"function", fn, false, spectrum.KindFunction},
		{"two objects", both, true, spectrum.KindNone},
		{"empty histogram", "spectra:\n  - name: e\n    kind: histogram\n    xmin: 0\n    xmax: 1\n    contents: [0, 0]\n", true, spectrum.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			err := s.LoadSource(writeFile(t, t.TempDir(), "source.yaml", tt.content))
			if tt.wantErr {
				if !errors.Is(err, ErrConfigLoad) {
					t.Errorf("expected ErrConfigLoad, got %v", err)
				}
				if s.IsSourceLoaded() {
					t.Error("source should not be loaded")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSource failed: %v", err)
			}
			if !s.IsSourceLoaded() {
				t.Error("source should be loaded")
			}
			if (s.Histogram() != nil) == (s.Function() != nil) {
				t.Error("exactly one of histogram and function should be set")
			}
			if s.Source().Kind() != tt.wantKind {
				t.Errorf("expected kind %v, got %v", tt.wantKind, s.Source().Kind())
			}
		})
	}
}

func TestStore_SourcePriority(t *testing.T) {
	s := New()
	if s.Source().Kind() != spectrum.KindNone {
		t.Errorf("expected no source, got %v", s.Source().Kind())
	}
	if err := s.SetMonoEnergy(0); err == nil {
		t.Error("expected error for zero mono energy")
	}
	if err := s.SetMonoEnergy(2.5); err != nil {
		t.Fatal(err)
	}
	if s.Source().Kind() != spectrum.KindMono {
		t.Errorf("expected mono, got %v", s.Source().Kind())
	}

	path := writeFile(t, t.TempDir(), "source.yaml", "spectra:\n  - name: h\n    kind: histogram\n    xmin: 0\n    xmax: 1\n    contents: [1]\n")
	if err := s.LoadSource(path); err != nil {
		t.Fatal(err)
	}
	if s.Source().Kind() != spectrum.KindTable {
		t.Errorf("expected histogram to win over mono, got %v", s.Source().Kind())
	}
}

func TestStore_Reset(t *testing.T) {
	s := loaded(t)
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if s.IsTypesLoaded() || s.IsGeometryLoaded() || s.IsValidated() || s.NumPlacements() != 0 || s.NumTypes() != 0 {
		t.Error("Reset should clear all state")
	}
	if s.HasType("He3_1inch") {
		t.Error("type index should be cleared")
	}
}

func TestStore_ReloadInvalidates(t *testing.T) {
	s := loaded(t)
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadGeometry(writeFile(t, t.TempDir(), "geo.json", twoPlacements)); err != nil {
		t.Fatal(err)
	}
	if s.IsValidated() {
		t.Error("reloading geometry should require validation again")
	}
}

func TestStore_Describe(t *testing.T) {
	s := loaded(t)
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	s.Describe(&buf)
	out := buf.String()
	for _, want := range []string{"He3_1inch", "Det1", "R=100mm", "Box: (500, 500, 1000) mm", "Source: none"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in description:\n%s", want, out)
		}
	}
}
