package detector

import (
	"fmt"

	"github.com/san-kum/nboxsim/internal/spectrum"
)

// Store holds the detector catalog, the geometry and the source spectrum for one run.
//
// Files may be loaded in any order; Validate checks them against each other.
// A Store is written once before workers start and only read afterwards, so it
// carries no lock. Construct a fresh Store per run.
type Store struct {
	types      []Type
	typeIndex  map[string]int
	box        Box
	placements []Placement

	histogram  *spectrum.Table
	function   *spectrum.Function
	sourcePath string
	mono       float64
	monoSet    bool

	typesLoaded    bool
	geometryLoaded bool
	sourceLoaded   bool
	validated      bool
}

func New() *Store {
	return &Store{typeIndex: make(map[string]int)}
}

// Reset clears all state. Production code builds a new Store instead.
func (s *Store) Reset() {
	*s = Store{typeIndex: make(map[string]int)}
}

// LoadTypes replaces the detector-type catalog with the contents of path.
func (s *Store) LoadTypes(path string) error {
	types, err := parseTypes(path)
	if err != nil {
		return err
	}
	s.types = types
	s.typeIndex = make(map[string]int, len(types))
	for i, t := range types {
		s.typeIndex[t.Name] = i
	}
	s.typesLoaded = true
	s.validated = false
	return nil
}

// LoadGeometry replaces the box and placements with the contents of path.
// Type references are not checked here; see Validate.
func (s *Store) LoadGeometry(path string) error {
	box, placements, err := parseGeometry(path)
	if err != nil {
		return err
	}
	s.box = box
	s.placements = placements
	s.geometryLoaded = true
	s.validated = false
	return nil
}

// LoadSource reads a spectrum file that must hold exactly one histogram or
// function. Function sampling tables are built here, before any worker runs.
func (s *Store) LoadSource(path string) error {
	objs, err := spectrum.ReadObjects(path)
	if err != nil {
		return loadErr(path, "cannot read source", err)
	}
	switch len(objs) {
	case 0:
		return loadErr(path, "no histogram or function found in source file", nil)
	case 1:
	default:
		return loadErr(path, fmt.Sprintf("found %d source terms, expected exactly one histogram or function", len(objs)), nil)
	}

	s.histogram, s.function = nil, nil
	switch o := objs[0].(type) {
	case *spectrum.Table:
		s.histogram = o
	case *spectrum.Function:
		s.function = o
	default:
		return loadErr(path, fmt.Sprintf("unsupported source object %T", o), spectrum.ErrUnsupported)
	}
	s.sourcePath = path
	s.sourceLoaded = true
	return nil
}

// SetMonoEnergy configures a monoenergetic source in MeV. A loaded histogram or
// function still takes precedence when sampling.
func (s *Store) SetMonoEnergy(mev float64) error {
	if !(mev > 0) {
		return fmt.Errorf("%w: mono energy must be positive, got %g MeV", ErrConfigLoad, mev)
	}
	s.mono = mev
	s.monoSet = true
	return nil
}

// Validate checks the loaded files against each other: geometry requires a
// catalog, and every placement must name a type in it.
func (s *Store) Validate() error {
	s.validated = false
	if s.geometryLoaded && !s.typesLoaded {
		return fmt.Errorf("%w: geometry is loaded but no detector types are; provide a detector file", ErrReferentialIntegrity)
	}
	if s.geometryLoaded {
		for i, p := range s.placements {
			if !s.HasType(p.Type) {
				return &PlacementError{Index: i, Placement: p.Name, Type: p.Type}
			}
		}
	}
	s.validated = true
	return nil
}

func (s *Store) IsTypesLoaded() bool { return s.typesLoaded }

func (s *Store) IsGeometryLoaded() bool { return s.geometryLoaded }

func (s *Store) IsSourceLoaded() bool { return s.sourceLoaded }

func (s *Store) IsValidated() bool { return s.validated }

func (s *Store) NumTypes() int { return len(s.types) }

func (s *Store) Types() []Type { return append([]Type(nil), s.types...) }

func (s *Store) HasType(name string) bool {
	_, ok := s.typeIndex[name]
	return ok
}

// Type returns the catalog entry for name.
func (s *Store) Type(name string) (Type, error) {
	i, ok := s.typeIndex[name]
	if !ok {
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return s.types[i], nil
}

func (s *Store) NumPlacements() int { return len(s.placements) }

// Placement returns the placement with DetectorID i.
func (s *Store) Placement(i int) (Placement, error) {
	if i < 0 || i >= len(s.placements) {
		return Placement{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(s.placements))
	}
	return s.placements[i], nil
}

// Placements returns a copy in DetectorID order.
func (s *Store) Placements() []Placement { return append([]Placement(nil), s.placements...) }

func (s *Store) Box() Box { return s.box }

// Histogram is the loaded table spectrum, or nil.
func (s *Store) Histogram() *spectrum.Table { return s.histogram }

// Function is the loaded parametric spectrum, or nil.
func (s *Store) Function() *spectrum.Function { return s.function }

func (s *Store) SourcePath() string { return s.sourcePath }

// MonoEnergy reports the configured monoenergetic value, if any.
func (s *Store) MonoEnergy() (float64, bool) { return s.mono, s.monoSet }

// Source resolves the active spectrum: histogram, then function, then mono.
// The zero Source means none is configured.
func (s *Store) Source() spectrum.Source {
	switch {
	case s.histogram != nil:
		return spectrum.FromTable(s.histogram)
	case s.function != nil:
		return spectrum.FromFunction(s.function)
	case s.monoSet:
		return spectrum.FromMono(s.mono)
	default:
		return spectrum.Source{}
	}
}
