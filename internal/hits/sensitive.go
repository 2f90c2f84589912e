package hits

import "fmt"

// Registry assigns collection IDs to collection names, like a sensitive-detector manager.
type Registry struct {
	names []string
	ids   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// Register returns the ID for name, assigning the next free one if new.
func (r *Registry) Register(name string) int {
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := len(r.names)
	r.names = append(r.names, name)
	r.ids[name] = id
	return id
}

// CollectionID returns the ID registered for name.
func (r *Registry) CollectionID(name string) (int, error) {
	id, ok := r.ids[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrMissingCollection, name)
	}
	return id, nil
}

func (r *Registry) Len() int { return len(r.names) }

// CollectionName is the collection name used for a detector.
func CollectionName(detectorName string) string {
	return detectorName + "/HitsCollection"
}

// SensitiveDetector accumulates deposits for one detector volume.
type SensitiveDetector struct {
	name         string
	detectorID   int
	collectionID int
	current      *Collection
}

// NewSensitiveDetector registers the detector's collection with reg.
func NewSensitiveDetector(reg *Registry, name string, detectorID int) *SensitiveDetector {
	return &SensitiveDetector{
		name:         name,
		detectorID:   detectorID,
		collectionID: reg.Register(CollectionName(name)),
	}
}

func (sd *SensitiveDetector) Name() string { return sd.name }

func (sd *SensitiveDetector) DetectorID() int { return sd.detectorID }

func (sd *SensitiveDetector) CollectionID() int { return sd.collectionID }

// Initialize opens this detector's collection for ev.
func (sd *SensitiveDetector) Initialize(ev *Event) {
	sd.current = &Collection{
		ID:         sd.collectionID,
		Name:       CollectionName(sd.name),
		EventID:    ev.ID,
		DetectorID: sd.detectorID,
	}
	ev.add(sd.current)
}

// ProcessHits adds one deposit. Deposits that are not positive are ignored and report false.
func (sd *SensitiveDetector) ProcessHits(d Deposit) bool {
	if sd.current == nil || sd.current.closed || !(d.Edep > 0) {
		return false
	}
	c := sd.current
	if c.hit == nil {
		c.hit = &Hit{
			EventID:      c.EventID,
			DetectorID:   sd.detectorID,
			DetectorName: sd.name,
		}
	}
	c.hit.add(d)
	return true
}

// EndOfEvent closes the current collection. Later deposits are rejected until
// the next Initialize.
func (sd *SensitiveDetector) EndOfEvent() {
	if sd.current != nil {
		sd.current.closed = true
	}
	sd.current = nil
}

// Set is the sensitive detectors of one worker, indexed by DetectorID.
type Set struct {
	registry  *Registry
	detectors []*SensitiveDetector
}

// NewSet creates one sensitive detector per name; the index of a name is its DetectorID.
func NewSet(reg *Registry, names []string) *Set {
	s := &Set{registry: reg, detectors: make([]*SensitiveDetector, len(names))}
	for i, n := range names {
		s.detectors[i] = NewSensitiveDetector(reg, n, i)
	}
	return s
}

func (s *Set) Registry() *Registry { return s.registry }

func (s *Set) Len() int { return len(s.detectors) }

// Detector returns the sensitive detector for id, or nil when out of range.
func (s *Set) Detector(id int) *SensitiveDetector {
	if id < 0 || id >= len(s.detectors) {
		return nil
	}
	return s.detectors[id]
}

// BeginEvent opens a fresh event on every detector.
func (s *Set) BeginEvent(id int) *Event {
	ev := NewEvent(id)
	for _, sd := range s.detectors {
		sd.Initialize(ev)
	}
	return ev
}

// EndEvent closes every detector's collection.
func (s *Set) EndEvent() {
	for _, sd := range s.detectors {
		sd.EndOfEvent()
	}
}
