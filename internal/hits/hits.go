// Package hits accumulates per-event energy deposits in sensitive volumes.
//
// Each detector owns a SensitiveDetector. At the start of an event it opens a
// Collection in the Event under its collection ID; deposits during the event
// add to the single Hit of that collection; at event end the hit is closed and
// read out by the output assembler. A hit materialises only on the first
// nonzero deposit, and its position and time are stamped from that deposit
// alone.
//
// Units: energy MeV, time ns, length mm.
//
// Nothing here is safe for concurrent use. Each worker owns its own registry,
// sensitive detectors and events.
package hits

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMissingCollection indicates a detector whose collection is not registered
// or not present in the event.
var ErrMissingCollection = errors.New("hits: hit collection not found")

// Deposit is one step's energy deposit inside a sensitive volume.
type Deposit struct {
	Edep     float64 // MeV
	Position r3.Vec  // pre-step point, mm
	Time     float64 // global time, ns
}

// Hit is the accumulated record for one (event, detector) pair.
type Hit struct {
	EventID      int
	DetectorID   int
	DetectorName string
	Edep         float64
	Position     r3.Vec
	Time         float64
	Deposits     int

	hasFirstTouch bool
}

// HasFirstTouch reports whether a nonzero deposit has been recorded.
func (h *Hit) HasFirstTouch() bool { return h.hasFirstTouch }

func (h *Hit) add(d Deposit) {
	h.Edep += d.Edep
	h.Deposits++
	if !h.hasFirstTouch {
		h.Position = d.Position
		h.Time = d.Time
		h.hasFirstTouch = true
	}
}

// Collection holds the hits of one detector for one event.
type Collection struct {
	ID         int
	Name       string
	EventID    int
	DetectorID int
	hit        *Hit
	closed     bool
}

// Hit returns the open or closed hit, or nil if nothing was deposited.
func (c *Collection) Hit() *Hit { return c.hit }

func (c *Collection) Closed() bool { return c.closed }

// Record returns the closed hit when it carries a nonzero deposit.
func (c *Collection) Record() (Hit, bool) {
	if c.hit == nil || !c.closed || !(c.hit.Edep > 0) {
		return Hit{}, false
	}
	return *c.hit, true
}

// Event carries the collections of one event, keyed by collection ID.
type Event struct {
	ID          int
	collections map[int]*Collection
}

func NewEvent(id int) *Event {
	return &Event{ID: id, collections: make(map[int]*Collection)}
}

func (e *Event) add(c *Collection) { e.collections[c.ID] = c }

// Collection looks up a collection by ID.
func (e *Event) Collection(id int) (*Collection, bool) {
	c, ok := e.collections[id]
	return c, ok
}

func (e *Event) NumCollections() int { return len(e.collections) }
