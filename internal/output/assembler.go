package output

import (
	"github.com/sirupsen/logrus"

	"github.com/san-kum/nboxsim/internal/hits"
	"github.com/san-kum/nboxsim/internal/logging"
)

// EventCounter counts events that produced at least one row.
type EventCounter interface {
	CountEvent()
}

// HitObserver sees every row-producing hit.
type HitObserver interface {
	ObserveHit(h hits.Hit)
}

// Assembler turns closed hit collections into hit-table rows.
// One Assembler belongs to one worker.
type Assembler struct {
	w        Writer
	registry *hits.Registry
	names    []string
	counter  EventCounter
	observer HitObserver
	log      logrus.FieldLogger
	diag     *logging.Diagnostics
	missing  int
}

type AssemblerOption func(*Assembler)

func WithObserver(o HitObserver) AssemblerOption {
	return func(a *Assembler) { a.observer = o }
}

func WithLogger(l logrus.FieldLogger) AssemblerOption {
	return func(a *Assembler) { a.log = l }
}

func WithDiagnostics(d *logging.Diagnostics) AssemblerOption {
	return func(a *Assembler) { a.diag = d }
}

// NewAssembler writes rows for the detectors in names, in DetectorID order.
// Collections are looked up in reg by detector name.
func NewAssembler(w Writer, reg *hits.Registry, names []string, counter EventCounter, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		w:        w,
		registry: reg,
		names:    append([]string(nil), names...),
		counter:  counter,
		log:      logging.Discard(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// EndOfEvent writes one row per detector with a nonzero deposit, in DetectorID
// order, and counts the event once if any row was written. A detector whose
// collection cannot be found is reported and skipped.
func (a *Assembler) EndOfEvent(ev *hits.Event) (int, error) {
	rows := 0
	for id, name := range a.names {
		cid, err := a.registry.CollectionID(hits.CollectionName(name))
		if err != nil {
			a.reportMissing(ev.ID, id, name, err.Error())
			continue
		}
		c, ok := ev.Collection(cid)
		if !ok {
			a.reportMissing(ev.ID, id, name, "collection not in event")
			continue
		}
		h, ok := c.Record()
		if !ok {
			continue
		}

		a.w.SetInt(ColEventID, int32(ev.ID))
		a.w.SetInt(ColDetectorID, int32(id))
		a.w.SetString(ColDetectorName, name)
		a.w.SetFloat(ColEdep, h.Edep*1000)
		a.w.SetFloat(ColTime, h.Time)
		if err := a.w.Commit(); err != nil {
			return rows, err
		}
		rows++
		if a.observer != nil {
			a.observer.ObserveHit(h)
		}
	}
	if rows > 0 && a.counter != nil {
		a.counter.CountEvent()
	}
	return rows, nil
}

func (a *Assembler) reportMissing(eventID, detectorID int, name, reason string) {
	a.missing++
	fields := logrus.Fields{
		"event":       eventID,
		"detector_id": detectorID,
		"detector":    name,
		"reason":      reason,
	}
	a.log.WithFields(fields).Warn("hit collection missing, skipping detector")
	a.diag.Warn("missing hit collection", fields)
}

// Missing is the number of skipped (event, detector) pairs.
func (a *Assembler) Missing() int { return a.missing }

func (a *Assembler) Rows() int64 { return a.w.Rows() }

func (a *Assembler) Close() error { return a.w.Close() }
