package run

// Counters tallies one worker's events.
type Counters struct {
	Events         int64 `json:"events"`
	EventsWithHits int64 `json:"events_with_hits"`
	HitRows        int64 `json:"hit_rows"`
	FluxRows       int64 `json:"flux_rows"`
	Missing        int64 `json:"missing_collections"`
}

// CountEvent records an event that produced at least one hit row.
func (c *Counters) CountEvent() { c.EventsWithHits++ }

// Merge adds o into c.
func (c *Counters) Merge(o Counters) {
	c.Events += o.Events
	c.EventsWithHits += o.EventsWithHits
	c.HitRows += o.HitRows
	c.FluxRows += o.FluxRows
	c.Missing += o.Missing
}

// MergeAll reduces per-worker counters into one.
func MergeAll(cs ...Counters) Counters {
	var total Counters
	for _, c := range cs {
		total.Merge(c)
	}
	return total
}

func (c *Counters) Reset() { *c = Counters{} }
