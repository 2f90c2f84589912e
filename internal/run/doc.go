// Package run drives a simulation run across a fixed pool of workers.
//
// The run is organised around three pieces:
//
//   - [Manager]: builds per-worker state, feeds events, merges results
//   - [Counters]: per-worker event tallies, merged additively at run end
//   - [Summary]: the merged result of a run
//
// # Example
//
//	store := detector.New()
//	// load files, then store.Validate()
//	m, _ := run.NewManager(store, run.Options{Events: 10000, Workers: 4, Seed: 1, Format: output.FormatROOT, Dir: dir})
//	summary, _ := m.Run(ctx)
//	summary.Print(os.Stdout)
//
// # Thread Safety
//
// The detector store and the source spectrum are shared read-only by every
// worker. Everything a worker writes to (its hit aggregators, counters, output
// file and random stream) is private to it, so the event loop takes no locks.
// Each event draws from its own stream seeded with Seed + eventID, which makes
// an event's rows independent of the worker that processed it.
package run
