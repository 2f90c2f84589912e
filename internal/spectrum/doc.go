// Package spectrum samples primary particle energies from a configured source.
//
// Three strategies sit behind one [Sampler] interface:
//
//   - [Mono]: a fixed energy, returned on every call
//   - [Table]: an empirical density over bins (a histogram), inverse-transform sampled
//   - [Function]: a parametric density evaluated once onto a grid, then inverse-CDF sampled
//
// Energies are in MeV throughout.
//
// # Thread Safety
//
// Tables and functions build their cumulative tables in their constructors and are
// read-only afterwards. Sample only consumes the caller's *rand.Rand, so one object
// can be shared by every worker as long as each worker owns its own random stream.
package spectrum
