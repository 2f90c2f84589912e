// Package viz is the interactive terminal session, used when no run settings
// file is given.
//
// The session is a Bubble Tea program:
//
//   - [Model]: loaded configuration, detector layout and the last run's results
//   - [Canvas]: Braille pixel canvas used for the top-down detector layout
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	Enter/B - Run a batch of events
//	Esc     - Cancel the running batch
//	+/-     - Multiply or divide the batch size by 10
//	T       - Cycle color themes
//	?       - Show help
//	Q       - Quit
//
// Runs started from the session go through the same run manager as batch mode,
// so every batch writes its own per-worker files.
package viz
