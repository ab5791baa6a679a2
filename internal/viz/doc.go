// Package viz draws a running simulation in the terminal.
//
// [Model] is a Bubble Tea program around a [sim.Stepper]: bodies are
// plotted on a Braille [Canvas], optionally over the quadtree cells of the
// last build, beside a stats panel with the energy history.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single step while paused
//	R     - Reset to the initial bodies
//	[ ]   - Lower/raise theta
//	C     - Toggle quadtree cells
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
