// Package viz renders component trees, state tables and time series in the
// terminal, and drives a live view of a running model.
//
// The live view is a Bubble Tea program that steps the model every frame and
// draws its decorations on a braille [Canvas].
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to the initial state
//	T     - Cycle color themes
//	+/-   - More or fewer integration steps per frame
//	Q     - Quit
package viz
