package agent

import (
	"slices"

	"intersection/shared"

	"github.com/samber/lo"
)

// Route is an ordered queue of cells still to be visited; the head is the current target
type Route struct {
	cells []shared.Position
}

// Target returns the current target
func (r *Route) Target() (shared.Position, bool) {
	if len(r.cells) == 0 {
		return shared.Position{}, false
	}
	return r.cells[0], true
}

// Advance drops the current target
func (r *Route) Advance() {
	if len(r.cells) > 0 {
		r.cells = r.cells[1:]
	}
}

// Empty reports whether no target remains
func (r *Route) Empty() bool { return len(r.cells) == 0 }

// Len returns the number of remaining waypoints
func (r *Route) Len() int { return len(r.cells) }

// Replace overwrites the route
func (r *Route) Replace(cells ...shared.Position) {
	r.cells = slices.Clone(cells)
}

// Prepend inserts a detour in front of the current target
func (r *Route) Prepend(pos shared.Position) {
	r.cells = slices.Insert(r.cells, 0, pos)
}

// Clear drops every waypoint
func (r *Route) Clear() { r.cells = nil }

// Cells returns a copy of the remaining waypoints
func (r *Route) Cells() []shared.Position { return slices.Clone(r.cells) }

// StepToward moves from toward to, adjusting each axis independently by at most speed.
// Both axes move in the same tick, so approaches look diagonal.
func StepToward(from, to shared.Position, speed int) shared.Position {
	return shared.Position{
		X: from.X + lo.Clamp(to.X-from.X, -speed, speed),
		Y: from.Y + lo.Clamp(to.Y-from.Y, -speed, speed),
	}
}

// Repeat returns n copies of pos
func Repeat(pos shared.Position, n int) []shared.Position {
	return lo.Times(n, func(int) shared.Position { return pos })
}
