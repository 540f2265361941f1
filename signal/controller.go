// Package signal implements the controller that arbitrates right of way at the intersection center.
package signal

import (
	"slices"

	"intersection/shared"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// SaturationThreshold is the queue length that, once exceeded, switches the controller into
// permanent red/green alternation
const SaturationThreshold = 5

// cycle is the fixed order of approach directions served by the controller
var cycle = []shared.Direction{shared.North, shared.South, shared.East, shared.West}

// Request is a vehicle waiting for arbitration
type Request struct {
	VehicleID   int
	Destination shared.Direction
	Arrival     int
}

// Controller arbitrates between vehicles that reached the turning point
type Controller struct {
	position   shared.Position
	color      shared.Color
	queue      []Request
	cycleIndex int
	saturated  bool
}

// New creates a controller at the given cell, showing yellow
func New(position shared.Position) *Controller {
	return &Controller{
		position: position,
		color:    shared.Yellow,
	}
}

// Enqueue registers a vehicle for arbitration with its estimated arrival time
func (c *Controller) Enqueue(vehicleID int, destination shared.Direction, arrival int) {
	c.queue = append(c.queue, Request{VehicleID: vehicleID, Destination: destination, Arrival: arrival})
	if len(c.queue) > SaturationThreshold && !c.saturated {
		c.saturated = true
		log.WithFields(log.Fields{"queue": len(c.queue)}).Warn("Signal controller saturated, switching to alternation")
	}
}

// Decide updates the indicated color. It runs once per tick after every vehicle has acted.
func (c *Controller) Decide() {
	if c.saturated {
		if c.color == shared.Red {
			c.color = shared.Green
		} else {
			c.color = shared.Red
		}
		c.cycleIndex = (c.cycleIndex + 1) % len(cycle)
		return
	}

	if len(c.queue) == 0 {
		c.color = shared.Yellow
		return
	}

	// MinBy keeps the earliest request on ties
	nearest := lo.MinBy(c.queue, func(a, b Request) bool { return a.Arrival < b.Arrival })
	c.color = shared.Green
	if i := slices.Index(cycle, nearest.Destination); i >= 0 {
		c.cycleIndex = i
	}
	idx := slices.Index(c.queue, nearest)
	c.queue = slices.Delete(c.queue, idx, idx+1)
	log.WithFields(log.Fields{
		"vehicle":     nearest.VehicleID,
		"destination": nearest.Destination,
		"arrival":     nearest.Arrival,
	}).Debug("Signal granted green")
}

// Color returns the currently indicated color
func (c *Controller) Color() shared.Color { return c.color }

// Saturated reports whether the controller is in alternation mode
func (c *Controller) Saturated() bool { return c.saturated }

// Queue returns a copy of the pending requests
func (c *Controller) Queue() []Request { return slices.Clone(c.queue) }

// CycleDirection returns the approach currently selected by the cycle index
func (c *Controller) CycleDirection() shared.Direction { return cycle[c.cycleIndex] }

// Position returns the controller's cell
func (c *Controller) Position() shared.Position { return c.position }

// State returns the read-only view of the controller
func (c *Controller) State() shared.SignalState {
	return shared.SignalState{
		Position:  c.position,
		Color:     c.color,
		Cycle:     c.CycleDirection(),
		Queue:     len(c.queue),
		Saturated: c.saturated,
	}
}
