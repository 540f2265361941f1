package agent

import (
	"intersection/shared"

	log "github.com/sirupsen/logrus"
)

// Disposition decides whether a commuter honors the signal controller
type Disposition string

const (
	Calm      Disposition = "calm"
	Impatient Disposition = "impatient"
)

// Commuter is a vehicle that drives to the intersection center, reports to the signal
// controller, then leaves the grid toward its destination edge
type Commuter struct {
	BaseAgent
	destination shared.Direction
	disposition Disposition
	arrival     int
	turning     bool
	holding     bool
}

// NewCommuter creates a commuter with a fixed disposition
func NewCommuter(id int, pos shared.Position, destination shared.Direction, disposition Disposition) *Commuter {
	c := &Commuter{
		BaseAgent:   NewBaseAgent(id, shared.KindCommuter, pos, string(disposition), 1),
		destination: destination,
		disposition: disposition,
	}
	c.token = c.tokenFor()
	return c
}

func (c *Commuter) Destination() shared.Direction { return c.destination }
func (c *Commuter) Disposition() Disposition      { return c.disposition }
func (c *Commuter) AtTurningPoint() bool          { return c.turning }
func (c *Commuter) Holding() bool                 { return c.holding }
func (c *Commuter) ArrivalEstimate() int          { return c.arrival }

func (c *Commuter) tokenFor() shared.Token {
	if c.disposition == Calm {
		return shared.Yield
	}
	return shared.Compete
}

// Perceive releases a held calm vehicle once the light it saw at the start of the tick is green
func (c *Commuter) Perceive(view *Snapshot) {
	if c.holding && view.Light() == shared.Green {
		c.holding = false
	}
}

// Decide heads for the center before the turning point and for the exit edge after it
func (c *Commuter) Decide(view *Snapshot) shared.Token {
	if c.route.Empty() {
		if c.turning {
			c.route.Replace(c.exitCell(view))
		} else {
			c.route.Replace(view.Center())
		}
	}
	c.token = c.tokenFor()
	return c.token
}

// exitCell is the boundary cell reached by driving straight toward the destination
func (c *Commuter) exitCell(view *Snapshot) shared.Position {
	switch c.destination {
	case shared.North:
		return shared.Position{X: c.position.X, Y: 0}
	case shared.East:
		return shared.Position{X: view.Width() - 1, Y: c.position.Y}
	case shared.West:
		return shared.Position{X: 0, Y: c.position.Y}
	default:
		return c.position
	}
}

// Act moves the commuter. Reaching the center enqueues it on the controller and, in the same
// tick, reads the controller's current color, which still reflects the previous tick's decision.
func (c *Commuter) Act(w World) {
	if c.holding {
		return
	}
	view := w.Snapshot()
	c.followRoute(w, c)

	if !c.turning && c.position == view.Center() {
		c.turning = true
		c.route.Clear()
		c.arrival = c.position.Manhattan(view.Center()) / c.speed
		signal := w.Signal()
		signal.Enqueue(c.id, c.destination, c.arrival)
		if c.disposition == Calm && signal.Color() != shared.Green {
			c.holding = true
		}
		log.WithFields(log.Fields{
			"agent":   c.id,
			"arrival": c.arrival,
			"light":   signal.Color(),
			"holding": c.holding,
		}).Debug("Commuter reached turning point")
	}

	if c.atDestination(view) {
		w.Remove(c.id)
	}
}

func (c *Commuter) atDestination(view *Snapshot) bool {
	switch c.destination {
	case shared.North:
		return c.position.Y == 0
	case shared.East:
		return c.position.X == view.Width()-1
	case shared.West:
		return c.position.X == 0
	default:
		return false
	}
}

// State adds the destination to the base view
func (c *Commuter) State() shared.AgentState {
	s := c.BaseAgent.State()
	s.Destination = c.destination
	return s
}
