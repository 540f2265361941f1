package agent

import (
	"intersection/shared"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// pendingLimit is the pending-pickup backlog beyond which a transit vehicle gets angry
const pendingLimit = 3

// Transit is a bus that drives a fixed loop and picks up riders waiting next to it
type Transit struct {
	BaseAgent
	passengers int
	delivered  int
	pending    []int
	adjacent   []int
	pickup     bool
}

// NewTransit creates a transit vehicle in the normal state
func NewTransit(id int, pos shared.Position) *Transit {
	return &Transit{BaseAgent: NewBaseAgent(id, shared.KindTransit, pos, StateNormal, 1)}
}

func (t *Transit) Passengers() int { return t.passengers }
func (t *Transit) Delivered() int  { return t.delivered }
func (t *Transit) Pending() []int  { return append([]int(nil), t.pending...) }

// Perceive collects the riders next to the bus and arms the pickup when there is at least one
func (t *Transit) Perceive(view *Snapshot) {
	riders := lo.FilterMap(view.Neighbors(t.position), func(a shared.AgentState, _ int) (int, bool) {
		return a.ID, a.Kind == shared.KindRider
	})
	t.adjacent = riders
	t.pickup = len(riders) > 0
	t.pending = lo.Uniq(append(t.pending, riders...))
}

func (t *Transit) Decide(view *Snapshot) shared.Token {
	if t.route.Empty() {
		w, h := view.Width(), view.Height()
		t.route.Replace(
			shared.Position{X: w / 2, Y: h - 1},
			shared.Position{X: 0, Y: h / 2},
			shared.Position{X: w - 1, Y: 0},
		)
	}

	switch {
	case t.pickup:
		t.state = StateHappy
		t.token = shared.Yield
	case len(t.pending) > pendingLimit:
		t.state = StateAngry
		t.token = shared.Compete
	default:
		t.state = StateNormal
		t.token = shared.Yield
	}
	return t.token
}

func (t *Transit) Act(w World) {
	switch {
	case t.pickup:
		t.pickUp(w)
		return
	case t.state == StateAngry:
		t.changeLane(w)
		return
	}

	if t.followRoute(w, t) && t.route.Empty() && t.passengers > 0 {
		log.WithFields(log.Fields{"agent": t.id, "passengers": t.passengers}).Debug("Passengers alighted")
		t.delivered += t.passengers
		t.passengers = 0
	}
}

// pickUp boards every adjacent rider that is still in the world
func (t *Transit) pickUp(w World) {
	boarded := 0
	for _, id := range t.adjacent {
		if w.Remove(id) {
			boarded++
		}
	}
	t.passengers += boarded
	t.pending = nil
	t.pickup = false
	log.WithFields(log.Fields{"agent": t.id, "boarded": boarded, "passengers": t.passengers}).Debug("Riders boarded")
}

// changeLane moves to the first neighbor cell that was empty at the start of the tick and gives
// up on the pending riders
func (t *Transit) changeLane(w World) {
	view := w.Snapshot()
	for _, n := range view.NeighborCells(t.position) {
		if view.IsEmpty(n) {
			w.Move(t, n)
			break
		}
	}
	t.pending = nil
}

// State adds the passenger count to the base view
func (t *Transit) State() shared.AgentState {
	s := t.BaseAgent.State()
	s.Passengers = t.passengers
	return s
}

// Rider waits on the grid until a transit vehicle picks it up
type Rider struct {
	BaseAgent
}

// NewRider creates a waiting rider
func NewRider(id int, pos shared.Position) *Rider {
	return &Rider{BaseAgent: NewBaseAgent(id, shared.KindRider, pos, "waiting", 0)}
}

func (r *Rider) Perceive(*Snapshot)            {}
func (r *Rider) Decide(*Snapshot) shared.Token { return r.token }
func (r *Rider) Act(World)                     {}
