package agent

import (
	"slices"

	"intersection/shared"

	log "github.com/sirupsen/logrus"
)

const (
	StateNormal  = "normal"
	StateAnxious = "anxious"
	StateHappy   = "happy"
	StateAngry   = "angry"
)

// loopTicks is how long a sport-b agent lingers on a roundabout cell
const loopTicks = 3

// SportA explores the whole grid, one cell at a time, and turns anxious when it finds itself
// on a cell it has already stood on
type SportA struct {
	BaseAgent
	visited  map[shared.Position]struct{}
	yielding bool
}

// NewSportA creates a sport-a agent in the normal state
func NewSportA(id int, pos shared.Position) *SportA {
	return &SportA{
		BaseAgent: NewBaseAgent(id, shared.KindSportA, pos, StateNormal, 2),
		visited:   make(map[shared.Position]struct{}),
	}
}

// Yielding reports whether the agent gave way this tick
func (s *SportA) Yielding() bool { return s.yielding }

func (s *SportA) Perceive(view *Snapshot) {
	if s.state == StateNormal {
		if _, seen := s.visited[s.position]; seen {
			s.state = StateAnxious
			log.WithFields(log.Fields{"agent": s.id, "x": s.position.X, "y": s.position.Y}).Debug("Sport-A turned anxious")
		} else {
			s.visited[s.position] = struct{}{}
		}
	}
	s.yielding = s.state == StateNormal && view.HasVehicleNeighbor(s.position, s.id)
}

func (s *SportA) Decide(view *Snapshot) shared.Token {
	if s.route.Empty() {
		s.route.Replace(tour(view.Width(), view.Height(), s.position)...)
	}
	if s.state == StateAnxious {
		s.token = shared.Compete
		s.detour(view)
	} else {
		s.token = shared.Yield
	}
	return s.token
}

// detour routes around a vehicle sitting on the next step by going through the first empty neighbor
func (s *SportA) detour(view *Snapshot) {
	target, ok := s.route.Target()
	if !ok {
		return
	}
	next := StepToward(s.position, target, s.speed)
	if next == s.position || !view.HasVehicleAt(next, s.id) {
		return
	}
	for _, n := range view.NeighborCells(s.position) {
		if view.IsEmpty(n) {
			s.route.Prepend(n)
			return
		}
	}
}

func (s *SportA) Act(w World) {
	if s.yielding {
		return
	}
	s.followRoute(w, s)
}

// tour lists every cell in row-major order except the starting one
func tour(width, height int, from shared.Position) []shared.Position {
	cells := make([]shared.Position, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if p := (shared.Position{X: x, Y: y}); p != from {
				cells = append(cells, p)
			}
		}
	}
	return cells
}

// SportB favors long, turn-heavy drives, gets angry when boxed in and lingers on roundabouts
type SportB struct {
	BaseAgent
	looping  bool
	lastLoop *shared.Position
}

// NewSportB creates a sport-b agent in the happy state
func NewSportB(id int, pos shared.Position) *SportB {
	return &SportB{
		BaseAgent: NewBaseAgent(id, shared.KindSportB, pos, StateHappy, 1),
	}
}

func (s *SportB) Perceive(view *Snapshot) {
	if s.lastLoop != nil && *s.lastLoop != s.position {
		s.lastLoop = nil
	}
	obstructed := view.HasVehicleNeighbor(s.position, s.id)

	switch s.state {
	case StateHappy:
		if obstructed {
			s.state = StateAngry
			s.looping = false
			s.route.Clear()
			log.WithFields(log.Fields{"agent": s.id}).Debug("Sport-B obstructed")
			return
		}
		if view.IsLoopCell(s.position) && !s.looping && s.lastLoop == nil {
			s.looping = true
		}
	case StateAngry:
		if !obstructed {
			s.state = StateHappy
		}
	}
}

func (s *SportB) Decide(view *Snapshot) shared.Token {
	if s.route.Empty() {
		if s.state == StateHappy {
			s.route.Replace(turnHeavyRoute(view.Width(), view.Height(), s.position)...)
		} else {
			s.route.Replace(nearEdge(view.Width(), s.position))
		}
	}

	if s.state == StateAngry {
		s.token = shared.Compete
	} else {
		s.token = shared.Yield
	}

	if s.looping {
		pos := s.position
		s.route.Replace(Repeat(pos, loopTicks)...)
		s.lastLoop = &pos
		s.looping = false
	}
	return s.token
}

func (s *SportB) Act(w World) {
	if s.followRoute(w, s) && s.state == StateAngry {
		s.state = StateHappy
	}
}

// turnHeavyRoute orders every cell by descending Manhattan distance from the current position
func turnHeavyRoute(width, height int, from shared.Position) []shared.Position {
	cells := tour(width, height, shared.Position{X: -1, Y: -1})
	slices.SortStableFunc(cells, func(a, b shared.Position) int {
		return b.Manhattan(from) - a.Manhattan(from)
	})
	return cells
}

// nearEdge is the closer of the two horizontal edges on the current row
func nearEdge(width int, from shared.Position) shared.Position {
	if from.X < width/2 {
		return shared.Position{X: 0, Y: from.Y}
	}
	return shared.Position{X: width - 1, Y: from.Y}
}
