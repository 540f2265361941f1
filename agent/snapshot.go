package agent

import (
	"intersection/grid"
	"intersection/shared"

	"github.com/samber/lo"
)

// Snapshot is the immutable world state captured before any agent acts in a tick
type Snapshot struct {
	frame  shared.Frame
	byCell map[shared.Position][]shared.AgentState
	byID   map[int]shared.AgentState
	loops  map[shared.Position]struct{}
}

// NewSnapshot indexes a frame for neighborhood queries. The frame must not be mutated afterwards.
func NewSnapshot(frame shared.Frame) *Snapshot {
	s := &Snapshot{
		frame:  frame,
		byCell: make(map[shared.Position][]shared.AgentState),
		byID:   make(map[int]shared.AgentState, len(frame.Agents)),
		loops:  make(map[shared.Position]struct{}, len(frame.LoopCells)),
	}
	for _, a := range frame.Agents {
		s.byCell[a.Position] = append(s.byCell[a.Position], a)
		s.byID[a.ID] = a
	}
	for _, p := range frame.LoopCells {
		s.loops[p] = struct{}{}
	}
	return s
}

func (s *Snapshot) Frame() shared.Frame { return s.frame }
func (s *Snapshot) Tick() int           { return s.frame.Tick }
func (s *Snapshot) Width() int          { return s.frame.Width }
func (s *Snapshot) Height() int         { return s.frame.Height }

// Center is the turning point where the signal controller stands
func (s *Snapshot) Center() shared.Position { return s.frame.Signal.Position }

// Light is the signal color at the start of the tick
func (s *Snapshot) Light() shared.Color { return s.frame.Signal.Color }

func (s *Snapshot) InBounds(pos shared.Position) bool {
	return pos.X >= 0 && pos.X < s.frame.Width && pos.Y >= 0 && pos.Y < s.frame.Height
}

// At returns the agents in a cell
func (s *Snapshot) At(pos shared.Position) []shared.AgentState { return s.byCell[pos] }

// Agent returns one agent by ID
func (s *Snapshot) Agent(id int) (shared.AgentState, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// IsEmpty reports whether an in-bounds cell held nobody at the start of the tick
func (s *Snapshot) IsEmpty(pos shared.Position) bool {
	return s.InBounds(pos) && len(s.byCell[pos]) == 0
}

// NeighborCells returns the in-bounds orthogonal neighbors of pos in the grid's fixed order
func (s *Snapshot) NeighborCells(pos shared.Position) []shared.Position {
	return grid.NeighborCells(pos, s.frame.Width, s.frame.Height)
}

// Neighbors returns every agent in the orthogonal neighbors of pos
func (s *Snapshot) Neighbors(pos shared.Position) []shared.AgentState {
	var out []shared.AgentState
	for _, n := range s.NeighborCells(pos) {
		out = append(out, s.byCell[n]...)
	}
	return out
}

// HasVehicleNeighbor reports whether a vehicle other than self stands next to pos
func (s *Snapshot) HasVehicleNeighbor(pos shared.Position, self int) bool {
	return lo.SomeBy(s.Neighbors(pos), func(a shared.AgentState) bool {
		return a.ID != self && a.Kind.IsVehicle()
	})
}

// HasVehicleAt reports whether a vehicle other than self occupies pos
func (s *Snapshot) HasVehicleAt(pos shared.Position, self int) bool {
	return lo.SomeBy(s.byCell[pos], func(a shared.AgentState) bool {
		return a.ID != self && a.Kind.IsVehicle()
	})
}

// IsLoopCell reports whether pos is a designated roundabout cell
func (s *Snapshot) IsLoopCell(pos shared.Position) bool {
	_, ok := s.loops[pos]
	return ok
}
