// Package agent defines the perceive/decide/act contract shared by every archetype and the
// archetypes themselves: commuter vehicles, transit vehicles, the two sport archetypes and riders.
//
// Perceive and Decide only read the tick-start Snapshot. Act is the only phase that changes the
// world, and it does so through World, touching nothing but the acting agent's own occupancy
// (transit pickups remove riders, see Transit.Act).
package agent

import "intersection/shared"

// Agent defines what every simulated entity must implement
type Agent interface {
	GetID() int
	GetKind() shared.Kind
	GetPosition() shared.Position
	SetPosition(pos shared.Position)
	GetState() string
	GetToken() shared.Token
	GetSpeed() int

	// Perceive reads the snapshot and may update the agent's own behavioral state
	Perceive(view *Snapshot)
	// Decide plans a route when none is active and commits the tick's decision token
	Decide(view *Snapshot) shared.Token
	// Act moves the agent and applies its archetype side effects
	Act(w World)

	State() shared.AgentState
}

// Signal is the part of the signal controller that vehicles talk to while acting
type Signal interface {
	Enqueue(vehicleID int, destination shared.Direction, arrival int)
	Color() shared.Color
}

// World is the act-phase view of the simulation
type World interface {
	// Snapshot returns the tick-start snapshot every agent perceived
	Snapshot() *Snapshot
	// Move relocates a onto pos clamped to the grid and returns where it ended up
	Move(a Agent, pos shared.Position) shared.Position
	// Remove takes an agent off the grid and out of the live set; false when already gone
	Remove(id int) bool
	Signal() Signal
}

// BaseAgent provides common agent functionality that all archetypes embed
type BaseAgent struct {
	id       int
	kind     shared.Kind
	position shared.Position
	state    string
	token    shared.Token
	speed    int
	route    Route
}

// NewBaseAgent creates a base agent with the given identity and initial state
func NewBaseAgent(id int, kind shared.Kind, pos shared.Position, state string, speed int) BaseAgent {
	return BaseAgent{
		id:       id,
		kind:     kind,
		position: pos,
		state:    state,
		token:    shared.Yield,
		speed:    speed,
	}
}

func (b *BaseAgent) GetID() int                      { return b.id }
func (b *BaseAgent) GetKind() shared.Kind            { return b.kind }
func (b *BaseAgent) GetPosition() shared.Position    { return b.position }
func (b *BaseAgent) SetPosition(pos shared.Position) { b.position = pos }
func (b *BaseAgent) GetState() string                { return b.state }
func (b *BaseAgent) GetToken() shared.Token          { return b.token }
func (b *BaseAgent) GetSpeed() int                   { return b.speed }

// Route returns the remaining waypoints, current target first
func (b *BaseAgent) Route() []shared.Position { return b.route.Cells() }

// State returns the read-only view of the agent
func (b *BaseAgent) State() shared.AgentState {
	return shared.AgentState{
		ID:       b.id,
		Kind:     b.kind,
		Position: b.position,
		State:    b.state,
		Token:    b.token,
	}
}

// followRoute steps self toward the current route target and pops the target once reached.
// It reports whether a target was reached this tick.
func (b *BaseAgent) followRoute(w World, self Agent) bool {
	target, ok := b.route.Target()
	if !ok {
		return false
	}
	if next := StepToward(b.position, target, b.speed); next != b.position {
		w.Move(self, next)
	}
	if b.position != target {
		return false
	}
	b.route.Advance()
	return true
}
