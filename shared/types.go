// Package shared contains the data types exchanged between the simulation core and its consumers.
// It defines positions, archetype tags, decision tokens, signal colors and the per-tick frame
// that renderers, the gRPC service and the websocket stream all read.
package shared

// Position represents a 2D coordinate on the grid
type Position struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Add returns p shifted by d
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Manhattan returns the L1 distance between two positions
func (p Position) Manhattan(o Position) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Direction is a compass heading used for vehicle destinations and the signal cycle
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Kind is the capability tag of an agent record
type Kind string

const (
	KindCommuter Kind = "commuter"
	KindTransit  Kind = "transit"
	KindSportA   Kind = "sport_a"
	KindSportB   Kind = "sport_b"
	KindRider    Kind = "rider"
)

// IsVehicle reports whether agents of this kind occupy road space and obstruct others
func (k Kind) IsVehicle() bool {
	switch k {
	case KindCommuter, KindTransit, KindSportA, KindSportB:
		return true
	default:
		return false
	}
}

// Token is the decision an agent commits to once per tick
type Token string

const (
	Yield   Token = "yield"
	Compete Token = "compete"
)

// Color is the indication shown by the signal controller
type Color string

const (
	Yellow Color = "yellow"
	Green  Color = "green"
	Red    Color = "red"
)

// AgentState is the read-only view of one live agent
type AgentState struct {
	ID          int       `json:"id" msgpack:"id"`
	Kind        Kind      `json:"kind" msgpack:"kind"`
	Position    Position  `json:"position" msgpack:"position"`
	State       string    `json:"state" msgpack:"state"`
	Token       Token     `json:"token" msgpack:"token"`
	Destination Direction `json:"destination,omitempty" msgpack:"destination,omitempty"`
	Passengers  int       `json:"passengers,omitempty" msgpack:"passengers,omitempty"`
	Score       int       `json:"score" msgpack:"score"`
}

// SignalState is the read-only view of the signal controller
type SignalState struct {
	Position  Position  `json:"position" msgpack:"position"`
	Color     Color     `json:"color" msgpack:"color"`
	Cycle     Direction `json:"cycle" msgpack:"cycle"`
	Queue     int       `json:"queue" msgpack:"queue"`
	Saturated bool      `json:"saturated" msgpack:"saturated"`
}

// NegotiationOutcome records one resolved pair of co-located agents
type NegotiationOutcome struct {
	A       int      `json:"a" msgpack:"a"`
	B       int      `json:"b" msgpack:"b"`
	Cell    Position `json:"cell" msgpack:"cell"`
	TokenA  Token    `json:"token_a" msgpack:"token_a"`
	TokenB  Token    `json:"token_b" msgpack:"token_b"`
	PayoffA int      `json:"payoff_a" msgpack:"payoff_a"`
	PayoffB int      `json:"payoff_b" msgpack:"payoff_b"`
}

// Frame is the complete world state after a tick
type Frame struct {
	RunID        string               `json:"run_id" msgpack:"run_id"`
	Tick         int                  `json:"tick" msgpack:"tick"`
	Width        int                  `json:"width" msgpack:"width"`
	Height       int                  `json:"height" msgpack:"height"`
	Agents       []AgentState         `json:"agents" msgpack:"agents"`
	Signal       SignalState          `json:"signal" msgpack:"signal"`
	LoopCells    []Position           `json:"loop_cells,omitempty" msgpack:"loop_cells,omitempty"`
	Negotiations []NegotiationOutcome `json:"negotiations,omitempty" msgpack:"negotiations,omitempty"`
}

// Agent returns the state of the agent with the given ID
func (f Frame) Agent(id int) (AgentState, bool) {
	for _, a := range f.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentState{}, false
}
