package simulation

import (
	"errors"
	"math/rand"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"intersection/agent"
	"intersection/grid"
	"intersection/shared"
)

func newTestSimulation(t *testing.T, cfg Config, seed int64) *Simulation {
	t.Helper()
	sim, err := New(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sim.Stop)
	return sim
}

func newEmpty(t *testing.T, width, height int, agents ...agent.Agent) *Simulation {
	t.Helper()
	sim, err := NewEmpty(width, height, nil)
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}
	t.Cleanup(sim.Stop)
	for _, a := range agents {
		if err := sim.Add(a); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return sim
}

// checkOccupancy verifies that the grid index and every agent's own position agree
func checkOccupancy(t *testing.T, sim *Simulation) {
	t.Helper()
	if sim.grid.Len() != len(sim.agents) {
		t.Fatalf("Grid holds %d agents, live set holds %d", sim.grid.Len(), len(sim.agents))
	}
	for id, a := range sim.agents {
		pos, ok := sim.grid.PositionOf(id)
		if !ok {
			t.Fatalf("Agent %d is live but not on the grid", id)
		}
		if pos != a.GetPosition() {
			t.Fatalf("Agent %d is indexed at %v but thinks it is at %v", id, pos, a.GetPosition())
		}
		if !slices.Contains(sim.grid.Occupants(pos), id) {
			t.Fatalf("Cell %v does not list agent %d", pos, id)
		}
	}
}

func TestNewSimulation(t *testing.T) {
	cfg := Config{Width: 7, Height: 5, Commuters: 3, Transits: 2, SportA: 2, SportB: 1, Riders: 4}
	sim := newTestSimulation(t, cfg, 42)

	f := sim.Frame()
	if f.Width != cfg.Width || f.Height != cfg.Height {
		t.Errorf("Expected %dx%d grid, got %dx%d", cfg.Width, cfg.Height, f.Width, f.Height)
	}
	if f.Tick != 0 {
		t.Errorf("Expected tick 0, got %d", f.Tick)
	}
	if f.RunID == "" || f.RunID != sim.RunID() {
		t.Errorf("Frame run ID %q does not match %q", f.RunID, sim.RunID())
	}
	if len(f.Agents) != 12 {
		t.Fatalf("Expected 12 agents, got %d", len(f.Agents))
	}

	counts := make(map[shared.Kind]int)
	for i, a := range f.Agents {
		if a.ID != i+1 {
			t.Errorf("Expected sequential IDs from 1, got %d at index %d", a.ID, i)
		}
		counts[a.Kind]++
		if a.Kind == shared.KindCommuter && !slices.Contains([]shared.Direction{shared.North, shared.East, shared.West}, a.Destination) {
			t.Errorf("Commuter %d has invalid destination %q", a.ID, a.Destination)
		}
	}
	want := map[shared.Kind]int{
		shared.KindCommuter: 3,
		shared.KindTransit:  2,
		shared.KindSportA:   2,
		shared.KindSportB:   1,
		shared.KindRider:    4,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("Expected population %v, got %v", want, counts)
	}

	if f.Signal.Position != (shared.Position{X: 3, Y: 2}) || f.Signal.Color != shared.Yellow {
		t.Errorf("Expected a yellow signal at the center, got %+v", f.Signal)
	}
	if len(f.LoopCells) != 4 {
		t.Errorf("Expected 4 default loop cells, got %v", f.LoopCells)
	}
	checkOccupancy(t, sim)
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"zero width", Config{Width: 0, Height: 5}, grid.ErrBadSize},
		{"negative height", Config{Width: 5, Height: -1}, grid.ErrBadSize},
		{"negative riders", Config{Width: 5, Height: 5, Riders: -1}, ErrNegativeCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, rand.New(rand.NewSource(1)))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSetupIsDeterministic(t *testing.T) {
	cfg := Config{Width: 9, Height: 9, Commuters: 5, Transits: 2, SportA: 2, SportB: 2, Riders: 5}
	a := newTestSimulation(t, cfg, 7).Frame()
	b := newTestSimulation(t, cfg, 7).Frame()
	if !reflect.DeepEqual(a.Agents, b.Agents) {
		t.Error("Same seed produced different populations")
	}
}

func TestOccupancyInvariant(t *testing.T) {
	cfg := Config{Width: 8, Height: 8, Commuters: 6, Transits: 2, SportA: 3, SportB: 3, Riders: 6}
	sim := newTestSimulation(t, cfg, 3)
	for i := 0; i < 60; i++ {
		f := sim.Step()
		checkOccupancy(t, sim)
		if len(f.Agents) != sim.Live() {
			t.Fatalf("Tick %d: frame lists %d agents, %d are live", f.Tick, len(f.Agents), sim.Live())
		}
		for _, a := range f.Agents {
			if a.Position.X < 0 || a.Position.X >= cfg.Width || a.Position.Y < 0 || a.Position.Y >= cfg.Height {
				t.Fatalf("Tick %d: agent %d left the grid at %v", f.Tick, a.ID, a.Position)
			}
		}
	}
}

// One commuter and one transit: queue order at the controller and which of two transits boards a
// shared rider both follow act order.
func TestSimultaneousActivation(t *testing.T) {
	cfg := Config{Width: 9, Height: 7, Commuters: 1, Transits: 1, SportA: 3, SportB: 3, Riders: 5}
	forward := newTestSimulation(t, cfg, 11)
	reverse := newTestSimulation(t, cfg, 11)
	reverse.reverseAct = true

	for i := 0; i < 40; i++ {
		a, b := forward.Step(), reverse.Step()
		a.RunID, b.RunID = "", ""
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Tick %d: act order changed the outcome\nforward: %+v\nreverse: %+v", a.Tick, a, b)
		}
	}
}

func TestSportACoverage(t *testing.T) {
	start := shared.Position{X: 2, Y: 1}
	sa := agent.NewSportA(1, start)
	sim := newEmpty(t, 4, 4, sa)

	visited := map[shared.Position]bool{start: true}
	consumed := make(map[shared.Position]int)
	remaining := 4*4 - 1
	for i := 0; i < 100 && remaining > 0; i++ {
		f := sim.Step()
		visited[f.Agents[0].Position] = true

		route := sa.Route()
		switch {
		case len(route) > remaining:
			t.Fatalf("Tick %d: route regenerated with %d targets still pending", f.Tick, remaining)
		case len(route) == remaining-1:
			consumed[sa.GetPosition()]++
		case len(route) != remaining:
			t.Fatalf("Tick %d: %d targets consumed in one tick", f.Tick, remaining-len(route))
		}
		remaining = len(route)
	}

	if remaining != 0 {
		t.Fatalf("Tour not finished, %d targets left", remaining)
	}
	if len(consumed) != 15 {
		t.Errorf("Expected 15 distinct targets, got %d", len(consumed))
	}
	for pos, n := range consumed {
		if n != 1 {
			t.Errorf("Target %v consumed %d times", pos, n)
		}
	}
	if consumed[start] != 0 {
		t.Error("The starting cell must not be a target")
	}
	if len(visited) != 16 {
		t.Errorf("Expected every cell visited, got %d of 16", len(visited))
	}

	sim.Step()
	if got := len(sa.Route()); got < 14 {
		t.Errorf("Expected a fresh tour after the first one, got %d targets", got)
	}
}

func TestBoundaryRemoval(t *testing.T) {
	sim := newEmpty(t, 5, 5, agent.NewCommuter(1, shared.Position{X: 2, Y: 1}, shared.North, agent.Impatient))
	events, cancel := sim.Events().Subscribe(10)
	defer cancel()

	sim.Step() // reaches the center
	sim.Step() // heads north
	if sim.Live() != 1 {
		t.Fatalf("Commuter removed too early")
	}
	f := sim.Step()
	if len(f.Agents) != 0 || sim.Live() != 0 || sim.grid.Len() != 0 {
		t.Errorf("Commuter at the north edge should be gone, frame=%v live=%d grid=%d", f.Agents, sim.Live(), sim.grid.Len())
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-events:
			if removed, ok := e.(AgentRemovedEvent); ok {
				if removed.ID != 1 || removed.Tick != 3 || removed.Position != (shared.Position{X: 2, Y: 0}) {
					t.Errorf("Unexpected removal event %+v", removed)
				}
				return
			}
		case <-deadline:
			t.Fatal("No removal event published")
		}
	}
}

func TestTransitPickup(t *testing.T) {
	sim := newEmpty(t, 5, 5,
		agent.NewTransit(1, shared.Position{X: 0, Y: 0}),
		agent.NewRider(2, shared.Position{X: 1, Y: 0}),
		agent.NewRider(3, shared.Position{X: 0, Y: 1}),
		agent.NewRider(4, shared.Position{X: 3, Y: 3}),
	)

	f := sim.Step()
	if len(f.Agents) != 2 {
		t.Fatalf("Expected the transit and the far rider, got %v", f.Agents)
	}
	bus, _ := f.Agent(1)
	if bus.Passengers != 2 || bus.State != agent.StateHappy {
		t.Errorf("Expected a happy bus with 2 passengers, got %+v", bus)
	}
	for _, id := range []int{2, 3} {
		if _, ok := sim.grid.PositionOf(id); ok {
			t.Errorf("Rider %d is still on the grid", id)
		}
	}
	checkOccupancy(t, sim)
}

func TestTransitKeepsPickingUp(t *testing.T) {
	bus := agent.NewTransit(1, shared.Position{X: 0, Y: 0})
	sim := newEmpty(t, 5, 5, bus)

	for i := 1; i <= 12; i++ {
		if err := sim.Add(agent.NewRider(sim.NextID(), shared.Position{X: 1, Y: 0})); err != nil {
			t.Fatalf("Add: %v", err)
		}
		f := sim.Step()
		state, _ := f.Agent(1)
		if state.State != agent.StateHappy || state.Passengers != i {
			t.Fatalf("Tick %d: expected happy with %d passengers, got %s with %d", f.Tick, i, state.State, state.Passengers)
		}
		if sim.Live() != 1 {
			t.Fatalf("Tick %d: rider left behind, %d agents live", f.Tick, sim.Live())
		}
	}
}

func TestArrivalTieServesFirstEnqueued(t *testing.T) {
	sim := newEmpty(t, 5, 5,
		agent.NewCommuter(1, shared.Position{X: 1, Y: 1}, shared.West, agent.Calm),
		agent.NewCommuter(2, shared.Position{X: 2, Y: 3}, shared.North, agent.Calm),
	)

	f := sim.Step()
	for _, id := range []int{1, 2} {
		a, _ := sim.Agent(id)
		c := a.(*agent.Commuter)
		if !c.AtTurningPoint() || c.ArrivalEstimate() != 0 {
			t.Errorf("Commuter %d: expected turning point with estimate 0, got %v and %d", id, c.AtTurningPoint(), c.ArrivalEstimate())
		}
	}
	if f.Signal.Color != shared.Green || f.Signal.Cycle != shared.West {
		t.Errorf("Expected green serving west for the first arrival, got %s serving %s", f.Signal.Color, f.Signal.Cycle)
	}
	if f.Signal.Queue != 1 {
		t.Errorf("Expected commuter 2 still queued, queue=%d", f.Signal.Queue)
	}
}

func TestStaleColorHold(t *testing.T) {
	sim := newEmpty(t, 5, 5, agent.NewCommuter(1, shared.Position{X: 2, Y: 3}, shared.North, agent.Calm))

	f := sim.Step()
	a, _ := sim.Agent(1)
	c := a.(*agent.Commuter)
	if !c.Holding() || !c.AtTurningPoint() {
		t.Fatalf("Calm commuter reading the stale yellow light should hold, holding=%v", c.Holding())
	}
	if f.Signal.Color != shared.Green {
		t.Errorf("Controller should turn green for the queued commuter, got %s", f.Signal.Color)
	}

	f = sim.Step()
	if c.Holding() || c.GetPosition() != (shared.Position{X: 2, Y: 1}) {
		t.Errorf("Expected release on green and one step north, holding=%v at %v", c.Holding(), c.GetPosition())
	}
	if f.Signal.Color != shared.Yellow {
		t.Errorf("Expected yellow with an empty queue, got %s", f.Signal.Color)
	}

	sim.Step()
	if sim.Live() != 0 {
		t.Error("Commuter should leave at the north edge")
	}
}

func TestSaturationInSimulation(t *testing.T) {
	var agents []agent.Agent
	for id := 1; id <= 6; id++ {
		agents = append(agents, agent.NewCommuter(id, shared.Position{X: 2, Y: 3}, shared.East, agent.Impatient))
	}
	sim := newEmpty(t, 5, 5, agents...)

	f := sim.Step()
	if !f.Signal.Saturated {
		t.Fatalf("Six arrivals must saturate the controller, got %+v", f.Signal)
	}
	last := f.Signal.Color
	for i := 0; i < 6; i++ {
		f = sim.Step()
		if f.Signal.Color == shared.Yellow || f.Signal.Color == last {
			t.Fatalf("Tick %d: saturated controller must alternate red/green, %s after %s", f.Tick, f.Signal.Color, last)
		}
		last = f.Signal.Color
	}
}

func TestNegotiationScores(t *testing.T) {
	sim := newEmpty(t, 5, 5,
		agent.NewCommuter(1, shared.Position{X: 0, Y: 0}, shared.West, agent.Impatient),
		agent.NewCommuter(2, shared.Position{X: 0, Y: 0}, shared.West, agent.Calm),
		agent.NewRider(3, shared.Position{X: 4, Y: 4}),
		agent.NewRider(4, shared.Position{X: 4, Y: 4}),
		agent.NewRider(5, shared.Position{X: 4, Y: 4}),
	)

	f := sim.Step()
	if len(f.Negotiations) != 4 {
		t.Fatalf("Expected 4 negotiated pairs, got %v", f.Negotiations)
	}
	first := f.Negotiations[0]
	if first.A != 1 || first.B != 2 || first.TokenA != shared.Compete || first.TokenB != shared.Yield {
		t.Errorf("Unexpected first outcome %+v", first)
	}

	wantScores := map[int]int{1: 1, 2: 3, 3: 4, 4: 4, 5: 4}
	for id, want := range wantScores {
		a, _ := f.Agent(id)
		if a.Score != want {
			t.Errorf("Agent %d: expected score %d, got %d", id, want, a.Score)
		}
	}
}

func TestTickEvents(t *testing.T) {
	sim := newEmpty(t, 3, 3, agent.NewRider(1, shared.Position{X: 0, Y: 0}))
	events, cancel := sim.Events().Subscribe(4)

	sim.Step()
	select {
	case e := <-events:
		tick, ok := e.(TickEvent)
		if !ok || tick.Frame.Tick != 1 {
			t.Errorf("Expected the tick 1 frame, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("No tick event published")
	}

	cancel()
	if _, open := <-events; open {
		t.Error("Cancelled subscription should be closed")
	}
}

func TestWriteFrame(t *testing.T) {
	f := shared.Frame{
		RunID:  "run-1",
		Tick:   4,
		Width:  3,
		Height: 3,
		Agents: []shared.AgentState{
			{ID: 1, Kind: shared.KindCommuter, Position: shared.Position{X: 0, Y: 0}, State: "calm", Token: shared.Yield, Destination: shared.North},
			{ID: 2, Kind: shared.KindRider, Position: shared.Position{X: 0, Y: 0}, State: "waiting", Token: shared.Yield},
			{ID: 3, Kind: shared.KindTransit, Position: shared.Position{X: 2, Y: 2}, State: "normal", Token: shared.Yield, Passengers: 5},
		},
		Signal: shared.SignalState{Position: shared.Position{X: 1, Y: 1}, Color: shared.Red, Cycle: shared.East, Queue: 6, Saturated: true},
	}

	var b strings.Builder
	if err := WriteFrame(&b, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	out := b.String()
	lines := strings.Split(out, "\n")

	for _, want := range []string{
		"Tick 4 (run run-1)",
		"Signal at (1, 1): red, serving east, queue 6, saturated true",
		"Agent 1 commuter at (0, 0): calm/yield score=0 -> north",
		"Agent 3 transit at (2, 2): normal/yield score=0 passengers=5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasPrefix(lines[1], "C1+R2") {
		t.Errorf("Expected the shared north-west cell first, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "*") {
		t.Errorf("Expected the center marker on the middle row, got %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "T3") {
		t.Errorf("Expected the transit in the south-east cell, got %q", lines[3])
	}
}
