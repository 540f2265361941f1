// Package simulation owns the live agents and runs the tick scheduler. Every tick is split into
// phases: all agents perceive and decide against one tick-start snapshot, co-located pairs are
// negotiated, then all agents act and finally the signal controller decides.
package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"intersection/agent"
	"intersection/grid"
	"intersection/negotiation"
	"intersection/shared"
	"intersection/signal"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// ErrNegativeCount is returned when a population count is negative
var ErrNegativeCount = errors.New("population counts must not be negative")

// Config describes the grid and the initial population
type Config struct {
	Width     int
	Height    int
	Commuters int
	Transits  int
	SportA    int
	SportB    int
	Riders    int
	// LoopCells are the roundabout cells sport-b agents linger on. Nil means the four diagonal
	// cells around the center.
	LoopCells []shared.Position
}

// Simulation is the scheduler and the sole owner of every live agent
type Simulation struct {
	runID        string
	grid         *grid.Grid
	agents       map[int]agent.Agent
	controller   *signal.Controller
	resolver     *negotiation.Resolver
	loopCells    []shared.Position
	scores       map[int]int
	negotiations []shared.NegotiationOutcome
	events       *Broadcaster
	mu           sync.RWMutex
	nextID       int
	tick         int

	// reverseAct runs the act phase in descending ID order
	reverseAct bool
}

// NewEmpty creates a simulation with no agents. Agents are added with Add.
func NewEmpty(width, height int, loopCells []shared.Position) (*Simulation, error) {
	g, err := grid.New(width, height)
	if err != nil {
		return nil, fmt.Errorf("creating grid: %w", err)
	}
	center := shared.Position{X: width / 2, Y: height / 2}
	if loopCells == nil {
		loopCells = defaultLoopCells(g, center)
	}

	s := &Simulation{
		runID:      uuid.NewString(),
		grid:       g,
		agents:     make(map[int]agent.Agent),
		controller: signal.New(center),
		resolver:   negotiation.NewResolver(),
		loopCells:  slices.Clone(loopCells),
		scores:     make(map[int]int),
		events:     NewBroadcaster(),
		nextID:     1,
	}

	log.WithField("run", s.runID).Infof("Simulation initialized with %dx%d grid", width, height)
	return s, nil
}

// New creates a simulation and populates it from cfg, drawing every random choice from rng
func New(cfg Config, rng *rand.Rand) (*Simulation, error) {
	if lo.SomeBy([]int{cfg.Commuters, cfg.Transits, cfg.SportA, cfg.SportB, cfg.Riders}, func(n int) bool { return n < 0 }) {
		return nil, ErrNegativeCount
	}
	s, err := NewEmpty(cfg.Width, cfg.Height, cfg.LoopCells)
	if err != nil {
		return nil, err
	}

	randomPos := func() shared.Position {
		return shared.Position{X: rng.Intn(cfg.Width), Y: rng.Intn(cfg.Height)}
	}
	destinations := []shared.Direction{shared.North, shared.East, shared.West}
	dispositions := []agent.Disposition{agent.Calm, agent.Impatient}

	var agents []agent.Agent
	for i := 0; i < cfg.Commuters; i++ {
		pos := randomPos()
		dest := destinations[rng.Intn(len(destinations))]
		disp := dispositions[rng.Intn(len(dispositions))]
		agents = append(agents, agent.NewCommuter(s.NextID(), pos, dest, disp))
	}
	for i := 0; i < cfg.Transits; i++ {
		agents = append(agents, agent.NewTransit(s.NextID(), randomPos()))
	}
	for i := 0; i < cfg.SportA; i++ {
		agents = append(agents, agent.NewSportA(s.NextID(), randomPos()))
	}
	for i := 0; i < cfg.SportB; i++ {
		agents = append(agents, agent.NewSportB(s.NextID(), randomPos()))
	}
	for i := 0; i < cfg.Riders; i++ {
		agents = append(agents, agent.NewRider(s.NextID(), randomPos()))
	}
	for _, a := range agents {
		if err := s.Add(a); err != nil {
			return nil, err
		}
	}

	log.WithField("run", s.runID).Infof("Populated %d agents", len(s.agents))
	return s, nil
}

func defaultLoopCells(g *grid.Grid, center shared.Position) []shared.Position {
	diagonals := []shared.Position{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}}
	return lo.FilterMap(diagonals, func(d shared.Position, _ int) (shared.Position, bool) {
		p := center.Add(d)
		return p, g.InBounds(p)
	})
}

// NextID reserves the next agent ID
func (s *Simulation) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// Add places an agent on the grid and makes it live
func (s *Simulation) Add(a agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := a.GetID()
	if _, exists := s.agents[id]; exists {
		return fmt.Errorf("agent %d already registered", id)
	}
	if err := s.grid.Place(id, a.GetPosition()); err != nil {
		return fmt.Errorf("placing agent %d: %w", id, err)
	}
	s.agents[id] = a
	if id >= s.nextID {
		s.nextID = id + 1
	}

	pos := a.GetPosition()
	log.Debugf("Agent %d (%s) registered at position (%d, %d)", id, a.GetKind(), pos.X, pos.Y)
	return nil
}

// RunID identifies this simulation run in frames and logs
func (s *Simulation) RunID() string { return s.runID }

// Events returns the broadcaster that receives a TickEvent after every step
func (s *Simulation) Events() *Broadcaster { return s.events }

// GetTickCount returns the number of completed ticks
func (s *Simulation) GetTickCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Agent returns a live agent by ID
func (s *Simulation) Agent(id int) (agent.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	return a, ok
}

// Live returns the number of live agents
func (s *Simulation) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// Frame returns the read-only state of the world after the last completed tick
func (s *Simulation) Frame() shared.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameLocked()
}

func (s *Simulation) frameLocked() shared.Frame {
	agents := make([]shared.AgentState, 0, len(s.agents))
	for _, id := range s.liveIDs() {
		st := s.agents[id].State()
		st.Score = s.scores[id]
		agents = append(agents, st)
	}
	return shared.Frame{
		RunID:        s.runID,
		Tick:         s.tick,
		Width:        s.grid.Width,
		Height:       s.grid.Height,
		Agents:       agents,
		Signal:       s.controller.State(),
		LoopCells:    slices.Clone(s.loopCells),
		Negotiations: slices.Clone(s.negotiations),
	}
}

// liveIDs returns the live agent IDs in ascending order
func (s *Simulation) liveIDs() []int {
	ids := lo.Keys(s.agents)
	slices.Sort(ids)
	return ids
}

// Step advances the simulation by one tick and returns the resulting frame
func (s *Simulation) Step() shared.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	view := agent.NewSnapshot(s.frameLocked())
	ids := s.liveIDs()
	log.WithFields(log.Fields{"run": s.runID, "tick": s.tick, "agents": len(ids)}).Debug("Tick starting")

	for _, id := range ids {
		a := s.agents[id]
		a.Perceive(view)
		a.Decide(view)
	}

	s.negotiations = s.negotiate(view)

	order := ids
	if s.reverseAct {
		order = slices.Clone(ids)
		slices.Reverse(order)
	}
	w := &world{sim: s, view: view}
	for _, id := range order {
		// agents removed earlier in this phase do not act
		if a, live := s.agents[id]; live {
			a.Act(w)
		}
	}

	s.controller.Decide()

	frame := s.frameLocked()
	s.events.Publish(TickEvent{Frame: frame})
	log.WithFields(log.Fields{"run": s.runID, "tick": s.tick, "light": frame.Signal.Color}).Debug("Tick completed")
	return frame
}

// negotiate resolves every unordered pair of agents that shared a cell at the start of the tick,
// using the tokens committed in the decide phase
func (s *Simulation) negotiate(view *agent.Snapshot) []shared.NegotiationOutcome {
	var outcomes []shared.NegotiationOutcome
	for _, cell := range occupiedCells(view.Frame()) {
		group := view.At(cell)
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := s.agents[group[i].ID], s.agents[group[j].ID]
				p := s.resolver.Resolve(a.GetToken(), b.GetToken())
				s.scores[a.GetID()] += p.A
				s.scores[b.GetID()] += p.B
				outcomes = append(outcomes, shared.NegotiationOutcome{
					A:       a.GetID(),
					B:       b.GetID(),
					Cell:    cell,
					TokenA:  a.GetToken(),
					TokenB:  b.GetToken(),
					PayoffA: p.A,
					PayoffB: p.B,
				})
			}
		}
	}
	return outcomes
}

// occupiedCells lists each multiply occupied cell once, in order of its lowest occupant ID
func occupiedCells(frame shared.Frame) []shared.Position {
	counts := lo.CountValuesBy(frame.Agents, func(a shared.AgentState) shared.Position { return a.Position })
	cells := lo.Uniq(lo.Map(frame.Agents, func(a shared.AgentState, _ int) shared.Position { return a.Position }))
	return lo.Filter(cells, func(p shared.Position, _ int) bool { return counts[p] > 1 })
}

// removeLocked takes an agent off the grid and out of the live set
func (s *Simulation) removeLocked(id int) bool {
	a, live := s.agents[id]
	if !live {
		return false
	}
	s.grid.Remove(id)
	delete(s.agents, id)

	pos := a.GetPosition()
	log.WithFields(log.Fields{"run": s.runID, "tick": s.tick, "agent": id, "kind": a.GetKind()}).Info("Agent removed")
	s.events.Publish(AgentRemovedEvent{Tick: s.tick, ID: id, Kind: a.GetKind(), Position: pos})
	return true
}

// Stop shuts down the event broadcaster
func (s *Simulation) Stop() {
	log.Println("Shutting down simulation...")
	s.events.Stop()
}

// world is the act-phase view handed to agents. It is only used while Step holds the write lock.
type world struct {
	sim  *Simulation
	view *agent.Snapshot
}

func (w *world) Snapshot() *agent.Snapshot { return w.view }
func (w *world) Signal() agent.Signal      { return w.sim.controller }
func (w *world) Remove(id int) bool        { return w.sim.removeLocked(id) }

func (w *world) Move(a agent.Agent, pos shared.Position) shared.Position {
	pos = w.sim.grid.Clamp(pos)
	if err := w.sim.grid.Move(a.GetID(), pos); err != nil {
		log.Warnf("Move of agent %d to (%d, %d) failed: %v", a.GetID(), pos.X, pos.Y, err)
		return a.GetPosition()
	}
	a.SetPosition(pos)
	return pos
}
