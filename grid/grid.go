// Package grid implements the bounded, non-wrapping lattice agents move on.
// A cell may hold several agents at once; the grid only keeps agent IDs and never owns agents.
package grid

import (
	"errors"
	"fmt"
	"sync"

	"intersection/shared"

	"github.com/samber/lo"
)

var (
	ErrOutOfBounds = errors.New("grid: position out of bounds")
	ErrNotPlaced   = errors.New("grid: agent not placed")
	ErrBadSize     = errors.New("grid: width and height must be positive")
)

// neighborOffsets is the fixed 4-neighborhood iteration order: west, south, north, east
var neighborOffsets = []shared.Position{
	{X: -1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: 1, Y: 0},
}

// Grid represents the 2D space where agents move
type Grid struct {
	Width  int
	Height int
	cells  [][]Cell
	index  map[int]shared.Position
	mu     sync.RWMutex
}

// New creates an empty width x height grid
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadSize, width, height)
	}

	g := &Grid{
		Width:  width,
		Height: height,
		index:  make(map[int]shared.Position),
	}
	g.cells = make([][]Cell, height)
	for y := 0; y < height; y++ {
		g.cells[y] = make([]Cell, width)
		for x := 0; x < width; x++ {
			g.cells[y][x] = Cell{Position: shared.Position{X: x, Y: y}}
		}
	}
	return g, nil
}

// InBounds reports whether pos lies on the grid
func (g *Grid) InBounds(pos shared.Position) bool {
	return pos.X >= 0 && pos.X < g.Width && pos.Y >= 0 && pos.Y < g.Height
}

// Clamp returns the closest in-bounds position to pos
func (g *Grid) Clamp(pos shared.Position) shared.Position {
	return shared.Position{
		X: lo.Clamp(pos.X, 0, g.Width-1),
		Y: lo.Clamp(pos.Y, 0, g.Height-1),
	}
}

// cell returns the cell at pos, or nil when out of bounds
func (g *Grid) cell(pos shared.Position) *Cell {
	if !g.InBounds(pos) {
		return nil
	}
	return &g.cells[pos.Y][pos.X]
}

// Place puts an agent on the grid. An agent that is already placed is relocated.
func (g *Grid) Place(id int, pos shared.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	target := g.cell(pos)
	if target == nil {
		return fmt.Errorf("place agent %d at (%d, %d): %w", id, pos.X, pos.Y, ErrOutOfBounds)
	}
	if old, ok := g.index[id]; ok {
		g.cell(old).OnExit(id)
	}
	target.OnEnter(id)
	g.index[id] = pos
	return nil
}

// Remove takes an agent off the grid. It reports false when the agent was not placed.
func (g *Grid) Remove(id int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.index[id]
	if !ok {
		return false
	}
	g.cell(pos).OnExit(id)
	delete(g.index, id)
	return true
}

// Move relocates a placed agent in a single update
func (g *Grid) Move(id int, pos shared.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.index[id]
	if !ok {
		return fmt.Errorf("move agent %d: %w", id, ErrNotPlaced)
	}
	target := g.cell(pos)
	if target == nil {
		return fmt.Errorf("move agent %d to (%d, %d): %w", id, pos.X, pos.Y, ErrOutOfBounds)
	}
	g.cell(current).OnExit(id)
	target.OnEnter(id)
	g.index[id] = pos
	return nil
}

// PositionOf returns where an agent is placed
func (g *Grid) PositionOf(id int) (shared.Position, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pos, ok := g.index[id]
	return pos, ok
}

// Occupants returns the IDs in the cell at pos, ascending
func (g *Grid) Occupants(pos shared.Position) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.cell(pos)
	if c == nil {
		return nil
	}
	return c.Occupants()
}

// IsEmpty reports whether no agent occupies pos. Out-of-bounds cells are never empty.
func (g *Grid) IsEmpty(pos shared.Position) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.cell(pos)
	return c != nil && !c.IsOccupied()
}

// NeighborCells returns the in-bounds orthogonal neighbors of pos in fixed order
func (g *Grid) NeighborCells(pos shared.Position) []shared.Position {
	return NeighborCells(pos, g.Width, g.Height)
}

// Neighbors returns the combined occupants of the orthogonal neighbors of pos, excluding pos itself
func (g *Grid) Neighbors(pos shared.Position) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []int
	for _, n := range NeighborCells(pos, g.Width, g.Height) {
		ids = append(ids, g.cell(n).Occupants()...)
	}
	return ids
}

// Len returns the number of placed agents
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.index)
}

// NeighborCells returns the in-bounds orthogonal neighbors of pos on a width x height lattice
func NeighborCells(pos shared.Position, width, height int) []shared.Position {
	cells := make([]shared.Position, 0, len(neighborOffsets))
	for _, d := range neighborOffsets {
		n := pos.Add(d)
		if n.X >= 0 && n.X < width && n.Y >= 0 && n.Y < height {
			cells = append(cells, n)
		}
	}
	return cells
}
