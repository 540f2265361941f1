package grid

import (
	"slices"

	"intersection/shared"

	"github.com/samber/lo"
)

// Occupiable defines behaviors for places that can hold agents
type Occupiable interface {
	IsOccupied() bool
	OnEnter(id int)
	OnExit(id int)
}

var _ Occupiable = (*Cell)(nil)

// Cell represents a single cell in the grid that can contain any number of agents
type Cell struct {
	Position  shared.Position
	occupants map[int]struct{}
}

// IsOccupied checks if at least one agent is in this cell
func (c *Cell) IsOccupied() bool {
	return len(c.occupants) > 0
}

// OnEnter handles an agent entering this cell
func (c *Cell) OnEnter(id int) {
	if c.occupants == nil {
		c.occupants = make(map[int]struct{})
	}
	c.occupants[id] = struct{}{}
}

// OnExit handles an agent leaving this cell
func (c *Cell) OnExit(id int) {
	delete(c.occupants, id)
}

// Occupants returns the IDs in this cell in ascending order
func (c *Cell) Occupants() []int {
	ids := lo.Keys(c.occupants)
	slices.Sort(ids)
	return ids
}
