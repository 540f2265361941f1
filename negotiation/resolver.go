// Package negotiation resolves pairwise encounters between co-located agents.
package negotiation

import "intersection/shared"

// Payoff is the pair of rewards for the first and second agent of a pair
type Payoff struct {
	A int
	B int
}

type tokenPair struct {
	a, b shared.Token
}

// DefaultPayoff is returned for token combinations outside the table
var DefaultPayoff = Payoff{A: 0, B: 0}

// Resolver looks decision token pairs up in a fixed payoff table
type Resolver struct {
	table map[tokenPair]Payoff
}

// NewResolver creates a resolver with the standard yield/compete table
func NewResolver() *Resolver {
	return &Resolver{
		table: map[tokenPair]Payoff{
			{shared.Yield, shared.Yield}:     {A: 2, B: 2},
			{shared.Yield, shared.Compete}:   {A: 3, B: 1},
			{shared.Compete, shared.Yield}:   {A: 1, B: 3},
			{shared.Compete, shared.Compete}: {A: 0, B: 0},
		},
	}
}

// Resolve returns the payoff for the ordered pair of tokens
func (r *Resolver) Resolve(a, b shared.Token) Payoff {
	if p, ok := r.table[tokenPair{a, b}]; ok {
		return p
	}
	return DefaultPayoff
}
