// Package node models the identity and age of a single peer: its name
// within the overlay, how old it is, and the pure transformations age
// subjects it to (relocation, rejoining, ageing).
package node

import (
	"math"

	"github.com/Thierry61/ageing-sim/prefix"
)

// adultAge is the age strictly above which a node is considered an adult.
const adultAge = 4

// DropDist selects the probability distribution used to weight a node's
// chance of being the one dropped in a random churn event.
type DropDist int

const (
	// RevProp weights drop probability as 10/age: older nodes are
	// proportionally less likely to drop.
	RevProp DropDist = iota
	// Exponential weights drop probability as 2^-age.
	Exponential
)

// Node is a peer identified by its Name, with an Age that governs both its
// adulthood and its resistance to being dropped.
type Node struct {
	name prefix.Name
	age  uint8
}

// New creates a node with the given name and age.
func New(name prefix.Name, age uint8) Node {
	return Node{name: name, age: age}
}

// Name returns the node's name.
func (n Node) Name() prefix.Name {
	return n.name
}

// Age returns the node's age.
func (n Node) Age() uint8 {
	return n.age
}

// IsAdult reports whether the node has aged past the adult threshold.
func (n Node) IsAdult() bool {
	return n.age > adultAge
}

// DropProbability returns the (unnormalized) weight used when randomly
// selecting a node to drop, under the given distribution.
func (n Node) DropProbability(dist DropDist) float64 {
	if dist == Exponential {
		return math.Pow(2, -float64(n.age))
	}
	return 10 / float64(n.age)
}

// Aged returns a copy of n with its age incremented by one, the effect of a
// counted churn event landing on this node.
func (n Node) Aged() Node {
	return Node{name: n.name, age: n.age + 1}
}

// Relocate returns the node the way it looks after relocating into target
// (or into target's half chosen by bit, when bit is non-nil), taking on
// freshName as its new name and one additional year of age.
func (n Node) Relocate(target prefix.Prefix, bit *uint8, freshName prefix.Name) Node {
	if bit != nil {
		target = target.Extend(*bit)
	}
	return Node{name: target.SubstitutedIn(freshName), age: n.age + 1}
}

// Rejoined returns the node the way it looks after rejoining the network:
// one year younger, but never younger than minAge.
func (n Node) Rejoined(minAge uint8) Node {
	age := n.age
	if age > 0 {
		age--
	}
	if age < minAge {
		age = minAge
	}
	return Node{name: n.name, age: age}
}
