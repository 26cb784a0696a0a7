// Package params holds the tunable knobs of a simulation run: the values a
// Network and its Section collaborators are configured with.
package params

import "github.com/Thierry61/ageing-sim/node"

// Params bundles the configuration a Network is constructed with. Network
// reads InitAge, DropDist and DistantRelocationProbability itself and passes
// the whole bundle on to the Section collaborators it drives.
type Params struct {
	// InitAge is the age a freshly joining node starts at.
	InitAge uint8

	// DropDist selects the distribution used to weight random node drops.
	DropDist node.DropDist

	// DistantRelocationProbability is the chance that a relocating node is
	// first given a fresh random name, so that its destination is chosen
	// around the section owning that name rather than its current one.
	DistantRelocationProbability float64

	// MaxSectionSize is the node count above which a section requests a
	// split.
	MaxSectionSize int

	// MinSectionSize is the node count below which a section requests a
	// merge with its sibling.
	MinSectionSize int
}

// Default returns the parameter set used when a run doesn't override
// anything: an init age of 0, reverse-proportional drop weighting, no
// distant relocation bias, and section sizes bracketing the elder target.
func Default() Params {
	return Params{
		InitAge:                      0,
		DropDist:                     node.RevProp,
		DistantRelocationProbability: 0,
		MaxSectionSize:               20,
		MinSectionSize:               5,
	}
}
