// Package section provides the reference Section collaborator: the
// concrete per-prefix membership and policy engine that network.Network
// drives through the network.Section contract. Its internals (elder
// selection, drop-weight computation, split/merge voting) are deliberately
// out of the core engine's scope; this package supplies one reasonable,
// swappable implementation of them.
package section

import (
	"sort"

	"github.com/Thierry61/ageing-sim/network"
	"github.com/Thierry61/ageing-sim/node"
	"github.com/Thierry61/ageing-sim/params"
	"github.com/Thierry61/ageing-sim/prefix"
)

// targetElders is the number of oldest adult members treated as elders,
// matching the group-size convention of the safe-network design this model
// borrows its section concept from.
const targetElders = 8

// Section is the reference Section collaborator: it tracks member nodes
// for one live prefix, is in the middle of a merge while merging is true,
// and reports a drop weight that must be kept current via
// RecomputeDropWeight after any membership change.
type Section struct {
	prefix     prefix.Prefix
	members    []node.Node
	dropWeight float64
	merging    bool
}

// New constructs an empty Section for prefix p, satisfying
// network.NewSectionFunc.
func New(p prefix.Prefix) network.Section {
	return &Section{prefix: p}
}

// Prefix returns the section's current prefix.
func (s *Section) Prefix() prefix.Prefix { return s.prefix }

// Len returns the section's member count.
func (s *Section) Len() int { return len(s.members) }

// IsComplete reports whether the section has reached its full elder
// complement.
func (s *Section) IsComplete() bool {
	return s.countAdults() >= targetElders
}

// Nodes returns the section's members in the order they were added (not
// sorted by age).
func (s *Section) Nodes() []node.Node {
	return s.members
}

func (s *Section) countAdults() int {
	count := 0
	for _, n := range s.members {
		if n.IsAdult() {
			count++
		}
	}
	return count
}

// Elders returns up to targetElders of the oldest adult members, the
// distinguished subset a merge preamble diffs against.
func (s *Section) Elders() map[node.Node]struct{} {
	sorted := make([]node.Node, 0, len(s.members))
	for _, n := range s.members {
		if n.IsAdult() {
			sorted = append(sorted, n)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Age() > sorted[j].Age() })

	n := targetElders
	if len(sorted) < n {
		n = len(sorted)
	}
	elders := make(map[node.Node]struct{}, n)
	for i := 0; i < n; i++ {
		elders[sorted[i]] = struct{}{}
	}
	return elders
}

// HandleEvent delivers a NetworkEvent and returns the SectionEvents it
// provokes. A counted Live event ages the joining node by one; if that
// leaves it an adult whose age is a power of two it is relocated out
// immediately instead of being admitted. Lost/Gone remove the named member.
// PrefixChange adopts the announced prefix.
func (s *Section) HandleEvent(ev network.NetworkEvent, p *params.Params) []network.SectionEvent {
	switch ev.Kind() {
	case network.KindLive:
		return s.handleLive(ev, p)
	case network.KindLost:
		return s.handleLost(ev.Name(), p)
	case network.KindGone:
		s.removeByNode(ev.Node())
		return nil
	case network.KindRelocated:
		return nil
	case network.KindPrefixChange:
		s.prefix = ev.Prefix()
		s.merging = false
		return nil
	case network.KindStartMerge:
		s.merging = true
		return nil
	default:
		return nil
	}
}

func (s *Section) handleLive(ev network.NetworkEvent, p *params.Params) []network.SectionEvent {
	n := ev.Node()
	if !ev.CountForAge() {
		// Synthetic elder-gained notice from a merge preamble: the member
		// already arrived via Merge's membership concatenation, so this
		// carries no membership change of its own.
		return nil
	}
	if !n.IsAdult() && s.RejectYoungNode(p) {
		return []network.SectionEvent{network.NodeRejectedEvent(n)}
	}

	var events []network.SectionEvent
	aged := n.Aged()
	if aged.IsAdult() && isPowerOfTwo(aged.Age()) {
		// A join that pushes the node's age to a fresh power of two is
		// considered to have matured out of this section immediately.
		events = append(events, network.NeedRelocateEvent(aged))
	} else {
		s.members = append(s.members, aged)
		if len(s.members) > maxSectionSize(p) {
			events = append(events, network.RequestSplitEvent())
		}
	}
	return events
}

func isPowerOfTwo(n uint8) bool {
	return n != 0 && n&(n-1) == 0
}

func (s *Section) handleLost(name prefix.Name, p *params.Params) []network.SectionEvent {
	for i, m := range s.members {
		if m.Name() == name {
			dropped := m
			s.members = append(s.members[:i], s.members[i+1:]...)
			events := []network.SectionEvent{network.NodeDroppedEvent(dropped)}
			if len(s.members) < minSectionSize(p) && s.prefix.Len() > 0 && !s.merging {
				events = append(events, network.RequestMergeEvent())
			}
			return events
		}
	}
	return nil
}

func (s *Section) removeByNode(n node.Node) {
	for i, m := range s.members {
		if m == n {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// Split partitions members by their next bit and returns the two children,
// each with no preamble events of their own (a fresh section needs none
// beyond whatever the dispatcher already queued for it).
func (s *Section) Split() (network.SplitResult, network.SplitResult) {
	child0Prefix := s.prefix.Extend(0)
	child1Prefix := s.prefix.Extend(1)
	var members0, members1 []node.Node
	for _, n := range s.members {
		if child0Prefix.Matches(n.Name()) {
			members0 = append(members0, n)
		} else {
			members1 = append(members1, n)
		}
	}
	return network.SplitResult{Section: &Section{prefix: child0Prefix, members: members0}},
		network.SplitResult{Section: &Section{prefix: child1Prefix, members: members1}}
}

// Merge combines s with other, a sibling of equal prefix length, into a new
// Section rooted at their common parent. Neither input is mutated.
func (s *Section) Merge(other network.Section, p *params.Params) network.Section {
	o, ok := other.(*Section)
	if !ok {
		panic("section: Merge called with a foreign Section implementation")
	}
	merged := make([]node.Node, 0, len(s.members)+len(o.members))
	merged = append(merged, s.members...)
	merged = append(merged, o.members...)
	result := &Section{prefix: s.prefix.Shorten(), members: merged}
	result.RecomputeDropWeight(p)
	return result
}

// DropWeight returns the section's cached total drop weight.
func (s *Section) DropWeight() float64 { return s.dropWeight }

// RecomputeDropWeight recomputes the section's total drop weight as the sum
// of every member's individual drop probability.
func (s *Section) RecomputeDropWeight(p *params.Params) {
	total := 0.0
	for _, n := range s.members {
		total += n.DropProbability(p.DropDist)
	}
	s.dropWeight = total
}

// CountHalves reports the expected population of each half after a notional
// split by next bit, without actually splitting.
func (s *Section) CountHalves(p *params.Params) (int, int) {
	child0Prefix := s.prefix.Extend(0)
	var c0, c1 int
	for _, n := range s.members {
		if child0Prefix.Matches(n.Name()) {
			c0++
		} else {
			c1++
		}
	}
	return c0, c1
}

// RejectYoungNode reports whether this section is full enough that a new,
// non-adult node should be turned away rather than admitted.
func (s *Section) RejectYoungNode(p *params.Params) bool {
	return len(s.members) >= maxSectionSize(p)
}

func maxSectionSize(p *params.Params) int {
	if p.MaxSectionSize > 0 {
		return p.MaxSectionSize
	}
	return 20
}

func minSectionSize(p *params.Params) int {
	if p.MinSectionSize > 0 {
		return p.MinSectionSize
	}
	return 5
}
