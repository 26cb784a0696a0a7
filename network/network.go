// Package network implements the global simulation engine: the trie of
// sections keyed by prefix, the cross-section event dispatcher and its
// merge-coordination state machine, and the stochastic operators that drive
// churn (add/drop/rejoin/relocate).
package network

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/Thierry61/ageing-sim/internal/omap"
	"github.com/Thierry61/ageing-sim/node"
	"github.com/Thierry61/ageing-sim/params"
	"github.com/Thierry61/ageing-sim/prefix"
)

// SplitResult is one half of the outcome of splitting a section: the child
// section and any preamble events it must process before anything else.
type SplitResult struct {
	Section Section
	Events  []NetworkEvent
}

// Section is the external collaborator contract: a Section owns membership
// and policy for exactly one live prefix. Network drives every section
// through this interface only; the concrete membership/elder/drop-weight
// logic lives outside this package (see the section package for a
// reference implementation) to keep Network ignorant of it.
type Section interface {
	Prefix() prefix.Prefix
	Len() int
	IsComplete() bool
	Nodes() []node.Node
	Elders() map[node.Node]struct{}

	// HandleEvent delivers a NetworkEvent and returns the SectionEvents it
	// provokes. On receiving a PrefixChange event, the section must adopt
	// the new prefix before returning.
	HandleEvent(event NetworkEvent, p *params.Params) []SectionEvent

	// Split produces the section's two children, extending its own prefix
	// by 0 and 1 respectively, along with any preamble events each child
	// must process first.
	Split() (SplitResult, SplitResult)

	// Merge combines self with other, a sibling of equal prefix length,
	// returning a new section whose prefix is their common parent. Neither
	// input is mutated.
	Merge(other Section, p *params.Params) Section

	DropWeight() float64
	RecomputeDropWeight(p *params.Params)

	// CountHalves reports the expected population of each half-section
	// after a notional split, without actually splitting.
	CountHalves(p *params.Params) (int, int)

	RejectYoungNode(p *params.Params) bool
}

// NewSectionFunc constructs a fresh, empty Section for a prefix, e.g. when
// the network itself is created.
type NewSectionFunc func(prefix.Prefix) Section

func lessPrefix(a, b prefix.Prefix) bool { return a.Less(b) }

// Network holds the global trie of sections, the per-prefix event queues,
// the in-progress merge registry, and the counters and churn-generating
// random operators that drive a simulation run.
type Network struct {
	sections      *omap.Map[prefix.Prefix, Section]
	leftNodes     []node.Node
	eventQueue    *omap.Map[prefix.Prefix, []NetworkEvent]
	pendingMerges *omap.Map[prefix.Prefix, *PendingMerge]

	params     params.Params
	output     *Output
	rng        *rand.Rand
	newSection NewSectionFunc
}

// New creates a Network with a single section covering the empty prefix,
// built by newSection. rng drives every stochastic operator; callers
// wanting a reproducible run should seed it themselves.
func New(p params.Params, rng *rand.Rand, newSection NewSectionFunc) *Network {
	net := &Network{
		sections:      omap.New[prefix.Prefix, Section](lessPrefix),
		eventQueue:    omap.New[prefix.Prefix, []NetworkEvent](lessPrefix),
		pendingMerges: omap.New[prefix.Prefix, *PendingMerge](lessPrefix),
		params:        p,
		output:        NewOutput(),
		rng:           rng,
		newSection:    newSection,
	}
	net.sections.Set(prefix.Empty(), newSection(prefix.Empty()))
	return net
}

// Output returns the accumulated counters and histograms for this run.
func (net *Network) Output() *Output {
	return net.output
}

// NumSections returns the number of live sections.
func (net *Network) NumSections() int {
	return net.sections.Len()
}

// CompleteSections returns the number of live sections reporting
// IsComplete().
func (net *Network) CompleteSections() int {
	count := 0
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		if s.IsComplete() {
			count++
		}
	}
	return count
}

// AgeDistribution returns a histogram of the ages of every currently live
// node, across all sections.
func (net *Network) AgeDistribution() map[uint8]int {
	dist := make(map[uint8]int)
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		for _, n := range s.Nodes() {
			dist[n.Age()]++
		}
	}
	return dist
}

// CaptureNetworkStructure appends a snapshot of the trie's current shape to
// the run's NetworkStructure time series.
func (net *Network) CaptureNetworkStructure() {
	size := 0
	complete := 0
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		size += s.Len()
		if s.IsComplete() {
			complete++
		}
	}
	net.output.NetworkStructure = append(net.output.NetworkStructure, NetworkStructure{
		Size:     size,
		Sections: net.sections.Len(),
		Complete: complete,
	})
}

// Summary renders a markdown table of per-prefix-length statistics: how
// many live sections sit at each length, and how many nodes they hold
// between them.
func (net *Network) Summary() string {
	counts := map[uint8]int{}
	sizes := map[uint8]int{}
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		counts[p.Len()]++
		sizes[p.Len()] += s.Len()
	}
	lengths := make([]uint8, 0, len(counts))
	for l := range counts {
		lengths = append(lengths, l)
	}
	sort.Slice(lengths, func(i, j int) bool { return lengths[i] < lengths[j] })

	var b strings.Builder
	b.WriteString("| Prefix length | Sections | Nodes |\n")
	b.WriteString("|---|---|---|\n")
	for _, l := range lengths {
		fmt.Fprintf(&b, "| %d | %d | %d |\n", l, counts[l], sizes[l])
	}
	return b.String()
}

func (net *Network) appendEvents(p prefix.Prefix, events []NetworkEvent) {
	existing, _ := net.eventQueue.Get(p)
	net.eventQueue.Set(p, append(existing, events...))
}

func (net *Network) hasEvents() bool {
	return net.eventQueue.Len() > 0
}

func (net *Network) totalDropWeight() float64 {
	total := 0.0
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		total += s.DropWeight()
	}
	return total
}

// prefixForNode returns the unique live prefix matching n's name, found by
// locating the predecessor of the FromName sentinel in the ordered trie.
// A miss or a mismatch is an invariant violation and aborts the process.
func (net *Network) prefixForNode(n prefix.Name) prefix.Prefix {
	p, _, found := net.sections.Predecessor(prefix.FromName(n))
	if !found {
		panic("prefixForNode: no live section found for name")
	}
	if !p.Matches(n) {
		panic("prefixForNode: predecessor prefix does not match name")
	}
	return p
}

// ProcessEvents runs the fixed-point dispatch loop: while any per-prefix
// queue is non-empty, it snapshots and drains the queue map, delivers each
// prefix's events to its section in order, and processes the SectionEvents
// they provoke. Once queues are empty, it finalizes every pending merge
// whose constituents have all completed their preamble.
func (net *Network) ProcessEvents() {
	for net.hasEvents() {
		batch := net.eventQueue.Swap()
		for _, p := range batch.Keys() {
			events, _ := batch.Get(p)
			sect, exists := net.sections.Get(p)
			if !exists {
				continue
			}
			var sectionEvents []SectionEvent
			for _, ev := range events {
				sectionEvents = append(sectionEvents, sect.HandleEvent(ev, &net.params)...)
				if ev.Kind() == KindPrefixChange {
					if pm, ok := net.pendingMerges.Get(ev.Prefix()); ok {
						pm.Completed(p)
					}
				}
			}
			for _, se := range sectionEvents {
				net.handleSectionEvent(p, se)
			}
		}
	}
	net.finalizeMerges()
}

func (net *Network) handleSectionEvent(p prefix.Prefix, se SectionEvent) {
	switch se.Kind() {
	case KindNodeDropped:
		net.leftNodes = append(net.leftNodes, se.Node())
	case KindNeedRelocate:
		net.relocate(se.Node())
	case KindNodeRejected:
		net.output.Rejections++
	case KindRequestMerge:
		net.initiateMerge(p)
	case KindRequestSplit:
		net.handleSplit(p)
	}
}

func (net *Network) handleSplit(p prefix.Prefix) {
	sect, ok := net.sections.Delete(p)
	if !ok {
		return
	}
	net.eventQueue.Delete(p)

	r0, r1 := sect.Split()
	net.sections.Set(r0.Section.Prefix(), r0.Section)
	net.sections.Set(r1.Section.Prefix(), r1.Section)
	net.appendEvents(r0.Section.Prefix(), r0.Events)
	net.appendEvents(r1.Section.Prefix(), r1.Events)
	r0.Section.RecomputeDropWeight(&net.params)
	r1.Section.RecomputeDropWeight(&net.params)
	net.output.Churn++
}

func (net *Network) finalizeMerges() {
	for _, target := range net.pendingMerges.Keys() {
		pm, ok := net.pendingMerges.Get(target)
		if !ok || !pm.IsDone() {
			continue
		}
		net.pendingMerges.Delete(target)
		merged := net.mergedSection(pm.Prefixes(), true)
		// Every constituent already adopted target on its PrefixChange, so
		// the pairwise merges shorten past it; announce target to the result
		// so it sits at the merged prefix.
		merged.HandleEvent(PrefixChangeEvent(target), &net.params)
		merged.RecomputeDropWeight(&net.params)
		net.sections.Set(merged.Prefix(), merged)
		net.output.Churn++
	}
}

// mergedSection combines the given sibling-closed set of constituent
// prefixes into their common ancestor by repeatedly merging the two
// longest-prefix sections, until one remains. When destructive, the
// constituents and their event queues are removed from the network as they
// are consumed. The result's prefix comes from the constituents' current
// prefixes, so it is the common ancestor only while they still carry their
// own prefixes (finalizeMerges re-announces the target afterwards).
func (net *Network) mergedSection(constituents []prefix.Prefix, destructive bool) Section {
	secs := make([]Section, 0, len(constituents))
	for _, q := range constituents {
		if destructive {
			s, ok := net.sections.Delete(q)
			if !ok {
				panic("mergedSection: missing constituent section")
			}
			net.eventQueue.Delete(q)
			secs = append(secs, s)
			continue
		}
		s, ok := net.sections.Get(q)
		if !ok {
			panic("mergedSection: missing constituent section")
		}
		secs = append(secs, s)
	}

	for len(secs) > 1 {
		sort.SliceStable(secs, func(i, j int) bool {
			return secs[i].Prefix().Len() > secs[j].Prefix().Len()
		})
		merged := secs[0].Merge(secs[1], &net.params)
		secs = append(secs[2:], merged)
	}
	return secs[0]
}

// initiateMerge begins the merge preamble for the section at p: it
// registers a pending merge at p.Shorten() (unless a broader merge already
// covers it), then replaces every constituent's event queue with the
// sequence of events that announces the merge to it.
func (net *Network) initiateMerge(p prefix.Prefix) {
	target := p.Shorten()

	for _, key := range net.pendingMerges.Keys() {
		if !key.IsCompatibleWith(target) {
			continue
		}
		if key.IsAncestor(target) {
			return
		}
		if target.IsAncestor(key) {
			net.pendingMerges.Delete(key)
		}
	}

	var constituents []prefix.Prefix
	for _, q := range net.sections.Keys() {
		if target.IsAncestor(q) {
			constituents = append(constituents, q)
		}
	}

	net.pendingMerges.Set(target, NewPendingMerge(constituents))
	merged := net.mergedSection(constituents, false)

	for _, q := range constituents {
		sect, _ := net.sections.Get(q)
		events := calculateMergeEvents(merged, sect, target)
		net.eventQueue.Set(q, events)
	}
}

func calculateMergeEvents(merged, constituent Section, target prefix.Prefix) []NetworkEvent {
	old := constituent.Elders()
	fresh := merged.Elders()

	events := []NetworkEvent{StartMergeEvent(target)}
	for e := range old {
		if _, stillElder := fresh[e]; !stillElder {
			events = append(events, GoneEvent(e))
		}
	}
	for e := range fresh {
		if _, wasElder := old[e]; !wasElder {
			events = append(events, LiveEvent(e, false))
		}
	}
	events = append(events, PrefixChangeEvent(target))
	return events
}

// relocate moves n to another section: with probability
// params.DistantRelocationProbability it is given a fresh random name
// first; otherwise it keeps its name. The destination is the best-shaped
// of the section owning that name and its neighbours, chosen by shortest
// prefix then fewest members.
func (net *Network) relocate(n node.Node) {
	net.output.Relocations++
	net.output.Churn += 2

	relocating := n
	if net.rng.Float64() < net.params.DistantRelocationProbability {
		relocating = node.New(prefix.Name(net.rng.Uint64()), n.Age())
	}

	src := net.prefixForNode(relocating.Name())
	candidates := []prefix.Prefix{}
	for pos := uint8(0); pos < src.Len(); pos++ {
		cand := src.WithFlippedBit(pos)
		for cand.Len() > pos {
			if net.sections.Has(cand) {
				if !src.IsNeighbour(cand) {
					panic("relocate: candidate is not a neighbour of its source section")
				}
				candidates = append(candidates, cand)
				break
			}
			cand = cand.Shorten()
		}
	}
	candidates = append(candidates, src)

	relocationKey := func(p prefix.Prefix) int {
		s, _ := net.sections.Get(p)
		return int(p.Len())*10000 + s.Len()
	}
	best := candidates[0]
	bestKey := relocationKey(best)
	for _, c := range candidates[1:] {
		if k := relocationKey(c); k < bestKey {
			best, bestKey = c, k
		}
	}

	chosen, _ := net.sections.Get(best)
	c0, c1 := chosen.CountHalves(&net.params)
	var bit *uint8
	if c0 != c1 {
		b := uint8(0)
		if c1 < c0 {
			b = 1
		}
		bit = &b
	}

	freshName := prefix.Name(net.rng.Uint64())
	relocated := relocating.Relocate(best, bit, freshName)

	net.appendEvents(best, []NetworkEvent{LiveEvent(relocated, true)})
}

// AddRandomNode introduces a node with a uniformly random name at the
// configured initial age, enqueuing its Live event in the matching section.
func (net *Network) AddRandomNode() {
	n := node.New(prefix.Name(net.rng.Uint64()), net.params.InitAge)
	p := net.prefixForNode(n.Name())
	net.appendEvents(p, []NetworkEvent{LiveEvent(n, true)})
	net.output.Adds++
	net.output.Churn++
}

// DropRandomNode selects a node to drop via two-stage weighted sampling:
// first a section weighted by its total drop weight, then a node within it
// weighted by its individual drop probability.
func (net *Network) DropRandomNode() {
	net.output.Drops++
	net.output.Churn++

	total := net.totalDropWeight()
	if total <= 0 {
		return
	}
	r := net.rng.Float64() * total

	var chosenPrefix prefix.Prefix
	var chosenSection Section
	found := false
	for _, p := range net.sections.Keys() {
		s, _ := net.sections.Get(p)
		w := s.DropWeight()
		if r < w {
			chosenPrefix, chosenSection, found = p, s, true
			break
		}
		r -= w
	}
	if !found {
		return
	}

	for _, n := range chosenSection.Nodes() {
		dp := n.DropProbability(net.params.DropDist)
		if r < dp {
			net.appendEvents(chosenPrefix, []NetworkEvent{LostEvent(n.Name())})
			net.output.recordDrop(n.Age())
			return
		}
		r -= dp
	}
}

// RejoinRandomNode pops a uniformly random node out of the left-nodes pool,
// ages it down one year (never below the configured initial age), and
// re-enqueues it as a Live event in the section matching its name.
func (net *Network) RejoinRandomNode() {
	if len(net.leftNodes) == 0 {
		return
	}
	net.rng.Shuffle(len(net.leftNodes), func(i, j int) {
		net.leftNodes[i], net.leftNodes[j] = net.leftNodes[j], net.leftNodes[i]
	})
	n := net.leftNodes[len(net.leftNodes)-1]
	net.leftNodes = net.leftNodes[:len(net.leftNodes)-1]

	rejoined := n.Rejoined(net.params.InitAge)
	p := net.prefixForNode(rejoined.Name())
	net.appendEvents(p, []NetworkEvent{LiveEvent(rejoined, true)})
	net.output.Rejoins++
	net.output.Churn++
}
