package network

import (
	"github.com/Thierry61/ageing-sim/node"
	"github.com/Thierry61/ageing-sim/prefix"
)

// NetworkEventKind tags the variant of a NetworkEvent, the message the
// dispatcher routes to a section.
type NetworkEventKind int

const (
	KindLive NetworkEventKind = iota
	KindLost
	KindGone
	KindRelocated
	KindPrefixChange
	KindStartMerge
)

func (k NetworkEventKind) String() string {
	switch k {
	case KindLive:
		return "Live"
	case KindLost:
		return "Lost"
	case KindGone:
		return "Gone"
	case KindRelocated:
		return "Relocated"
	case KindPrefixChange:
		return "PrefixChange"
	case KindStartMerge:
		return "StartMerge"
	default:
		return "Unknown"
	}
}

// NetworkEvent is a message delivered to the section owning a prefix.
// Which of its payload fields are meaningful is selected by Kind.
type NetworkEvent struct {
	kind         NetworkEventKind
	node         node.Node
	name         prefix.Name
	prefixChange prefix.Prefix
	countForAge  bool
}

// LiveEvent reports a node joining. countForAge is false only for the
// synthetic Live events injected during a merge preamble (elders the
// post-merge section gains), which must not trigger ageing.
func LiveEvent(n node.Node, countForAge bool) NetworkEvent {
	return NetworkEvent{kind: KindLive, node: n, countForAge: countForAge}
}

// LostEvent reports that the node named name has left; the section decides
// what that means for its membership.
func LostEvent(name prefix.Name) NetworkEvent {
	return NetworkEvent{kind: KindLost, name: name}
}

// GoneEvent reports an elder lost to a structural change (a merge). It is
// not counted towards churn ageing.
func GoneEvent(n node.Node) NetworkEvent {
	return NetworkEvent{kind: KindGone, node: n}
}

// RelocatedEvent is an informational hand-off notice.
func RelocatedEvent(n node.Node) NetworkEvent {
	return NetworkEvent{kind: KindRelocated, node: n}
}

// PrefixChangeEvent announces a section's new prefix after a structural
// transition (split or merge).
func PrefixChangeEvent(p prefix.Prefix) NetworkEvent {
	return NetworkEvent{kind: KindPrefixChange, prefixChange: p}
}

// StartMergeEvent marks the beginning of a merge preamble for a section.
func StartMergeEvent(p prefix.Prefix) NetworkEvent {
	return NetworkEvent{kind: KindStartMerge, prefixChange: p}
}

// Kind reports which variant an event is, for collaborators that need to
// switch on it directly.
func (e NetworkEvent) Kind() NetworkEventKind { return e.kind }

// Node returns the event's node payload, for Live/Gone/Relocated events.
func (e NetworkEvent) Node() node.Node { return e.node }

// CountForAge reports, for a Live event, whether it should trigger ageing.
func (e NetworkEvent) CountForAge() bool { return e.countForAge }

// Name returns the event's name payload, for a Lost event.
func (e NetworkEvent) Name() prefix.Name { return e.name }

// Prefix returns the event's prefix payload, for PrefixChange/StartMerge
// events.
func (e NetworkEvent) Prefix() prefix.Prefix { return e.prefixChange }

// ShouldCount reports whether this event counts towards churn ageing: true
// for every variant except StartMerge, Gone, and Live(_, false).
func (e NetworkEvent) ShouldCount() bool {
	switch e.kind {
	case KindStartMerge, KindGone:
		return false
	case KindLive:
		return e.countForAge
	default:
		return true
	}
}

// SectionEventKind tags the variant of a SectionEvent, what a section
// returns to the dispatcher in response to a NetworkEvent.
type SectionEventKind int

const (
	KindNodeDropped SectionEventKind = iota
	KindNodeRejected
	KindNeedRelocate
	KindRequestMerge
	KindRequestSplit
)

func (k SectionEventKind) String() string {
	switch k {
	case KindNodeDropped:
		return "NodeDropped"
	case KindNodeRejected:
		return "NodeRejected"
	case KindNeedRelocate:
		return "NeedRelocate"
	case KindRequestMerge:
		return "RequestMerge"
	case KindRequestSplit:
		return "RequestSplit"
	default:
		return "Unknown"
	}
}

// SectionEvent is a side effect a section asks the dispatcher to carry out.
type SectionEvent struct {
	kind SectionEventKind
	node node.Node
}

// NodeDroppedEvent reports that n left the section and should move to the
// network's left-nodes pool.
func NodeDroppedEvent(n node.Node) SectionEvent {
	return SectionEvent{kind: KindNodeDropped, node: n}
}

// NodeRejectedEvent reports that n was refused membership.
func NodeRejectedEvent(n node.Node) SectionEvent {
	return SectionEvent{kind: KindNodeRejected, node: n}
}

// NeedRelocateEvent asks the dispatcher to relocate n to another section.
func NeedRelocateEvent(n node.Node) SectionEvent {
	return SectionEvent{kind: KindNeedRelocate, node: n}
}

// RequestMergeEvent asks the dispatcher to begin merging this section with
// its sibling.
func RequestMergeEvent() SectionEvent {
	return SectionEvent{kind: KindRequestMerge}
}

// RequestSplitEvent asks the dispatcher to split this section in two.
func RequestSplitEvent() SectionEvent {
	return SectionEvent{kind: KindRequestSplit}
}

// Kind reports which variant a SectionEvent is.
func (e SectionEvent) Kind() SectionEventKind { return e.kind }

// Node returns the event's node payload, for NodeDropped/NodeRejected/
// NeedRelocate events.
func (e SectionEvent) Node() node.Node { return e.node }
