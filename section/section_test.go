package section

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Thierry61/ageing-sim/network"
	"github.com/Thierry61/ageing-sim/node"
	"github.com/Thierry61/ageing-sim/params"
	"github.com/Thierry61/ageing-sim/prefix"
)

func testParams() *params.Params {
	return &params.Params{
		InitAge:                      0,
		DropDist:                     node.RevProp,
		DistantRelocationProbability: 0,
		MaxSectionSize:               4,
		MinSectionSize:               2,
	}
}

func mustParse(t *testing.T, s string) prefix.Prefix {
	t.Helper()
	p, err := prefix.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return p
}

func TestNewSectionIsEmpty(t *testing.T) {
	s := New(prefix.Empty())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.IsComplete())
	assert.Equal(t, prefix.Empty(), s.Prefix())
}

func TestLiveAdmitsAndAgesTheJoiningNode(t *testing.T) {
	s := New(prefix.Empty())
	p := testParams()
	events := s.HandleEvent(network.LiveEvent(node.New(1, 0), true), p)
	assert.Empty(t, events)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint8(1), s.Nodes()[0].Age())
}

func TestLiveNotCountedForAgeIsIgnored(t *testing.T) {
	s := New(prefix.Empty())
	p := testParams()
	events := s.HandleEvent(network.LiveEvent(node.New(1, 3), false), p)
	assert.Empty(t, events)
	assert.Equal(t, 0, s.Len())
}

func TestLiveCrossingPowerOfTwoAgeTriggersRelocation(t *testing.T) {
	s := New(prefix.Empty())
	p := testParams()
	// age 7 -> aged 8, a fresh power of two: should relocate instead of join.
	events := s.HandleEvent(network.LiveEvent(node.New(1, 7), true), p)
	if assert.Len(t, events, 1) {
		assert.Equal(t, network.KindNeedRelocate, events[0].Kind())
		assert.Equal(t, uint8(8), events[0].Node().Age())
	}
	assert.Equal(t, 0, s.Len())
}

func TestLiveOverCapacityRequestsSplit(t *testing.T) {
	s := New(prefix.Empty())
	p := testParams() // MaxSectionSize == 4

	var lastEvents []network.SectionEvent
	for i := 0; i < 5; i++ {
		lastEvents = s.HandleEvent(network.LiveEvent(node.New(prefix.Name(i), 0), true), p)
	}
	if assert.Len(t, lastEvents, 1) {
		assert.Equal(t, network.KindRequestSplit, lastEvents[0].Kind())
	}
}

func TestLostRemovesMemberAndRequestsMergeBelowMinSize(t *testing.T) {
	impl := &Section{prefix: mustParse(t, "0")}
	p := testParams() // MinSectionSize == 2
	impl.HandleEvent(network.LiveEvent(node.New(1, 0), true), p)
	impl.HandleEvent(network.LiveEvent(node.New(2, 0), true), p)
	assert.Equal(t, 2, impl.Len())

	events := impl.HandleEvent(network.LostEvent(prefix.Name(1)), p)
	if assert.Len(t, events, 2) {
		assert.Equal(t, network.KindNodeDropped, events[0].Kind())
		assert.Equal(t, network.KindRequestMerge, events[1].Kind())
	}
	assert.Equal(t, 1, impl.Len())
}

func TestLostOnEmptyPrefixNeverRequestsMerge(t *testing.T) {
	impl := &Section{prefix: prefix.Empty()}
	p := testParams()
	impl.HandleEvent(network.LiveEvent(node.New(1, 0), true), p)
	events := impl.HandleEvent(network.LostEvent(prefix.Name(1)), p)
	assert.Len(t, events, 1)
	assert.Equal(t, network.KindNodeDropped, events[0].Kind())
}

func TestGoneRemovesWithoutCountingChurn(t *testing.T) {
	impl := &Section{prefix: prefix.Empty()}
	p := testParams()
	impl.HandleEvent(network.LiveEvent(node.New(1, 0), true), p)
	n := impl.Nodes()[0]
	events := impl.HandleEvent(network.GoneEvent(n), p)
	assert.Empty(t, events)
	assert.Equal(t, 0, impl.Len())
}

func TestPrefixChangeAdoptsAnnouncedPrefixAndEndsMerging(t *testing.T) {
	impl := &Section{prefix: mustParse(t, "0")}
	p := testParams()
	impl.HandleEvent(network.StartMergeEvent(prefix.Empty()), p)
	assert.True(t, impl.merging)
	impl.HandleEvent(network.PrefixChangeEvent(prefix.Empty()), p)
	assert.Equal(t, prefix.Empty(), impl.Prefix())
	assert.False(t, impl.merging)
}

func TestSplitPartitionsMembersByNextBit(t *testing.T) {
	impl := &Section{prefix: prefix.Empty()}
	p := testParams()
	impl.HandleEvent(network.LiveEvent(node.New(0, 0), true), p)
	impl.HandleEvent(network.LiveEvent(node.New(1<<63, 0), true), p)

	r0, r1 := impl.Split()
	assert.Equal(t, mustParse(t, "0"), r0.Section.Prefix())
	assert.Equal(t, mustParse(t, "1"), r1.Section.Prefix())
	assert.Equal(t, 1, r0.Section.Len())
	assert.Equal(t, 1, r1.Section.Len())
}

func TestMergeCombinesMembersUnderCommonParent(t *testing.T) {
	p := testParams()
	left := &Section{prefix: mustParse(t, "0"), members: []node.Node{node.New(0, 5)}}
	right := &Section{prefix: mustParse(t, "1"), members: []node.Node{node.New(1<<63, 5)}}

	merged := left.Merge(right, p)
	assert.Equal(t, prefix.Empty(), merged.Prefix())
	assert.Equal(t, 2, merged.Len())
	assert.Equal(t, 1, left.Len(), "merge must not mutate its receiver")
	assert.Equal(t, 1, right.Len(), "merge must not mutate its argument")
}

func TestRecomputeDropWeightSumsMemberProbabilities(t *testing.T) {
	impl := &Section{prefix: prefix.Empty(), members: []node.Node{node.New(1, 5), node.New(2, 10)}}
	p := testParams()
	impl.RecomputeDropWeight(p)
	want := node.New(1, 5).DropProbability(p.DropDist) + node.New(2, 10).DropProbability(p.DropDist)
	assert.InDelta(t, want, impl.DropWeight(), 1e-9)
}

func TestCountHalvesSplitsByNextBitWithoutMutating(t *testing.T) {
	impl := &Section{prefix: prefix.Empty(), members: []node.Node{node.New(0, 0), node.New(1<<63, 0)}}
	c0, c1 := impl.CountHalves(testParams())
	assert.Equal(t, 1, c0)
	assert.Equal(t, 1, c1)
	assert.Equal(t, 2, impl.Len())
}

func TestRejectYoungNodeAtCapacity(t *testing.T) {
	p := testParams() // MaxSectionSize == 4
	impl := &Section{prefix: prefix.Empty()}
	for i := 0; i < 4; i++ {
		impl.members = append(impl.members, node.New(prefix.Name(i), 0))
	}
	assert.True(t, impl.RejectYoungNode(p))
}

func TestIsCompleteAtTargetElders(t *testing.T) {
	impl := &Section{prefix: prefix.Empty()}
	for i := 0; i < targetElders; i++ {
		impl.members = append(impl.members, node.New(prefix.Name(i), 10))
	}
	assert.True(t, impl.IsComplete())
}
