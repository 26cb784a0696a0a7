package network

// NetworkStructure is one sample in Output's time series: a snapshot of the
// trie's shape at a point in the simulation.
type NetworkStructure struct {
	// Size is the total number of live nodes across all sections.
	Size int
	// Sections is the number of live section prefixes.
	Sections int
	// Complete is the number of sections reporting IsComplete().
	Complete int
}

// Output aggregates the counters, histogram and optional time series a run
// reports. Every counter is monotone non-decreasing for the life of a run.
type Output struct {
	Adds        int
	Drops       int
	Rejoins     int
	Relocations int
	Rejections  int
	Churn       int

	// DropsDist histograms the age of every node that drops, keyed by age.
	DropsDist map[uint8]int

	// NetworkStructure is an optional time series of network shape samples,
	// appended to by CaptureNetworkStructure.
	NetworkStructure []NetworkStructure
}

// NewOutput returns a zeroed Output ready to accumulate a run's counters.
func NewOutput() *Output {
	return &Output{DropsDist: make(map[uint8]int)}
}

func (o *Output) recordDrop(age uint8) {
	o.DropsDist[age]++
}
