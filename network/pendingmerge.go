package network

import (
	"github.com/Thierry61/ageing-sim/internal/omap"
	"github.com/Thierry61/ageing-sim/prefix"
)

// PendingMerge tracks, for a target merged prefix, which of its constituent
// prefixes have completed their pre-merge churn (acknowledged the
// PrefixChange that announces the target).
type PendingMerge struct {
	done *omap.Map[prefix.Prefix, bool]
}

// NewPendingMerge registers a pending merge over the given constituent
// prefixes, none of which have completed yet.
func NewPendingMerge(constituents []prefix.Prefix) *PendingMerge {
	done := omap.New[prefix.Prefix, bool](lessPrefix)
	for _, p := range constituents {
		done.Set(p, false)
	}
	return &PendingMerge{done: done}
}

// Completed marks p as having finished its pre-merge churn. It is a no-op
// if p is not a constituent of this merge.
func (pm *PendingMerge) Completed(p prefix.Prefix) {
	if pm.done.Has(p) {
		pm.done.Set(p, true)
	}
}

// IsDone reports whether every constituent has completed.
func (pm *PendingMerge) IsDone() bool {
	done := true
	pm.done.Ascend(func(_ prefix.Prefix, completed bool) bool {
		if !completed {
			done = false
			return false
		}
		return true
	})
	return done
}

// Prefixes returns the constituent prefixes of this merge, in bits-ascending
// order.
func (pm *PendingMerge) Prefixes() []prefix.Prefix {
	return pm.done.Keys()
}
