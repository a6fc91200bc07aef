package monoid

import (
	"github.com/bigsnarfdude/papertrail-modern/sketch/topk"
)

// TopK is the monoid over Space-Saving trackers bounded to a fixed k: Zero
// is the empty tracker, Plus replays one tracker's entries into a copy of
// the other. Order-independence of the result is an accepted approximation
// (spec §4.4), not an exact algebraic law.
type TopK struct {
	K uint
}

func (m TopK) Zero() *topk.SpaceSaving {
	s, err := topk.NewSpaceSaving(m.K)
	if err != nil {
		panic(err)
	}
	return s
}

func (m TopK) Plus(a, b *topk.SpaceSaving) (*topk.SpaceSaving, error) {
	merged, err := topk.FromBytes(a.Bytes())
	if err != nil {
		return nil, err
	}
	if err := merged.Merge(b); err != nil {
		return nil, err
	}
	return merged, nil
}

// SumTimeWindows merges TopK trackers from different windows.
func (m TopK) SumTimeWindows(trackers []*topk.SpaceSaving) (*topk.SpaceSaving, error) {
	return Sum[*topk.SpaceSaving](m, trackers)
}

// SumSystems merges TopK trackers across systems.
func (m TopK) SumSystems(trackers []*topk.SpaceSaving) (*topk.SpaceSaving, error) {
	return Sum[*topk.SpaceSaving](m, trackers)
}
