package monoid

import (
	"github.com/bigsnarfdude/papertrail-modern/sketch/hyperloglog"
)

// HLL is the monoid over HyperLogLog sketches at a fixed precision: Zero is
// an empty sketch, Plus is the elementwise-max merge.
type HLL struct {
	Precision uint
}

func (m HLL) Zero() *hyperloglog.HyperLogLog {
	h, err := hyperloglog.New(m.Precision)
	if err != nil {
		panic(err)
	}
	return h
}

func (m HLL) Plus(a, b *hyperloglog.HyperLogLog) (*hyperloglog.HyperLogLog, error) {
	merged, err := hyperloglog.FromBytes(a.Bytes())
	if err != nil {
		return nil, err
	}
	if err := merged.Merge(b); err != nil {
		return nil, err
	}
	return merged, nil
}

// SumTimeWindows merges HLLs from different windows (e.g. 24 hourly
// sketches into a daily one).
func (m HLL) SumTimeWindows(hlls []*hyperloglog.HyperLogLog) (*hyperloglog.HyperLogLog, error) {
	return Sum[*hyperloglog.HyperLogLog](m, hlls)
}

// SumSystems merges HLLs from different systems into a cross-system total.
func (m HLL) SumSystems(hlls []*hyperloglog.HyperLogLog) (*hyperloglog.HyperLogLog, error) {
	return Sum[*hyperloglog.HyperLogLog](m, hlls)
}
