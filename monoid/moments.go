package monoid

import (
	"github.com/bigsnarfdude/papertrail-modern/sketch/moments"
)

// Moments is the monoid over statistical Moments sketches: Zero is the
// empty summary, Plus is the numerically stable parallel combine.
type Moments struct{}

func (m Moments) Zero() *moments.Moments {
	return moments.New()
}

func (m Moments) Plus(a, b *moments.Moments) (*moments.Moments, error) {
	return moments.Plus(a, b)
}

// SumTimeWindows merges Moments from different windows (e.g. hourly
// latency summaries into a daily one).
func (m Moments) SumTimeWindows(values []*moments.Moments) (*moments.Moments, error) {
	return Sum[*moments.Moments](m, values)
}
