package monoid

import (
	"github.com/bigsnarfdude/papertrail-modern/sketch/topk"
)

// CMS is the monoid over Count-Min Sketches under elementwise add: Zero is
// the all-zero matrix at a fixed (width, depth), Plus is Merge.
type CMS struct {
	Width uint
	Depth uint
}

func (m CMS) Zero() *topk.CMS {
	c, err := topk.NewCMS(m.Width, m.Depth)
	if err != nil {
		panic(err)
	}
	return c
}

func (m CMS) Plus(a, b *topk.CMS) (*topk.CMS, error) {
	merged, err := topk.FromBytesCMS(a.Bytes())
	if err != nil {
		return nil, err
	}
	if err := merged.Merge(b); err != nil {
		return nil, err
	}
	return merged, nil
}
