// Package topk implements the Count-Min Sketch frequency estimator and the
// Space-Saving Top-K heavy-hitter tracker (C4).
package topk

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/bigsnarfdude/papertrail-modern/hash"
)

// CMS is a width-w, depth-d Count-Min Sketch.
type CMS struct {
	width  uint
	depth  uint
	matrix [][]uint64
	lock   sync.RWMutex
}

// NewCMS creates a CMS with the given width and depth.
func NewCMS(width, depth uint) (*CMS, error) {
	if width == 0 || depth == 0 {
		return nil, fmt.Errorf("papertrail: cms width and depth must be positive")
	}
	matrix := make([][]uint64, depth)
	for i := range matrix {
		matrix[i] = make([]uint64, width)
	}
	return &CMS{width: width, depth: depth, matrix: matrix}, nil
}

// NewCMSFromEstimates derives (width, depth) from an error bound ε and a
// failure probability δ: w = ceil(e/ε), d = ceil(ln(1/δ)).
func NewCMSFromEstimates(epsilon, delta float64) (*CMS, error) {
	width := uint(math.Ceil(math.E / epsilon))
	depth := uint(math.Ceil(math.Log(1 / delta)))
	return NewCMS(width, depth)
}

func (c *CMS) Width() uint { return c.width }
func (c *CMS) Depth() uint { return c.depth }

func (c *CMS) columnFor(row uint, data []byte) uint {
	return uint(hash.Sum32(uint32(row), data)) % c.width
}

// Add increments every row's counter for data by count.
func (c *CMS) Add(data []byte, count uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for r := uint(0); r < c.depth; r++ {
		c.matrix[r][c.columnFor(r, data)] += count
	}
}

// Count returns the minimum counter across rows for data.
func (c *CMS) Count(data []byte) uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	var min uint64
	for r := uint(0); r < c.depth; r++ {
		v := c.matrix[r][c.columnFor(r, data)]
		if r == 0 || v < min {
			min = v
		}
	}
	return min
}

// Merge elementwise-adds g into c. Requires identical (width, depth).
func (c *CMS) Merge(g *CMS) error {
	if c.width != g.width || c.depth != g.depth {
		return fmt.Errorf("papertrail: cms dimension mismatch (%d,%d) vs (%d,%d)", c.width, c.depth, g.width, g.depth)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g.lock.RLock()
	defer g.lock.RUnlock()
	for r := range c.matrix {
		for i := range c.matrix[r] {
			c.matrix[r][i] += g.matrix[r][i]
		}
	}
	return nil
}

// Bytes serializes the sketch: 4-byte width, 4-byte depth, then width*depth
// 8-byte counters in row-major order, little-endian.
func (c *CMS) Bytes() []byte {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]byte, 8+8*c.width*c.depth)
	binary.LittleEndian.PutUint32(out[0:4], uint32(c.width))
	binary.LittleEndian.PutUint32(out[4:8], uint32(c.depth))
	offset := 8
	for r := uint(0); r < c.depth; r++ {
		for i := uint(0); i < c.width; i++ {
			binary.LittleEndian.PutUint64(out[offset:offset+8], c.matrix[r][i])
			offset += 8
		}
	}
	return out
}

// FromBytesCMS reconstructs a CMS from the Bytes layout.
func FromBytesCMS(data []byte) (*CMS, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("papertrail: cms blob too short")
	}
	width := uint(binary.LittleEndian.Uint32(data[0:4]))
	depth := uint(binary.LittleEndian.Uint32(data[4:8]))
	c, err := NewCMS(width, depth)
	if err != nil {
		return nil, err
	}
	offset := 8
	for r := uint(0); r < depth; r++ {
		for i := uint(0); i < width; i++ {
			if offset+8 > len(data) {
				return nil, fmt.Errorf("papertrail: cms blob truncated")
			}
			c.matrix[r][i] = binary.LittleEndian.Uint64(data[offset : offset+8])
			offset += 8
		}
	}
	return c, nil
}
