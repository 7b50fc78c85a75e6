// Package spatial provides a uniform-bucket spatial hash for neighbor queries
// over entities with continuous positions.
//
// The hash is cleared and refilled each tick; it never holds entity pointers,
// only ids, so callers always resolve entities through their own maps.
package spatial

import (
	"math"
)

// Hash buckets entity ids by position into square cells.
//
// Optimal bucket size is close to the typical query radius. For tower range
// queries (3-7 cells) a bucket of 4 cells keeps most queries to a 3x3 block.
//
// Memory layout: buckets are stored in row-major order (buckets[row*cols+col])
type Hash struct {
	bucketSize    float64
	invBucketSize float64
	cols, rows    int
	buckets       [][]uint64
	scratch       []uint64 // reusable buffer for query results
	count         int
}

// NewHash creates a hash covering a width x height area.
func NewHash(width, height, bucketSize float64) *Hash {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	cols := int(math.Ceil(width / bucketSize))
	rows := int(math.Ceil(height / bucketSize))

	// Ensure at least 1x1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	buckets := make([][]uint64, cols*rows)
	for i := range buckets {
		buckets[i] = make([]uint64, 0, 4)
	}

	return &Hash{
		bucketSize:    bucketSize,
		invBucketSize: 1.0 / bucketSize,
		cols:          cols,
		rows:          rows,
		buckets:       buckets,
		scratch:       make([]uint64, 0, 32),
	}
}

// Clear empties every bucket without releasing memory.
func (h *Hash) Clear() {
	for i := range h.buckets {
		h.buckets[i] = h.buckets[i][:0]
	}
	h.count = 0
}

// Insert adds id at (x, y). Positions outside the area clamp to the border buckets.
func (h *Hash) Insert(id uint64, x, y float64) {
	idx := h.bucketIndex(x, y)
	h.buckets[idx] = append(h.buckets[idx], id)
	h.count++
}

// Len returns the number of inserted ids.
func (h *Hash) Len() int {
	return h.count
}

func (h *Hash) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= h.cols {
		return h.cols - 1
	}
	return col
}

func (h *Hash) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= h.rows {
		return h.rows - 1
	}
	return row
}

func (h *Hash) bucketIndex(x, y float64) int {
	col := h.clampCol(int(math.Floor(x * h.invBucketSize)))
	row := h.clampRow(int(math.Floor(y * h.invBucketSize)))
	return row*h.cols + col
}

// QueryRadius returns ids that may lie within radius of (cx, cy).
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates can lie outside the radius; the caller performs the exact
// distance check.
func (h *Hash) QueryRadius(cx, cy, radius float64) []uint64 {
	h.scratch = h.scratch[:0]

	minCol := h.clampCol(int(math.Floor((cx - radius) * h.invBucketSize)))
	maxCol := h.clampCol(int(math.Floor((cx + radius) * h.invBucketSize)))
	minRow := h.clampRow(int(math.Floor((cy - radius) * h.invBucketSize)))
	maxRow := h.clampRow(int(math.Floor((cy + radius) * h.invBucketSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			h.scratch = append(h.scratch, h.buckets[row*h.cols+col]...)
		}
	}
	return h.scratch
}
