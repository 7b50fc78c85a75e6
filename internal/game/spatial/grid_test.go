package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashQueryRadius(t *testing.T) {
	h := NewHash(60, 30, 4)
	h.Insert(1, 10, 10)
	h.Insert(2, 11, 10)
	h.Insert(3, 40, 20)
	h.Insert(4, -5, 100) // clamps to a border bucket

	assert.Equal(t, 4, h.Len())
	assert.ElementsMatch(t, []uint64{1, 2}, h.QueryRadius(10, 10, 2))
	assert.Contains(t, h.QueryRadius(40, 20, 1), uint64(3))
	assert.Contains(t, h.QueryRadius(0, 29, 1), uint64(4))

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.QueryRadius(10, 10, 50))
}

func TestHashSmallArea(t *testing.T) {
	// A non-positive bucket size falls back to one-cell buckets
	h := NewHash(3, 2, 0)
	h.Insert(1, 0, 0)
	h.Insert(2, 2, 1)

	assert.Equal(t, []uint64{1}, h.QueryRadius(0, 0, 0.5))
	assert.Equal(t, []uint64{2}, h.QueryRadius(2, 1, 0.5))
	assert.ElementsMatch(t, []uint64{1, 2}, h.QueryRadius(1, 0.5, 5))
}
