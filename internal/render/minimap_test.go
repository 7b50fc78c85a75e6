package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lane-defense/internal/config"
	"lane-defense/internal/game"
)

func testSnapshot(t *testing.T) game.Snapshot {
	t.Helper()
	w := game.NewWorld(game.ModeVersus, config.DefaultSim(), config.DefaultRules(), config.DefaultBalance(), 1)
	w.AddPlayer("alice", game.SideLeft)
	w.AddPlayer("bob", game.SideRight)
	require.True(t, game.PhaseMachine{}.TryStart(w))
	_, err := w.PlaceTower("alice", game.Cell{X: 10, Y: 5}, "basic")
	require.NoError(t, err)
	_, err = w.PlaceTower("bob", game.Cell{X: 50, Y: 5}, "basic")
	require.NoError(t, err)
	return w.Snapshot()
}

func TestMinimapColorsCells(t *testing.T) {
	snap := testSnapshot(t)
	data, err := EncodePNG(snap, 4)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	b := img.Bounds()
	assert.Equal(t, 60*4, b.Dx())
	assert.Equal(t, 30*4, b.Dy())

	// Centers of a LEFT tower, a RIGHT tower, a goal cell and the spawn block
	r, g, bl, _ := img.At(10*4+2, 5*4+2).RGBA()
	assert.Equal(t, [3]uint32{60, 140, 255}, [3]uint32{r >> 8, g >> 8, bl >> 8})
	r, g, bl, _ = img.At(50*4+2, 5*4+2).RGBA()
	assert.Equal(t, [3]uint32{255, 150, 50}, [3]uint32{r >> 8, g >> 8, bl >> 8})
	r, _, _, _ = img.At(0*4+2, 3*4+2).RGBA()
	assert.Equal(t, uint32(200), r>>8)
	r, g, _, _ = img.At(29*4+2, 14*4+2).RGBA()
	assert.Equal(t, [2]uint32{140, 60}, [2]uint32{r >> 8, g >> 8})
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(testSnapshot(t), 0)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 60*DefaultScale, img.Bounds().Dx())
}

func TestCacheReusesSameTick(t *testing.T) {
	c := NewCache(2, 2)
	snap := testSnapshot(t)

	first, err := c.PNG("a", snap)
	require.NoError(t, err)
	second, err := c.PNG("a", snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	snap.Tick++
	_, err = c.PNG("a", snap)
	require.NoError(t, err)
	_, misses = c.Stats()
	assert.Equal(t, uint64(2), misses)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, 1)
	snap := testSnapshot(t)

	for _, id := range []string{"a", "b"} {
		_, err := c.PNG(id, snap)
		require.NoError(t, err)
	}
	// Touch a so b becomes the oldest
	_, err := c.PNG("a", snap)
	require.NoError(t, err)
	_, err = c.PNG("c", snap)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Size())
	_, bPresent := c.entries["b"]
	assert.False(t, bPresent)

	c.Forget("a")
	assert.Equal(t, 1, c.Size())
}
