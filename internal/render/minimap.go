// Package render draws session snapshots as small PNG minimaps for the HTTP API.
package render

import (
	"bytes"
	"image/color"

	"lane-defense/internal/game"

	"github.com/fogleman/gg"
)

// DefaultScale is the pixel size of one grid cell.
const DefaultScale = 8

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorEmpty      = color.RGBA{28, 30, 48, 255}
	colorSpawn      = color.RGBA{140, 60, 200, 255}
	colorGoal       = color.RGBA{200, 50, 60, 255}
	colorEnemy      = color.RGBA{240, 220, 80, 255}
	colorSlowed     = color.RGBA{120, 220, 255, 255}
	colorProjectile = color.RGBA{255, 255, 255, 255}

	// Tower colors by owner side
	colorTowers = [2]color.RGBA{
		game.SideLeft:  {60, 140, 255, 255},
		game.SideRight: {255, 150, 50, 255},
	}
)

// EncodePNG renders snap and returns the PNG bytes.
func EncodePNG(snap game.Snapshot, scale int) ([]byte, error) {
	var buf bytes.Buffer
	if err := draw(snap, scale).EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func draw(snap game.Snapshot, scale int) *gg.Context {
	if scale <= 0 {
		scale = DefaultScale
	}
	s := float64(scale)
	dc := gg.NewContext(snap.GridWidth*scale, snap.GridHeight*scale)

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(dc.Width()), float64(dc.Height()))
	dc.Fill()

	// Board cells; towers are drawn separately so they can carry owner colors
	for y, row := range snap.Grid {
		for x := 0; x < len(row); x++ {
			switch game.CellKind(row[x] - '0') {
			case game.CellSpawn:
				dc.SetColor(colorSpawn)
			case game.CellGoal:
				dc.SetColor(colorGoal)
			default:
				dc.SetColor(colorEmpty)
			}
			dc.DrawRectangle(float64(x)*s+0.5, float64(y)*s+0.5, s-1, s-1)
			dc.Fill()
		}
	}

	for _, t := range snap.Towers {
		side := game.SideLeft
		if p, ok := snap.Players[t.OwnerID]; ok {
			side = p.Side
		}
		dc.SetColor(colorTowers[side])
		dc.DrawRectangle(float64(t.Cell.X)*s+1, float64(t.Cell.Y)*s+1, s-2, s-2)
		dc.Fill()

		// Health bar along the bottom edge
		if t.MaxHealth > 0 && t.Health < t.MaxHealth {
			dc.SetColor(colorGoal)
			dc.DrawRectangle(float64(t.Cell.X)*s+1, float64(t.Cell.Y+1)*s-2, (s-2)*t.Health/t.MaxHealth, 1)
			dc.Fill()
		}
	}

	for _, e := range snap.Enemies {
		if !e.Spawned || e.Health <= 0 {
			continue
		}
		if e.Speed < e.BaseSpeed {
			dc.SetColor(colorSlowed)
		} else {
			dc.SetColor(colorEnemy)
		}
		dc.DrawCircle(e.Pos.X*s+s/2, e.Pos.Y*s+s/2, s/3)
		dc.Fill()
	}

	dc.SetColor(colorProjectile)
	for _, p := range snap.Projectiles {
		dc.DrawCircle(p.Pos.X*s+s/2, p.Pos.Y*s+s/2, 1)
		dc.Fill()
	}

	return dc
}
