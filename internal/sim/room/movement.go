package room

import (
	"math"

	"pixellobby.dev/internal/sim/tilemap"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// moveCircle applies (dx, dy) one axis at a time: X is clamped to the map and
// kept only if the circle is clear at (newX, y), then Y is tried from the
// possibly updated X. A diagonal push into a wall therefore slides along it.
func moveCircle(m *tilemap.Map, x, y, dx, dy, r float64) (nx, ny float64, movedX, movedY bool) {
	w, h := m.SizePx()
	if dx != 0 {
		cx := clamp(x+dx, r, w-r)
		if !m.CollidesCircle(cx, y, r) {
			movedX = cx != x
			x = cx
		}
	}
	if dy != 0 {
		cy := clamp(y+dy, r, h-r)
		if !m.CollidesCircle(x, cy, r) {
			movedY = cy != y
			y = cy
		}
	}
	return x, y, movedX, movedY
}

// stepPlayer advances one player by dt seconds from its intent flags.
func stepPlayer(m *tilemap.Map, p *Player, speed, radius, dt float64) {
	in := p.Intent
	var dx, dy float64
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}

	// Vertical flags win the facing tie-break.
	switch {
	case in.Up:
		p.Dir = DirUp
	case in.Down:
		p.Dir = DirDown
	case in.Left:
		p.Dir = DirLeft
	case in.Right:
		p.Dir = DirRight
	}

	if dx != 0 && dy != 0 {
		inv := 1 / math.Sqrt2
		dx *= inv
		dy *= inv
	}
	if dx == 0 && dy == 0 {
		return
	}
	step := speed * dt
	p.X, p.Y, _, _ = moveCircle(m, p.X, p.Y, dx*step, dy*step, radius)
}
