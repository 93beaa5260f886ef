package tilemap

import "math"

// Map is an immutable tile grid. It is shared read-only between the room loop
// and the transport, so nothing may mutate it after Parse returns.
type Map struct {
	Width      int
	Height     int
	TileWidth  int
	TileHeight int

	// Row-major, index y*Width+x.
	Ground    []int
	Collision []int

	zones []InteractZone
}

// IsBlockedCell reports whether a cell is solid. Cells outside the grid are
// always solid.
func (m *Map) IsBlockedCell(tx, ty int) bool {
	if tx < 0 || ty < 0 || tx >= m.Width || ty >= m.Height {
		return true
	}
	return m.Collision[ty*m.Width+tx] != 0
}

// IsBlockedPoint maps a world-space point to its cell.
func (m *Map) IsBlockedPoint(x, y float64) bool {
	tx := int(math.Floor(x / float64(m.TileWidth)))
	ty := int(math.Floor(y / float64(m.TileHeight)))
	return m.IsBlockedCell(tx, ty)
}

// CollidesCircle samples the four axis points and four bounding-box corners of
// the circle. Walls thinner than the radius can slip between samples; callers
// rely on tiles being at least as large as entity radii.
func (m *Map) CollidesCircle(x, y, radius float64) bool {
	pts := [8][2]float64{
		{x - radius, y},
		{x + radius, y},
		{x, y - radius},
		{x, y + radius},
		{x - radius, y - radius},
		{x + radius, y - radius},
		{x - radius, y + radius},
		{x + radius, y + radius},
	}
	for _, p := range pts {
		if m.IsBlockedPoint(p[0], p[1]) {
			return true
		}
	}
	return false
}

// SizePx returns the map extent in world units.
func (m *Map) SizePx() (w, h float64) {
	return float64(m.Width * m.TileWidth), float64(m.Height * m.TileHeight)
}

func (m *Map) Center() (x, y float64) {
	w, h := m.SizePx()
	return w / 2, h / 2
}

// InteractZones returns a copy of the zones read from the "interact" object layer.
func (m *Map) InteractZones() []InteractZone {
	out := make([]InteractZone, len(m.zones))
	copy(out, m.zones)
	return out
}
