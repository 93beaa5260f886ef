package room

import "pixellobby.dev/internal/sim/tilemap"

// findSpawnPosition draws uniform points in [radius, size-radius] on both axes
// until one fits a circle of the given radius. After attempts misses it
// returns fallback unchecked.
func findSpawnPosition(m *tilemap.Map, rng Rand, radius float64, attempts int, fallback [2]float64) (x, y float64) {
	w, h := m.SizePx()
	spanX := max(w-2*radius, 0)
	spanY := max(h-2*radius, 0)
	for i := 0; i < attempts; i++ {
		x = radius + rng.Float64()*spanX
		y = radius + rng.Float64()*spanY
		if !m.CollidesCircle(x, y, radius) {
			return x, y
		}
	}
	return fallback[0], fallback[1]
}
