package room

import (
	"math"

	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
)

type WavePhase int

const (
	WaveIdle WavePhase = iota
	WaveActive
	WaveStarted
	WaveEnded
)

// WaveScheduler drives the missionary cycle off wall-clock milliseconds.
// WaveEndsAt is non-zero exactly while a wave is running.
type WaveScheduler struct {
	cfg    tuning.Wave
	radius float64

	NextWaveAt int64
	WaveEndsAt int64
}

func NewWaveScheduler(cfg tuning.Wave, radius float64, startMs int64) *WaveScheduler {
	return &WaveScheduler{
		cfg:        cfg,
		radius:     radius,
		NextWaveAt: startMs + int64(cfg.FirstDelayMs),
	}
}

func (s *WaveScheduler) Active() bool { return s.WaveEndsAt != 0 }

// Step advances the schedule. Targets are taken from players in join order;
// the map centre stands in when the room is empty.
func (s *WaveScheduler) Step(nowMs int64, missionaries []*Npc, players []*Player, m *tilemap.Map, rng Rand) WavePhase {
	if nowMs < s.WaveEndsAt {
		for _, n := range missionaries {
			n.Active = true
		}
		return WaveActive
	}
	if s.WaveEndsAt != 0 {
		for _, n := range missionaries {
			n.Active = false
			n.Moving = false
		}
		s.WaveEndsAt = 0
		s.NextWaveAt = nowMs + int64(s.cfg.CooldownMs)
		return WaveEnded
	}
	if nowMs < s.NextWaveAt {
		return WaveIdle
	}

	w, h := m.SizePx()
	for i, n := range missionaries {
		tx, ty := m.Center()
		if len(players) > 0 {
			p := players[i%len(players)]
			tx, ty = p.X, p.Y
		}
		angle := rng.Float64() * 2 * math.Pi
		dist := s.cfg.SpawnMinDist + rng.Float64()*s.cfg.SpawnJitter
		// Not collision-checked.
		n.X = clamp(tx+math.Cos(angle)*dist, s.radius, w-s.radius)
		n.Y = clamp(ty+math.Sin(angle)*dist, s.radius, h-s.radius)
		n.Active = true
		n.Moving = true
		n.Dir = cardinals[rng.Intn(len(cardinals))]
	}
	s.WaveEndsAt = nowMs + int64(s.cfg.ActiveMs)
	return WaveStarted
}
