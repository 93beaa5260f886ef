package room

import (
	"math"

	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
)

// npcEnv is the read-only context a behavior sees during one tick.
type npcEnv struct {
	m       *tilemap.Map
	rng     Rand
	players []*Player

	radius          float64
	wanderSpeed     float64
	missionarySpeed float64
	arriveDistance  float64
}

type behavior interface {
	step(n *Npc, dtMs float64, env *npcEnv)
}

func behaviorFor(kind string) behavior {
	if kind == tuning.KindMissionary {
		return missionary{}
	}
	return wanderer{}
}

// wanderer alternates idle and straight-line walking phases.
type wanderer struct{}

const (
	wanderIdleChance = 0.35
	wanderIdleMinMs  = 600
	wanderIdleSpanMs = 1200
	wanderMoveMinMs  = 900
	wanderMoveSpanMs = 1700
)

func (wanderer) step(n *Npc, dtMs float64, env *npcEnv) {
	if !n.Active {
		return
	}
	n.WanderMs -= dtMs
	if n.WanderMs <= 0 {
		if env.rng.Float64() < wanderIdleChance {
			n.Moving = false
			n.WanderMs = wanderIdleMinMs + env.rng.Float64()*wanderIdleSpanMs
		} else {
			n.Dir = cardinals[env.rng.Intn(len(cardinals))]
			n.Moving = true
			n.WanderMs = wanderMoveMinMs + env.rng.Float64()*wanderMoveSpanMs
		}
	}
	if !n.Moving {
		return
	}
	ux, uy := n.Dir.delta()
	d := env.wanderSpeed * dtMs / 1000
	var mx, my bool
	n.X, n.Y, mx, my = moveCircle(env.m, n.X, n.Y, ux*d, uy*d, env.radius)
	if !mx && !my {
		// Blocked: pick a new phase next tick.
		n.WanderMs = 0
	}
}

// missionary walks toward the nearest player while a wave is active.
type missionary struct{}

func nearestPlayer(players []*Player, x, y float64) *Player {
	var best *Player
	bestD := math.Inf(1)
	for _, p := range players {
		dx, dy := p.X-x, p.Y-y
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = p, d
		}
	}
	return best
}

func (missionary) step(n *Npc, dtMs float64, env *npcEnv) {
	if !n.Active {
		n.Moving = false
		return
	}
	target := nearestPlayer(env.players, n.X, n.Y)
	if target == nil {
		n.Moving = false
		return
	}
	dx, dy := target.X-n.X, target.Y-n.Y
	dist := math.Hypot(dx, dy)
	if dist <= env.arriveDistance {
		n.Moving = false
		return
	}
	d := env.missionarySpeed * dtMs / 1000
	var mx, my bool
	n.X, n.Y, mx, my = moveCircle(env.m, n.X, n.Y, dx/dist*d, dy/dist*d, env.radius)
	n.Moving = mx || my
	if math.Abs(dx) >= math.Abs(dy) {
		if dx > 0 {
			n.Dir = DirRight
		} else {
			n.Dir = DirLeft
		}
	} else if dy > 0 {
		n.Dir = DirDown
	} else {
		n.Dir = DirUp
	}
}
