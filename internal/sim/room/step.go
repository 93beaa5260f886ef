package room

import (
	"encoding/json"
	"time"

	"pixellobby.dev/internal/protocol"
)

// step advances the simulation by one fixed tick: players, then NPCs, then the
// wave schedule.
func (r *Room) step(now time.Time) {
	stepStart := time.Now()
	nowMs := now.UnixMilli()
	dtMs := float64(r.cfg.TickMs)

	for _, p := range r.players {
		stepPlayer(r.m, p, r.cfg.PlayerSpeed, r.cfg.PlayerRadius, dtMs/1000)
	}

	env := &npcEnv{
		m:               r.m,
		rng:             r.rng,
		players:         r.players,
		radius:          r.cfg.NPCRadius,
		wanderSpeed:     r.cfg.NPCSpeed,
		missionarySpeed: r.cfg.MissionarySpeed,
		arriveDistance:  r.cfg.Wave.ArriveDistance,
	}
	for _, n := range r.npcs {
		n.behavior.step(n, dtMs, env)
	}

	switch r.wave.Step(nowMs, r.missionaries, r.players, r.m, r.rng) {
	case WaveStarted:
		r.logger.Printf("wave start: %d missionaries, ends in %dms", len(r.missionaries), r.cfg.Wave.ActiveMs)
		r.emit(Event{TimeMs: nowMs, Kind: EventWaveStart, NPCs: r.missionaryIDs()})
	case WaveEnded:
		r.logger.Printf("wave end: next in %dms", r.cfg.Wave.CooldownMs)
		r.emit(Event{TimeMs: nowMs, Kind: EventWaveEnd, NPCs: r.missionaryIDs()})
	}

	r.tick++
	r.storeMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
}

func (r *Room) missionaryIDs() []string {
	ids := make([]string, 0, len(r.missionaries))
	for _, n := range r.missionaries {
		ids = append(ids, n.ID)
	}
	return ids
}

func (r *Room) snapshot(now time.Time) protocol.StateMsg {
	s := protocol.StateMsg{
		Type:         protocol.TypeState,
		Tick:         r.tick,
		ServerTimeMs: now.UnixMilli(),
		Players:      make(map[string]protocol.PlayerState, len(r.players)),
		NPCs:         make(map[string]protocol.NPCState, len(r.npcs)),
	}
	for _, p := range r.players {
		s.Players[p.ID] = p.state()
	}
	for _, n := range r.npcs {
		s.NPCs[n.ID] = n.state()
	}
	return s
}

// publish fans one encoded snapshot out to every connected client. Slow
// clients lose older snapshots, never the newest.
func (r *Room) publish(now time.Time) {
	if len(r.clients) == 0 {
		return
	}
	b, err := json.Marshal(r.snapshot(now))
	if err != nil {
		r.logger.Printf("state marshal: %v", err)
		return
	}
	for _, c := range r.clients {
		sendLatest(c.state, b)
	}
	r.published++
}
