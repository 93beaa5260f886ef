package room

// Metrics is a read-only view of the room loop, safe to read from HTTP handlers.
type Metrics struct {
	Tick uint64 `json:"tick"`

	Players            int `json:"players"`
	Clients            int `json:"clients"`
	NPCs               int `json:"npcs"`
	ActiveMissionaries int `json:"active_missionaries"`

	WaveActive   bool  `json:"wave_active"`
	NextWaveAtMs int64 `json:"next_wave_at_ms"`
	WaveEndsAtMs int64 `json:"wave_ends_at_ms"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	DroppedInputs     uint64 `json:"dropped_inputs"`
	DroppedChats      uint64 `json:"dropped_chats"`
	DroppedBroadcasts uint64 `json:"dropped_broadcasts"`
	Published         uint64 `json:"published"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (r *Room) Metrics() Metrics {
	if r == nil {
		return Metrics{}
	}
	v := r.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (r *Room) storeMetrics(stepMS float64) {
	active := 0
	for _, n := range r.missionaries {
		if n.Active {
			active++
		}
	}
	r.metrics.Store(Metrics{
		Tick:               r.tick,
		Players:            len(r.players),
		Clients:            len(r.clients),
		NPCs:               len(r.npcs),
		ActiveMissionaries: active,
		WaveActive:         r.wave.Active(),
		NextWaveAtMs:       r.wave.NextWaveAt,
		WaveEndsAtMs:       r.wave.WaveEndsAt,
		QueueDepths: QueueDepths{
			Inbox: len(r.inbox),
			Join:  len(r.join),
			Leave: len(r.leave),
		},
		StepMS:            stepMS,
		DroppedInputs:     r.droppedInputs,
		DroppedChats:      r.droppedChats,
		DroppedBroadcasts: r.droppedBroadcasts,
		Published:         r.published,
	})
}
