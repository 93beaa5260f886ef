package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"

	persistlog "pixellobby.dev/internal/persistence/log"
	"pixellobby.dev/internal/protocol"
	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tilemap"
)

type httpDeps struct {
	room     *room.Room
	index    runtimeIndex
	eventLog *persistlog.EventLogger
	started  time.Time
	now      func() time.Time

	enableAdmin bool
	ws          http.Handler
}

func newMux(d httpDeps) *http.ServeMux {
	if d.now == nil {
		d.now = time.Now
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler(d))
	mux.HandleFunc("/metrics", metricsHandler(d))
	if d.enableAdmin {
		mux.HandleFunc("/admin/v1/state", adminStateHandler(d))
	}
	if d.ws != nil {
		mux.Handle("/v1/ws", d.ws)
	}
	return mux
}

func healthzHandler(d httpDeps) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		now := d.now()
		ok := true
		select {
		case <-d.room.Done():
			ok = false
		default:
		}
		rw.Header().Set("Content-Type", "application/json")
		if !ok {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(rw).Encode(struct {
			OK     bool   `json:"ok"`
			Room   string `json:"room"`
			TS     int64  `json:"ts"`
			Uptime string `json:"uptime"`
		}{
			OK:     ok,
			Room:   d.room.Name(),
			TS:     now.UnixMilli(),
			Uptime: durafmt.Parse(now.Sub(d.started)).LimitFirstN(2).String(),
		})
	}
}

func metricsHandler(d httpDeps) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := d.room.Metrics()
		name := d.room.Name()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP lobby_room_tick Current room tick.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_tick gauge\n")
		fmt.Fprintf(rw, "lobby_room_tick{room=%q} %d\n", name, m.Tick)

		fmt.Fprintf(rw, "# HELP lobby_room_players Players currently in the room.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_players gauge\n")
		fmt.Fprintf(rw, "lobby_room_players{room=%q} %d\n", name, m.Players)

		fmt.Fprintf(rw, "# HELP lobby_room_clients Sessions receiving state.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_clients gauge\n")
		fmt.Fprintf(rw, "lobby_room_clients{room=%q} %d\n", name, m.Clients)

		fmt.Fprintf(rw, "# HELP lobby_room_npcs NPCs in the room.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_npcs gauge\n")
		fmt.Fprintf(rw, "lobby_room_npcs{room=%q} %d\n", name, m.NPCs)

		fmt.Fprintf(rw, "# HELP lobby_room_active_missionaries Missionaries currently active.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_active_missionaries gauge\n")
		fmt.Fprintf(rw, "lobby_room_active_missionaries{room=%q} %d\n", name, m.ActiveMissionaries)

		waveActive := 0
		if m.WaveActive {
			waveActive = 1
		}
		fmt.Fprintf(rw, "# HELP lobby_room_wave_active 1 while a missionary wave runs.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_wave_active gauge\n")
		fmt.Fprintf(rw, "lobby_room_wave_active{room=%q} %d\n", name, waveActive)

		fmt.Fprintf(rw, "# HELP lobby_room_next_wave_at_ms Wall-clock ms of the next wave start.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_next_wave_at_ms gauge\n")
		fmt.Fprintf(rw, "lobby_room_next_wave_at_ms{room=%q} %d\n", name, m.NextWaveAtMs)

		fmt.Fprintf(rw, "# HELP lobby_room_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_queue_depth gauge\n")
		fmt.Fprintf(rw, "lobby_room_queue_depth{room=%q,queue=%q} %d\n", name, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "lobby_room_queue_depth{room=%q,queue=%q} %d\n", name, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "lobby_room_queue_depth{room=%q,queue=%q} %d\n", name, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP lobby_room_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_step_ms gauge\n")
		fmt.Fprintf(rw, "lobby_room_step_ms{room=%q} %.3f\n", name, m.StepMS)

		fmt.Fprintf(rw, "# HELP lobby_room_dropped_total Client messages dropped by the rate limiter.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_dropped_total counter\n")
		fmt.Fprintf(rw, "lobby_room_dropped_total{room=%q,kind=%q} %d\n", name, "input", m.DroppedInputs)
		fmt.Fprintf(rw, "lobby_room_dropped_total{room=%q,kind=%q} %d\n", name, "chat", m.DroppedChats)

		fmt.Fprintf(rw, "# HELP lobby_room_chat_broadcast_dropped_total Chat broadcasts refused by a full client queue.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_chat_broadcast_dropped_total counter\n")
		fmt.Fprintf(rw, "lobby_room_chat_broadcast_dropped_total{room=%q} %d\n", name, m.DroppedBroadcasts)

		fmt.Fprintf(rw, "# HELP lobby_room_published_total State snapshots fanned out.\n")
		fmt.Fprintf(rw, "# TYPE lobby_room_published_total counter\n")
		fmt.Fprintf(rw, "lobby_room_published_total{room=%q} %d\n", name, m.Published)

		if d.eventLog != nil {
			fmt.Fprintf(rw, "# HELP lobby_event_log_bytes_total Uncompressed bytes written to the event log.\n")
			fmt.Fprintf(rw, "# TYPE lobby_event_log_bytes_total counter\n")
			fmt.Fprintf(rw, "lobby_event_log_bytes_total{room=%q} %d\n", name, d.eventLog.Written())

			fmt.Fprintf(rw, "# HELP lobby_event_log_lines_total Events written to the event log.\n")
			fmt.Fprintf(rw, "# TYPE lobby_event_log_lines_total counter\n")
			fmt.Fprintf(rw, "lobby_event_log_lines_total{room=%q} %d\n", name, d.eventLog.Lines())
		}
		if d.index != nil {
			s := d.index.Stats()
			fmt.Fprintf(rw, "# HELP lobby_index_queue_depth Index writer queue depth.\n")
			fmt.Fprintf(rw, "# TYPE lobby_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "lobby_index_queue_depth{room=%q} %d\n", name, s.QueueDepth)

			fmt.Fprintf(rw, "# HELP lobby_index_written_total Events committed to the index.\n")
			fmt.Fprintf(rw, "# TYPE lobby_index_written_total counter\n")
			fmt.Fprintf(rw, "lobby_index_written_total{room=%q} %d\n", name, s.WrittenTotal)

			fmt.Fprintf(rw, "# HELP lobby_index_dropped_total Events dropped because the index fell behind.\n")
			fmt.Fprintf(rw, "# TYPE lobby_index_dropped_total counter\n")
			fmt.Fprintf(rw, "lobby_index_dropped_total{room=%q} %d\n", name, s.DropTotal)
		}
	}
}

func adminStateHandler(d httpDeps) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := d.room.State(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		resp := struct {
			Room    string              `json:"room"`
			Metrics room.Metrics        `json:"metrics"`
			State   protocol.StateMsg   `json:"state"`
			Zones   map[string][]string `json:"zones"`
			Uptime  string              `json:"uptime"`
		}{
			Room:    d.room.Name(),
			Metrics: d.room.Metrics(),
			State:   st,
			Zones:   zoneOccupancy(d.room.Map(), st),
			Uptime:  durafmt.Parse(d.now().Sub(d.started)).LimitFirstN(2).String(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// zoneOccupancy maps each interact zone name to the sorted session ids of the
// players standing in it. Zones nobody stands in are omitted.
func zoneOccupancy(m *tilemap.Map, st protocol.StateMsg) map[string][]string {
	out := map[string][]string{}
	for id, p := range st.Players {
		z, ok := m.ZoneAt(p.X, p.Y)
		if !ok {
			continue
		}
		name := z.Name
		if name == "" {
			name = strconv.Itoa(z.ID)
		}
		out[name] = append(out[name], id)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
