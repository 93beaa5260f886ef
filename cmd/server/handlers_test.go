package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pixellobby.dev/internal/protocol"
	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
)

func startTestRoom(t *testing.T) *room.Room {
	t.Helper()
	m, err := tilemap.Default()
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	r, err := room.New(room.Config{Tuning: tuning.Defaults(), Map: m, Rand: room.NewRand(1), Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r
}

func TestHealthz(t *testing.T) {
	r := startTestRoom(t)
	now := time.UnixMilli(1_700_000_000_000)
	mux := newMux(httpDeps{room: r, started: now.Add(-90 * time.Second), now: func() time.Time { return now }})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		OK     bool   `json:"ok"`
		Room   string `json:"room"`
		TS     int64  `json:"ts"`
		Uptime string `json:"uptime"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Room != "lobby" || body.TS != now.UnixMilli() {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !strings.Contains(body.Uptime, "minute") {
		t.Fatalf("uptime=%q", body.Uptime)
	}
}

func TestMetrics(t *testing.T) {
	r := startTestRoom(t)
	mux := newMux(httpDeps{room: r, started: time.Now()})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`lobby_room_tick{room="lobby"}`,
		`lobby_room_npcs{room="lobby"} 4`,
		`lobby_room_queue_depth{room="lobby",queue="inbox"}`,
		`lobby_room_dropped_total{room="lobby",kind="chat"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestAdminState_LoopbackOnly(t *testing.T) {
	r := startTestRoom(t)
	mux := newMux(httpDeps{room: r, started: time.Now(), enableAdmin: true})

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("loopback status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Room  string `json:"room"`
		State struct {
			NPCs map[string]any `json:"npcs"`
		} `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Room != "lobby" || len(body.State.NPCs) != 4 {
		t.Fatalf("unexpected admin body: %s", rec.Body.String())
	}
}

func TestAdminState_DisabledNotRouted(t *testing.T) {
	r := startTestRoom(t)
	mux := newMux(httpDeps{room: r, started: time.Now()})
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:1234":     true,
		"10.0.0.2:1234":  false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()

	idx, err := openRuntimeIndex(dir, true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("LOBBY_INDEX_BACKEND", "none")
	if idx, err := openRuntimeIndex(dir, false); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}

	t.Setenv("LOBBY_INDEX_BACKEND", "postgres")
	t.Setenv("LOBBY_DATABASE_URL", "")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected postgres without url to fail")
	}

	t.Setenv("LOBBY_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend to fail")
	}

	t.Setenv("LOBBY_INDEX_BACKEND", "sqlite")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index", "lobby.sqlite")); err != nil {
		t.Fatalf("expected sqlite file: %v", err)
	}
}

func TestLoadMap(t *testing.T) {
	m, n, err := loadMap("")
	if err != nil || m == nil || n != len(tilemap.LobbyAsset()) {
		t.Fatalf("default map: n=%d err=%v", n, err)
	}
	if _, _, err := loadMap(filepath.Join(t.TempDir(), "missing.tmj")); err == nil {
		t.Fatalf("expected missing map to fail")
	}
}

func TestZoneOccupancy(t *testing.T) {
	m, err := tilemap.Default()
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	st := protocol.StateMsg{Players: map[string]protocol.PlayerState{
		"b":     {X: 400, Y: 110},
		"a":     {X: 390, Y: 100},
		"kiosk": {X: 800, Y: 200},
		"away":  {X: 480, Y: 320},
	}}
	got := zoneOccupancy(m, st)
	if len(got) != 2 {
		t.Fatalf("zones=%v", got)
	}
	if ids := got["welcome-sign"]; len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("welcome-sign=%v", ids)
	}
	if ids := got["project-kiosk"]; len(ids) != 1 || ids[0] != "kiosk" {
		t.Fatalf("project-kiosk=%v", ids)
	}
}
