package main

import (
	"context"
	"io"
	"log"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
	"pixellobby.dev/internal/transport/ws"
)

func startLobby(t *testing.T, maxClients int) (string, *room.Room) {
	t.Helper()
	m, err := tilemap.Default()
	require.NoError(t, err)
	tu := tuning.Defaults()
	tu.TickMs = 10
	tu.PatchMs = 20
	tu.MaxClients = maxClients
	r, err := room.New(room.Config{Tuning: tu, Map: m, Rand: room.NewRand(3)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	srv := httptest.NewServer(ws.NewServer(r, log.New(io.Discard, "", 0), ws.Options{FramesPerSec: 500}).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-r.Done()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), r
}

func TestRun_JoinsWandersAndMeasuresRTT(t *testing.T) {
	url, _ := startLobby(t, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	st, err := run(ctx, botConfig{
		URL:       url,
		Name:      "tester",
		InputRate: 20 * time.Millisecond,
		ChatEvery: 100 * time.Millisecond,
		PingEvery: 50 * time.Millisecond,
		Seed:      7,
	}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	require.NotEmpty(t, st.SessionID)
	require.Positive(t, st.States)
	require.Positive(t, st.Pongs)
	require.Positive(t, st.Chats)
	require.Positive(t, st.LastRTT)
}

func TestRun_RoomFullIsAnError(t *testing.T) {
	url, r := startLobby(t, 1)

	resp := make(chan room.JoinResponse, 1)
	r.Join() <- room.JoinRequest{Name: "occupant", Out: make(chan []byte, 8), Resp: resp}
	require.Empty(t, (<-resp).Err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := run(ctx, botConfig{URL: url, Name: "late"}, log.New(io.Discard, "", 0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "join rejected")
}

func TestRandomIntent_NeverOpposing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	idle := 0
	for i := 0; i < 1000; i++ {
		in := randomIntent(rng)
		require.False(t, in.Up && in.Down)
		require.False(t, in.Left && in.Right)
		if !in.Up && !in.Down && !in.Left && !in.Right {
			idle++
		}
	}
	require.Greater(t, idle, 0)
	require.Less(t, idle, 1000)
}
