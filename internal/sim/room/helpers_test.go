package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
)

// seqRand replays fixed sequences, cycling when exhausted.
type seqRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (s *seqRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[s.fi%len(s.floats)]
	s.fi++
	return v
}

func (s *seqRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[s.ii%len(s.ints)]
	s.ii++
	return v % n
}

type fakeClock struct{ ms int64 }

func (c *fakeClock) Now() time.Time { return time.UnixMilli(c.ms) }

// walledMap is a w x h grid of 32px tiles with a solid border.
func walledMap(w, h int) *tilemap.Map {
	m := &tilemap.Map{Width: w, Height: h, TileWidth: 32, TileHeight: 32}
	m.Ground = make([]int, w*h)
	m.Collision = make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				m.Collision[y*w+x] = 1
			}
		}
	}
	return m
}

func solidMap(w, h int) *tilemap.Map {
	m := walledMap(w, h)
	for i := range m.Collision {
		m.Collision[i] = 1
	}
	return m
}

type captureSink struct{ events []Event }

func (c *captureSink) WriteEvent(e Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) kinds() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

type roomOpts struct {
	tuning *tuning.Tuning
	m      *tilemap.Map
	rng    Rand
	clock  *fakeClock
	sink   EventSink
}

func newTestRoom(t *testing.T, o roomOpts) *Room {
	t.Helper()
	tu := tuning.Defaults()
	tu.NPCs = nil
	if o.tuning != nil {
		tu = *o.tuning
	}
	if o.m == nil {
		o.m = walledMap(20, 20)
	}
	if o.rng == nil {
		o.rng = NewRand(1)
	}
	if o.clock == nil {
		o.clock = &fakeClock{ms: 1_000_000}
	}
	r, err := New(Config{Tuning: tu, Map: o.m, Rand: o.rng, Now: o.clock.Now, Sink: o.sink})
	require.NoError(t, err)
	return r
}

// joinDirect runs a join through the loop handler and returns the session id.
func joinDirect(t *testing.T, r *Room, name, avatar string, out chan []byte) string {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	r.handleJoin(JoinRequest{Name: name, Avatar: avatar, Out: out, Resp: resp})
	jr := <-resp
	require.Empty(t, jr.Err)
	require.NotEmpty(t, jr.SessionID)
	return jr.SessionID
}

func drain(ch chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-ch:
			out = append(out, b)
		default:
			return out
		}
	}
}
