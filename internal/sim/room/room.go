package room

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pixellobby.dev/internal/protocol"
	"pixellobby.dev/internal/sim/ratelimit"
	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
)

type Config struct {
	Tuning tuning.Tuning
	Map    *tilemap.Map

	// Optional. Rand defaults to a time-seeded source, Now to time.Now.
	Rand   Rand
	Now    func() time.Time
	Logger *log.Logger
	Sink   EventSink
}

type JoinRequest struct {
	Name   string
	Avatar string
	// Out receives STATE frames; a full queue evicts the oldest.
	Out chan []byte
	// Chat receives CHAT broadcasts and is never evicted. When nil, chats
	// share Out.
	Chat chan []byte
	// Must be buffered; an undelivered response rolls the join back.
	Resp chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
	// Protocol error code when the join was refused.
	Err string
}

// Envelope carries one client message into the room loop. Exactly one of
// Input and Chat is set.
type Envelope struct {
	SessionID string
	Input     *protocol.InputMsg
	Chat      *protocol.ChatMsg
}

// Room owns all simulation state. Everything below is touched only by the Run
// goroutine; other goroutines talk to it through the channels.
type Room struct {
	cfg    tuning.Tuning
	m      *tilemap.Map
	rng    Rand
	now    func() time.Time
	logger *log.Logger
	sink   EventSink

	players      []*Player
	byID         map[string]*Player
	clients      map[string]outbound
	npcs         []*Npc
	missionaries []*Npc

	inputRL *ratelimit.Limiter
	chatRL  *ratelimit.Limiter
	wave    *WaveScheduler

	tick          uint64
	droppedInputs uint64
	droppedChats  uint64
	published     uint64
	// Chat broadcasts refused by a full client queue.
	droppedBroadcasts uint64

	join  chan JoinRequest
	leave chan string
	inbox chan Envelope
	state chan chan protocol.StateMsg
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	metrics  atomic.Value
}

func New(cfg Config) (*Room, error) {
	if cfg.Map == nil {
		return nil, fmt.Errorf("room: map is required")
	}
	t := cfg.Tuning
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = NewRand(cfg.Now().UnixNano())
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	r := &Room{
		cfg:     t,
		m:       cfg.Map,
		rng:     cfg.Rand,
		now:     cfg.Now,
		logger:  cfg.Logger,
		sink:    cfg.Sink,
		byID:    map[string]*Player{},
		clients: map[string]outbound{},
		inputRL: ratelimit.New(ratelimit.Config{WindowMs: int64(t.RateLimits.InputWindowMs), Max: t.RateLimits.InputMax}),
		chatRL:  ratelimit.New(ratelimit.Config{WindowMs: int64(t.RateLimits.ChatWindowMs), Max: t.RateLimits.ChatMax}),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		inbox:   make(chan Envelope, 1024),
		state:   make(chan chan protocol.StateMsg, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.seedNPCs()
	r.wave = NewWaveScheduler(t.Wave, t.NPCRadius, r.now().UnixMilli())
	r.storeMetrics(0)
	return r, nil
}

func (r *Room) seedNPCs() {
	for _, def := range r.cfg.NPCs {
		n := &Npc{
			ID:       def.ID,
			Name:     def.Name,
			Kind:     def.Kind,
			X:        def.X,
			Y:        def.Y,
			Dir:      DirDown,
			behavior: behaviorFor(def.Kind),
		}
		if r.m.CollidesCircle(n.X, n.Y, r.cfg.NPCRadius) {
			n.X, n.Y = findSpawnPosition(r.m, r.rng, r.cfg.NPCRadius, r.cfg.SpawnAttempts, r.cfg.SpawnFallback)
		}
		if n.IsMissionary() {
			r.missionaries = append(r.missionaries, n)
		} else {
			n.Active = true
		}
		r.npcs = append(r.npcs, n)
	}
}

func (r *Room) Join() chan<- JoinRequest { return r.join }
func (r *Room) Leave() chan<- string     { return r.leave }
func (r *Room) Inbox() chan<- Envelope   { return r.inbox }

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Name() string          { return r.cfg.RoomName }
func (r *Room) Tuning() tuning.Tuning { return r.cfg }
func (r *Room) Map() *tilemap.Map     { return r.m }

func (r *Room) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Run drives the room until ctx is cancelled or Stop is called. Simulation
// steps run on the tick interval and full snapshots go out on the patch
// interval; both tickers die with the loop.
func (r *Room) Run(ctx context.Context) error {
	tick := time.NewTicker(time.Duration(r.cfg.TickMs) * time.Millisecond)
	defer tick.Stop()
	patch := time.NewTicker(time.Duration(r.cfg.PatchMs) * time.Millisecond)
	defer patch.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case env := <-r.inbox:
			r.handleEnvelope(env)
		case resp := <-r.state:
			resp <- r.snapshot(r.now())
		case <-tick.C:
			r.step(r.now())
		case <-patch.C:
			r.publish(r.now())
		}
	}
}

// ErrClosed is returned by State once the loop has exited.
var ErrClosed = errors.New("room closed")

// State asks the loop for a snapshot of the current room.
func (r *Room) State(ctx context.Context) (protocol.StateMsg, error) {
	resp := make(chan protocol.StateMsg, 1)
	select {
	case r.state <- resp:
	case <-r.done:
		return protocol.StateMsg{}, ErrClosed
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-r.done:
		return protocol.StateMsg{}, ErrClosed
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
}

func (r *Room) emit(e Event) {
	if r.sink == nil {
		return
	}
	e.Tick = r.tick
	e.Room = r.cfg.RoomName
	if err := r.sink.WriteEvent(e); err != nil {
		r.logger.Printf("event %s: %v", e.Kind, err)
	}
}

// outbound is a connected client's queues.
type outbound struct {
	state chan []byte
	chat  chan []byte
}

// sendOnce enqueues b without displacing anything already queued.
func sendOnce(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
