package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"pixellobby.dev/internal/protocol"
)

type botConfig struct {
	URL       string
	Name      string
	Avatar    string
	InputRate time.Duration
	ChatEvery time.Duration
	PingEvery time.Duration
	Seed      int64
}

// botStats is what a finished run observed.
type botStats struct {
	SessionID string
	States    uint64
	Chats     uint64
	Pongs     uint64
	LastRTT   time.Duration
}

func main() {
	var (
		url       = flag.String("url", "ws://localhost:2567/v1/ws", "ws url")
		name      = flag.String("name", "bot", "display name")
		avatar    = flag.String("avatar", "", "avatar id (optional)")
		inputRate = flag.Duration("input_every", 100*time.Millisecond, "interval between INPUT frames")
		chatEvery = flag.Duration("chat_every", 15*time.Second, "interval between CHAT frames (0 disables)")
		pingEvery = flag.Duration("ping_every", 5*time.Second, "interval between PING frames (0 disables)")
		seed      = flag.Int64("seed", 0, "rng seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, botConfig{
		URL:       *url,
		Name:      *name,
		Avatar:    *avatar,
		InputRate: *inputRate,
		ChatEvery: *chatEvery,
		PingEvery: *pingEvery,
		Seed:      *seed,
	}, logger)
	if err != nil {
		logger.Fatalf("run: %v", err)
	}
	logger.Printf("done session=%s states=%d chats=%d pongs=%d rtt=%s", st.SessionID, st.States, st.Chats, st.Pongs, st.LastRTT)
}

// run joins the room and wanders until ctx is done or the server hangs up.
func run(ctx context.Context, cfg botConfig, logger *log.Logger) (botStats, error) {
	var st botStats
	if cfg.InputRate <= 0 {
		cfg.InputRate = 100 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return st, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.JoinMsg{Type: protocol.TypeJoin, Name: cfg.Name, Avatar: cfg.Avatar}); err != nil {
		return st, fmt.Errorf("send JOIN: %w", err)
	}
	welcome, err := awaitWelcome(conn)
	if err != nil {
		return st, err
	}
	st.SessionID = welcome.SessionID
	logger.Printf("WELCOME session=%s room=%s tick_ms=%d map=%dx%d", welcome.SessionID, welcome.Room, welcome.TickMs, welcome.Map.Width, welcome.Map.Height)

	var (
		states, chats, pongs atomic.Uint64
		lastRTT              atomic.Int64

		mu      sync.Mutex
		pending = map[uint64]time.Time{}
	)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeState:
				states.Add(1)
			case protocol.TypeChat:
				var c protocol.ChatBroadcastMsg
				if json.Unmarshal(msg, &c) == nil {
					chats.Add(1)
					logger.Printf("CHAT %s: %s", c.SenderID, c.Text)
				}
			case protocol.TypePong:
				var p protocol.PongMsg
				if json.Unmarshal(msg, &p) != nil {
					continue
				}
				pongs.Add(1)
				mu.Lock()
				if at, ok := pending[p.Seq]; ok {
					lastRTT.Store(int64(time.Since(at)))
					delete(pending, p.Seq)
				}
				mu.Unlock()
			case protocol.TypeError:
				var e protocol.ErrorMsg
				if json.Unmarshal(msg, &e) == nil {
					logger.Printf("ERROR %s: %s", e.Code, e.Message)
				}
			}
		}
	}()

	inputT := time.NewTicker(cfg.InputRate)
	defer inputT.Stop()
	chatC, stopChat := optionalTicker(cfg.ChatEvery)
	defer stopChat()
	pingC, stopPing := optionalTicker(cfg.PingEvery)
	defer stopPing()

	var (
		in      protocol.InputMsg
		seq     uint64
		pingSeq uint64
		holdFor int
	)
	finish := func(err error) (botStats, error) {
		st.States = states.Load()
		st.Chats = chats.Load()
		st.Pongs = pongs.Load()
		st.LastRTT = time.Duration(lastRTT.Load())
		return st, err
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return finish(nil)
		case err := <-readErr:
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return finish(nil)
			}
			return finish(fmt.Errorf("read: %w", err))
		case <-inputT.C:
			if holdFor <= 0 {
				in = randomIntent(rng)
				holdFor = 5 + rng.Intn(20)
			}
			holdFor--
			seq++
			in.Type = protocol.TypeInput
			in.Seq = seq
			if err := conn.WriteJSON(in); err != nil {
				return finish(fmt.Errorf("send INPUT: %w", err))
			}
		case <-chatC:
			text := fmt.Sprintf("%s says hi (%d)", cfg.Name, rng.Intn(1000))
			if err := conn.WriteJSON(protocol.ChatMsg{Type: protocol.TypeChat, Text: text}); err != nil {
				return finish(fmt.Errorf("send CHAT: %w", err))
			}
		case <-pingC:
			pingSeq++
			mu.Lock()
			pending[pingSeq] = time.Now()
			mu.Unlock()
			if err := conn.WriteJSON(protocol.PingMsg{Type: protocol.TypePing, Seq: pingSeq}); err != nil {
				return finish(fmt.Errorf("send PING: %w", err))
			}
		}
	}
}

func awaitWelcome(conn *websocket.Conn) (protocol.WelcomeMsg, error) {
	var w protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return w, fmt.Errorf("await WELCOME: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			if err := json.Unmarshal(msg, &w); err != nil {
				return w, fmt.Errorf("decode WELCOME: %w", err)
			}
			return w, nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			return w, fmt.Errorf("join rejected: %s %s", e.Code, e.Message)
		}
	}
}

// randomIntent holds still about a quarter of the time, otherwise picks one or
// two directions.
func randomIntent(rng *rand.Rand) protocol.InputMsg {
	var in protocol.InputMsg
	if rng.Float64() < 0.25 {
		return in
	}
	switch rng.Intn(3) {
	case 0:
		in.Up = true
	case 1:
		in.Down = true
	}
	switch rng.Intn(3) {
	case 0:
		in.Left = true
	case 1:
		in.Right = true
	}
	return in
}

func optionalTicker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
