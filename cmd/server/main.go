package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "pixellobby.dev/internal/persistence/log"
	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tilemap"
	"pixellobby.dev/internal/sim/tuning"
	"pixellobby.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default :$PORT, or :2567)")
		tuningPath = flag.String("tuning", "./configs/lobby.yaml", "path to lobby tuning yaml")
		mapPath    = flag.String("map", "", "path to a Tiled JSON map (default: embedded lobby map)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the SQL event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[lobby] ", log.LstdFlags|log.Lmicroseconds)

	listen := strings.TrimSpace(*addr)
	if listen == "" {
		listen = fmt.Sprintf(":%d", envInt("PORT", 2567))
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	m, mapBytes, err := loadMap(strings.TrimSpace(*mapPath))
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}

	roomDir := filepath.Join(*dataDir, "rooms", tune.RoomName)
	if err := os.MkdirAll(roomDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	eventLog := persistlog.NewEventLogger(roomDir, persistlog.Options{BufferSize: envInt("LOBBY_EVENT_LOG_BUFFER_KB", 64) * 1024})
	defer func() {
		_ = eventLog.Close()
		logger.Printf("event log closed: %s written", humanize.Bytes(uint64(eventLog.Written())))
	}()
	sinks := room.MultiSink{eventLog}

	// Optional read-model index; the room never reads it back.
	idx, err := openRuntimeIndex(roomDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
		sinks = append(sinks, idx)
	}

	r, err := room.New(room.Config{
		Tuning: tune,
		Map:    m,
		Logger: logger,
		Sink:   sinks,
	})
	if err != nil {
		logger.Fatalf("room: %v", err)
	}
	logger.Printf("room=%s map=%dx%d tiles (%s) npcs=%d tick=%dms patch=%dms max_clients=%d",
		tune.RoomName, m.Width, m.Height, humanize.Bytes(uint64(mapBytes)), len(tune.NPCs), tune.TickMs, tune.PatchMs, tune.MaxClients)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("room stopped: %v", err)
		}
	}()

	enableAdminHTTP := envBool("LOBBY_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (LOBBY_ENABLE_ADMIN_HTTP=false)")
	}
	wsSrv := ws.NewServer(r, logger, ws.Options{
		FramesPerSec: envInt("LOBBY_WS_FRAMES_PER_SEC", 60),
		ChatQueue:    envInt("LOBBY_WS_CHAT_QUEUE", 64),
	})
	mux := newMux(httpDeps{
		room:        r,
		index:       idx,
		eventLog:    eventLog,
		started:     time.Now(),
		enableAdmin: enableAdminHTTP,
		ws:          wsSrv.Handler(),
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-r.Done()
}

func loadMap(path string) (*tilemap.Map, int, error) {
	if path == "" {
		m, err := tilemap.Default()
		return m, len(tilemap.LobbyAsset()), err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	m, err := tilemap.Load(path)
	return m, int(st.Size()), err
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
