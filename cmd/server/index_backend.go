package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pixellobby.dev/internal/persistence/indexdb"
	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	room.EventSink
	UpsertTuning(t tuning.Tuning) error
	Stats() indexdb.Stats
	Close() error
}

func openRuntimeIndex(roomDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LOBBY_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(roomDir, "index", "lobby.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "postgres":
		dsn := strings.TrimSpace(os.Getenv("LOBBY_DATABASE_URL"))
		if dsn == "" {
			return nil, fmt.Errorf("LOBBY_INDEX_BACKEND=postgres but LOBBY_DATABASE_URL is empty")
		}
		idx, err := indexdb.OpenPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported LOBBY_INDEX_BACKEND: %s", backend)
	}
}
