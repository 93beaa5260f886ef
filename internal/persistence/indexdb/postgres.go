package indexdb

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresIndex writes the same tables as SQLiteIndex to a shared database,
// for deployments running several lobby processes.
type PostgresIndex struct {
	*eventWriter
}

var postgresDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS lobby_config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lobby_sessions (
			session_id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL,
			joined_at_ms BIGINT NOT NULL,
			join_tick BIGINT NOT NULL,
			left_at_ms BIGINT,
			leave_tick BIGINT
		);`,
		`CREATE TABLE IF NOT EXISTS lobby_chats (
			id BIGSERIAL PRIMARY KEY,
			room TEXT NOT NULL,
			session_id TEXT NOT NULL,
			text TEXT NOT NULL,
			t_ms BIGINT NOT NULL,
			tick BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lobby_chats_session_t ON lobby_chats(session_id, t_ms);`,
		`CREATE TABLE IF NOT EXISTS lobby_waves (
			id BIGSERIAL PRIMARY KEY,
			room TEXT NOT NULL,
			kind TEXT NOT NULL,
			npcs JSONB NOT NULL,
			t_ms BIGINT NOT NULL,
			tick BIGINT NOT NULL
		);`,
	},
	upsertConfig: `INSERT INTO lobby_config (name, digest, json, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name)
	DO UPDATE SET digest = $2, json = $3, updated_at = $4`,
	insertJoin: `INSERT INTO lobby_sessions (session_id, room, name, avatar, joined_at_ms, join_tick)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (session_id) DO NOTHING`,
	updateLeave: `UPDATE lobby_sessions SET left_at_ms = $1, leave_tick = $2 WHERE session_id = $3`,
	insertChat:  `INSERT INTO lobby_chats (room, session_id, text, t_ms, tick) VALUES ($1, $2, $3, $4, $5)`,
	insertWave:  `INSERT INTO lobby_waves (room, kind, npcs, t_ms, tick) VALUES ($1, $2, $3, $4, $5)`,
}

func OpenPostgres(dsn string) (*PostgresIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(4)

	w, err := newEventWriter(db, postgresDialect, 65536)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	return &PostgresIndex{eventWriter: w}, nil
}
