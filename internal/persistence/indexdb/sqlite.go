package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a local queryable index of room events.
type SQLiteIndex struct {
	*eventWriter
}

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			room TEXT NOT NULL,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL,
			joined_at_ms INTEGER NOT NULL,
			join_tick INTEGER NOT NULL,
			left_at_ms INTEGER,
			leave_tick INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL,
			session_id TEXT NOT NULL,
			text TEXT NOT NULL,
			t_ms INTEGER NOT NULL,
			tick INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_session_t ON chats(session_id, t_ms);`,
		`CREATE TABLE IF NOT EXISTS waves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL,
			kind TEXT NOT NULL,
			npcs_json TEXT NOT NULL,
			t_ms INTEGER NOT NULL,
			tick INTEGER NOT NULL
		);`,
	},
	upsertConfig: `INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
	insertJoin:   `INSERT OR REPLACE INTO sessions(session_id,room,name,avatar,joined_at_ms,join_tick) VALUES(?,?,?,?,?,?)`,
	updateLeave:  `UPDATE sessions SET left_at_ms=?, leave_tick=? WHERE session_id=?`,
	insertChat:   `INSERT INTO chats(room,session_id,text,t_ms,tick) VALUES(?,?,?,?,?)`,
	insertWave:   `INSERT INTO waves(room,kind,npcs_json,t_ms,tick) VALUES(?,?,?,?,?)`,
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	w, err := newEventWriter(db, sqliteDialect, 65536)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{eventWriter: w}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}
