package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type sessionRow struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	JoinedAt  int64  `json:"joined_at_ms"`
	JoinTick  int64  `json:"join_tick"`
	LeftAt    *int64 `json:"left_at_ms,omitempty"`
	LeaveTick *int64 `json:"leave_tick,omitempty"`
}

type chatRow struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TMs       int64  `json:"t_ms"`
	Tick      int64  `json:"tick"`
}

type waveRow struct {
	Kind string   `json:"kind"`
	NPCs []string `json:"npcs"`
	TMs  int64    `json:"t_ms"`
	Tick int64    `json:"tick"`
}

type configRow struct {
	Name      string          `json:"name"`
	Digest    string          `json:"digest"`
	UpdatedAt string          `json:"updated_at"`
	Tuning    json.RawMessage `json:"tuning"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	roomName := fs.String("room", "lobby", "room name (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	session := fs.String("session", "", "session_id filter (chats)")
	_ = fs.Parse(args)

	q := "sessions"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "rooms", *roomName, "index", "lobby.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(os.Stdout, db, q, *limit, *session); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(w io.Writer, db *sql.DB, q string, limit int, session string) error {
	if limit <= 0 {
		limit = 20
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	switch q {
	case "sessions":
		rows, err := db.Query(`SELECT session_id,name,avatar,joined_at_ms,join_tick,left_at_ms,leave_tick FROM sessions ORDER BY joined_at_ms DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r           sessionRow
				left, leave sql.NullInt64
			)
			if err := rows.Scan(&r.SessionID, &r.Name, &r.Avatar, &r.JoinedAt, &r.JoinTick, &left, &leave); err != nil {
				return err
			}
			if left.Valid {
				r.LeftAt = &left.Int64
			}
			if leave.Valid {
				r.LeaveTick = &leave.Int64
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "online":
		rows, err := db.Query(`SELECT session_id,name,avatar,joined_at_ms,join_tick FROM sessions WHERE left_at_ms IS NULL ORDER BY joined_at_ms LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r sessionRow
			if err := rows.Scan(&r.SessionID, &r.Name, &r.Avatar, &r.JoinedAt, &r.JoinTick); err != nil {
				return err
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "chats":
		query := `SELECT session_id,text,t_ms,tick FROM chats ORDER BY id DESC LIMIT ?`
		qargs := []any{limit}
		if session != "" {
			query = `SELECT session_id,text,t_ms,tick FROM chats WHERE session_id=? ORDER BY id DESC LIMIT ?`
			qargs = []any{session, limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r chatRow
			if err := rows.Scan(&r.SessionID, &r.Text, &r.TMs, &r.Tick); err != nil {
				return err
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "waves":
		rows, err := db.Query(`SELECT kind,npcs_json,t_ms,tick FROM waves ORDER BY id DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r    waveRow
				npcs string
			)
			if err := rows.Scan(&r.Kind, &npcs, &r.TMs, &r.Tick); err != nil {
				return err
			}
			_ = json.Unmarshal([]byte(npcs), &r.NPCs)
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "config":
		var (
			r   configRow
			raw string
		)
		row := db.QueryRow(`SELECT name,digest,updated_at,json FROM config WHERE name='tuning'`)
		if err := row.Scan(&r.Name, &r.Digest, &r.UpdatedAt, &raw); err != nil {
			return err
		}
		r.Tuning = json.RawMessage(raw)
		return enc.Encode(r)

	default:
		return fmt.Errorf("unknown query (want sessions|online|chats|waves|config)")
	}
}
