package protocol

import "pixellobby.dev/internal/sim/tilemap"

// JOIN (client -> server). Both fields are optional; the room sanitizes them.
type JoinMsg struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string                 `json:"type"`
	ProtocolVersion string                 `json:"protocol_version"`
	SessionID       string                 `json:"session_id"`
	Room            string                 `json:"room"`
	TickMs          int                    `json:"tick_ms"`
	PatchMs         int                    `json:"patch_ms"`
	Map             MapInfo                `json:"map"`
	Zones           []tilemap.InteractZone `json:"zones"`
}

type MapInfo struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
}

// INPUT (client -> server). Seq is a transport concern and ignored by the room.
type InputMsg struct {
	Type  string `json:"type"`
	Up    bool   `json:"up"`
	Down  bool   `json:"down"`
	Left  bool   `json:"left"`
	Right bool   `json:"right"`
	Seq   uint64 `json:"seq,omitempty"`
}

// CHAT (client -> server)
type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CHAT (server -> every session)
type ChatBroadcastMsg struct {
	Type              string `json:"type"`
	SenderID          string `json:"sender_id"`
	Text              string `json:"text"`
	ServerTimestampMs int64  `json:"server_timestamp_ms"`
}

// STATE (server -> client): full snapshot of the room.
type StateMsg struct {
	Type         string                 `json:"type"`
	Tick         uint64                 `json:"tick"`
	ServerTimeMs int64                  `json:"server_time_ms"`
	Players      map[string]PlayerState `json:"players"`
	NPCs         map[string]NPCState    `json:"npcs"`
}

type PlayerState struct {
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	Dir          string   `json:"dir"`
	LastMessages []string `json:"last_messages"`
}

type NPCState struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Dir    string  `json:"dir"`
	Moving bool    `json:"moving"`
	Active bool    `json:"active"`
}

type PingMsg struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

type PongMsg struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
