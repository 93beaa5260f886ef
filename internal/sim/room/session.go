package room

import (
	"encoding/json"

	"github.com/google/uuid"

	"pixellobby.dev/internal/protocol"
)

func (r *Room) welcome(sessionID string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Room:            r.cfg.RoomName,
		TickMs:          r.cfg.TickMs,
		PatchMs:         r.cfg.PatchMs,
		Map: protocol.MapInfo{
			Width:      r.m.Width,
			Height:     r.m.Height,
			TileWidth:  r.m.TileWidth,
			TileHeight: r.m.TileHeight,
		},
		Zones: r.m.InteractZones(),
	}
}

func (r *Room) handleJoin(req JoinRequest) {
	if len(r.players) >= r.cfg.MaxClients {
		r.respond(req, JoinResponse{Err: protocol.ErrRoomFull})
		return
	}
	p := r.addPlayer(uuid.NewString(), req.Name, req.Avatar)
	if req.Out != nil {
		c := outbound{state: req.Out, chat: req.Chat}
		if c.chat == nil {
			c.chat = req.Out
		}
		r.clients[p.ID] = c
	}
	if !r.respond(req, JoinResponse{SessionID: p.ID, Welcome: r.welcome(p.ID)}) {
		r.removePlayer(p.ID)
		return
	}
	r.logger.Printf("join session=%s name=%q avatar=%s players=%d", p.ID, p.Name, p.Avatar, len(r.players))
	r.emit(Event{TimeMs: r.now().UnixMilli(), Kind: EventJoin, SessionID: p.ID, Name: p.Name, Avatar: p.Avatar})
}

func (r *Room) respond(req JoinRequest, resp JoinResponse) bool {
	if req.Resp == nil {
		return true
	}
	select {
	case req.Resp <- resp:
		return true
	default:
		return false
	}
}

func (r *Room) addPlayer(id, name, avatar string) *Player {
	p := &Player{
		ID:     id,
		Name:   sanitizeName(r.cfg, name),
		Avatar: sanitizeAvatar(r.cfg, avatar),
		Dir:    DirDown,
	}
	p.X, p.Y = findSpawnPosition(r.m, r.rng, r.cfg.PlayerRadius, r.cfg.SpawnAttempts, r.cfg.SpawnFallback)
	r.players = append(r.players, p)
	r.byID[id] = p
	return p
}

func (r *Room) removePlayer(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.clients, id)
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	r.inputRL.Drop(id)
	r.chatRL.Drop(id)
	return true
}

func (r *Room) handleLeave(id string) {
	if !r.removePlayer(id) {
		return
	}
	r.logger.Printf("leave session=%s players=%d", id, len(r.players))
	r.emit(Event{TimeMs: r.now().UnixMilli(), Kind: EventLeave, SessionID: id})
}

func (r *Room) handleEnvelope(env Envelope) {
	nowMs := r.now().UnixMilli()
	switch {
	case env.Input != nil:
		r.handleInput(env.SessionID, *env.Input, nowMs)
	case env.Chat != nil:
		r.handleChat(env.SessionID, *env.Chat, nowMs)
	}
}

// Unknown sessions are ignored before any limiter is consulted so a stale
// message cannot recreate a bucket after leave.
func (r *Room) handleInput(id string, in protocol.InputMsg, nowMs int64) {
	p := r.byID[id]
	if p == nil {
		return
	}
	if !r.inputRL.Consume(id, nowMs) {
		r.droppedInputs++
		return
	}
	p.Intent = Intent{Up: in.Up, Down: in.Down, Left: in.Left, Right: in.Right}
}

func (r *Room) handleChat(id string, msg protocol.ChatMsg, nowMs int64) {
	p := r.byID[id]
	if p == nil {
		return
	}
	if !r.chatRL.Consume(id, nowMs) {
		r.droppedChats++
		return
	}
	text := sanitizeChat(r.cfg, msg.Text)
	if text == "" {
		return
	}
	p.pushMessage(text)

	b, err := json.Marshal(protocol.ChatBroadcastMsg{
		Type:              protocol.TypeChat,
		SenderID:          id,
		Text:              text,
		ServerTimestampMs: nowMs,
	})
	if err != nil {
		r.logger.Printf("chat marshal: %v", err)
		return
	}
	for _, c := range r.clients {
		if !sendOnce(c.chat, b) {
			r.droppedBroadcasts++
		}
	}
	r.emit(Event{TimeMs: nowMs, Kind: EventChat, SessionID: id, Name: p.Name, Text: text})
}
