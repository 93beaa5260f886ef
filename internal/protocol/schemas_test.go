package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"pixellobby.dev/internal/protocol"
	"pixellobby.dev/internal/sim/tilemap"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Round-trip through JSON so the validator sees wire values, not Go types.
	wire := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(wire(v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	joinSchema := compile("join.schema.json")
	inputSchema := compile("input.schema.json")
	chatSchema := compile("chat.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	stateSchema := compile("state.schema.json")

	validate(joinSchema, protocol.JoinMsg{Type: protocol.TypeJoin})
	validate(joinSchema, protocol.JoinMsg{Type: protocol.TypeJoin, Name: "ada", Avatar: "fox"})
	validate(inputSchema, protocol.InputMsg{Type: protocol.TypeInput, Up: true, Seq: 7})
	validate(chatSchema, protocol.ChatMsg{Type: protocol.TypeChat, Text: "hi"})
	validate(chatSchema, protocol.ChatBroadcastMsg{
		Type:              protocol.TypeChat,
		SenderID:          "S1",
		Text:              "hello",
		ServerTimestampMs: 1700000000000,
	})

	m, err := tilemap.Default()
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		Room:            "lobby",
		TickMs:          50,
		PatchMs:         100,
		Map:             protocol.MapInfo{Width: m.Width, Height: m.Height, TileWidth: m.TileWidth, TileHeight: m.TileHeight},
		Zones:           m.InteractZones(),
	})

	validate(stateSchema, protocol.StateMsg{
		Type:         protocol.TypeState,
		Tick:         3,
		ServerTimeMs: 1700000000000,
		Players: map[string]protocol.PlayerState{
			"S1": {Name: "ada", Avatar: "cat", X: 10, Y: 20, Dir: "down", LastMessages: []string{}},
		},
		NPCs: map[string]protocol.NPCState{
			"npc_guide": {Name: "Guide", Kind: "guide", X: 1, Y: 2, Dir: "left", Moving: true, Active: true},
		},
	})

	// Negative: a broadcast over the chat length cap must not validate.
	long := make([]byte, 141)
	for i := range long {
		long[i] = 'a'
	}
	bad := wire(protocol.ChatBroadcastMsg{Type: protocol.TypeChat, SenderID: "S1", Text: string(long), ServerTimestampMs: 1})
	if err := chatSchema.Validate(bad); err == nil {
		t.Fatalf("expected oversize chat to fail validation")
	}
}

func TestDecodeBase(t *testing.T) {
	base, err := protocol.DecodeBase([]byte(`{"type":"INPUT","up":true}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if base.Type != protocol.TypeInput {
		t.Fatalf("type=%q", base.Type)
	}
	if _, err := protocol.DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error")
	}
}
