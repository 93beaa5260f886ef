package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	RoomName   string `yaml:"room_name"`
	MaxClients int    `yaml:"max_clients"`

	TickMs  int `yaml:"tick_ms"`
	PatchMs int `yaml:"patch_ms"`

	PlayerSpeed     float64    `yaml:"player_speed"`
	PlayerRadius    float64    `yaml:"player_radius"`
	NPCSpeed        float64    `yaml:"npc_speed"`
	MissionarySpeed float64    `yaml:"missionary_speed"`
	NPCRadius       float64    `yaml:"npc_radius"`
	SpawnAttempts   int        `yaml:"spawn_attempts"`
	SpawnFallback   [2]float64 `yaml:"spawn_fallback"`

	NameMaxLen    int      `yaml:"name_max_len"`
	DefaultName   string   `yaml:"default_name"`
	ChatMaxLen    int      `yaml:"chat_max_len"`
	Avatars       []string `yaml:"avatars"`
	DefaultAvatar string   `yaml:"default_avatar"`

	RateLimits RateLimits `yaml:"rate_limits"`
	Wave       Wave       `yaml:"wave"`
	NPCs       []NPCSpec  `yaml:"npcs"`
}

type RateLimits struct {
	InputWindowMs int `yaml:"input_window_ms"`
	InputMax      int `yaml:"input_max"`
	ChatWindowMs  int `yaml:"chat_window_ms"`
	ChatMax       int `yaml:"chat_max"`
}

// Wave timing for the missionary encounter cycle.
type Wave struct {
	FirstDelayMs   int     `yaml:"first_delay_ms"`
	ActiveMs       int     `yaml:"active_ms"`
	CooldownMs     int     `yaml:"cooldown_ms"`
	SpawnMinDist   float64 `yaml:"spawn_min_dist"`
	SpawnJitter    float64 `yaml:"spawn_jitter"`
	ArriveDistance float64 `yaml:"arrive_distance"`
}

// NPCSpec is one authored roster entry. X/Y are world units.
type NPCSpec struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

const KindMissionary = "missionary"

func Defaults() Tuning {
	return Tuning{
		RoomName:        "lobby",
		MaxClients:      40,
		TickMs:          50,
		PatchMs:         100,
		PlayerSpeed:     140,
		PlayerRadius:    10,
		NPCSpeed:        60,
		MissionarySpeed: 90,
		NPCRadius:       8,
		SpawnAttempts:   40,
		SpawnFallback:   [2]float64{80, 80},
		NameMaxLen:      18,
		DefaultName:     "Player",
		ChatMaxLen:      140,
		Avatars:         []string{"cat", "fox", "frog", "bear"},
		DefaultAvatar:   "cat",
		RateLimits: RateLimits{
			InputWindowMs: 1000,
			InputMax:      40,
			ChatWindowMs:  10_000,
			ChatMax:       8,
		},
		Wave: Wave{
			FirstDelayMs:   45_000,
			ActiveMs:       30_000,
			CooldownMs:     120_000,
			SpawnMinDist:   38,
			SpawnJitter:    24,
			ArriveDistance: 4,
		},
		NPCs: []NPCSpec{
			{ID: "npc_guide", Name: "Guide", Kind: "guide", X: 13 * 32, Y: 4 * 32},
			{ID: "npc_greeter", Name: "Greeter", Kind: "greeter", X: 17 * 32, Y: 11 * 32},
			{ID: "npc_missionary_1", Name: "Elder Price", Kind: KindMissionary, X: 3 * 32, Y: 17 * 32},
			{ID: "npc_missionary_2", Name: "Elder Cunningham", Kind: KindMissionary, X: 4 * 32, Y: 17 * 32},
		},
	}
}

// Load reads a tuning file on top of Defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values and trims strings.
func (t *Tuning) Normalize() {
	d := Defaults()
	t.RoomName = strings.TrimSpace(t.RoomName)
	if t.RoomName == "" {
		t.RoomName = d.RoomName
	}
	if t.MaxClients <= 0 {
		t.MaxClients = d.MaxClients
	}
	if t.TickMs <= 0 {
		t.TickMs = d.TickMs
	}
	if t.PatchMs <= 0 {
		t.PatchMs = d.PatchMs
	}
	if t.SpawnAttempts <= 0 {
		t.SpawnAttempts = d.SpawnAttempts
	}
	if t.NameMaxLen <= 0 {
		t.NameMaxLen = d.NameMaxLen
	}
	if strings.TrimSpace(t.DefaultName) == "" {
		t.DefaultName = d.DefaultName
	}
	if t.ChatMaxLen <= 0 {
		t.ChatMaxLen = d.ChatMaxLen
	}
	avatars := make([]string, 0, len(t.Avatars))
	for _, a := range t.Avatars {
		if a = strings.TrimSpace(a); a != "" {
			avatars = append(avatars, a)
		}
	}
	t.Avatars = avatars
	if len(t.Avatars) == 0 {
		t.Avatars = d.Avatars
	}
	if t.DefaultAvatar == "" {
		t.DefaultAvatar = t.Avatars[0]
	}
	if t.Wave.ArriveDistance <= 0 {
		t.Wave.ArriveDistance = d.Wave.ArriveDistance
	}
	for i := range t.NPCs {
		n := &t.NPCs[i]
		n.ID = strings.TrimSpace(n.ID)
		n.Kind = strings.ToLower(strings.TrimSpace(n.Kind))
		if n.Kind == "" {
			n.Kind = "guide"
		}
		if n.Name == "" {
			n.Name = n.ID
		}
	}
}

func (t Tuning) Validate() error {
	if t.PlayerSpeed <= 0 || t.NPCSpeed <= 0 || t.MissionarySpeed <= 0 {
		return fmt.Errorf("speeds must be > 0")
	}
	if t.PlayerRadius <= 0 || t.NPCRadius <= 0 {
		return fmt.Errorf("radii must be > 0")
	}
	rl := t.RateLimits
	if rl.InputWindowMs <= 0 || rl.InputMax <= 0 || rl.ChatWindowMs <= 0 || rl.ChatMax <= 0 {
		return fmt.Errorf("rate_limits: windows and caps must be > 0")
	}
	w := t.Wave
	if w.FirstDelayMs < 0 || w.ActiveMs <= 0 || w.CooldownMs < 0 {
		return fmt.Errorf("wave: bad timing first=%d active=%d cooldown=%d", w.FirstDelayMs, w.ActiveMs, w.CooldownMs)
	}
	if w.SpawnMinDist < 0 || w.SpawnJitter < 0 {
		return fmt.Errorf("wave: spawn distances must be >= 0")
	}
	if !t.AvatarAllowed(t.DefaultAvatar) {
		return fmt.Errorf("default_avatar %q not in avatars", t.DefaultAvatar)
	}
	seen := map[string]struct{}{}
	for i, n := range t.NPCs {
		if n.ID == "" {
			return fmt.Errorf("npcs[%d]: missing id", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("npcs[%d]: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

func (t Tuning) AvatarAllowed(a string) bool {
	for _, v := range t.Avatars {
		if v == a {
			return true
		}
	}
	return false
}
