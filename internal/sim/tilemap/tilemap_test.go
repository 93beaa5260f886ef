package tilemap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// gridMap builds a map from rows of '#' (solid) and '.' (open).
func gridMap(t *testing.T, tile int, rows ...string) *Map {
	t.Helper()
	h := len(rows)
	w := len(rows[0])
	m := &Map{Width: w, Height: h, TileWidth: tile, TileHeight: tile}
	m.Ground = make([]int, w*h)
	m.Collision = make([]int, w*h)
	for y, row := range rows {
		if len(row) != w {
			t.Fatalf("row %d has width %d, want %d", y, len(row), w)
		}
		for x, c := range row {
			if c == '#' {
				m.Collision[y*w+x] = 1
			}
		}
	}
	return m
}

func TestIsBlockedCell_OutOfBoundsIsSolid(t *testing.T) {
	m := gridMap(t, 32,
		"...",
		"...",
	)
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, false},
		{2, 1, false},
		{-1, 0, true},
		{0, -1, true},
		{3, 0, true},
		{0, 2, true},
	}
	for _, c := range cases {
		if got := m.IsBlockedCell(c.x, c.y); got != c.want {
			t.Fatalf("IsBlockedCell(%d,%d)=%v want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestIsBlockedPoint_FloorsNegativeCoordinates(t *testing.T) {
	m := gridMap(t, 32, "..", "..")
	if !m.IsBlockedPoint(-0.5, 10) {
		t.Fatalf("expected point left of origin to be blocked")
	}
	if m.IsBlockedPoint(0, 0) {
		t.Fatalf("expected origin open")
	}
	if m.IsBlockedPoint(63.9, 63.9) {
		t.Fatalf("expected last cell interior open")
	}
	if !m.IsBlockedPoint(64, 10) {
		t.Fatalf("expected right edge to be out of bounds")
	}
}

func TestCollidesCircle_OpenNeighbourhood(t *testing.T) {
	m := gridMap(t, 32,
		"#####",
		"#...#",
		"#...#",
		"#...#",
		"#####",
	)
	// Center of the middle cell; every sample lands on an open cell.
	if m.CollidesCircle(80, 80, 10) {
		t.Fatalf("expected no collision in open area")
	}
	// Touching the wall cell to the left.
	if !m.CollidesCircle(40, 80, 10) {
		t.Fatalf("expected collision next to wall")
	}
}

func TestCollidesCircle_DiagonalCornerSample(t *testing.T) {
	m := gridMap(t, 32,
		"...",
		"...",
		"..#",
	)
	// Axis samples stay open, only the bottom-right corner reaches the solid cell.
	if !m.CollidesCircle(56, 56, 10) {
		t.Fatalf("expected diagonal corner sample to detect solid cell")
	}
}

func TestCollidesCircle_SampledPointsOpenImpliesFalse(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	w, h := m.SizePx()
	r := 10.0
	for y := r; y <= h-r; y += 7 {
		for x := r; x <= w-r; x += 7 {
			open := !m.IsBlockedPoint(x, y)
			for _, p := range [][2]float64{
				{x - r, y}, {x + r, y}, {x, y - r}, {x, y + r},
				{x - r, y - r}, {x + r, y - r}, {x - r, y + r}, {x + r, y + r},
			} {
				if m.IsBlockedPoint(p[0], p[1]) {
					open = false
				}
			}
			if open && m.CollidesCircle(x, y, r) {
				t.Fatalf("CollidesCircle(%v,%v) true with every sample open", x, y)
			}
		}
	}
}

func TestDefault_LobbyLayout(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if m.Width != 30 || m.Height != 20 || m.TileWidth != 32 || m.TileHeight != 32 {
		t.Fatalf("unexpected dimensions: %dx%d tile %dx%d", m.Width, m.Height, m.TileWidth, m.TileHeight)
	}
	if !m.IsBlockedCell(0, 5) || !m.IsBlockedCell(29, 5) || !m.IsBlockedCell(5, 0) || !m.IsBlockedCell(5, 19) {
		t.Fatalf("expected border walls")
	}
	if !m.IsBlockedCell(8, 5) || !m.IsBlockedCell(20, 14) || !m.IsBlockedCell(24, 4) {
		t.Fatalf("expected interior obstacles")
	}
	if m.IsBlockedCell(15, 10) {
		t.Fatalf("expected plaza open")
	}
	if cx, cy := m.Center(); cx != 480 || cy != 320 {
		t.Fatalf("center=(%v,%v)", cx, cy)
	}
}

func TestInteractZones_DefaultsAndPassThrough(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	zones := m.InteractZones()
	if len(zones) != 3 {
		t.Fatalf("zones=%d want 3", len(zones))
	}
	welcome := zones[0]
	if welcome.Title != "Welcome Board" || welcome.Kind != "interact" || welcome.CTA != "Open" || welcome.URL != "" {
		t.Fatalf("welcome zone: %+v", welcome)
	}
	if !welcome.Contains(12*32+1, 3*32+1) {
		t.Fatalf("expected welcome zone to contain its interior")
	}

	kiosk := zones[1]
	if kiosk.Kind != "link" || kiosk.URL == "" || kiosk.URL2 == "" || kiosk.CTA2 != "Source" || kiosk.PreviewImage != "kiosk.png" {
		t.Fatalf("kiosk zone: %+v", kiosk)
	}
	if v, ok := kiosk.Properties["featured"].(bool); !ok || !v {
		t.Fatalf("expected boolean property passed through, got %#v", kiosk.Properties["featured"])
	}

	notice := zones[2]
	if notice.Message != "No message configured." || notice.Kind != "notice" {
		t.Fatalf("notice zone: %+v", notice)
	}

	// Callers get a copy.
	zones[0].Title = "changed"
	if m.InteractZones()[0].Title != "Welcome Board" {
		t.Fatalf("InteractZones must not expose internal slice")
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	cases := []struct{ name, doc string }{
		{"not json", `{`},
		{"missing width", `{"height":1,"tilewidth":32,"tileheight":32,"layers":[]}`},
		{"string width", `{"width":"1","height":1,"tilewidth":32,"tileheight":32,"layers":[]}`},
		{"missing layers", `{"width":1,"height":1,"tilewidth":32,"tileheight":32}`},
		{"layer without data", `{"width":1,"height":1,"tilewidth":32,"tileheight":32,"layers":[{"type":"tilelayer","name":"ground","width":1,"height":1}]}`},
		{"wrong shape", `{"width":2,"height":1,"tilewidth":32,"tileheight":32,"layers":[
			{"type":"tilelayer","name":"ground","width":2,"height":1,"data":[1,1]},
			{"type":"tilelayer","name":"collision","width":2,"height":1,"data":[0]}]}`},
		{"layer dims mismatch", `{"width":2,"height":1,"tilewidth":32,"tileheight":32,"layers":[
			{"type":"tilelayer","name":"ground","width":1,"height":2,"data":[1,1]},
			{"type":"tilelayer","name":"collision","width":2,"height":1,"data":[0,0]}]}`},
		{"missing collision", `{"width":1,"height":1,"tilewidth":32,"tileheight":32,"layers":[
			{"type":"tilelayer","name":"ground","width":1,"height":1,"data":[1]}]}`},
		{"objects missing", `{"width":1,"height":1,"tilewidth":32,"tileheight":32,"layers":[
			{"type":"tilelayer","name":"ground","width":1,"height":1,"data":[1]},
			{"type":"tilelayer","name":"collision","width":1,"height":1,"data":[0]},
			{"type":"objectgroup","name":"interact"}]}`},
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c.doc)); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func TestParse_MinimalWithoutObjectLayer(t *testing.T) {
	doc := `{"width":2,"height":1,"tilewidth":16,"tileheight":16,"layers":[
		{"type":"tilelayer","name":"ground","width":2,"height":1,"data":[1,2]},
		{"type":"tilelayer","name":"collision","width":2,"height":1,"data":[0,1]}]}`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.InteractZones()) != 0 {
		t.Fatalf("expected no zones")
	}
	if m.IsBlockedCell(0, 0) || !m.IsBlockedCell(1, 0) {
		t.Fatalf("collision layer not applied")
	}
}

func TestLoad_WrapsPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.tmj")
	if err := os.WriteFile(p, []byte(`{"width":1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "bad.tmj") {
		t.Fatalf("expected path in error, got %v", err)
	}

	good := filepath.Join(dir, "lobby.tmj")
	if err := os.WriteFile(good, LobbyAsset(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(good); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestZoneAt_FirstContainingZone(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	z, ok := m.ZoneAt(390, 100)
	if !ok || z.Name != "welcome-sign" {
		t.Fatalf("ZoneAt(390,100)=%+v,%v", z, ok)
	}
	// Right and bottom edges are exclusive.
	if _, ok := m.ZoneAt(384+32, 100); ok {
		t.Fatalf("expected right edge outside the zone")
	}
	if _, ok := m.ZoneAt(480, 320); ok {
		t.Fatalf("expected plaza outside every zone")
	}
}

func TestParse_ZoneKindDefaultsOnlyWhenTypeAbsent(t *testing.T) {
	doc := `{"width":1,"height":1,"tilewidth":32,"tileheight":32,"layers":[
		{"type":"tilelayer","name":"ground","width":1,"height":1,"data":[1]},
		{"type":"tilelayer","name":"collision","width":1,"height":1,"data":[0]},
		{"type":"objectgroup","name":"interact","objects":[
			{"id":1,"x":0,"y":0,"width":8,"height":8},
			{"id":2,"type":"","x":0,"y":0,"width":8,"height":8},
			{"id":3,"type":"link","x":0,"y":0,"width":8,"height":8}]}]}`
	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	zones := m.InteractZones()
	if len(zones) != 3 {
		t.Fatalf("zones=%d want 3", len(zones))
	}
	for i, want := range []string{"info", "", "link"} {
		if zones[i].Kind != want {
			t.Fatalf("zone %d kind=%q want %q", zones[i].ID, zones[i].Kind, want)
		}
	}
}
