package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/klauspost/compress/zstd"

	"pixellobby.dev/internal/sim/room"
)

func main() {
	var (
		dataDir   = flag.String("data", "./data", "runtime data directory")
		roomName  = flag.String("room", "lobby", "room name")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (overrides -data/-room)")
		mode      = flag.String("mode", "summary", "summary|chat|raw")
		fromMs    = flag.Int64("from_ms", 0, "skip events before this unix ms (optional)")
		toMs      = flag.Int64("to_ms", 0, "stop after this unix ms (optional)")
	)
	flag.Parse()

	dir := strings.TrimSpace(*eventsDir)
	if dir == "" {
		dir = filepath.Join(*dataDir, "rooms", *roomName, "events")
	}
	files, err := listEventFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", dir)
		os.Exit(1)
	}

	var (
		total uint64
		rep   = newReplay()
	)
	for _, path := range files {
		if fi, err := os.Stat(path); err == nil {
			total += uint64(fi.Size())
		}
		err := readEventFile(path, func(e room.Event) bool {
			if *fromMs != 0 && e.TimeMs < *fromMs {
				return true
			}
			if *toMs != 0 && e.TimeMs > *toMs {
				return false
			}
			switch *mode {
			case "raw":
				b, _ := json.Marshal(e)
				fmt.Println(string(b))
			case "chat":
				if e.Kind == room.EventChat {
					fmt.Printf("%s %s: %s\n", time.UnixMilli(e.TimeMs).UTC().Format(time.RFC3339), rep.nameOf(e.SessionID), e.Text)
				}
			}
			rep.apply(e)
			return true
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("files=%d compressed=%s\n", len(files), humanize.Bytes(total))
	rep.writeSummary(os.Stdout)
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// readEventFile decodes one hourly file. fn returns false to stop early.
func readEventFile(path string, fn func(room.Event) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e room.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}

type sessionSpan struct {
	Name     string
	JoinMs   int64
	LeaveMs  int64
	Chats    int
	Finished bool
}

// replay folds events back into per-session and per-kind totals.
type replay struct {
	kinds    map[string]int
	sessions map[string]*sessionSpan
	order    []string
	waves    int
	firstMs  int64
	lastMs   int64
	lastTick uint64
}

func newReplay() *replay {
	return &replay{kinds: map[string]int{}, sessions: map[string]*sessionSpan{}}
}

func (r *replay) nameOf(id string) string {
	if s, ok := r.sessions[id]; ok && s.Name != "" {
		return s.Name
	}
	return id
}

func (r *replay) apply(e room.Event) {
	r.kinds[e.Kind]++
	if r.firstMs == 0 || e.TimeMs < r.firstMs {
		r.firstMs = e.TimeMs
	}
	if e.TimeMs > r.lastMs {
		r.lastMs = e.TimeMs
	}
	if e.Tick > r.lastTick {
		r.lastTick = e.Tick
	}
	switch e.Kind {
	case room.EventJoin:
		if _, ok := r.sessions[e.SessionID]; !ok {
			r.order = append(r.order, e.SessionID)
		}
		r.sessions[e.SessionID] = &sessionSpan{Name: e.Name, JoinMs: e.TimeMs}
	case room.EventLeave:
		if s, ok := r.sessions[e.SessionID]; ok {
			s.LeaveMs = e.TimeMs
			s.Finished = true
		}
	case room.EventChat:
		if s, ok := r.sessions[e.SessionID]; ok {
			s.Chats++
		}
	case room.EventWaveStart:
		r.waves++
	}
}

// online lists sessions that joined but never left, in join order.
func (r *replay) online() []string {
	var out []string
	for _, id := range r.order {
		if s := r.sessions[id]; !s.Finished {
			out = append(out, id)
		}
	}
	return out
}

func (r *replay) writeSummary(w io.Writer) {
	span := time.Duration(r.lastMs-r.firstMs) * time.Millisecond
	fmt.Fprintf(w, "span=%s last_tick=%d sessions=%d waves=%d online_at_end=%d\n",
		durafmt.Parse(span).LimitFirstN(2).String(), r.lastTick, len(r.sessions), r.waves, len(r.online()))

	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-10s %s\n", k, humanize.Comma(int64(r.kinds[k])))
	}
	for _, id := range r.order {
		s := r.sessions[id]
		stay := "online"
		if s.Finished {
			stay = durafmt.Parse(time.Duration(s.LeaveMs-s.JoinMs) * time.Millisecond).LimitFirstN(2).String()
		}
		fmt.Fprintf(w, "  session %s name=%q chats=%d stay=%s\n", id, s.Name, s.Chats, stay)
	}
}
