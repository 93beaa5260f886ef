package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"pixellobby.dev/internal/sim/room"
)

const segmentLayout = "2006-01-02-15"

// Options tunes a segment writer. Zero values take the defaults.
type Options struct {
	// Prefix names the files: <prefix>-YYYY-MM-DD-HH.jsonl.zst.
	Prefix string
	// BufferSize is the uncompressed buffer in front of the encoder.
	BufferSize int
	Level      zstd.EncoderLevel
	// Now picks the segment; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults(prefix string) Options {
	if o.Prefix == "" {
		o.Prefix = prefix
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64 * 1024
	}
	if o.Level == 0 {
		o.Level = zstd.SpeedFastest
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// segment is one open hourly file.
type segment struct {
	key string
	f   *os.File
	enc *zstd.Encoder
	buf *bufio.Writer
}

func (s *segment) close() error {
	flushErr := s.buf.Flush()
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// JSONLZstdWriter appends one JSON document per line to hourly zstd segments.
// Each Write is flushed through the encoder, so a crash loses at most the
// line being written.
type JSONLZstdWriter struct {
	dir  string
	opts Options

	mu    sync.Mutex
	cur   *segment
	bytes int64
	lines int64
}

func NewJSONLZstdWriter(dir string, opts Options) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, opts: opts.withDefaults("events")}
}

// Written is the number of uncompressed bytes accepted so far.
func (w *JSONLZstdWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytes
}

func (w *JSONLZstdWriter) Lines() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	seg, err := w.segmentFor(w.opts.Now().UTC().Format(segmentLayout))
	if err != nil {
		return err
	}
	if _, err := seg.buf.Write(line); err != nil {
		return err
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	w.bytes += int64(len(line))
	w.lines++
	return nil
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	err := w.cur.close()
	w.cur = nil
	return err
}

// segmentFor returns the open segment for key, rotating when the hour moved.
func (w *JSONLZstdWriter) segmentFor(key string) (*segment, error) {
	if w.cur != nil && w.cur.key == key {
		return w.cur, nil
	}
	if w.cur != nil {
		err := w.cur.close()
		w.cur = nil
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(w.SegmentPath(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(w.opts.Level))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.cur = &segment{key: key, f: f, enc: enc, buf: bufio.NewWriterSize(enc, w.opts.BufferSize)}
	return w.cur, nil
}

// SegmentPath is the file holding lines written during the hour key.
func (w *JSONLZstdWriter) SegmentPath(key string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.opts.Prefix, key))
}

// EventLogger is the room.EventSink backed by <roomDir>/events.
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(roomDir string, opts Options) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(roomDir, "events"), opts.withDefaults("events"))}
}

func (l *EventLogger) WriteEvent(e room.Event) error { return l.w.Write(e) }
func (l *EventLogger) Written() int64                { return l.w.Written() }
func (l *EventLogger) Lines() int64                  { return l.w.Lines() }
func (l *EventLogger) Close() error                  { return l.w.Close() }
