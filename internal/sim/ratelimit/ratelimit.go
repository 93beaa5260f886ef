package ratelimit

// Config is one throttled channel: at most Max events per fixed window.
type Config struct {
	WindowMs int64
	Max      int
}

type bucket struct {
	Count       int
	WindowStart int64
}

// Limiter is a fixed-window counter per session. Bursts straddling a window
// boundary are allowed. Not safe for concurrent use; the room loop owns it.
type Limiter struct {
	cfg     Config
	buckets map[string]*bucket
}

func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, buckets: map[string]*bucket{}}
}

func (l *Limiter) Config() Config { return l.cfg }

// Consume records one event for id at nowMs and reports whether it is within
// the cap.
func (l *Limiter) Consume(id string, nowMs int64) bool {
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{WindowStart: nowMs}
		l.buckets[id] = b
	}
	if nowMs-b.WindowStart > l.cfg.WindowMs {
		b.Count = 0
		b.WindowStart = nowMs
	}
	b.Count++
	return b.Count <= l.cfg.Max
}

// Drop forgets the bucket for id.
func (l *Limiter) Drop(id string) {
	delete(l.buckets, id)
}

// Len is the number of tracked sessions.
func (l *Limiter) Len() int { return len(l.buckets) }
