package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"pixellobby.dev/internal/sim/room"
	"pixellobby.dev/internal/sim/tuning"
)

// dialect holds the SQL that differs between backends.
type dialect struct {
	schema       []string
	upsertConfig string
	insertJoin   string
	updateLeave  string
	insertChat   string
	insertWave   string
}

// Stats is a snapshot of writer queue health.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	WrittenTotal  uint64 `json:"written_total"`
	DropTotal     uint64 `json:"drop_total"`
	ErrorTotal    uint64 `json:"error_total"`
}

// eventWriter batches room events into transactions on its own goroutine.
// Enqueueing never blocks the room loop; events are dropped when the queue
// is full and the compressed event log stays the source of truth.
type eventWriter struct {
	db *sql.DB
	d  dialect

	// mu orders WriteEvent's send against Close's close(ch).
	mu     sync.RWMutex
	closed bool
	ch     chan room.Event
	wg     sync.WaitGroup
	once   sync.Once

	written atomic.Uint64
	drops   atomic.Uint64
	errs    atomic.Uint64

	commitEvery   int
	commitMaxWait time.Duration
}

func newEventWriter(db *sql.DB, d dialect, queue int) (*eventWriter, error) {
	for _, s := range d.schema {
		if _, err := db.Exec(s); err != nil {
			return nil, err
		}
	}
	w := &eventWriter{
		db:            db,
		d:             d,
		ch:            make(chan room.Event, queue),
		commitEvery:   500,
		commitMaxWait: time.Second,
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w, nil
}

func (w *eventWriter) WriteEvent(e room.Event) error {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.ch <- e:
	default:
		w.drops.Add(1)
	}
	return nil
}

func (w *eventWriter) Stats() Stats {
	if w == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(w.ch),
		QueueCapacity: cap(w.ch),
		WrittenTotal:  w.written.Load(),
		DropTotal:     w.drops.Load(),
		ErrorTotal:    w.errs.Load(),
	}
}

// UpsertTuning stores the tuning actually applied, keyed by a digest of its
// canonical JSON.
func (w *eventWriter) UpsertTuning(t tuning.Tuning) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = w.db.Exec(w.d.upsertConfig, "tuning", hex.EncodeToString(sum[:]), string(b), now)
	return err
}

func (w *eventWriter) Close() error {
	if w == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
		err = w.db.Close()
	})
	return err
}

func (w *eventWriter) loop() {
	ctx := context.Background()

	var (
		tx         *sql.Tx
		batch      []room.Event
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		batch = batch[:0]
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			w.errs.Add(uint64(len(batch)))
		} else {
			w.written.Add(uint64(len(batch)))
		}
		tx = nil
		batch = batch[:0]
		lastCommit = time.Now()
	}
	// salvage rolls back a batch poisoned by one bad event and re-applies
	// the good ones one statement at a time.
	salvage := func() {
		_ = tx.Rollback()
		tx = nil
		for _, e := range batch {
			if err := w.apply(w.db, e); err != nil {
				w.errs.Add(1)
				continue
			}
			w.written.Add(1)
		}
		batch = batch[:0]
		lastCommit = time.Now()
	}

	for e := range w.ch {
		begin()
		if tx == nil {
			w.drops.Add(1)
			continue
		}
		if err := w.apply(tx, e); err != nil {
			w.errs.Add(1)
			salvage()
			continue
		}
		batch = append(batch, e)
		if len(batch) >= w.commitEvery || time.Since(lastCommit) >= w.commitMaxWait || len(w.ch) == 0 {
			commit()
		}
	}
	commit()
}

// execer is satisfied by both *sql.Tx and *sql.DB.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (w *eventWriter) apply(tx execer, e room.Event) error {
	var err error
	switch e.Kind {
	case room.EventJoin:
		_, err = tx.Exec(w.d.insertJoin, e.SessionID, e.Room, e.Name, e.Avatar, e.TimeMs, int64(e.Tick))
	case room.EventLeave:
		_, err = tx.Exec(w.d.updateLeave, e.TimeMs, int64(e.Tick), e.SessionID)
	case room.EventChat:
		_, err = tx.Exec(w.d.insertChat, e.Room, e.SessionID, e.Text, e.TimeMs, int64(e.Tick))
	case room.EventWaveStart, room.EventWaveEnd:
		npcs, _ := json.Marshal(e.NPCs)
		_, err = tx.Exec(w.d.insertWave, e.Room, e.Kind, string(npcs), e.TimeMs, int64(e.Tick))
	}
	return err
}
