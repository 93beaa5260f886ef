package room

import "errors"

const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventChat      = "chat"
	EventWaveStart = "wave_start"
	EventWaveEnd   = "wave_end"
)

// Event is an audit record of something that happened in the room. Sinks
// only record; the room never reads events back.
type Event struct {
	TimeMs    int64    `json:"t"`
	Tick      uint64   `json:"tick"`
	Room      string   `json:"room"`
	Kind      string   `json:"kind"`
	SessionID string   `json:"session_id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Avatar    string   `json:"avatar,omitempty"`
	Text      string   `json:"text,omitempty"`
	NPCs      []string `json:"npcs,omitempty"`
}

type EventSink interface {
	WriteEvent(e Event) error
}

// MultiSink writes each event to every sink and joins the errors.
type MultiSink []EventSink

func (ms MultiSink) WriteEvent(e Event) error {
	var errs []error
	for _, s := range ms {
		if s == nil {
			continue
		}
		if err := s.WriteEvent(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
