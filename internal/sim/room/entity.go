package room

import "pixellobby.dev/internal/protocol"

type Dir string

const (
	DirUp    Dir = "up"
	DirDown  Dir = "down"
	DirLeft  Dir = "left"
	DirRight Dir = "right"
)

var cardinals = [4]Dir{DirUp, DirDown, DirLeft, DirRight}

// delta is the unit vector for an axis-aligned facing.
func (d Dir) delta() (dx, dy float64) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	}
	return 0, 0
}

// Intent holds the last accepted movement flags. It is state, not a queue.
type Intent struct {
	Up, Down, Left, Right bool
}

// chatHistory is how many recent lines a player carries in published state.
const chatHistory = 1

type Player struct {
	ID     string
	Name   string
	Avatar string
	X, Y   float64
	Dir    Dir

	LastMessages []string
	Intent       Intent
}

func (p *Player) pushMessage(msg string) {
	if len(p.LastMessages) >= chatHistory {
		p.LastMessages = append(p.LastMessages[:0], p.LastMessages[len(p.LastMessages)-chatHistory+1:]...)
	}
	p.LastMessages = append(p.LastMessages, msg)
}

func (p *Player) state() protocol.PlayerState {
	msgs := make([]string, len(p.LastMessages))
	copy(msgs, p.LastMessages)
	return protocol.PlayerState{
		Name:         p.Name,
		Avatar:       p.Avatar,
		X:            p.X,
		Y:            p.Y,
		Dir:          string(p.Dir),
		LastMessages: msgs,
	}
}

// Npc is a world-scoped character seeded from the roster. NPCs are never
// created or removed after the room starts.
type Npc struct {
	ID   string
	Name string
	Kind string
	X, Y float64
	Dir  Dir

	Active bool
	Moving bool
	// Time left in the current idle/move phase (wanderers only).
	WanderMs float64

	behavior behavior
}

func (n *Npc) IsMissionary() bool {
	_, ok := n.behavior.(missionary)
	return ok
}

func (n *Npc) state() protocol.NPCState {
	return protocol.NPCState{
		Name:   n.Name,
		Kind:   n.Kind,
		X:      n.X,
		Y:      n.Y,
		Dir:    string(n.Dir),
		Moving: n.Moving,
		Active: n.Active,
	}
}
