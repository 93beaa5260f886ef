package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeJoin    = "JOIN"
	TypeWelcome = "WELCOME"
	TypeInput   = "INPUT"
	TypeChat    = "CHAT"
	TypeState   = "STATE"
	TypePing    = "PING"
	TypePong    = "PONG"
	TypeError   = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
