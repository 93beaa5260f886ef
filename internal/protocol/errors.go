package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Room routing/state.
	ErrRoomFull   = "E_ROOM_FULL"
	ErrRoomClosed = "E_ROOM_CLOSED"

	// Message layer. These are never sent to clients (drops are silent) but are
	// used as metric and log labels.
	ErrRateLimit      = "E_RATE_LIMIT"
	ErrUnknownSession = "E_UNKNOWN_SESSION"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRoomFull:        {},
	ErrRoomClosed:      {},
	ErrRateLimit:       {},
	ErrUnknownSession:  {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
