package room

import (
	"strings"

	"pixellobby.dev/internal/sim/tuning"
)

func clipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// sanitizeName collapses whitespace runs and clips to the configured length.
func sanitizeName(t tuning.Tuning, raw string) string {
	name := clipRunes(strings.Join(strings.Fields(raw), " "), t.NameMaxLen)
	if name == "" {
		return t.DefaultName
	}
	return name
}

func sanitizeAvatar(t tuning.Tuning, raw string) string {
	if t.AvatarAllowed(raw) {
		return raw
	}
	return t.DefaultAvatar
}

// sanitizeChat trims then clips. An empty result means the message is dropped.
func sanitizeChat(t tuning.Tuning, raw string) string {
	return clipRunes(strings.TrimSpace(raw), t.ChatMaxLen)
}
