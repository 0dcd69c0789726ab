package redisx

import (
	"fmt"
	"time"
)

const ns = "washq:v1"

// KeyDayAvailability is keyed by local calendar date (YYYY-MM-DD).
func KeyDayAvailability(date string) string {
	return fmt.Sprintf("%s:availability:%s", ns, date)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemHold(userID, idemKey string) string {
	return fmt.Sprintf("%s:idem:holds:%s:%s", ns, userID, idemKey)
}

func ChannelSlotsChanged() string {
	return ns + ":slots:changed"
}

func slotMember(slotStart time.Time) string {
	return slotStart.UTC().Format(time.RFC3339)
}
