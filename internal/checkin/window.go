package checkin

import (
	"time"

	"gatescan/internal/models"
)

// CheckValidityWindow rejects an entry outside the ticket's explicit
// valid-from/valid-until bounds. Absent bounds impose no constraint and
// exits bypass the check entirely.
func CheckValidityWindow(validFrom, validUntil *time.Time, direction string, now time.Time) *Response {
	if direction == models.DirectionExit {
		return nil
	}
	if validFrom != nil && now.Before(*validFrom) {
		return reject(ReasonInvalidTime)
	}
	if validUntil != nil && now.After(*validUntil) {
		return reject(ReasonInvalidTime)
	}
	return nil
}
