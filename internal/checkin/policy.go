package checkin

import (
	"gatescan/internal/models"
)

// CheckMultiEntry applies the list's re-entry policy against the derived
// history. It returns nil to allow or an AlreadyRedeemed rejection carrying
// the conflicting record. Exit requests are never subject to this check.
//
// Derived states: no prior activity, only exits, last was exit, last was
// entry (or mixed ending in an entry).
func CheckMultiEntry(list *models.CheckInList, history *HistoryView, direction string) *Response {
	if direction == models.DirectionExit {
		return nil
	}
	if list.AllowMultipleEntries {
		return nil
	}

	records := history.All()
	if len(records) == 0 {
		return nil
	}

	onlyExits := true
	for _, r := range records {
		if r.Direction == models.DirectionEntry {
			onlyExits = false
			break
		}
	}
	if onlyExits {
		return nil
	}

	if list.AllowEntryAfterExit && records[len(records)-1].Direction == models.DirectionExit {
		return nil
	}

	resp := reject(ReasonAlreadyRedeemed)
	resp.LastCheckIn = history.LastEntry()
	return resp
}
