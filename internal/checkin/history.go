package checkin

import (
	"sort"
	"time"

	"gatescan/internal/models"
)

// HistoryView is the read-only derived view over a ticket's check-in
// activity on one list. It merges already-synced records with not-yet
// uploaded queued requests and de-duplicates by nonce, so an accepted scan
// is counted exactly once whether or not its upload has been confirmed.
type HistoryView struct {
	records []*models.CheckInRecord
	tz      *time.Location
}

func NewHistoryView(records []*models.CheckInRecord, queued []*models.QueuedCheckIn, tz *time.Location) *HistoryView {
	if tz == nil {
		tz = time.Local
	}

	seen := make(map[string]bool)
	merged := make([]*models.CheckInRecord, 0, len(records)+len(queued))
	for _, r := range records {
		if r.Nonce != "" {
			if seen[r.Nonce] {
				continue
			}
			seen[r.Nonce] = true
		}
		merged = append(merged, r)
	}
	for _, q := range queued {
		if seen[q.Nonce] {
			continue
		}
		merged = append(merged, &models.CheckInRecord{
			Secret:    q.Secret,
			ListID:    q.ListID,
			EventSlug: q.EventSlug,
			Direction: q.Direction,
			Datetime:  q.Datetime,
			Nonce:     q.Nonce,
			Source:    models.CheckInSourceLocal,
		})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Datetime.Before(merged[j].Datetime)
	})

	return &HistoryView{records: merged, tz: tz}
}

// All returns the merged records in timestamp order.
func (h *HistoryView) All() []*models.CheckInRecord {
	return h.records
}

// Last returns the most recent record of any direction, or nil.
func (h *HistoryView) Last() *models.CheckInRecord {
	if len(h.records) == 0 {
		return nil
	}
	return h.records[len(h.records)-1]
}

// LastEntry returns the most recent entry record, or nil.
func (h *HistoryView) LastEntry() *models.CheckInRecord {
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].Direction == models.DirectionEntry {
			return h.records[i]
		}
	}
	return nil
}

func (h *HistoryView) EntriesTotal() int {
	n := 0
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry {
			n++
		}
	}
	return n
}

func (h *HistoryView) EntriesToday(now time.Time) int {
	today := now.In(h.tz).Format("2006-01-02")
	n := 0
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry && r.Datetime.In(h.tz).Format("2006-01-02") == today {
			n++
		}
	}
	return n
}

// EntriesDays counts the distinct calendar days with at least one entry.
func (h *HistoryView) EntriesDays() int {
	days := make(map[string]bool)
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry {
			days[r.Datetime.In(h.tz).Format("2006-01-02")] = true
		}
	}
	return len(days)
}

// MinutesSinceFirstEntry returns -1 when there is no entry yet.
func (h *HistoryView) MinutesSinceFirstEntry(now time.Time) int {
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry {
			return int(now.Sub(r.Datetime).Minutes())
		}
	}
	return -1
}

// MinutesSinceLastEntry returns -1 when there is no entry yet.
func (h *HistoryView) MinutesSinceLastEntry(now time.Time) int {
	if last := h.LastEntry(); last != nil {
		return int(now.Sub(last.Datetime).Minutes())
	}
	return -1
}

// EntriesSince counts entries strictly after t.
func (h *HistoryView) EntriesSince(t time.Time) int {
	n := 0
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry && r.Datetime.After(t) {
			n++
		}
	}
	return n
}

// EntriesBefore counts entries strictly before t.
func (h *HistoryView) EntriesBefore(t time.Time) int {
	n := 0
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry && r.Datetime.Before(t) {
			n++
		}
	}
	return n
}

// EntriesDaysSince counts distinct days containing an entry after t.
func (h *HistoryView) EntriesDaysSince(t time.Time) int {
	days := make(map[string]bool)
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry && r.Datetime.After(t) {
			days[r.Datetime.In(h.tz).Format("2006-01-02")] = true
		}
	}
	return len(days)
}

// EntriesDaysBefore counts distinct days containing an entry before t.
func (h *HistoryView) EntriesDaysBefore(t time.Time) int {
	days := make(map[string]bool)
	for _, r := range h.records {
		if r.Direction == models.DirectionEntry && r.Datetime.Before(t) {
			days[r.Datetime.In(h.tz).Format("2006-01-02")] = true
		}
	}
	return len(days)
}
