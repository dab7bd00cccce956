package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Check-in directions.
const (
	DirectionEntry = "entry"
	DirectionExit  = "exit"
)

// Check-in record sources. Server records arrive via sync; local records are
// the optimistic writes made when a scan is accepted offline.
const (
	CheckInSourceServer = "server"
	CheckInSourceLocal  = "local"
)

type CheckInList struct {
	bun.BaseModel `bun:"table:checkin_lists"`

	ID                   int64   `bun:"id,pk" json:"id"`
	EventSlug            string  `bun:"event_slug,notnull" json:"event_slug"`
	Name                 string  `bun:"name" json:"name"`
	AllProducts          bool    `bun:"all_products" json:"all_products"`
	ItemIDs              []int64 `bun:"item_ids,type:text" json:"item_ids"`
	SubEventID           int64   `bun:"subevent_id" json:"subevent_id,omitempty"`
	AllowMultipleEntries bool    `bun:"allow_multiple_entries" json:"allow_multiple_entries"`
	AllowEntryAfterExit  bool    `bun:"allow_entry_after_exit" json:"allow_entry_after_exit"`
	AddonMatch           bool    `bun:"addon_match" json:"addon_match"`
	IncludePending       bool    `bun:"include_pending" json:"include_pending"`
	Rules                string  `bun:"rules" json:"rules,omitempty"`
}

// HasItem reports whether the list's product scope covers the given item.
func (l *CheckInList) HasItem(itemID int64) bool {
	if l.AllProducts {
		return true
	}
	for _, id := range l.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

type CheckInRecord struct {
	bun.BaseModel `bun:"table:checkin_records"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	PositionID int64     `bun:"position_id" json:"position_id,omitempty"`
	Secret     string    `bun:"secret,notnull" json:"secret"`
	ListID     int64     `bun:"list_id,notnull" json:"list_id"`
	EventSlug  string    `bun:"event_slug,notnull" json:"event_slug"`
	Direction  string    `bun:"direction,notnull" json:"direction"`
	Datetime   time.Time `bun:"datetime,notnull" json:"datetime"`
	Nonce      string    `bun:"nonce" json:"nonce,omitempty"`
	Source     string    `bun:"source,notnull" json:"source"`
}
