package models

import (
	"github.com/uptrace/bun"
)

type Item struct {
	bun.BaseModel `bun:"table:items"`

	ID               int64  `bun:"id,pk" json:"id"`
	EventSlug        string `bun:"event_slug,notnull" json:"event_slug"`
	Name             string `bun:"name" json:"name"`
	Admission        bool   `bun:"admission" json:"admission"`
	CheckInAttention bool   `bun:"checkin_attention" json:"checkin_attention"`
	Position         int    `bun:"position" json:"position"`

	Variations []*ItemVariation `bun:"rel:has-many,join:id=item_id" json:"variations,omitempty"`
}

type ItemVariation struct {
	bun.BaseModel `bun:"table:item_variations"`

	ID               int64  `bun:"id,pk" json:"id"`
	ItemID           int64  `bun:"item_id,notnull" json:"item_id"`
	Name             string `bun:"name" json:"name"`
	CheckInAttention bool   `bun:"checkin_attention" json:"checkin_attention"`
	Position         int    `bun:"position" json:"position"`
}

// Variation returns the variation with the given ID, or nil.
func (i *Item) Variation(id int64) *ItemVariation {
	for _, v := range i.Variations {
		if v.ID == id {
			return v
		}
	}
	return nil
}
