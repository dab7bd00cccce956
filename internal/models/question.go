package models

import (
	"github.com/uptrace/bun"
)

// Question types as delivered by the server sync.
const (
	QuestionTypeBoolean = "B"
	QuestionTypeText    = "T"
	QuestionTypeChoice  = "C"
	QuestionTypeNumber  = "N"
)

type Question struct {
	bun.BaseModel `bun:"table:questions"`

	ID               int64   `bun:"id,pk" json:"id"`
	EventSlug        string  `bun:"event_slug,notnull" json:"event_slug"`
	Question         string  `bun:"question" json:"question"`
	Type             string  `bun:"type,notnull" json:"type"`
	Required         bool    `bun:"required" json:"required"`
	AskDuringCheckIn bool    `bun:"ask_during_checkin" json:"ask_during_checkin"`
	Position         int     `bun:"position" json:"position"`
	ItemIDs          []int64 `bun:"item_ids,type:text" json:"item_ids"`
}

// AppliesTo reports whether the question is attached to the given item.
func (q *Question) AppliesTo(itemID int64) bool {
	for _, id := range q.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

type Answer struct {
	bun.BaseModel `bun:"table:answers"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	PositionID int64  `bun:"position_id,notnull" json:"position_id,omitempty"`
	QuestionID int64  `bun:"question_id,notnull" json:"question_id"`
	Value      string `bun:"value" json:"value"`
}
