package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses as delivered by the server sync.
const (
	OrderStatusPending  = "n"
	OrderStatusPaid     = "p"
	OrderStatusExpired  = "e"
	OrderStatusCanceled = "c"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	Code             string `bun:"code,pk" json:"code"`
	EventSlug        string `bun:"event_slug,notnull" json:"event_slug"`
	Status           string `bun:"status,notnull" json:"status"`
	ValidIfPending   bool   `bun:"valid_if_pending" json:"valid_if_pending"`
	RequiresApproval bool   `bun:"requires_approval" json:"requires_approval"`

	Positions []*OrderPosition `bun:"rel:has-many,join:code=order_code" json:"positions,omitempty"`
}

type OrderPosition struct {
	bun.BaseModel `bun:"table:order_positions"`

	ID           int64      `bun:"id,pk" json:"id"`
	OrderCode    string     `bun:"order_code,notnull" json:"order_code"`
	EventSlug    string     `bun:"event_slug,notnull" json:"event_slug"`
	ItemID       int64      `bun:"item_id,notnull" json:"item_id"`
	VariationID  int64      `bun:"variation_id" json:"variation_id,omitempty"`
	SubEventID   int64      `bun:"subevent_id" json:"subevent_id,omitempty"`
	Secret       string     `bun:"secret,notnull" json:"secret"`
	Blocked      bool       `bun:"blocked" json:"blocked"`
	ValidFrom    *time.Time `bun:"valid_from,nullzero" json:"valid_from,omitempty"`
	ValidUntil   *time.Time `bun:"valid_until,nullzero" json:"valid_until,omitempty"`
	AddonToID    int64      `bun:"addon_to_id" json:"addon_to_id,omitempty"`
	AttendeeName string     `bun:"attendee_name" json:"attendee_name,omitempty"`

	Order    *Order           `bun:"rel:belongs-to,join:order_code=code" json:"-"`
	Answers  []*Answer        `bun:"rel:has-many,join:id=position_id" json:"answers,omitempty"`
	CheckIns []*CheckInRecord `bun:"rel:has-many,join:id=position_id" json:"checkins,omitempty"`
}

// AnswerFor returns the stored answer value for a question, if any.
func (p *OrderPosition) AnswerFor(questionID int64) (string, bool) {
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			return a.Value, true
		}
	}
	return "", false
}
