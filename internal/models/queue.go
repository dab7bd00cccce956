package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QueuedCheckIn is one accepted scan waiting for upload. The nonce is the
// idempotency key: the server applies it at most once no matter how often
// the upload is retried.
type QueuedCheckIn struct {
	bun.BaseModel `bun:"table:queued_checkins"`

	Nonce          string           `bun:"nonce,pk" json:"nonce"`
	Secret         string           `bun:"secret,notnull" json:"secret"`
	ListID         int64            `bun:"list_id,notnull" json:"list_id"`
	EventSlug      string           `bun:"event_slug,notnull" json:"event_slug"`
	Direction      string           `bun:"direction,notnull" json:"direction"`
	Force          bool             `bun:"force" json:"force"`
	IgnoreUnpaid   bool             `bun:"ignore_unpaid" json:"ignore_unpaid"`
	Datetime       time.Time        `bun:"datetime,notnull" json:"datetime"`
	Answers        map[int64]string `bun:"answers,type:text" json:"answers,omitempty"`
	FailedAttempts int              `bun:"failed_attempts" json:"failed_attempts,omitempty"`
}

// AuditEntry records a queued check-in that the server finally rejected.
// The request is removed from the queue but the rejection stays visible.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_entries"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Nonce     string    `bun:"nonce,notnull" json:"nonce"`
	EventSlug string    `bun:"event_slug,notnull" json:"event_slug"`
	ListID    int64     `bun:"list_id,notnull" json:"list_id"`
	Reason    string    `bun:"reason" json:"reason"`
	Detail    string    `bun:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
