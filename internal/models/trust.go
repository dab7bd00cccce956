package models

import (
	"github.com/uptrace/bun"
)

type TrustedKey struct {
	bun.BaseModel `bun:"table:trusted_keys"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	EventSlug string `bun:"event_slug,notnull" json:"event_slug"`
	PublicKey string `bun:"public_key,notnull" json:"public_key"` // base64 ed25519
}

type RevokedSecret struct {
	bun.BaseModel `bun:"table:revoked_secrets"`

	ID        int64  `bun:"id,pk" json:"id"`
	EventSlug string `bun:"event_slug,notnull" json:"event_slug"`
	Secret    string `bun:"secret,notnull" json:"secret"`
}

type BlockedSecret struct {
	bun.BaseModel `bun:"table:blocked_secrets"`

	ID        int64  `bun:"id,pk" json:"id"`
	EventSlug string `bun:"event_slug,notnull" json:"event_slug"`
	Secret    string `bun:"secret,notnull" json:"secret"`
	Blocked   bool   `bun:"blocked" json:"blocked"`
}
