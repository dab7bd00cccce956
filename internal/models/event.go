package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	Slug          string     `bun:"slug,pk" json:"slug"`
	Name          string     `bun:"name,notnull" json:"name"`
	Timezone      string     `bun:"timezone" json:"timezone"`
	DateFrom      *time.Time `bun:"date_from,nullzero" json:"date_from,omitempty"`
	DateTo        *time.Time `bun:"date_to,nullzero" json:"date_to,omitempty"`
	DateAdmission *time.Time `bun:"date_admission,nullzero" json:"date_admission,omitempty"`
	HasSubEvents  bool       `bun:"has_subevents" json:"has_subevents"`
}

type SubEvent struct {
	bun.BaseModel `bun:"table:subevents"`

	ID            int64      `bun:"id,pk" json:"id"`
	EventSlug     string     `bun:"event_slug,notnull" json:"event_slug"`
	Name          string     `bun:"name" json:"name"`
	DateFrom      *time.Time `bun:"date_from,nullzero" json:"date_from,omitempty"`
	DateTo        *time.Time `bun:"date_to,nullzero" json:"date_to,omitempty"`
	DateAdmission *time.Time `bun:"date_admission,nullzero" json:"date_admission,omitempty"`
}
