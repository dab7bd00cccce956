package store

import (
	"context"

	"github.com/uptrace/bun"

	"gatescan/internal/models"
)

// DB is the bun-backed repository over the device's local sqlite cache.
// Validation reads only ever touch this cache, never the network.
type DB struct {
	Bun *bun.DB
}

// ---------------- TRUST SETS ----------------

func (d *DB) ValidKeys(event string) ([]*models.TrustedKey, error) {
	var keys []*models.TrustedKey
	err := d.Bun.NewSelect().
		Model(&keys).
		Where("event_slug = ?", event).
		Order("id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (d *DB) RevokedSecrets(event string) ([]*models.RevokedSecret, error) {
	var revoked []*models.RevokedSecret
	err := d.Bun.NewSelect().
		Model(&revoked).
		Where("event_slug = ?", event).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

func (d *DB) BlockedSecrets(event string) ([]*models.BlockedSecret, error) {
	var blocked []*models.BlockedSecret
	err := d.Bun.NewSelect().
		Model(&blocked).
		Where("event_slug = ?", event).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return blocked, nil
}

// ---------------- CATALOG ----------------

func (d *DB) EventBySlug(slug string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("slug = ?", slug).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) SubEventByID(id int64, event string) (*models.SubEvent, error) {
	var sub models.SubEvent
	err := d.Bun.NewSelect().
		Model(&sub).
		Where("id = ? AND event_slug = ?", id, event).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (d *DB) ItemByID(id int64, event string) (*models.Item, error) {
	var item models.Item
	err := d.Bun.NewSelect().
		Model(&item).
		Relation("Variations").
		Where("item.id = ? AND item.event_slug = ?", id, event).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Questions returns all check-in questions of the event ordered by position.
// Filtering by item happens in the checker, which knows the matched item.
func (d *DB) Questions(event string) ([]*models.Question, error) {
	var questions []*models.Question
	err := d.Bun.NewSelect().
		Model(&questions).
		Where("event_slug = ?", event).
		Order("position ASC", "id ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (d *DB) CheckInListByID(id int64, event string) (*models.CheckInList, error) {
	var list models.CheckInList
	err := d.Bun.NewSelect().
		Model(&list).
		Where("id = ? AND event_slug = ?", id, event).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// ---------------- POSITIONS ----------------

func (d *DB) PositionsBySecret(secret, event string) ([]*models.OrderPosition, error) {
	var positions []*models.OrderPosition
	err := d.Bun.NewSelect().
		Model(&positions).
		Relation("Order").
		Relation("Answers").
		Relation("CheckIns").
		Where("order_position.secret = ? AND order_position.event_slug = ?", secret, event).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// AddonPositions returns the positions that name the given position as their
// addon parent, used for addon-match candidate selection.
func (d *DB) AddonPositions(parentID int64) ([]*models.OrderPosition, error) {
	var positions []*models.OrderPosition
	err := d.Bun.NewSelect().
		Model(&positions).
		Relation("Order").
		Relation("Answers").
		Relation("CheckIns").
		Where("order_position.addon_to_id = ?", parentID).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// ---------------- CHECK-IN RECORDS ----------------

func (d *DB) CheckInRecords(secret string, listID int64) ([]*models.CheckInRecord, error) {
	var records []*models.CheckInRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("secret = ? AND list_id = ?", secret, listID).
		Order("datetime ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return records, nil
}

// InsertCheckInRecord writes a record unless one carrying the same nonce
// already exists, so a re-delivered acceptance stays single-counted.
func (d *DB) InsertCheckInRecord(record models.CheckInRecord) error {
	ctx := context.Background()
	if record.Nonce != "" {
		exists, err := d.Bun.NewSelect().
			Model((*models.CheckInRecord)(nil)).
			Where("nonce = ?", record.Nonce).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}
	_, err := d.Bun.NewInsert().
		Model(&record).
		Exec(ctx)
	return err
}

// DeleteLocalCheckInRecord drops the optimistic record for a nonce the
// server finally rejected. The synced order data holds the remaining truth.
func (d *DB) DeleteLocalCheckInRecord(nonce string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.CheckInRecord)(nil)).
		Where("nonce = ? AND source = ?", nonce, models.CheckInSourceLocal).
		Exec(context.Background())
	return err
}
