package queue

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"gatescan/internal/models"
)

// DB is the durable offline queue. Rows survive crashes and indefinite
// disconnection; the nonce primary key makes enqueue and upload idempotent.
type DB struct {
	Bun *bun.DB
}

// Enqueue persists one redemption request. Re-enqueueing the same nonce is
// a no-op, so a retried acceptance cannot produce a second request.
func (d *DB) Enqueue(qc models.QueuedCheckIn) error {
	_, err := d.Bun.NewInsert().
		Model(&qc).
		On("CONFLICT (nonce) DO NOTHING").
		Exec(context.Background())
	return err
}

// QueuedCheckIns returns the pending requests for one secret and list, the
// not-yet-uploaded half of the history view.
func (d *DB) QueuedCheckIns(secret, event string, listID int64) ([]*models.QueuedCheckIn, error) {
	var queued []*models.QueuedCheckIn
	err := d.Bun.NewSelect().
		Model(&queued).
		Where("secret = ? AND event_slug = ? AND list_id = ?", secret, event, listID).
		Order("datetime ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return queued, nil
}

// NextUnsent returns the oldest pending request, or nil when the queue is
// drained.
func (d *DB) NextUnsent() (*models.QueuedCheckIn, error) {
	var queued []*models.QueuedCheckIn
	err := d.Bun.NewSelect().
		Model(&queued).
		Order("datetime ASC").
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}
	return queued[0], nil
}

// Delete removes a request once the server has confirmed it.
func (d *DB) Delete(nonce string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.QueuedCheckIn)(nil)).
		Where("nonce = ?", nonce).
		Exec(context.Background())
	return err
}

// MarkFailed bumps the transient failure counter of a request.
func (d *DB) MarkFailed(nonce string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.QueuedCheckIn)(nil)).
		Set("failed_attempts = failed_attempts + 1").
		Where("nonce = ?", nonce).
		Exec(context.Background())
	return err
}

// Depth reports how many requests are waiting for upload.
func (d *DB) Depth() (int, error) {
	return d.Bun.NewSelect().
		Model((*models.QueuedCheckIn)(nil)).
		Count(context.Background())
}

// InsertAudit records a terminal upload failure.
func (d *DB) InsertAudit(entry models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().
		Model(&entry).
		Exec(context.Background())
	return err
}

// AuditEntries lists recorded terminal failures, newest first.
func (d *DB) AuditEntries(event string) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("event_slug = ?", event).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}
