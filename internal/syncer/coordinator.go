package syncer

import (
	"context"
	"fmt"
	"time"

	"gatescan/internal/logger"
	"gatescan/internal/models"
)

// QueueStore is the queue slice the coordinator drains.
type QueueStore interface {
	NextUnsent() (*models.QueuedCheckIn, error)
	Delete(nonce string) error
	MarkFailed(nonce string) error
	InsertAudit(entry models.AuditEntry) error
}

// RecordStore retracts optimistic check-in records. The server never emits
// a rejected nonce, so without this the local view would keep counting an
// entry the server refused.
type RecordStore interface {
	DeleteLocalCheckInRecord(nonce string) error
}

// Coordinator drains the offline queue with exactly one background worker.
// Upload order is oldest-first; transient failures back off exponentially
// and a server retry-after defers the next drain attempt.
type Coordinator struct {
	Queue      QueueStore
	Records    RecordStore
	Uploader   Uploader
	Log        *logger.Logger
	Interval   time.Duration
	MaxBackoff time.Duration
}

// Run blocks until ctx is canceled. An in-flight upload abandoned here is
// resumed from durable state on the next launch; the nonce keeps the retry
// safe.
func (c *Coordinator) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	for {
		wait := c.Drain()
		if wait < interval {
			wait = interval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Drain uploads queued requests until the queue is empty or an upload asks
// for a pause. It returns how long to wait before the next attempt (zero
// when the queue was drained cleanly).
func (c *Coordinator) Drain() time.Duration {
	for {
		qc, err := c.Queue.NextUnsent()
		if err != nil {
			if c.Log != nil {
				c.Log.Error("SYNC", fmt.Sprintf("queue read failed: %v", err))
			}
			return c.backoff(1)
		}
		if qc == nil {
			return 0
		}

		result := c.Uploader.Upload(qc)
		switch result.Outcome {
		case UploadConfirmed:
			if err := c.Queue.Delete(qc.Nonce); err != nil {
				if c.Log != nil {
					c.Log.Error("SYNC", fmt.Sprintf("delete %s failed: %v", qc.Nonce, err))
				}
				return c.backoff(1)
			}
			if c.Log != nil {
				c.Log.LogQueue("confirmed", qc.Nonce, "upload applied")
			}

		case UploadRejected:
			entry := models.AuditEntry{
				Nonce:     qc.Nonce,
				EventSlug: qc.EventSlug,
				ListID:    qc.ListID,
				Reason:    result.Reason,
				Detail:    result.Detail,
				CreatedAt: time.Now(),
			}
			if err := c.Queue.InsertAudit(entry); err != nil {
				if c.Log != nil {
					c.Log.Error("SYNC", fmt.Sprintf("audit %s failed: %v", qc.Nonce, err))
				}
				return c.backoff(1)
			}
			if c.Records != nil {
				if err := c.Records.DeleteLocalCheckInRecord(qc.Nonce); err != nil {
					if c.Log != nil {
						c.Log.Error("SYNC", fmt.Sprintf("retract record %s failed: %v", qc.Nonce, err))
					}
					return c.backoff(1)
				}
			}
			if err := c.Queue.Delete(qc.Nonce); err != nil {
				return c.backoff(1)
			}
			if c.Log != nil {
				c.Log.LogQueue("rejected", qc.Nonce, result.Reason)
			}

		case UploadRetryAfter:
			if c.Log != nil {
				c.Log.LogSync("retry-after", fmt.Sprintf("server asked for %s", result.RetryAfter))
			}
			return result.RetryAfter

		default: // UploadTransient
			_ = c.Queue.MarkFailed(qc.Nonce)
			if c.Log != nil {
				c.Log.LogSync("transient", fmt.Sprintf("%s: %v", qc.Nonce, result.Err))
			}
			return c.backoff(qc.FailedAttempts + 1)
		}
	}
}

func (c *Coordinator) backoff(attempts int) time.Duration {
	base := c.Interval
	if base <= 0 {
		base = 10 * time.Second
	}
	max := c.MaxBackoff
	if max <= 0 {
		max = 5 * time.Minute
	}
	wait := base
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}
