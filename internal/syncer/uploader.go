// Package syncer reconciles the device with the remote server: it drains
// the offline queue upward and refreshes the local snapshot downward. The
// validation path never waits on anything in this package.
package syncer

import (
	"time"

	"gatescan/internal/models"
)

type UploadOutcome int

const (
	// UploadConfirmed: the server applied (or had already applied) the
	// nonce; the request leaves the queue.
	UploadConfirmed UploadOutcome = iota
	// UploadRejected: a final domain rejection; no retry, audit entry.
	UploadRejected
	// UploadTransient: network or server trouble; retry with back-off.
	UploadTransient
	// UploadRetryAfter: the server asked to come back later.
	UploadRetryAfter
)

type UploadResult struct {
	Outcome    UploadOutcome
	Reason     string
	Detail     string
	RetryAfter time.Duration
	Err        error
}

// Uploader pushes one queued redemption to the authoritative server.
type Uploader interface {
	Upload(qc *models.QueuedCheckIn) UploadResult
}
