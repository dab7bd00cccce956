package queue_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"gatescan/internal/models"
	"gatescan/internal/queue"
)

func setupTestDB(t *testing.T) *queue.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	err = bunDB.ResetModel(context.Background(),
		(*models.QueuedCheckIn)(nil),
		(*models.AuditEntry)(nil),
	)
	require.NoError(t, err)

	return &queue.DB{Bun: bunDB}
}

func sampleCheckIn(nonce string, at time.Time) models.QueuedCheckIn {
	return models.QueuedCheckIn{
		Nonce:     nonce,
		Secret:    "kfndgffgnlhp",
		ListID:    1,
		EventSlug: "democon",
		Direction: models.DirectionEntry,
		Datetime:  at,
		Answers:   map[int64]string{1: "Jane"},
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	at := time.Now().Round(time.Second)

	require.NoError(t, db.Enqueue(sampleCheckIn("n1", at)))

	// The retry arrives with a different timestamp but the same nonce; only
	// the first write survives.
	retry := sampleCheckIn("n1", at.Add(time.Minute))
	require.NoError(t, db.Enqueue(retry))

	depth, err := db.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	next, err := db.NextUnsent()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, next.Datetime.Equal(at))
}

func TestNextUnsentIsOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	at := time.Now().Round(time.Second)

	require.NoError(t, db.Enqueue(sampleCheckIn("n2", at.Add(time.Minute))))
	require.NoError(t, db.Enqueue(sampleCheckIn("n1", at)))

	next, err := db.NextUnsent()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "n1", next.Nonce)

	require.NoError(t, db.Delete("n1"))
	next, err = db.NextUnsent()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "n2", next.Nonce)

	require.NoError(t, db.Delete("n2"))
	next, err = db.NextUnsent()
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueuedCheckInsFiltersBySecretAndList(t *testing.T) {
	db := setupTestDB(t)
	at := time.Now().Round(time.Second)

	require.NoError(t, db.Enqueue(sampleCheckIn("n1", at)))

	other := sampleCheckIn("n2", at)
	other.Secret = "othersecret"
	require.NoError(t, db.Enqueue(other))

	otherList := sampleCheckIn("n3", at)
	otherList.ListID = 2
	require.NoError(t, db.Enqueue(otherList))

	queued, err := db.QueuedCheckIns("kfndgffgnlhp", "democon", 1)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "n1", queued[0].Nonce)
	assert.Equal(t, "Jane", queued[0].Answers[1])
}

func TestMarkFailedBumpsCounter(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Enqueue(sampleCheckIn("n1", time.Now().Round(time.Second))))

	require.NoError(t, db.MarkFailed("n1"))
	require.NoError(t, db.MarkFailed("n1"))

	next, err := db.NextUnsent()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.FailedAttempts)
}

func TestDeleteSurvivesUnknownNonce(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Delete("never-seen"))
}

func TestAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().Round(time.Second)

	require.NoError(t, db.InsertAudit(models.AuditEntry{
		Nonce: "n1", EventSlug: "democon", ListID: 1,
		Reason: "already_redeemed", CreatedAt: base,
	}))
	require.NoError(t, db.InsertAudit(models.AuditEntry{
		Nonce: "n2", EventSlug: "democon", ListID: 1,
		Reason: "invalid", Detail: "signature mismatch", CreatedAt: base.Add(time.Minute),
	}))

	entries, err := db.AuditEntries("democon")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "n2", entries[0].Nonce, "newest first")
	assert.Equal(t, "signature mismatch", entries[0].Detail)

	entries, err = db.AuditEntries("otherevent")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
