package store_test

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
	"gatescan/internal/store"
)

const testEvent = "democon"

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	err = bunDB.ResetModel(context.Background(),
		(*models.Event)(nil),
		(*models.SubEvent)(nil),
		(*models.Item)(nil),
		(*models.ItemVariation)(nil),
		(*models.Order)(nil),
		(*models.OrderPosition)(nil),
		(*models.Question)(nil),
		(*models.Answer)(nil),
		(*models.CheckInList)(nil),
		(*models.CheckInRecord)(nil),
		(*models.TrustedKey)(nil),
		(*models.RevokedSecret)(nil),
		(*models.BlockedSecret)(nil),
	)
	require.NoError(t, err)

	return &store.DB{Bun: bunDB}
}

func TestUpsertEventAndLookup(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertEvent(models.Event{Slug: testEvent, Name: "DemoCon", Timezone: "Europe/Berlin"}))

	ev, err := db.EventBySlug(testEvent)
	require.NoError(t, err)
	assert.Equal(t, "DemoCon", ev.Name)
	assert.Equal(t, "Europe/Berlin", ev.Timezone)

	// A refresh overwrites in place instead of duplicating the row.
	require.NoError(t, db.UpsertEvent(models.Event{Slug: testEvent, Name: "DemoCon 2020", Timezone: "UTC"}))
	ev, err = db.EventBySlug(testEvent)
	require.NoError(t, err)
	assert.Equal(t, "DemoCon 2020", ev.Name)
	assert.Equal(t, "UTC", ev.Timezone)
}

func TestReplaceTrustLeavesNoStaleRows(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.ReplaceTrust(testEvent,
		[]*models.TrustedKey{{EventSlug: testEvent, PublicKey: "key-one"}},
		[]*models.RevokedSecret{{ID: 1, EventSlug: testEvent, Secret: "old-revoked"}},
		nil,
	))

	// The next sync no longer carries the old revocation; it must vanish.
	require.NoError(t, db.ReplaceTrust(testEvent,
		[]*models.TrustedKey{
			{EventSlug: testEvent, PublicKey: "key-two"},
			{EventSlug: testEvent, PublicKey: "key-three"},
		},
		nil,
		[]*models.BlockedSecret{{ID: 1, EventSlug: testEvent, Secret: "bad", Blocked: true}},
	))

	keys, err := db.ValidKeys(testEvent)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "key-two", keys[0].PublicKey)

	revoked, err := db.RevokedSecrets(testEvent)
	require.NoError(t, err)
	assert.Empty(t, revoked)

	blocked, err := db.BlockedSecrets(testEvent)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.True(t, blocked[0].Blocked)
}

func TestReplaceTrustIsScopedToEvent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.ReplaceTrust("otherevent",
		[]*models.TrustedKey{{EventSlug: "otherevent", PublicKey: "other-key"}}, nil, nil))
	require.NoError(t, db.ReplaceTrust(testEvent, nil, nil, nil))

	keys, err := db.ValidKeys("otherevent")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestReplaceItemsWithVariations(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.ReplaceItems(testEvent, []*models.Item{
		{ID: 3, EventSlug: testEvent, Name: "Full ticket", Admission: true,
			Variations: []*models.ItemVariation{
				{ID: 12, ItemID: 3, Name: "Student"},
				{ID: 13, ItemID: 3, Name: "Regular", CheckInAttention: true},
			}},
	}))

	item, err := db.ItemByID(3, testEvent)
	require.NoError(t, err)
	require.Len(t, item.Variations, 2)
	assert.True(t, item.Variation(13).CheckInAttention)

	// A later catalog drops one variation; the stale row must not survive.
	require.NoError(t, db.ReplaceItems(testEvent, []*models.Item{
		{ID: 3, EventSlug: testEvent, Name: "Full ticket", Admission: true,
			Variations: []*models.ItemVariation{{ID: 12, ItemID: 3, Name: "Student"}}},
	}))
	item, err = db.ItemByID(3, testEvent)
	require.NoError(t, err)
	require.Len(t, item.Variations, 1)
	assert.Nil(t, item.Variation(13))
}

func TestQuestionsOrderedByPosition(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.ReplaceQuestions(testEvent, []*models.Question{
		{ID: 2, EventSlug: testEvent, Question: "Shirt size", Type: models.QuestionTypeChoice, Position: 2, ItemIDs: []int64{3}},
		{ID: 1, EventSlug: testEvent, Question: "Badge name", Type: models.QuestionTypeText, Position: 1, ItemIDs: []int64{3}},
	}))

	questions, err := db.Questions(testEvent)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, int64(1), questions[0].ID)
	assert.Equal(t, []int64{3}, questions[0].ItemIDs)
}

func TestUpsertCheckInListRefreshesRules(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertCheckInList(models.CheckInList{
		ID: 1, EventSlug: testEvent, Name: "Main", AllProducts: true,
	}))
	require.NoError(t, db.UpsertCheckInList(models.CheckInList{
		ID: 1, EventSlug: testEvent, Name: "Main", AllProducts: false,
		ItemIDs: []int64{3}, AllowEntryAfterExit: true, Rules: `{"and": [true]}`,
	}))

	list, err := db.CheckInListByID(1, testEvent)
	require.NoError(t, err)
	assert.False(t, list.AllProducts)
	assert.Equal(t, []int64{3}, list.ItemIDs)
	assert.True(t, list.AllowEntryAfterExit)
	assert.Equal(t, `{"and": [true]}`, list.Rules)
}

func TestUpsertOrderAndPositionLookup(t *testing.T) {
	db := setupTestDB(t)

	order := models.Order{
		Code: "ABC12", EventSlug: testEvent, Status: models.OrderStatusPaid,
		Positions: []*models.OrderPosition{
			{ID: 100, ItemID: 3, Secret: "s-parent",
				Answers: []*models.Answer{{QuestionID: 1, Value: "Jane"}}},
			{ID: 101, ItemID: 9, Secret: "s-addon", AddonToID: 100},
		},
	}
	require.NoError(t, db.UpsertOrder(order))

	positions, err := db.PositionsBySecret("s-parent", testEvent)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	require.NotNil(t, pos.Order)
	assert.Equal(t, models.OrderStatusPaid, pos.Order.Status)
	value, ok := pos.AnswerFor(1)
	assert.True(t, ok)
	assert.Equal(t, "Jane", value)

	addons, err := db.AddonPositions(100)
	require.NoError(t, err)
	require.Len(t, addons, 1)
	assert.Equal(t, "s-addon", addons[0].Secret)

	// A paid order later turns canceled; the snapshot follows.
	order.Status = models.OrderStatusCanceled
	require.NoError(t, db.UpsertOrder(order))
	positions, err = db.PositionsBySecret("s-parent", testEvent)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, models.OrderStatusCanceled, positions[0].Order.Status)
}

func TestPositionsBySecretScopedToEvent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertOrder(models.Order{
		Code: "ABC12", EventSlug: testEvent, Status: models.OrderStatusPaid,
		Positions: []*models.OrderPosition{{ID: 100, ItemID: 3, Secret: "s1"}},
	}))

	positions, err := db.PositionsBySecret("s1", "otherevent")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestUpsertOrderReconcilesLocalRecordByNonce(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertOrder(models.Order{
		Code: "ABC12", EventSlug: testEvent, Status: models.OrderStatusPaid,
		Positions: []*models.OrderPosition{{ID: 100, ItemID: 3, Secret: "s1"}},
	}))

	// The device accepted a scan offline and wrote the optimistic record.
	at := time.Now().Round(time.Second)
	require.NoError(t, db.InsertCheckInRecord(models.CheckInRecord{
		PositionID: 100, Secret: "s1", ListID: 1, EventSlug: testEvent,
		Direction: models.DirectionEntry, Datetime: at,
		Nonce: "n1", Source: models.CheckInSourceLocal,
	}))

	// The next order snapshot carries the same check-in as confirmed by the
	// server. The local row gives way; the scan is still counted once.
	require.NoError(t, db.UpsertOrder(models.Order{
		Code: "ABC12", EventSlug: testEvent, Status: models.OrderStatusPaid,
		Positions: []*models.OrderPosition{
			{ID: 100, ItemID: 3, Secret: "s1",
				CheckIns: []*models.CheckInRecord{
					{ListID: 1, Direction: models.DirectionEntry, Datetime: at, Nonce: "n1"},
				}},
		},
	}))

	records, err := db.CheckInRecords("s1", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.CheckInSourceServer, records[0].Source)
	assert.Equal(t, "n1", records[0].Nonce)
}

func TestInsertCheckInRecordIgnoresRepeatedNonce(t *testing.T) {
	db := setupTestDB(t)
	at := time.Now().Round(time.Second)

	rec := models.CheckInRecord{
		PositionID: 100, Secret: "s1", ListID: 1, EventSlug: testEvent,
		Direction: models.DirectionEntry, Datetime: at,
		Nonce: "n1", Source: models.CheckInSourceLocal,
	}
	require.NoError(t, db.InsertCheckInRecord(rec))

	// The same acceptance delivered again must not grow the history.
	rec.Datetime = at.Add(time.Minute)
	require.NoError(t, db.InsertCheckInRecord(rec))

	records, err := db.CheckInRecords("s1", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Datetime.Equal(at))

	// Records without a nonce are independent scans and always land.
	noNonce := models.CheckInRecord{
		Secret: "s1", ListID: 1, EventSlug: testEvent,
		Direction: models.DirectionEntry, Datetime: at,
		Source: models.CheckInSourceServer,
	}
	require.NoError(t, db.InsertCheckInRecord(noNonce))
	require.NoError(t, db.InsertCheckInRecord(noNonce))
	records, err = db.CheckInRecords("s1", 1)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDeleteLocalCheckInRecord(t *testing.T) {
	db := setupTestDB(t)
	at := time.Now().Round(time.Second)

	require.NoError(t, db.InsertCheckInRecord(models.CheckInRecord{
		Secret: "s1", ListID: 1, EventSlug: testEvent,
		Direction: models.DirectionEntry, Datetime: at,
		Nonce: "n1", Source: models.CheckInSourceLocal,
	}))
	require.NoError(t, db.InsertCheckInRecord(models.CheckInRecord{
		Secret: "s1", ListID: 1, EventSlug: testEvent,
		Direction: models.DirectionEntry, Datetime: at,
		Nonce: "n2", Source: models.CheckInSourceServer,
	}))

	require.NoError(t, db.DeleteLocalCheckInRecord("n1"))
	// Server-sourced records are never retracted locally.
	require.NoError(t, db.DeleteLocalCheckInRecord("n2"))

	records, err := db.CheckInRecords("s1", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "n2", records[0].Nonce)
}

func TestSubEventReplaceAndLookup(t *testing.T) {
	db := setupTestDB(t)

	from := time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.ReplaceSubEvents(testEvent, []*models.SubEvent{
		{ID: 5, EventSlug: testEvent, Name: "Day 2", DateFrom: &from},
	}))

	sub, err := db.SubEventByID(5, testEvent)
	require.NoError(t, err)
	assert.Equal(t, "Day 2", sub.Name)
	require.NotNil(t, sub.DateFrom)

	require.NoError(t, db.ReplaceSubEvents(testEvent, nil))
	_, err = db.SubEventByID(5, testEvent)
	assert.Error(t, err)
}
