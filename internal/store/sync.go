package store

import (
	"context"

	"github.com/uptrace/bun"

	"gatescan/internal/models"
)

// ReplaceTrust swaps the event's trusted keys, revoked secrets and blocked
// secrets in one transaction. Partial merges would open a stale-trust window
// where a revoked ticket still verifies, so the three sets always move
// together.
func (d *DB) ReplaceTrust(event string, keys []*models.TrustedKey, revoked []*models.RevokedSecret, blocked []*models.BlockedSecret) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.TrustedKey)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.RevokedSecret)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.BlockedSecret)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if len(keys) > 0 {
			if _, err := tx.NewInsert().Model(&keys).Exec(ctx); err != nil {
				return err
			}
		}
		if len(revoked) > 0 {
			if _, err := tx.NewInsert().Model(&revoked).Exec(ctx); err != nil {
				return err
			}
		}
		if len(blocked) > 0 {
			if _, err := tx.NewInsert().Model(&blocked).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertEvent stores or refreshes the event header row.
func (d *DB) UpsertEvent(event models.Event) error {
	_, err := d.Bun.NewInsert().
		Model(&event).
		On("CONFLICT (slug) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("timezone = EXCLUDED.timezone").
		Set("date_from = EXCLUDED.date_from").
		Set("date_to = EXCLUDED.date_to").
		Set("date_admission = EXCLUDED.date_admission").
		Set("has_subevents = EXCLUDED.has_subevents").
		Exec(context.Background())
	return err
}

// ReplaceSubEvents refreshes the event's subevents wholesale.
func (d *DB) ReplaceSubEvents(event string, subs []*models.SubEvent) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.SubEvent)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if len(subs) > 0 {
			if _, err := tx.NewInsert().Model(&subs).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceItems refreshes the event's product catalog wholesale.
func (d *DB) ReplaceItems(event string, items []*models.Item) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.ItemVariation)(nil)).
			Where("item_id IN (SELECT id FROM items WHERE event_slug = ?)", event).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Item)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		for _, item := range items {
			if len(item.Variations) == 0 {
				continue
			}
			if _, err := tx.NewInsert().Model(&item.Variations).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceQuestions refreshes the event's check-in questions wholesale.
func (d *DB) ReplaceQuestions(event string, questions []*models.Question) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Question)(nil)).Where("event_slug = ?", event).Exec(ctx); err != nil {
			return err
		}
		if len(questions) > 0 {
			if _, err := tx.NewInsert().Model(&questions).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertCheckInList stores or refreshes one check-in list.
func (d *DB) UpsertCheckInList(list models.CheckInList) error {
	_, err := d.Bun.NewInsert().
		Model(&list).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("all_products = EXCLUDED.all_products").
		Set("item_ids = EXCLUDED.item_ids").
		Set("subevent_id = EXCLUDED.subevent_id").
		Set("allow_multiple_entries = EXCLUDED.allow_multiple_entries").
		Set("allow_entry_after_exit = EXCLUDED.allow_entry_after_exit").
		Set("addon_match = EXCLUDED.addon_match").
		Set("include_pending = EXCLUDED.include_pending").
		Set("rules = EXCLUDED.rules").
		Exec(context.Background())
	return err
}

// UpsertOrder stores one order with its positions and answers, replacing any
// previous snapshot of the order. Server check-in records for the order's
// positions replace local optimistic ones by nonce (last observed wins).
func (d *DB) UpsertOrder(order models.Order) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(&order).
			On("CONFLICT (code) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("valid_if_pending = EXCLUDED.valid_if_pending").
			Set("requires_approval = EXCLUDED.requires_approval").
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.Answer)(nil)).
			Where("position_id IN (SELECT id FROM order_positions WHERE order_code = ?)", order.Code).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.CheckInRecord)(nil)).
			Where("source = ?", models.CheckInSourceServer).
			Where("position_id IN (SELECT id FROM order_positions WHERE order_code = ?)", order.Code).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.OrderPosition)(nil)).
			Where("order_code = ?", order.Code).
			Exec(ctx); err != nil {
			return err
		}

		for _, pos := range order.Positions {
			pos.OrderCode = order.Code
			pos.EventSlug = order.EventSlug
			if _, err := tx.NewInsert().Model(pos).Exec(ctx); err != nil {
				return err
			}
			for _, ans := range pos.Answers {
				ans.PositionID = pos.ID
				if _, err := tx.NewInsert().Model(ans).Exec(ctx); err != nil {
					return err
				}
			}
			for _, rec := range pos.CheckIns {
				rec.PositionID = pos.ID
				rec.Secret = pos.Secret
				rec.EventSlug = order.EventSlug
				rec.Source = models.CheckInSourceServer
				if rec.Nonce != "" {
					if _, err := tx.NewDelete().
						Model((*models.CheckInRecord)(nil)).
						Where("nonce = ? AND source = ?", rec.Nonce, models.CheckInSourceLocal).
						Exec(ctx); err != nil {
						return err
					}
				}
				if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
