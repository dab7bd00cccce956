package syncer

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gatescan/internal/models"
)

// SnapshotStore is the write side of the local cache the downloader fills.
type SnapshotStore interface {
	UpsertEvent(event models.Event) error
	ReplaceSubEvents(event string, subs []*models.SubEvent) error
	ReplaceItems(event string, items []*models.Item) error
	ReplaceQuestions(event string, questions []*models.Question) error
	UpsertCheckInList(list models.CheckInList) error
	UpsertOrder(order models.Order) error
	ReplaceTrust(event string, keys []*models.TrustedKey, revoked []*models.RevokedSecret, blocked []*models.BlockedSecret) error
}

// Snapshot is the server's full event export for one device.
type Snapshot struct {
	Event          models.Event            `json:"event"`
	SubEvents      []*models.SubEvent      `json:"subevents"`
	Items          []*models.Item          `json:"items"`
	Questions      []*models.Question      `json:"questions"`
	CheckInLists   []*models.CheckInList   `json:"checkin_lists"`
	Orders         []*models.Order         `json:"orders"`
	TrustedKeys    []*models.TrustedKey    `json:"trusted_keys"`
	RevokedSecrets []*models.RevokedSecret `json:"revoked_secrets"`
	BlockedSecrets []*models.BlockedSecret `json:"blocked_secrets"`
}

// Downloader refreshes the local snapshot for one event.
type Downloader struct {
	Client *Client
	Store  SnapshotStore
}

// DownloadEvent fetches the event snapshot and applies it. Trust sets land
// in one transaction; catalog tables are replaced wholesale; orders are
// upserted with last-observed-wins check-in reconciliation.
func (d *Downloader) DownloadEvent(slug string) error {
	url := fmt.Sprintf("%s/events/%s/snapshot", d.Client.BaseURL, slug)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Device "+d.Client.Token)

	resp, err := d.Client.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", slug, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: server returned %s", slug, resp.Status)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("download %s: decode: %w", slug, err)
	}
	return d.Apply(slug, &snap)
}

// Apply writes one snapshot into the local store.
func (d *Downloader) Apply(slug string, snap *Snapshot) error {
	snap.Event.Slug = slug
	if err := d.Store.UpsertEvent(snap.Event); err != nil {
		return fmt.Errorf("apply event: %w", err)
	}
	for _, sub := range snap.SubEvents {
		sub.EventSlug = slug
	}
	if err := d.Store.ReplaceSubEvents(slug, snap.SubEvents); err != nil {
		return fmt.Errorf("apply subevents: %w", err)
	}
	for _, item := range snap.Items {
		item.EventSlug = slug
	}
	if err := d.Store.ReplaceItems(slug, snap.Items); err != nil {
		return fmt.Errorf("apply items: %w", err)
	}
	for _, q := range snap.Questions {
		q.EventSlug = slug
	}
	if err := d.Store.ReplaceQuestions(slug, snap.Questions); err != nil {
		return fmt.Errorf("apply questions: %w", err)
	}
	for _, list := range snap.CheckInLists {
		list.EventSlug = slug
		if err := d.Store.UpsertCheckInList(*list); err != nil {
			return fmt.Errorf("apply list %d: %w", list.ID, err)
		}
	}
	for _, order := range snap.Orders {
		order.EventSlug = slug
		if err := d.Store.UpsertOrder(*order); err != nil {
			return fmt.Errorf("apply order %s: %w", order.Code, err)
		}
	}
	for _, k := range snap.TrustedKeys {
		k.EventSlug = slug
	}
	for _, r := range snap.RevokedSecrets {
		r.EventSlug = slug
	}
	for _, b := range snap.BlockedSecrets {
		b.EventSlug = slug
	}
	if err := d.Store.ReplaceTrust(slug, snap.TrustedKeys, snap.RevokedSecrets, snap.BlockedSecrets); err != nil {
		return fmt.Errorf("apply trust sets: %w", err)
	}
	return nil
}
