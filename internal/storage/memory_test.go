package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
)

func TestInMemoryEventStore_FetchClicks(t *testing.T) {
	store := NewInMemoryEventStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "old", UserID: "u1", ClickedAt: base.AddDate(0, 0, -40)}))
	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "a", UserID: "u1", ClickedAt: base}))
	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "b", UserID: "u1", ClickedAt: base.Add(time.Hour)}))
	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "other", UserID: "u2", ClickedAt: base}))

	clicks, err := store.FetchClicks(ctx, "u1", base.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, clicks, 2, "tenant isolation and window filter")

	// Newest first.
	assert.Equal(t, "b", clicks[0].ID)
	assert.Equal(t, "a", clicks[1].ID)
}

func TestInMemoryEventStore_SaveConversion(t *testing.T) {
	store := NewInMemoryEventStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "c1", UserID: "u1", ClickedAt: base}))
	require.NoError(t, store.SaveConversion(ctx, &models.ConversionRecord{ID: "v1", ClickID: "c1", CommissionAmount: 9.5}))

	err := store.SaveConversion(ctx, &models.ConversionRecord{ID: "v2", ClickID: "missing"})
	assert.Error(t, err)

	clicks, err := store.FetchClicks(ctx, "u1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	require.Len(t, clicks[0].Conversions, 1)
	assert.InDelta(t, 9.5, clicks[0].Revenue(), 1e-9)
}

func TestInMemoryEventStore_ReturnsCopies(t *testing.T) {
	store := NewInMemoryEventStore(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	original := &models.ClickEvent{ID: "c1", UserID: "u1", ClickedAt: base, Country: "Canada"}
	require.NoError(t, store.SaveClick(ctx, original))

	// Mutating the caller's value after save must not leak into the store.
	original.Country = "Mars"

	clicks, err := store.FetchClicks(ctx, "u1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "Canada", clicks[0].Country)

	// Mutating a fetched value must not affect later fetches.
	clicks[0].Country = "Venus"
	again, err := store.FetchClicks(ctx, "u1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Canada", again[0].Country)
}

func TestInMemoryEventStore_PublishesChanges(t *testing.T) {
	notifier := notify.NewInProcessNotifier()
	store := NewInMemoryEventStore(notifier)
	ctx := context.Background()

	streams := make(chan string, 4)
	cancel, err := notifier.Subscribe(ctx, func(stream string) { streams <- stream })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.SaveClick(ctx, &models.ClickEvent{ID: "c1", UserID: "u1", ClickedAt: time.Now()}))

	select {
	case stream := <-streams:
		assert.Equal(t, notify.StreamClicks, stream)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification after SaveClick")
	}
}

func TestInMemoryLinkRepo_ShortCodeUniqueness(t *testing.T) {
	repo := NewInMemoryLinkRepo(nil)
	ctx := context.Background()

	require.NoError(t, repo.InsertLink(ctx, &models.AffiliateLink{ID: "l1", UserID: "u1", ShortCode: "abc12345"}))
	err := repo.InsertLink(ctx, &models.AffiliateLink{ID: "l2", UserID: "u1", ShortCode: "abc12345"})
	assert.ErrorIs(t, err, ErrShortCodeTaken)

	link, err := repo.GetLinkByShortCode(ctx, "abc12345")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "l1", link.ID)

	missing, err := repo.GetLinkByShortCode(ctx, "zzzzzzzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInMemoryLinkRepo_NotFound(t *testing.T) {
	repo := NewInMemoryLinkRepo(nil)
	ctx := context.Background()

	link, err := repo.GetLink(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, link)

	assert.ErrorIs(t, repo.SetLinkActive(ctx, "nope", true), ErrLinkNotFound)
	assert.ErrorIs(t, repo.DeleteLink(ctx, "nope"), ErrLinkNotFound)
}

func TestInMemoryLinkRepo_ListOrderAndIsolation(t *testing.T) {
	repo := NewInMemoryLinkRepo(nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertLink(ctx, &models.AffiliateLink{ID: "l1", UserID: "u1", ShortCode: "a", CreatedAt: base}))
	require.NoError(t, repo.InsertLink(ctx, &models.AffiliateLink{ID: "l2", UserID: "u1", ShortCode: "b", CreatedAt: base.AddDate(0, 0, 2)}))
	require.NoError(t, repo.InsertLink(ctx, &models.AffiliateLink{ID: "l3", UserID: "u2", ShortCode: "c", CreatedAt: base.AddDate(0, 0, 1)}))

	list, err := repo.ListLinks(ctx, "u1", LinkFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "l2", list[0].ID, "newest first")
	assert.Equal(t, "l1", list[1].ID)
}

func TestSeedDemoData(t *testing.T) {
	events := NewInMemoryEventStore(nil)
	repo := NewInMemoryLinkRepo(events)
	ctx := context.Background()

	require.NoError(t, SeedDemoData(ctx, events, repo, "demo-user"))

	list, err := repo.ListLinks(ctx, "demo-user", LinkFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 4)

	clicks, err := events.FetchClicks(ctx, "demo-user", time.Now().AddDate(0, 0, -8))
	require.NoError(t, err)
	assert.NotEmpty(t, clicks)

	metrics, err := repo.LinkMetricsByID(ctx, "demo-user", time.Now().AddDate(0, 0, -8))
	require.NoError(t, err)
	var total int64
	for _, m := range metrics {
		total += m.Clicks
	}
	assert.Equal(t, int64(len(clicks)), total)
}
