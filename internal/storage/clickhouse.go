package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
)

// ClickHouseEventStore implements EventStore on ClickHouse. Suited to
// accounts whose click volume outgrows the Postgres tables; events land in
// a single wide table with link attributes denormalized at write time.
type ClickHouseEventStore struct {
	conn      driver.Conn
	publisher notify.Publisher
}

// NewClickHouseEventStore creates a ClickHouse-backed event store.
// publisher may be nil.
func NewClickHouseEventStore(conn driver.Conn, publisher notify.Publisher) *ClickHouseEventStore {
	return &ClickHouseEventStore{conn: conn, publisher: publisher}
}

// FetchClicks returns the user's clicks at or after since, newest first.
func (s *ClickHouseEventStore) FetchClicks(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, clicked_at, country, city, device_type, browser,
		       link_id, link_title, link_platform
		FROM click_events
		WHERE user_id = ? AND clicked_at >= ?
		ORDER BY clicked_at DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clicks: %w", err)
	}
	defer rows.Close()

	var clicks []*models.ClickEvent
	byID := make(map[string]*models.ClickEvent)
	var ids []string

	for rows.Next() {
		click := models.ClickEvent{UserID: userID}
		if err := rows.Scan(&click.ID, &click.ClickedAt, &click.Country, &click.City,
			&click.DeviceType, &click.Browser, &click.LinkID, &click.LinkTitle, &click.LinkPlatform); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		c := click
		clicks = append(clicks, &c)
		byID[c.ID] = &c
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read clicks: %w", err)
	}

	if len(ids) == 0 {
		return clicks, nil
	}

	convRows, err := s.conn.Query(ctx, `
		SELECT id, click_id, commission_amount, converted_at
		FROM conversion_events
		WHERE click_id IN (?)
		ORDER BY converted_at
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversions: %w", err)
	}
	defer convRows.Close()

	for convRows.Next() {
		var conv models.ConversionRecord
		if err := convRows.Scan(&conv.ID, &conv.ClickID, &conv.CommissionAmount, &conv.ConvertedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		if click, ok := byID[conv.ClickID]; ok {
			click.Conversions = append(click.Conversions, conv)
		}
	}
	if err := convRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversions: %w", err)
	}

	return clicks, nil
}

// SaveClick appends a click event.
func (s *ClickHouseEventStore) SaveClick(ctx context.Context, click *models.ClickEvent) error {
	if click == nil {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO click_events (id, user_id, clicked_at, country, city, device_type, browser, link_id, link_title, link_platform)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare click insert: %w", err)
	}
	if err := batch.Append(click.ID, click.UserID, click.ClickedAt, click.Country, click.City,
		click.DeviceType, click.Browser, click.LinkID, click.LinkTitle, click.LinkPlatform); err != nil {
		return fmt.Errorf("failed to append click: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to save click: %w", err)
	}

	s.publishChange(ctx, notify.StreamClicks)
	return nil
}

// SaveConversion appends a conversion event.
func (s *ClickHouseEventStore) SaveConversion(ctx context.Context, conv *models.ConversionRecord) error {
	if conv == nil {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO conversion_events (id, click_id, commission_amount, converted_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare conversion insert: %w", err)
	}
	if err := batch.Append(conv.ID, conv.ClickID, conv.CommissionAmount, conv.ConvertedAt); err != nil {
		return fmt.Errorf("failed to append conversion: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to save conversion: %w", err)
	}

	s.publishChange(ctx, notify.StreamConversions)
	return nil
}

func (s *ClickHouseEventStore) publishChange(ctx context.Context, stream string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, stream)
}
