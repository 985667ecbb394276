package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
)

// PostgresEventStore implements EventStore using PostgreSQL.
type PostgresEventStore struct {
	pool      *pgxpool.Pool
	publisher notify.Publisher
}

// NewPostgresEventStore creates a new PostgreSQL-backed event store.
// publisher may be nil.
func NewPostgresEventStore(pool *pgxpool.Pool, publisher notify.Publisher) *PostgresEventStore {
	return &PostgresEventStore{pool: pool, publisher: publisher}
}

// FetchClicks returns the user's clicks at or after since, newest first,
// with link attributes joined in and conversions attached.
func (s *PostgresEventStore) FetchClicks(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.clicked_at, c.country, c.city, c.device_type, c.browser,
		       l.id, l.user_id, l.title, l.platform
		FROM clicks c
		JOIN affiliate_links l ON l.id = c.link_id
		WHERE l.user_id = $1 AND c.clicked_at >= $2
		ORDER BY c.clicked_at DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clicks: %w", err)
	}
	defer rows.Close()

	var clicks []*models.ClickEvent
	byID := make(map[string]*models.ClickEvent)
	var ids []string

	for rows.Next() {
		var click models.ClickEvent
		var country, city, deviceType, browser *string

		if err := rows.Scan(&click.ID, &click.ClickedAt, &country, &city, &deviceType, &browser,
			&click.LinkID, &click.UserID, &click.LinkTitle, &click.LinkPlatform); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}

		click.Country = derefString(country)
		click.City = derefString(city)
		click.DeviceType = derefString(deviceType)
		click.Browser = derefString(browser)

		clicks = append(clicks, &click)
		byID[click.ID] = &click
		ids = append(ids, click.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read clicks: %w", err)
	}

	if len(ids) == 0 {
		return clicks, nil
	}

	convRows, err := s.pool.Query(ctx, `
		SELECT id, click_id, commission_amount, converted_at
		FROM conversions
		WHERE click_id = ANY($1)
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

// SaveClick stores a click event.
func (s *PostgresEventStore) SaveClick(ctx context.Context, click *models.ClickEvent) error {
	if click == nil {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clicks (id, link_id, clicked_at, country, city, device_type, browser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, click.ID, click.LinkID, click.ClickedAt, nullString(click.Country),
		nullString(click.City), nullString(click.DeviceType), nullString(click.Browser))

	if err != nil {
		return fmt.Errorf("failed to save click: %w", err)
	}

	s.publishChange(ctx, notify.StreamClicks)
	return nil
}

// SaveConversion stores a conversion event.
func (s *PostgresEventStore) SaveConversion(ctx context.Context, conv *models.ConversionRecord) error {
	if conv == nil {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversions (id, click_id, commission_amount, converted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, conv.ID, conv.ClickID, conv.CommissionAmount, conv.ConvertedAt)

	if err != nil {
		return fmt.Errorf("failed to save conversion: %w", err)
	}

	s.publishChange(ctx, notify.StreamConversions)
	return nil
}

func (s *PostgresEventStore) publishChange(ctx context.Context, stream string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, stream)
}

// PostgresLinkRepo implements LinkRepo using PostgreSQL.
type PostgresLinkRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresLinkRepo creates a new PostgreSQL-backed link repo.
func NewPostgresLinkRepo(pool *pgxpool.Pool) *PostgresLinkRepo {
	return &PostgresLinkRepo{pool: pool}
}

// ListLinks returns the user's links matching the filter, newest first.
func (r *PostgresLinkRepo) ListLinks(ctx context.Context, userID string, filter LinkFilter) ([]*models.AffiliateLink, error) {
	query := `
		SELECT id, user_id, title, original_url, short_code, short_url, platform, category, is_active, created_at
		FROM affiliate_links
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if filter.Status == models.StatusActive {
		query += " AND is_active = TRUE"
	} else if filter.Status == models.StatusInactive {
		query += " AND is_active = FALSE"
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		query += fmt.Sprintf(" AND LOWER(platform) = LOWER($%d)", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (title ILIKE $%d OR original_url ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*models.AffiliateLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}

	return links, nil
}

// GetLink retrieves a link by ID.
func (r *PostgresLinkRepo) GetLink(ctx context.Context, id string) (*models.AffiliateLink, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, original_url, short_code, short_url, platform, category, is_active, created_at
		FROM affiliate_links WHERE id = $1
	`, id)

	link, err := scanLink(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetLinkByShortCode retrieves a link by its short code.
func (r *PostgresLinkRepo) GetLinkByShortCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, original_url, short_code, short_url, platform, category, is_active, created_at
		FROM affiliate_links WHERE short_code = $1
	`, code)

	link, err := scanLink(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// InsertLink stores a new link. Returns ErrShortCodeTaken on a short code
// collision.
func (r *PostgresLinkRepo) InsertLink(ctx context.Context, link *models.AffiliateLink) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO affiliate_links (id, user_id, title, original_url, short_code, short_url, platform, category, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (short_code) DO NOTHING
	`, link.ID, link.UserID, link.Title, link.OriginalURL, link.ShortCode,
		link.ShortURL, link.Platform, link.Category, link.IsActive, link.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShortCodeTaken
	}
	return nil
}

// SetLinkActive flips the active flag on a link.
func (r *PostgresLinkRepo) SetLinkActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE affiliate_links SET is_active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// DeleteLink removes a link and its events.
func (r *PostgresLinkRepo) DeleteLink(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM affiliate_links WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// LinkMetricsByID computes per-link clicks, conversions and revenue from
// events at or after since.
func (r *PostgresLinkRepo) LinkMetricsByID(ctx context.Context, userID string, since time.Time) (map[string]models.LinkMetrics, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id,
		       COUNT(DISTINCT c.id),
		       COUNT(v.id),
		       COALESCE(SUM(v.commission_amount), 0)
		FROM affiliate_links l
		LEFT JOIN clicks c ON c.link_id = l.id AND c.clicked_at >= $2
		LEFT JOIN conversions v ON v.click_id = c.id
		WHERE l.user_id = $1
		GROUP BY l.id
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch link metrics: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.LinkMetrics)
	for rows.Next() {
		var id string
		var m models.LinkMetrics
		if err := rows.Scan(&id, &m.Clicks, &m.Conversions, &m.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan link metrics: %w", err)
		}
		result[id] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read link metrics: %w", err)
	}

	return result, nil
}

func scanLink(row pgx.Row) (*models.AffiliateLink, error) {
	var link models.AffiliateLink
	var category *string

	err := row.Scan(&link.ID, &link.UserID, &link.Title, &link.OriginalURL, &link.ShortCode,
		&link.ShortURL, &link.Platform, &category, &link.IsActive, &link.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan link: %w", err)
	}

	link.Category = derefString(category)
	if link.Category == "" {
		link.Category = models.DefaultCategory
	}
	return &link, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
