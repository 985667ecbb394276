package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/models"
)

var (
	// ErrShortCodeTaken is returned when a generated short code collides
	// with an existing link.
	ErrShortCodeTaken = errors.New("short code already taken")

	// ErrLinkNotFound is returned for operations on a missing link.
	ErrLinkNotFound = errors.New("link not found")
)

// =============================================
// EVENT SOURCE
// =============================================

// EventSource supplies the raw event window the aggregator consumes.
// Implementations must restrict results to the requesting user's links
// (tenant isolation), include the denormalized parent link fields and
// attached conversions on every row, and order by clicked_at descending.
type EventSource interface {
	FetchClicks(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error)
}

// EventSink accepts new event rows. Writes come from fixtures, tests and
// whatever external ingestion wiring the hosting deployment has; this
// service exposes no capture endpoint itself.
type EventSink interface {
	SaveClick(ctx context.Context, click *models.ClickEvent) error
	SaveConversion(ctx context.Context, conv *models.ConversionRecord) error
}

// EventStore combines the read and write halves of the event log.
type EventStore interface {
	EventSource
	EventSink
}

// =============================================
// LINK REPOSITORY
// =============================================

// LinkFilter narrows a link listing. Empty fields match everything.
type LinkFilter struct {
	// Status is "active" or "inactive".
	Status string
	// Platform matches the link's platform exactly.
	Platform string
	// Search is a case-insensitive substring match on title or URL.
	Search string
}

// LinkRepo defines CRUD operations for affiliate links.
type LinkRepo interface {
	ListLinks(ctx context.Context, userID string, filter LinkFilter) ([]*models.AffiliateLink, error)
	GetLink(ctx context.Context, id string) (*models.AffiliateLink, error)
	GetLinkByShortCode(ctx context.Context, code string) (*models.AffiliateLink, error)
	InsertLink(ctx context.Context, link *models.AffiliateLink) error
	SetLinkActive(ctx context.Context, id string, active bool) error
	DeleteLink(ctx context.Context, id string) error

	// LinkMetricsByID returns per-link aggregates over the event log,
	// keyed by link id. Links with no events in the window are absent.
	LinkMetricsByID(ctx context.Context, userID string, since time.Time) (map[string]models.LinkMetrics, error)
}
