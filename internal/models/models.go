package models

import (
	"time"
)

// ===========================================
// CLICK EVENT
// ===========================================

// ClickEvent is one recorded click on an affiliate link, joined with its
// parent link and any conversions attributed to it. Events are written by
// the ingestion path and are immutable afterwards.
type ClickEvent struct {
	ID        string    `json:"id"`
	ClickedAt time.Time `json:"clicked_at"`

	// Owning tenant (denormalized from the parent link)
	UserID string `json:"user_id"`

	// Geo info (may be empty, normalized to "Unknown" during aggregation)
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`

	// Device info
	DeviceType string `json:"device_type,omitempty"`
	Browser    string `json:"browser,omitempty"`

	// Parent link
	LinkID       string `json:"link_id"`
	LinkTitle    string `json:"link_title,omitempty"`
	LinkPlatform string `json:"link_platform,omitempty"`

	// Conversions attributed to this click
	Conversions []ConversionRecord `json:"conversions,omitempty"`
}

// Revenue returns the total commission attributed to this click.
// A click with no conversions earns 0.
func (c *ClickEvent) Revenue() float64 {
	var total float64
	for _, conv := range c.Conversions {
		if conv.CommissionAmount > 0 {
			total += conv.CommissionAmount
		}
	}
	return total
}

// ===========================================
// CONVERSION RECORD
// ===========================================

// ConversionRecord is a commission credited against a click.
type ConversionRecord struct {
	ID               string    `json:"id"`
	ClickID          string    `json:"click_id"`
	CommissionAmount float64   `json:"commission_amount,omitempty"`
	ConvertedAt      time.Time `json:"converted_at"`
}

// ===========================================
// AFFILIATE LINK
// ===========================================

// Link statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// DefaultCategory is assigned when link creation omits a category.
const DefaultCategory = "General"

// AffiliateLink is a trackable destination owned by a user.
type AffiliateLink struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	Platform    string    `json:"platform"`
	Category    string    `json:"category,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Status returns the display status for the active flag.
func (l *AffiliateLink) Status() string {
	if l.IsActive {
		return StatusActive
	}
	return StatusInactive
}

// LinkMetrics holds per-link aggregates derived from the event log.
// These are computed on read and never persisted on the link row.
type LinkMetrics struct {
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// LinkWithMetrics is a link with its derived metrics attached, as served
// to the dashboard's link list.
type LinkWithMetrics struct {
	AffiliateLink
	Metrics LinkMetrics `json:"metrics"`
}
