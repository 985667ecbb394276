package storage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
)

// SeedDemoData populates the in-memory backend with a realistic demo
// dataset: a handful of links and a week of clicks with occasional
// conversions. Intended for local development without Postgres.
func SeedDemoData(ctx context.Context, events *InMemoryEventStore, links *InMemoryLinkRepo, userID string) error {
	now := time.Now()

	demoLinks := []*models.AffiliateLink{
		{
			ID:          uuid.New().String(),
			UserID:      userID,
			Title:       "iPhone 15 Pro Max - Amazon",
			OriginalURL: "https://www.amazon.com/dp/B0CMZD7VCV",
			ShortCode:   "ip15pmax",
			Platform:    "Amazon",
			Category:    "Electronics",
			IsActive:    true,
			CreatedAt:   now.AddDate(0, 0, -21),
		},
		{
			ID:          uuid.New().String(),
			UserID:      userID,
			Title:       "MacBook Air M3",
			OriginalURL: "https://www.flipkart.com/apple-macbook-air-m3",
			ShortCode:   "mbairm3x",
			Platform:    "Flipkart",
			Category:    "Electronics",
			IsActive:    true,
			CreatedAt:   now.AddDate(0, 0, -14),
		},
		{
			ID:          uuid.New().String(),
			UserID:      userID,
			Title:       "Digital Marketing Course",
			OriginalURL: "https://www.clickbank.com/products/dm-course",
			ShortCode:   "dmcourse",
			Platform:    "ClickBank",
			Category:    "Education",
			IsActive:    true,
			CreatedAt:   now.AddDate(0, 0, -10),
		},
		{
			ID:          uuid.New().String(),
			UserID:      userID,
			Title:       "Wireless Earbuds Pro",
			OriginalURL: "https://www.amazon.com/dp/B0CHWRXH8B",
			ShortCode:   "earbudsp",
			Platform:    "Amazon",
			Category:    models.DefaultCategory,
			IsActive:    false,
			CreatedAt:   now.AddDate(0, 0, -5),
		},
	}
	for _, link := range demoLinks {
		link.ShortURL = fmt.Sprintf("https://afl.ink/%s", link.ShortCode)
		if err := links.InsertLink(ctx, link); err != nil {
			return fmt.Errorf("failed to seed link %q: %w", link.Title, err)
		}
	}

	countries := []struct {
		name string
		city string
	}{
		{"United States", "New York"},
		{"United States", "San Francisco"},
		{"Canada", "Toronto"},
		{"United Kingdom", "London"},
		{"Australia", "Sydney"},
		{"Germany", "Berlin"},
	}
	devices := []string{"Desktop", "Mobile", "Mobile", "Tablet"}
	browsers := []string{"Chrome", "Safari", "Firefox", "Edge"}

	// Fixed seed keeps consecutive runs comparable.
	rng := rand.New(rand.NewSource(42))

	active := demoLinks[:3]
	for day := 6; day >= 0; day-- {
		clicksToday := 8 + rng.Intn(12)
		for i := 0; i < clicksToday; i++ {
			link := active[rng.Intn(len(active))]
			loc := countries[rng.Intn(len(countries))]
			clickedAt := now.AddDate(0, 0, -day).
				Add(-time.Duration(rng.Intn(12)) * time.Hour).
				Add(-time.Duration(rng.Intn(60)) * time.Minute)

			click := &models.ClickEvent{
				ID:           uuid.New().String(),
				ClickedAt:    clickedAt,
				UserID:       userID,
				Country:      loc.name,
				City:         loc.city,
				DeviceType:   devices[rng.Intn(len(devices))],
				Browser:      browsers[rng.Intn(len(browsers))],
				LinkID:       link.ID,
				LinkTitle:    link.Title,
				LinkPlatform: link.Platform,
			}
			if err := events.SaveClick(ctx, click); err != nil {
				return fmt.Errorf("failed to seed click: %w", err)
			}

			// Roughly one in eight clicks converts.
			if rng.Intn(8) == 0 {
				conv := &models.ConversionRecord{
					ID:               uuid.New().String(),
					ClickID:          click.ID,
					CommissionAmount: 5 + rng.Float64()*45,
					ConvertedAt:      clickedAt.Add(time.Duration(5+rng.Intn(55)) * time.Minute),
				}
				if err := events.SaveConversion(ctx, conv); err != nil {
					return fmt.Errorf("failed to seed conversion: %w", err)
				}
			}
		}
	}

	return nil
}
