package analytics

import (
	"sort"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/models"
)

// unknownLabel replaces absent optional fields before grouping so the
// breakdowns always partition the input.
const unknownLabel = "Unknown"

// placeholderCTR stands in for the average click-through rate. Impressions
// are not tracked by this service, so the true formula
// (clicks / impressions * 100) cannot be computed yet; once impression data
// exists this constant must be replaced, not the formula invented.
const placeholderCTR = 3.4

// Default display bounds for snapshot sections.
const (
	DefaultTimeSeriesLimit = 7
	DefaultTopCountries    = 10
	DefaultRecentActivity  = 10
)

// Options bounds the snapshot sections. Zero values fall back to the
// package defaults.
type Options struct {
	TimeSeriesLimit int
	TopCountries    int
	RecentActivity  int
}

func (o Options) withDefaults() Options {
	if o.TimeSeriesLimit <= 0 {
		o.TimeSeriesLimit = DefaultTimeSeriesLimit
	}
	if o.TopCountries <= 0 {
		o.TopCountries = DefaultTopCountries
	}
	if o.RecentActivity <= 0 {
		o.RecentActivity = DefaultRecentActivity
	}
	return o
}

// TimeSeriesPoint is one calendar day of clicks and revenue.
type TimeSeriesPoint struct {
	Date    string  `json:"date"` // 2006-01-02, the event's local display date
	Clicks  int64   `json:"clicks"`
	Revenue float64 `json:"revenue"`
}

// PlatformStats aggregates one affiliate platform.
type PlatformStats struct {
	Platform string  `json:"platform"`
	Clicks   int64   `json:"clicks"`
	Revenue  float64 `json:"revenue"`
	Color    string  `json:"color"` // chart color, see PlatformColor
}

// CountryStats aggregates one country.
type CountryStats struct {
	Country     string      `json:"country"`
	Clicks      int64       `json:"clicks"`
	Revenue     float64     `json:"revenue"`
	Percentage  float64     `json:"percentage"` // clicks / totalClicks * 100
	Coordinates Coordinates `json:"coordinates"`
}

// DeviceStats aggregates one device type.
type DeviceStats struct {
	Device     string  `json:"device"`
	Clicks     int64   `json:"clicks"`
	Revenue    float64 `json:"revenue"`
	Percentage float64 `json:"percentage"`
}

// ActivityEntry is one row of the recent-activity feed.
type ActivityEntry struct {
	ID         string `json:"id"`
	Country    string `json:"country"`
	City       string `json:"city"`
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	ClickedAt  string `json:"clicked_at"` // RFC 3339
	LinkTitle  string `json:"link_title"`
}

// Snapshot is the aggregator's output: every dashboard metric derived from
// one event window. It is recomputed from scratch on each refresh and never
// persisted.
type Snapshot struct {
	TotalClicks  int64   `json:"total_clicks"`
	TotalRevenue float64 `json:"total_revenue"`
	AvgCTR       float64 `json:"avg_ctr"`
	AvgCPC       float64 `json:"avg_cpc"`

	TimeSeries     []TimeSeriesPoint `json:"time_series"`
	ByPlatform     []PlatformStats   `json:"by_platform"`
	ByCountry      []CountryStats    `json:"by_country"`
	ByDevice       []DeviceStats     `json:"by_device"`
	RecentActivity []ActivityEntry   `json:"recent_activity"`
}

// Aggregate computes a Snapshot from a window of click events. It is a pure
// function: the input is never mutated, the same input always yields the
// same output, and an empty input yields a zero-valued snapshot.
func Aggregate(events []*models.ClickEvent, opts Options) Snapshot {
	opts = opts.withDefaults()

	snap := Snapshot{
		TimeSeries:     []TimeSeriesPoint{},
		ByPlatform:     []PlatformStats{},
		ByCountry:      []CountryStats{},
		ByDevice:       []DeviceStats{},
		RecentActivity: []ActivityEntry{},
	}
	if len(events) == 0 {
		return snap
	}

	days := make(map[string]*dayAcc)

	// Index maps keep first-seen input order so output never depends on
	// map iteration.
	platformIdx := make(map[string]int)
	countryIdx := make(map[string]int)
	deviceIdx := make(map[string]int)

	for _, ev := range events {
		revenue := ev.Revenue()
		snap.TotalClicks++
		snap.TotalRevenue += revenue

		day := ev.ClickedAt.Format("2006-01-02")
		acc, ok := days[day]
		if !ok {
			acc = &dayAcc{}
			days[day] = acc
		}
		acc.clicks++
		acc.revenue += revenue

		platform := orUnknown(ev.LinkPlatform)
		if i, ok := platformIdx[platform]; ok {
			snap.ByPlatform[i].Clicks++
			snap.ByPlatform[i].Revenue += revenue
		} else {
			platformIdx[platform] = len(snap.ByPlatform)
			snap.ByPlatform = append(snap.ByPlatform, PlatformStats{
				Platform: platform,
				Clicks:   1,
				Revenue:  revenue,
				Color:    PlatformColor(platform),
			})
		}

		country := orUnknown(ev.Country)
		if i, ok := countryIdx[country]; ok {
			snap.ByCountry[i].Clicks++
			snap.ByCountry[i].Revenue += revenue
		} else {
			countryIdx[country] = len(snap.ByCountry)
			snap.ByCountry = append(snap.ByCountry, CountryStats{
				Country:     country,
				Clicks:      1,
				Revenue:     revenue,
				Coordinates: CountryCoordinates(country),
			})
		}

		device := orUnknown(ev.DeviceType)
		if i, ok := deviceIdx[device]; ok {
			snap.ByDevice[i].Clicks++
			snap.ByDevice[i].Revenue += revenue
		} else {
			deviceIdx[device] = len(snap.ByDevice)
			snap.ByDevice = append(snap.ByDevice, DeviceStats{
				Device:  device,
				Clicks:  1,
				Revenue: revenue,
			})
		}
	}

	snap.AvgCTR = placeholderCTR
	if snap.TotalClicks > 0 {
		snap.AvgCPC = snap.TotalRevenue / float64(snap.TotalClicks)
	}

	// Percentages only after totals are known.
	total := float64(snap.TotalClicks)
	for i := range snap.ByCountry {
		snap.ByCountry[i].Percentage = float64(snap.ByCountry[i].Clicks) / total * 100
	}
	for i := range snap.ByDevice {
		snap.ByDevice[i].Percentage = float64(snap.ByDevice[i].Clicks) / total * 100
	}

	// Top countries: clicks descending, input order preserved on ties.
	sort.SliceStable(snap.ByCountry, func(i, j int) bool {
		return snap.ByCountry[i].Clicks > snap.ByCountry[j].Clicks
	})
	if len(snap.ByCountry) > opts.TopCountries {
		snap.ByCountry = snap.ByCountry[:opts.TopCountries]
	}

	snap.TimeSeries = buildTimeSeries(days, opts.TimeSeriesLimit)
	snap.RecentActivity = buildRecentActivity(events, opts.RecentActivity)

	return snap
}

type dayAcc struct {
	clicks  int64
	revenue float64
}

func buildTimeSeries(days map[string]*dayAcc, limit int) []TimeSeriesPoint {
	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	// ISO dates sort chronologically as strings.
	sort.Strings(keys)

	if len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	points := make([]TimeSeriesPoint, 0, len(keys))
	for _, day := range keys {
		acc := days[day]
		points = append(points, TimeSeriesPoint{
			Date:    day,
			Clicks:  acc.clicks,
			Revenue: acc.revenue,
		})
	}
	return points
}

func buildRecentActivity(events []*models.ClickEvent, limit int) []ActivityEntry {
	// Sort a copy; the input window must stay untouched.
	sorted := make([]*models.ClickEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClickedAt.After(sorted[j].ClickedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]ActivityEntry, 0, len(sorted))
	for _, ev := range sorted {
		entries = append(entries, ActivityEntry{
			ID:         ev.ID,
			Country:    orUnknown(ev.Country),
			City:       orUnknown(ev.City),
			DeviceType: orUnknown(ev.DeviceType),
			Browser:    orUnknown(ev.Browser),
			ClickedAt:  ev.ClickedAt.Format(time.RFC3339),
			LinkTitle:  ev.LinkTitle,
		})
	}
	return entries
}

func orUnknown(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}
