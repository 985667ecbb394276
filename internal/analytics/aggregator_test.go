package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
)

func makeClick(id string, at time.Time, platform, country, device string, commissions ...float64) *models.ClickEvent {
	ev := &models.ClickEvent{
		ID:           id,
		ClickedAt:    at,
		UserID:       "user-1",
		Country:      country,
		City:         "Springfield",
		DeviceType:   device,
		Browser:      "Chrome",
		LinkID:       "link-1",
		LinkTitle:    "Test Link",
		LinkPlatform: platform,
	}
	for i, amount := range commissions {
		ev.Conversions = append(ev.Conversions, models.ConversionRecord{
			ID:               fmt.Sprintf("%s-conv-%d", id, i),
			ClickID:          id,
			CommissionAmount: amount,
			ConvertedAt:      at.Add(time.Hour),
		})
	}
	return ev
}

func TestAggregate_Empty(t *testing.T) {
	snap := Aggregate(nil, Options{})

	assert.Equal(t, int64(0), snap.TotalClicks)
	assert.Equal(t, 0.0, snap.TotalRevenue)
	assert.Equal(t, 0.0, snap.AvgCPC)

	// Sections render as empty lists, never null.
	require.NotNil(t, snap.TimeSeries)
	require.NotNil(t, snap.ByPlatform)
	require.NotNil(t, snap.ByCountry)
	require.NotNil(t, snap.ByDevice)
	require.NotNil(t, snap.RecentActivity)
	assert.Len(t, snap.TimeSeries, 0)
}

func TestAggregate_TotalsAndAverages(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	events := []*models.ClickEvent{
		makeClick("c1", base, "Amazon", "United States", "Desktop", 10.0),
		makeClick("c2", base.Add(time.Hour), "Amazon", "United States", "Mobile"),
		makeClick("c3", base.Add(2*time.Hour), "Amazon", "Canada", "Mobile", 5.0, 15.0),
	}

	snap := Aggregate(events, Options{})

	assert.Equal(t, int64(3), snap.TotalClicks)
	assert.InDelta(t, 30.0, snap.TotalRevenue, 1e-9)
	assert.InDelta(t, 10.0, snap.AvgCPC, 1e-9)
	assert.InDelta(t, 3.4, snap.AvgCTR, 1e-9)

	require.Len(t, snap.ByPlatform, 1)
	assert.Equal(t, "Amazon", snap.ByPlatform[0].Platform)
	assert.Equal(t, int64(3), snap.ByPlatform[0].Clicks)
	assert.InDelta(t, 30.0, snap.ByPlatform[0].Revenue, 1e-9)
	assert.Equal(t, "#FF9900", snap.ByPlatform[0].Color)
}

func TestAggregate_NegativeCommissionIgnored(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	events := []*models.ClickEvent{
		makeClick("c1", base, "Amazon", "United States", "Desktop", 10.0, -4.0),
	}

	snap := Aggregate(events, Options{})

	assert.InDelta(t, 10.0, snap.TotalRevenue, 1e-9)
}

func TestAggregate_UnknownNormalization(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	ev := makeClick("c1", base, "", "", "")
	ev.City = ""
	ev.Browser = ""

	snap := Aggregate([]*models.ClickEvent{ev}, Options{})

	require.Len(t, snap.ByPlatform, 1)
	assert.Equal(t, "Unknown", snap.ByPlatform[0].Platform)
	require.Len(t, snap.ByCountry, 1)
	assert.Equal(t, "Unknown", snap.ByCountry[0].Country)
	require.Len(t, snap.ByDevice, 1)
	assert.Equal(t, "Unknown", snap.ByDevice[0].Device)

	require.Len(t, snap.RecentActivity, 1)
	assert.Equal(t, "Unknown", snap.RecentActivity[0].City)
	assert.Equal(t, "Unknown", snap.RecentActivity[0].Browser)
}

func TestAggregate_CountryPercentages(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	var events []*models.ClickEvent
	for i := 0; i < 10; i++ {
		events = append(events, makeClick(fmt.Sprintf("us-%d", i), base.Add(time.Duration(i)*time.Minute), "Amazon", "United States", "Desktop"))
	}
	for i := 0; i < 5; i++ {
		events = append(events, makeClick(fmt.Sprintf("ca-%d", i), base.Add(time.Duration(i)*time.Second), "Amazon", "Canada", "Mobile"))
	}

	snap := Aggregate(events, Options{})

	require.Len(t, snap.ByCountry, 2)
	assert.Equal(t, "United States", snap.ByCountry[0].Country)
	assert.InDelta(t, 66.666, snap.ByCountry[0].Percentage, 0.01)
	assert.Equal(t, "Canada", snap.ByCountry[1].Country)
	assert.InDelta(t, 33.333, snap.ByCountry[1].Percentage, 0.01)

	var sum float64
	for _, c := range snap.ByCountry {
		sum += c.Percentage
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}

func TestAggregate_TopCountriesTruncation(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	var events []*models.ClickEvent
	id := 0
	// 12 countries; country-0 gets 12 clicks, country-11 gets 1.
	for c := 0; c < 12; c++ {
		for n := 0; n < 12-c; n++ {
			events = append(events, makeClick(fmt.Sprintf("c-%d", id), base, "Amazon", fmt.Sprintf("Country %d", c), "Desktop"))
			id++
		}
	}

	snap := Aggregate(events, Options{TopCountries: 10})

	require.Len(t, snap.ByCountry, 10)
	assert.Equal(t, "Country 0", snap.ByCountry[0].Country)
	assert.Equal(t, int64(12), snap.ByCountry[0].Clicks)
	// Percentages stay relative to the full total, not the truncated list.
	assert.Equal(t, "Country 9", snap.ByCountry[9].Country)
	for i := 1; i < len(snap.ByCountry); i++ {
		assert.GreaterOrEqual(t, snap.ByCountry[i-1].Clicks, snap.ByCountry[i].Clicks)
	}
}

func TestAggregate_TopCountriesTieOrder(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	var events []*models.ClickEvent
	id := 0
	// 12 countries tied at 2 clicks each; only first-seen order can break the tie.
	for c := 0; c < 12; c++ {
		for n := 0; n < 2; n++ {
			events = append(events, makeClick(fmt.Sprintf("c-%d", id), base, "Amazon", fmt.Sprintf("Country %d", c), "Desktop"))
			id++
		}
	}

	snap := Aggregate(events, Options{TopCountries: 10})

	// The truncation boundary falls inside the tie, so the survivors must be
	// exactly the first ten countries seen, in that order.
	require.Len(t, snap.ByCountry, 10)
	for i, c := range snap.ByCountry {
		assert.Equal(t, fmt.Sprintf("Country %d", i), c.Country)
		assert.Equal(t, int64(2), c.Clicks)
	}
}

func TestAggregate_TopCountriesTieBehindLeader(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	events := []*models.ClickEvent{
		makeClick("c1", base, "Amazon", "Canada", "Desktop"),
		makeClick("c2", base, "Amazon", "Germany", "Desktop"),
		makeClick("c3", base, "Amazon", "United States", "Desktop"),
		makeClick("c4", base, "Amazon", "United States", "Desktop"),
	}

	snap := Aggregate(events, Options{})

	// The leader sorts first; the tied pair keeps first-seen order behind it.
	require.Len(t, snap.ByCountry, 3)
	assert.Equal(t, "United States", snap.ByCountry[0].Country)
	assert.Equal(t, "Canada", snap.ByCountry[1].Country)
	assert.Equal(t, "Germany", snap.ByCountry[2].Country)
}

func TestAggregate_TimeSeriesWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var events []*models.ClickEvent
	// 9 consecutive days, one click each.
	for d := 0; d < 9; d++ {
		events = append(events, makeClick(fmt.Sprintf("d-%d", d), base.AddDate(0, 0, d), "Amazon", "United States", "Desktop", 1.0))
	}

	snap := Aggregate(events, Options{TimeSeriesLimit: 7})

	require.Len(t, snap.TimeSeries, 7)
	assert.Equal(t, "2025-06-03", snap.TimeSeries[0].Date)
	assert.Equal(t, "2025-06-09", snap.TimeSeries[6].Date)
	for i := 1; i < len(snap.TimeSeries); i++ {
		assert.Less(t, snap.TimeSeries[i-1].Date, snap.TimeSeries[i].Date)
	}
	for _, p := range snap.TimeSeries {
		assert.Equal(t, int64(1), p.Clicks)
		assert.InDelta(t, 1.0, p.Revenue, 1e-9)
	}
}

func TestAggregate_RecentActivity(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	var events []*models.ClickEvent
	for i := 0; i < 12; i++ {
		events = append(events, makeClick(fmt.Sprintf("a-%d", i), base.Add(time.Duration(i)*time.Minute), "Amazon", "United States", "Desktop"))
	}

	snap := Aggregate(events, Options{RecentActivity: 10})

	require.Len(t, snap.RecentActivity, 10)
	// Newest first; the two oldest clicks fall off.
	assert.Equal(t, "a-11", snap.RecentActivity[0].ID)
	assert.Equal(t, "a-2", snap.RecentActivity[9].ID)

	ts, err := time.Parse(time.RFC3339, snap.RecentActivity[0].ClickedAt)
	require.NoError(t, err)
	assert.True(t, ts.Equal(base.Add(11*time.Minute)))
}

func TestAggregate_PartitionSums(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	events := []*models.ClickEvent{
		makeClick("c1", base, "Amazon", "United States", "Desktop", 12.5),
		makeClick("c2", base, "Flipkart", "Canada", "Mobile", 3.0),
		makeClick("c3", base, "ClickBank", "Canada", "Mobile"),
		makeClick("c4", base, "Amazon", "Germany", "Tablet", 7.25),
	}

	snap := Aggregate(events, Options{})

	var platformClicks, deviceClicks int64
	var platformRevenue float64
	for _, p := range snap.ByPlatform {
		platformClicks += p.Clicks
		platformRevenue += p.Revenue
	}
	for _, d := range snap.ByDevice {
		deviceClicks += d.Clicks
	}

	assert.Equal(t, snap.TotalClicks, platformClicks)
	assert.Equal(t, snap.TotalClicks, deviceClicks)
	assert.InDelta(t, snap.TotalRevenue, platformRevenue, 1e-9)
}

func TestAggregate_PureAndDeterministic(t *testing.T) {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	events := []*models.ClickEvent{
		makeClick("c1", base.Add(2*time.Hour), "Amazon", "United States", "Desktop", 10),
		makeClick("c2", base, "Flipkart", "Canada", "Mobile"),
		makeClick("c3", base.Add(time.Hour), "Amazon", "Canada", "Tablet", 2),
	}

	first := Aggregate(events, Options{})
	second := Aggregate(events, Options{})

	assert.Equal(t, first, second)

	// Input order untouched even though recent activity is sorted.
	assert.Equal(t, "c1", events[0].ID)
	assert.Equal(t, "c2", events[1].ID)
	assert.Equal(t, "c3", events[2].ID)
}
