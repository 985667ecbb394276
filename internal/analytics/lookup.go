package analytics

// Static display configuration. These are data, not logic: the dashboard
// frontend asks for a platform's chart color and a country's map marker
// position alongside the snapshot.

// DefaultPlatformColor is used for platforms without an assigned color.
const DefaultPlatformColor = "#64748B"

var platformColors = map[string]string{
	"Amazon":              "#FF9900",
	"Flipkart":            "#047BD6",
	"ClickBank":           "#00A651",
	"ShareASale":          "#8B5CF6",
	"Commission Junction": "#E11D48",
	"Other":               "#F59E0B",
}

// PlatformColor returns the display color for a platform, falling back to
// DefaultPlatformColor for unknown platforms.
func PlatformColor(platform string) string {
	if c, ok := platformColors[platform]; ok {
		return c
	}
	return DefaultPlatformColor
}

// Coordinates is a [latitude, longitude] pair for the world map widget.
type Coordinates [2]float64

var countryCoordinates = map[string]Coordinates{
	"United States":  {37.09, -95.71},
	"Canada":         {56.13, -106.35},
	"United Kingdom": {55.38, -3.44},
	"Australia":      {-25.27, 133.78},
	"Germany":        {51.17, 10.45},
	"France":         {46.23, 2.21},
	"India":          {20.59, 78.96},
	"Brazil":         {-14.24, -51.93},
	"Japan":          {36.20, 138.25},
	"Netherlands":    {52.13, 5.29},
	"Spain":          {40.46, -3.75},
	"Italy":          {41.87, 12.57},
	"Mexico":         {23.63, -102.55},
	"Singapore":      {1.35, 103.82},
}

// CountryCoordinates returns map coordinates for a country. Unknown
// countries map to [0, 0], which the frontend renders off-map.
func CountryCoordinates(country string) Coordinates {
	if c, ok := countryCoordinates[country]; ok {
		return c
	}
	return Coordinates{0, 0}
}
