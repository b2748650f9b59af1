package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"clubops-backend/lib/geo"
)

// Geocoder is the bit of lib/geo the locations stage needs. Tests plug
// in a fake.
type Geocoder interface {
	Locate(ctx context.Context, locationRaw string) (geo.Address, bool, error)
}

// fastPaths skips geocoding for locations mentioning the big cities,
// which is most of the postings.
var fastPaths = []struct {
	pattern *regexp.Regexp
	address geo.Address
}{
	{regexp.MustCompile(`\bPraha\b`), geo.Address{Place: "Praha", Region: "Praha", Country: "Česko"}},
	{regexp.MustCompile(`\bPrague\b`), geo.Address{Place: "Praha", Region: "Praha", Country: "Česko"}},
	{regexp.MustCompile(`\bBrno\b`), geo.Address{Place: "Brno", Region: "Brno", Country: "Česko"}},
	{regexp.MustCompile(`\bOstrava\b`), geo.Address{Place: "Ostrava", Region: "Ostrava", Country: "Česko"}},
}

// regionsMapping folds administrative region names (and neighboring
// countries' native names) onto the closest big city or the Czech
// country name members actually search by.
var regionsMapping = map[string]string{
	// countries
	"Deutschland": "Německo",
	"Polska":      "Polsko",
	"Österreich":  "Rakousko",

	// regions
	"Hlavní město Praha":    "Praha",
	"Středočeský kraj":      "Praha",
	"Jihočeský kraj":        "České Budějovice",
	"Plzeňský kraj":         "Plzeň",
	"Karlovarský kraj":      "Karlovy Vary",
	"Ústecký kraj":          "Ústí nad Labem",
	"Liberecký kraj":        "Liberec",
	"Královéhradecký kraj":  "Hradec Králové",
	"Pardubický kraj":       "Pardubice",
	"Olomoucký kraj":        "Olomouc",
	"Moravskoslezský kraj":  "Ostrava",
	"Jihomoravský kraj":     "Brno",
	"Zlínský kraj":          "Zlín",
	"Kraj Vysočina":         "Jihlava",
}

// Region picks the canonical region for an address: the region for
// Czech places, the country otherwise, both run through the mapping.
func Region(address geo.Address) string {
	region := address.Country
	if strings.HasPrefix(strings.ToLower(address.Country), "česk") {
		region = address.Region
	}
	if mapped, ok := regionsMapping[region]; ok {
		return mapped
	}
	return region
}

type LocationsStage struct {
	Geocoder Geocoder
}

func (s LocationsStage) Name() string { return "locations" }

// Process resolves every raw location to "place, region". A location
// that fails to resolve is logged and dropped, the posting itself
// survives. Results are deduplicated and sorted.
func (s LocationsStage) Process(ctx context.Context, posting Posting) (Posting, error) {
	seen := map[string]bool{}
	var locations []string
	for _, locationRaw := range posting.LocationsRaw {
		location, ok := s.parseLocation(ctx, posting, locationRaw)
		if !ok || seen[location] {
			continue
		}
		seen[location] = true
		locations = append(locations, location)
	}
	sort.Strings(locations)
	posting.Locations = locations
	return posting, nil
}

func (s LocationsStage) parseLocation(ctx context.Context, posting Posting, locationRaw string) (string, bool) {
	address, found, err := s.geocode(ctx, locationRaw)
	if err != nil {
		slog.ErrorContext(ctx, "geocoding failed",
			"location", locationRaw, "title", posting.Title,
			"company", posting.CompanyName, "err", err)
		return "", false
	}
	if !found || address.Place == "" {
		return "", false
	}
	return fmt.Sprintf("%s, %s", address.Place, Region(address)), true
}

func (s LocationsStage) geocode(ctx context.Context, locationRaw string) (geo.Address, bool, error) {
	for _, fastPath := range fastPaths {
		if fastPath.pattern.MatchString(locationRaw) {
			return fastPath.address, true, nil
		}
	}
	return s.Geocoder.Locate(ctx, locationRaw)
}
