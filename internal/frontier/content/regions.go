package content

import (
	"maps"
	"slices"
	"strings"
)

// regionQueries are the news search expressions behind each regional page.
var regionQueries = map[string]string{
	"australia": "Australia OR Sydney OR Melbourne OR ASX market finance economy",
	"africa":    `Africa OR Kenya OR Nigeria OR "South Africa" market finance economy`,
	"americas":  `Americas OR USA OR Canada OR Brazil OR "Latin America" market finance economy`,
	"asia":      "Asia OR China OR Japan OR India OR Singapore market finance economy",
	"europe":    "Europe OR UK OR Germany OR France OR ECB market finance economy",
}

// regionVideoQueries are the video search expressions for each region.
var regionVideoQueries = map[string]string{
	"australia": "Australia finance market economy ASX news",
	"africa":    "Africa finance market economy investment news",
	"americas":  "Americas finance market economy USA news",
	"asia":      "Asia finance market economy China Japan news",
	"europe":    "Europe finance market economy ECB UK news",
}

// Regions lists the supported region names in alphabetical order.
func Regions() []string {
	return slices.Sorted(maps.Keys(regionQueries))
}

func normalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}
