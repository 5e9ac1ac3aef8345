package normalize

import (
	"regexp"
	"sort"
)

// amenityPatterns maps free-text keywords to canonical amenity names.
// Mirrors the facility vocabulary of the long-term-rental vendors.
var amenityPatterns = map[string]*regexp.Regexp{
	"parking":          regexp.MustCompile(`(?i)parking|garage|carport|\bbay\b`),
	"security":         regexp.MustCompile(`(?i)security|24.?hour|guard|access control`),
	"pool":             regexp.MustCompile(`(?i)\bpool\b|swimming`),
	"gym":              regexp.MustCompile(`(?i)\bgym\b|fitness`),
	"balcony":          regexp.MustCompile(`(?i)balcony|patio|terrace`),
	"view":             regexp.MustCompile(`(?i)\bview\b|sea.?facing|overlook`),
	"pet_friendly":     regexp.MustCompile(`(?i)pet.?friendly|pets allowed`),
	"furnished":        regexp.MustCompile(`(?i)furnished|fully equipped`),
	"wifi":             regexp.MustCompile(`(?i)wi.?fi|internet|broadband|fibre`),
	"air_conditioning": regexp.MustCompile(`(?i)air.?con|cooling|climate control`),
	"washing_machine":  regexp.MustCompile(`(?i)washing machine|laundry`),
	"dishwasher":       regexp.MustCompile(`(?i)dishwasher`),
	"elevator":         regexp.MustCompile(`(?i)elevator|\blift\b`),
	"kitchen":          regexp.MustCompile(`(?i)kitchen|kitchenette`),
}

// ExtractAmenities matches free text against the amenity keyword table and
// returns the canonical amenities found, sorted and deduplicated.
func ExtractAmenities(text string) []string {
	if text == "" {
		return nil
	}
	var found []string
	for name, re := range amenityPatterns {
		if re.MatchString(text) {
			found = append(found, name)
		}
	}
	sort.Strings(found)
	return found
}
