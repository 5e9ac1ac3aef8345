package models

import "time"

// PricePeriod says what interval a listing price covers.
type PricePeriod string

const (
	PerNight PricePeriod = "nightly"
	PerMonth PricePeriod = "monthly"
)

// Listing is the canonical, persisted rental record. It is created by the
// normalizer from exactly one RawRecord and immutable afterwards.
//
// Bedrooms and Bathrooms are pointers: nil means "unknown", which must not
// collapse into 0 (a studio genuinely has 0 bedrooms). Price is nil when
// the source value failed to parse.
type Listing struct {
	Source      string            `json:"source"`
	ExternalID  string            `json:"external_id,omitempty"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Price       *float64          `json:"price"`
	Currency    string            `json:"currency"`
	PricePeriod PricePeriod       `json:"price_period"`
	Bedrooms    *int              `json:"bedrooms"`
	Bathrooms   *float64          `json:"bathrooms"`
	SizeSqm     *float64          `json:"size_sqm"`
	Rating      *float64          `json:"rating"`
	ReviewCount int               `json:"review_count"`
	Area        string            `json:"area"`
	Address     string            `json:"address,omitempty"`
	Amenities   []string          `json:"amenities"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ScrapedAt   time.Time         `json:"scraped_at"`
}
