// Package normalize maps vendor-shaped raw records into the canonical
// Listing schema. It is the only place allowed to interpret the loosely
// typed values adapters produce: every coercion here is total. A field
// that fails to parse becomes nil, never an error, so one malformed field
// cannot discard an otherwise-good record.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"market-scanner/models"
	"market-scanner/utils"
)

var (
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	digitsRegexp = regexp.MustCompile(`\d+`)
)

// fieldSynonyms lists, per canonical field, the raw keys accepted in
// priority order. The first present, non-null value wins.
var fieldSynonyms = map[string][]string{
	"title":        {"title", "name", "listing_title"},
	"price":        {"price", "rental_price", "monthly_rent", "current_price", "rate", "price_amount", "rate_amount", "price_unit_amount"},
	"external_id":  {"external_id", "id", "listing_id", "room_id"},
	"url":          {"url", "link", "listing_url"},
	"bedrooms":     {"bedrooms", "beds", "bedroom_count"},
	"bathrooms":    {"bathrooms", "baths", "bathroom_count"},
	"size_sqm":     {"size_sqm", "size", "floor_size", "area_sqm"},
	"rating":       {"rating", "rating_value", "review_score", "avg_rating", "star_rating"},
	"review_count": {"review_count", "reviews", "reviews_count", "visible_review_count", "rating_reviewCount", "rating_review_count"},
	"address":      {"address", "location", "subtitle", "neighborhood"},
	"amenities":    {"amenities", "unit_configuration", "facilities", "preview_amenities"},
	"price_period": {"price_period", "price_type"},
}

// sourcePeriods is each source's default price interval when the record
// carries none. Short-stay sources quote nightly, the rental grid monthly.
var sourcePeriods = map[string]models.PricePeriod{
	"geo-search-api": models.PerNight,
	"mobile-cards":   models.PerNight,
	"rental-grid":    models.PerMonth,
}

// ratingScales gives the top of each source's review scale. The mobile
// vendor scores out of 10; everything else already uses the canonical 0-5.
var ratingScales = map[string]float64{
	"mobile-cards": 10,
}

// Config bounds price sanity. Prices outside [PriceMin, PriceMax] are
// treated as scrape noise and nulled.
type Config struct {
	Currency string
	PriceMin float64
	PriceMax float64
}

// Normalizer converts RawRecords into Listings.
type Normalizer struct {
	log      *utils.Logger
	currency string
	priceMin float64
	priceMax float64
}

// New builds a Normalizer for the run's configured currency.
func New(log *utils.Logger, cfg Config) *Normalizer {
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	if cfg.PriceMax <= 0 {
		cfg.PriceMax = math.MaxFloat64
	}
	return &Normalizer{
		log:      log,
		currency: cfg.Currency,
		priceMin: cfg.PriceMin,
		priceMax: cfg.PriceMax,
	}
}

// Normalize maps one raw record into a canonical Listing. Records missing
// both a usable price and a title are rejected with a ValidationError;
// they are not worth indexing. Raw keys no synonym consumes are preserved
// as opaque metadata rather than silently dropped.
func (n *Normalizer) Normalize(raw *models.RawRecord, area string) (*models.Listing, error) {
	consumed := make(map[string]bool)
	pick := func(field string) (models.Value, bool) {
		for _, key := range fieldSynonyms[field] {
			if v, ok := raw.Get(key); ok {
				consumed[key] = true
				return v, true
			}
		}
		return models.Value{}, false
	}

	listing := &models.Listing{
		Source:      raw.SourceID,
		Currency:    n.currency,
		Area:        area,
		PricePeriod: n.pricePeriod(raw, pick),
		ReviewCount: 0,
		ScrapedAt:   time.Now(),
	}

	if v, ok := pick("title"); ok {
		listing.Title = collapseWhitespace(v.String())
	}
	if v, ok := pick("url"); ok {
		listing.URL = strings.TrimSpace(v.Str)
	}
	if v, ok := pick("external_id"); ok {
		listing.ExternalID = strings.TrimSpace(v.String())
	}
	if v, ok := pick("address"); ok {
		listing.Address = collapseWhitespace(v.String())
	}

	if v, ok := pick("price"); ok {
		listing.Price = n.sanePrice(parseNumber(v))
	}
	if v, ok := pick("bedrooms"); ok {
		listing.Bedrooms = parseCount(v)
	}
	if v, ok := pick("bathrooms"); ok {
		listing.Bathrooms = parseNumber(v)
	}
	if v, ok := pick("size_sqm"); ok {
		listing.SizeSqm = parseNumber(v)
	}
	if v, ok := pick("rating"); ok {
		listing.Rating = parseRating(v, ratingScale(raw.SourceID))
	}
	if v, ok := pick("review_count"); ok {
		listing.ReviewCount = parseReviewCount(v)
	}
	if v, ok := pick("amenities"); ok {
		listing.Amenities = normalizeAmenities(v)
	}

	if listing.Price == nil && listing.Title == "" {
		return nil, &models.ValidationError{
			Reason: fmt.Sprintf("%s record has neither price nor title", raw.SourceID),
		}
	}

	for key, v := range raw.Fields {
		if consumed[key] {
			continue
		}
		if listing.Metadata == nil {
			listing.Metadata = make(map[string]string)
		}
		listing.Metadata[key] = v.String()
	}

	return listing, nil
}

func (n *Normalizer) pricePeriod(raw *models.RawRecord, pick func(string) (models.Value, bool)) models.PricePeriod {
	if v, ok := pick("price_period"); ok {
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "monthly", "month", "per month":
			return models.PerMonth
		case "nightly", "night", "per night":
			return models.PerNight
		}
	}
	if p, ok := sourcePeriods[raw.SourceID]; ok {
		return p
	}
	return models.PerNight
}

// sanePrice nulls negative prices and values outside the configured band.
func (n *Normalizer) sanePrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	if *p < 0 || *p < n.priceMin || *p > n.priceMax {
		n.log.Debug("[normalize] price %.2f outside sanity band, dropping", *p)
		return nil
	}
	return p
}

// parseNumber coerces a raw value to a float. Strings are stripped of
// currency symbols, thousands separators and stray unicode spaces before
// the numeric parse; failure yields nil.
func parseNumber(v models.Value) *float64 {
	if v.Kind == models.KindNumber {
		f := v.Num
		return &f
	}

	s := strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\u202f", "").Replace(v.String())

	match := numberRegexp.FindString(s)
	if match == "" {
		return nil
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseCount coerces to a non-negative integer count, nil when unknown.
// Absence must never collapse into 0: zero is a real studio value.
func parseCount(v models.Value) *int {
	f := parseNumber(v)
	if f == nil || *f < 0 {
		return nil
	}
	i := int(*f)
	return &i
}

// parseRating accepts ratings in [0, scale] and maps them onto the
// canonical 0-5 band; anything outside the scale is unknown.
func parseRating(v models.Value, scale float64) *float64 {
	f := parseNumber(v)
	if f == nil || *f < 0 || *f > scale {
		return nil
	}
	if scale != 5 {
		scaled := *f * 5 / scale
		return &scaled
	}
	return f
}

func ratingScale(sourceID string) float64 {
	if s, ok := ratingScales[sourceID]; ok {
		return s
	}
	return 5
}

func parseReviewCount(v models.Value) int {
	if v.Kind == models.KindNumber {
		if v.Num < 0 {
			return 0
		}
		return int(v.Num)
	}
	match := digitsRegexp.FindString(strings.ReplaceAll(v.String(), ",", ""))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// normalizeAmenities maps raw amenity strings through the keyword table
// and dedupes into a sorted set.
func normalizeAmenities(v models.Value) []string {
	var text string
	switch v.Kind {
	case models.KindList:
		text = strings.Join(v.List, "\n")
	default:
		text = v.String()
	}
	return ExtractAmenities(text)
}

// collapseWhitespace trims and squeezes internal whitespace runs.
func collapseWhitespace(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
