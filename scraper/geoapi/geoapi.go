// Package geoapi scrapes the map-search JSON API source: a structured
// endpoint queried with a bounding box and stay window.
package geoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"market-scanner/models"
	"market-scanner/scraper"
	"market-scanner/session"
	"market-scanner/utils"
)

const SourceID = "geo-search-api"

// Config carries the adapter's tunables.
type Config struct {
	BaseURL    string
	Currency   string
	MaxRecords int
	ZoomLevel  int
}

// Adapter queries the geo-search endpoint and maps each result object into
// a RawRecord. Results are truncated to MaxRecords per job to bound
// downstream cost.
type Adapter struct {
	log        *utils.Logger
	baseURL    string
	currency   string
	maxRecords int
	zoom       int
}

// New builds the geo-search adapter.
func New(log *utils.Logger, cfg Config) *Adapter {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 30
	}
	if cfg.ZoomLevel <= 0 {
		cfg.ZoomLevel = 14
	}
	if cfg.Currency == "" {
		cfg.Currency = "ZAR"
	}
	return &Adapter{
		log:        log,
		baseURL:    cfg.BaseURL,
		currency:   cfg.Currency,
		maxRecords: cfg.MaxRecords,
		zoom:       cfg.ZoomLevel,
	}
}

func (a *Adapter) SourceID() string { return SourceID }

func (a *Adapter) Domain() string { return scraper.HostOf(a.baseURL) }

// searchResponse is the vendor's search envelope.
type searchResponse struct {
	Results []map[string]any `json:"results"`
}

// Fetch calls the search endpoint for the job's bounding box. A 200 with
// an empty results array is a genuine empty area, not an error.
func (a *Adapter) Fetch(ctx context.Context, job models.Job, sess *session.Session) ([]*models.RawRecord, error) {
	if job.Bounds.IsZero() {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("geo-search job %q requires geo bounds", job.AreaName)}
	}

	req, err := sess.NewRequest(ctx, http.MethodGet, a.searchURL(job))
	if err != nil {
		return nil, &models.TransportError{Op: "build search request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := sess.Client().Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: "search " + job.AreaName, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "status " + resp.Status}
	case resp.StatusCode != http.StatusOK:
		return nil, &models.TransportError{Op: "search " + job.AreaName, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	// A CAPTCHA interstitial comes back as HTML on this endpoint.
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "non-JSON response: " + ct}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: "read search body", Err: err}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "unparseable search body"}
	}

	if len(sr.Results) == 0 {
		a.log.Info("[geoapi] %s: no listings in bounding box", job.AreaName)
		return []*models.RawRecord{}, nil
	}

	results := sr.Results
	if len(results) > a.maxRecords {
		a.log.Debug("[geoapi] %s: truncating %d results to %d", job.AreaName, len(results), a.maxRecords)
		results = results[:a.maxRecords]
	}

	records := make([]*models.RawRecord, 0, len(results))
	for _, obj := range results {
		rec := models.NewRawRecord(SourceID)
		flattenInto(rec, "", obj, 0)
		records = append(records, rec)
	}
	return records, nil
}

func (a *Adapter) searchURL(job models.Job) string {
	stay := job.Stay
	if stay.IsZero() {
		// Single-night window one week out, matching the scanner's
		// default market snapshot.
		stay.CheckIn = time.Now().AddDate(0, 0, 7)
		stay.CheckOut = time.Now().AddDate(0, 0, 8)
	}

	q := url.Values{}
	q.Set("ne_lat", formatCoord(job.Bounds.NELat))
	q.Set("ne_long", formatCoord(job.Bounds.NELong))
	q.Set("sw_lat", formatCoord(job.Bounds.SWLat))
	q.Set("sw_long", formatCoord(job.Bounds.SWLong))
	q.Set("zoom", strconv.Itoa(a.zoom))
	q.Set("checkin", stay.CheckIn.Format("2006-01-02"))
	q.Set("checkout", stay.CheckOut.Format("2006-01-02"))
	q.Set("currency", a.currency)
	q.Set("price_min", "0")
	q.Set("price_max", "100000")

	return a.baseURL + "?" + q.Encode()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// maxFlattenDepth bounds how far nested vendor objects are walked. Two
// levels covers the envelope's deepest useful shape (price.unit.amount).
const maxFlattenDepth = 2

// flattenInto converts a decoded JSON object into tagged raw values,
// flattening nested objects with underscore-joined names up to
// maxFlattenDepth. Unknown shapes are skipped rather than guessed at.
func flattenInto(rec *models.RawRecord, prefix string, obj map[string]any, depth int) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := v.(type) {
		case string:
			rec.Set(key, models.Str(val))
		case float64:
			rec.Set(key, models.Num(val))
		case bool:
			rec.Set(key, models.Str(strconv.FormatBool(val)))
		case []any:
			items := make([]string, 0, len(val))
			for _, it := range val {
				if s, ok := it.(string); ok {
					items = append(items, s)
				}
			}
			rec.Set(key, models.List(items...))
		case map[string]any:
			if depth < maxFlattenDepth {
				flattenInto(rec, key, val, depth+1)
			}
		}
	}
}
