// Package mobilesite scrapes the vendor's server-rendered mobile site:
// plain HTML card grids that need no JS rendering, fetched with the
// session's fingerprint headers and parsed with goquery.
package mobilesite

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"market-scanner/models"
	"market-scanner/scraper"
	"market-scanner/session"
	"market-scanner/utils"
)

const SourceID = "mobile-cards"

// Config carries the adapter's tunables.
type Config struct {
	BaseURL    string
	MaxRecords int
}

// Adapter fetches the mobile search results page for a job's search term
// and extracts one RawRecord per property card.
type Adapter struct {
	log        *utils.Logger
	baseURL    string
	maxRecords int
}

// New builds the mobile-site adapter.
func New(log *utils.Logger, cfg Config) *Adapter {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 30
	}
	return &Adapter{log: log, baseURL: cfg.BaseURL, maxRecords: cfg.MaxRecords}
}

func (a *Adapter) SourceID() string { return SourceID }

func (a *Adapter) Domain() string { return scraper.HostOf(a.baseURL) }

// Fetch loads the search results page. The page must contain the results
// container: a missing container with a challenge marker means we were
// blocked, while the vendor's explicit "no properties found" banner is a
// genuine empty result.
func (a *Adapter) Fetch(ctx context.Context, job models.Job, sess *session.Session) ([]*models.RawRecord, error) {
	if job.SearchTerm == "" {
		return nil, &models.ValidationError{Reason: fmt.Sprintf("mobile-cards job %q requires a search term", job.AreaName)}
	}

	req, err := sess.NewRequest(ctx, http.MethodGet, a.searchURL(job))
	if err != nil {
		return nil, &models.TransportError{Op: "build mobile request", Err: err}
	}

	resp, err := sess.Client().Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: "fetch mobile results", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &models.BlockedError{Domain: a.Domain(), Signal: "status " + resp.Status}
	case resp.StatusCode != http.StatusOK:
		return nil, &models.TransportError{Op: "fetch mobile results", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: "parse mobile HTML", Err: err}
	}

	records, err := ParseResults(doc, a.Domain())
	if err != nil {
		return nil, err
	}
	if len(records) > a.maxRecords {
		records = records[:a.maxRecords]
	}
	a.log.Debug("[mobilesite] %s: %d cards", job.AreaName, len(records))
	return records, nil
}

func (a *Adapter) searchURL(job models.Job) string {
	stay := job.Stay
	if stay.IsZero() {
		stay.CheckIn = time.Now().AddDate(0, 0, 7)
		stay.CheckOut = time.Now().AddDate(0, 0, 8)
	}

	q := url.Values{}
	q.Set("ss", job.SearchTerm)
	q.Set("checkin", stay.CheckIn.Format("2006-01-02"))
	q.Set("checkout", stay.CheckOut.Format("2006-01-02"))
	q.Set("group_adults", "2")
	q.Set("no_rooms", "1")

	return a.baseURL + "?" + q.Encode()
}
