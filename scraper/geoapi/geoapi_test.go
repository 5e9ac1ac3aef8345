package geoapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-scanner/models"
	"market-scanner/normalize"
	"market-scanner/session"
	"market-scanner/utils"
)

func testSession(t *testing.T, domain string) *session.Session {
	t.Helper()
	m := session.NewManager(utils.NewLogger(), session.ManagerConfig{BaseCooldown: time.Hour})
	sess, err := m.Acquire(context.Background(), domain)
	if err != nil {
		t.Fatalf("acquire session: %v", err)
	}
	return sess
}

func boundedJob() models.Job {
	return models.Job{
		AreaName: "Sea Point",
		SourceID: SourceID,
		Bounds:   models.GeoBounds{NELat: -33.89, NELong: 18.40, SWLat: -33.93, SWLong: 18.37},
	}
}

func newTestAdapter(serverURL string) *Adapter {
	return New(utils.NewLogger(), Config{BaseURL: serverURL, Currency: "ZAR", MaxRecords: 30})
}

func TestFetchExtractsResults(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"ne_lat":   r.URL.Query().Get("ne_lat"),
			"currency": r.URL.Query().Get("currency"),
			"checkin":  r.URL.Query().Get("checkin"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"id": "r1", "name": "Loft", "rate": {"amount": 1450, "currency": "ZAR"}, "amenity_ids": ["wifi", "pool"], "superhost": true},
			{"id": "r2", "name": "Studio", "rate": {"amount": 980}}
		]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	records, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d; want 2", len(records))
	}

	if gotQuery["ne_lat"] != "-33.8900" {
		t.Errorf("ne_lat = %q; want -33.8900", gotQuery["ne_lat"])
	}
	if gotQuery["currency"] != "ZAR" {
		t.Errorf("currency = %q; want ZAR", gotQuery["currency"])
	}
	if gotQuery["checkin"] == "" {
		t.Error("checkin missing; default stay window not applied")
	}

	first := records[0]
	if v, _ := first.Get("name"); v.Str != "Loft" {
		t.Errorf("name = %q", v.Str)
	}
	if v, ok := first.Get("rate_amount"); !ok || v.Num != 1450 {
		t.Errorf("rate_amount = %v; nested objects must flatten", v)
	}
	if v, ok := first.Get("amenity_ids"); !ok || len(v.List) != 2 {
		t.Errorf("amenity_ids = %v; want string list of 2", v.List)
	}
	if v, _ := first.Get("superhost"); v.Str != "true" {
		t.Errorf("superhost = %q; want \"true\"", v.Str)
	}
}

func TestFetchFlattensTwoLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"id": "r1", "name": "Penthouse",
			 "price": {"unit": {"amount": 2200, "currency": "ZAR"}},
			 "rating": {"value": 4.9, "reviewCount": 87}}
		]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	records, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d; want 1", len(records))
	}

	rec := records[0]
	if v, ok := rec.Get("price_unit_amount"); !ok || v.Num != 2200 {
		t.Errorf("price_unit_amount = %v; second-level objects must flatten", v)
	}
	if v, ok := rec.Get("rating_value"); !ok || v.Num != 4.9 {
		t.Errorf("rating_value = %v; want 4.9", v)
	}
	if v, ok := rec.Get("rating_reviewCount"); !ok || v.Num != 87 {
		t.Errorf("rating_reviewCount = %v; want 87", v)
	}
}

func TestFetchedRecordsNormalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"id": "r1", "name": "Loft", "rate": {"amount": 1450, "currency": "ZAR"}}
		]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	records, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d; want 1", len(records))
	}

	n := normalize.New(utils.NewLogger(), normalize.Config{Currency: "ZAR"})
	listing, err := n.Normalize(records[0], "Sea Point")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if listing.Price == nil || *listing.Price != 1450 {
		t.Fatalf("Price = %v; want 1450 carried through from the nested rate", listing.Price)
	}
	if listing.Title != "Loft" {
		t.Errorf("Title = %q; want Loft", listing.Title)
	}
	if _, stranded := listing.Metadata["rate_amount"]; stranded {
		t.Error("rate_amount stranded in metadata instead of feeding the price")
	}
}

func TestFetchTruncatesToMaxRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [`))
		for i := 0; i < 45; i++ {
			if i > 0 {
				w.Write([]byte(","))
			}
			w.Write([]byte(`{"id": "x", "rate": {"amount": 100}}`))
		}
		w.Write([]byte(`]}`))
	}))
	defer srv.Close()

	a := New(utils.NewLogger(), Config{BaseURL: srv.URL, MaxRecords: 30})
	records, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 30 {
		t.Errorf("records = %d; want 30 after truncation", len(records))
	}
}

func TestFetchEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	records, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	if err != nil {
		t.Fatalf("Fetch = %v; empty box is a valid outcome", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("records = %v; want empty non-nil slice", records)
	}
}

func TestFetchTreatsForbiddenAsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	_, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	var blocked *models.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("Fetch = %v; want BlockedError on 403", err)
	}
}

func TestFetchTreatsHTMLBodyAsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>Are you a robot?</body></html>`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	_, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	var blocked *models.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("Fetch = %v; want BlockedError on interstitial HTML", err)
	}
}

func TestFetchServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	_, err := a.Fetch(context.Background(), boundedJob(), testSession(t, a.Domain()))
	var transport *models.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Fetch = %v; want TransportError on 502", err)
	}
	if !models.Retryable(err) {
		t.Error("transport errors must be retryable")
	}
}

func TestFetchRequiresBounds(t *testing.T) {
	a := newTestAdapter("http://api.example.com")
	job := models.Job{AreaName: "Nowhere", SourceID: SourceID, SearchTerm: "nowhere"}

	_, err := a.Fetch(context.Background(), job, nil)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Fetch = %v; want ValidationError without bounds", err)
	}
}
