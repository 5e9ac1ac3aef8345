package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"market-scanner/models"
)

func sampleListing() *models.Listing {
	price := 25000.0
	beds := 2
	return &models.Listing{
		Source:      "rental-grid",
		ExternalID:  "115483720",
		URL:         "https://grid.example.com/to-rent/sea-point/115483720",
		Title:       "Modern Apartment in Sea Point",
		Price:       &price,
		Currency:    "ZAR",
		PricePeriod: models.PerMonth,
		Bedrooms:    &beds,
		Area:        "Sea Point",
		Amenities:   []string{"parking", "pool"},
		ScrapedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

type capturingWriter struct {
	messages []kafka.Message
	fail     error
	closed   bool
}

func (c *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.messages = append(c.messages, msgs...)
	return nil
}

func (c *capturingWriter) Close() error {
	c.closed = true
	return nil
}

func TestKafkaSinkPublishesKeyedByURL(t *testing.T) {
	w := &capturingWriter{}
	sink := NewKafkaSinkWithWriter(w)

	l := sampleListing()
	if err := sink.Accept(context.Background(), l); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("messages = %d; want 1", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != l.URL {
		t.Errorf("key = %q; want the listing URL", msg.Key)
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["title"] != l.Title {
		t.Errorf("payload title = %v; want %q", payload["title"], l.Title)
	}
	if payload["price"].(float64) != 25000 {
		t.Errorf("payload price = %v; want 25000", payload["price"])
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !w.closed {
		t.Error("underlying writer not closed")
	}
}

func TestArtifactWriterGroupsBySourceAndArea(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 8, 30, 14, 30, 5, 0, time.UTC)

	w, err := NewArtifactWriter(dir, start)
	if err != nil {
		t.Fatalf("NewArtifactWriter failed: %v", err)
	}

	if err := w.Write(sampleListing()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	other := sampleListing()
	other.Area = "Camps Bay"
	other.URL = "https://grid.example.com/to-rent/camps-bay/1"
	if err := w.Write(other); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, "rental_grid_sea_point_20260830_143005.csv")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected artifact file missing: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d; want header + 1 listing", len(rows))
	}
	if rows[0][0] != "source" {
		t.Errorf("header starts with %q; want source", rows[0][0])
	}
	if rows[1][4] != "25000" {
		t.Errorf("price cell = %q; want 25000", rows[1][4])
	}

	if _, err := os.Stat(filepath.Join(dir, "rental_grid_camps_bay_20260830_143005.csv")); err != nil {
		t.Errorf("second area did not get its own file: %v", err)
	}
}

func TestArtifactWriterRendersNilAsEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewArtifactWriter(dir, time.Now())
	if err != nil {
		t.Fatalf("NewArtifactWriter failed: %v", err)
	}

	l := sampleListing()
	l.Price = nil
	l.Bedrooms = nil
	if err := w.Write(l); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("artifact files = %d; want 1", len(entries))
	}
	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if rows[1][4] != "" || rows[1][7] != "" {
		t.Errorf("nil price/bedrooms rendered as %q/%q; want empty cells", rows[1][4], rows[1][7])
	}
}

type stubSink struct {
	accepted int
	fail     error
	closed   bool
}

func (s *stubSink) Accept(context.Context, *models.Listing) error {
	if s.fail != nil {
		return s.fail
	}
	s.accepted++
	return nil
}

func (s *stubSink) Close() error {
	s.closed = true
	return nil
}

func TestCompositeSinkFansOut(t *testing.T) {
	a, b := &stubSink{}, &stubSink{}
	c := NewCompositeSink(a, b)

	if err := c.Accept(context.Background(), sampleListing()); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if a.accepted != 1 || b.accepted != 1 {
		t.Errorf("accepted = %d/%d; want 1/1", a.accepted, b.accepted)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("not all member sinks closed")
	}
}

func TestCompositeSinkKeepsWritingPastNonFatalErrors(t *testing.T) {
	a := &stubSink{fail: errors.New("kafka down")}
	b := &stubSink{}
	c := NewCompositeSink(a, b)

	err := c.Accept(context.Background(), sampleListing())
	if err == nil {
		t.Fatal("expected the member error to surface")
	}
	if errors.Is(err, ErrSinkFatal) {
		t.Error("plain member error escalated to fatal")
	}
	if b.accepted != 1 {
		t.Errorf("healthy sink accepted %d; want 1", b.accepted)
	}
}

func TestCompositeSinkFatalShortCircuits(t *testing.T) {
	a := &stubSink{fail: ErrSinkFatal}
	b := &stubSink{}
	c := NewCompositeSink(a, b)

	err := c.Accept(context.Background(), sampleListing())
	if !errors.Is(err, ErrSinkFatal) {
		t.Fatalf("Accept = %v; want ErrSinkFatal", err)
	}
	if b.accepted != 0 {
		t.Errorf("sink after a fatal member accepted %d writes; want 0", b.accepted)
	}
}
