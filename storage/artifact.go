package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"market-scanner/models"
)

// ArtifactWriter persists one CSV file per area/source pair for replay and
// debugging. Files are named deterministically from area, source and the
// run timestamp. Not required for correctness; failures here must never
// fail a run.
type ArtifactWriter struct {
	dir      string
	runStamp string

	mu    sync.Mutex
	files map[string]*artifactFile
}

type artifactFile struct {
	f *os.File
	w *csv.Writer
}

var artifactHeader = []string{
	"source", "external_id", "url", "title", "price", "currency",
	"price_period", "bedrooms", "bathrooms", "size_sqm", "rating",
	"review_count", "area", "address", "amenities", "scraped_at",
}

// NewArtifactWriter creates the output directory and an ArtifactWriter
// stamped with the run's start time.
func NewArtifactWriter(dir string, start time.Time) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("artifact: create dir %q: %w", dir, err)
	}
	return &ArtifactWriter{
		dir:      dir,
		runStamp: start.Format("20060102_150405"),
		files:    make(map[string]*artifactFile),
	}, nil
}

// Write appends one listing to its area/source file.
func (a *ArtifactWriter) Write(l *models.Listing) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	af, err := a.fileFor(l.Source, l.Area)
	if err != nil {
		return err
	}

	row := []string{
		l.Source,
		l.ExternalID,
		l.URL,
		l.Title,
		formatFloatPtr(l.Price),
		l.Currency,
		string(l.PricePeriod),
		formatIntPtr(l.Bedrooms),
		formatFloatPtr(l.Bathrooms),
		formatFloatPtr(l.SizeSqm),
		formatFloatPtr(l.Rating),
		strconv.Itoa(l.ReviewCount),
		l.Area,
		l.Address,
		strings.Join(l.Amenities, "|"),
		l.ScrapedAt.Format(time.RFC3339),
	}
	if err := af.w.Write(row); err != nil {
		return fmt.Errorf("artifact: write row: %w", err)
	}
	af.w.Flush()
	return af.w.Error()
}

// Close flushes and closes every open artifact file.
func (a *ArtifactWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for _, af := range a.files {
		af.w.Flush()
		if err := af.f.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.files = make(map[string]*artifactFile)
	return first
}

func (a *ArtifactWriter) fileFor(source, area string) (*artifactFile, error) {
	key := source + "/" + area
	if af, ok := a.files[key]; ok {
		return af, nil
	}

	name := fmt.Sprintf("%s_%s_%s.csv", slug(source), slug(area), a.runStamp)
	f, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		return nil, fmt.Errorf("artifact: create %q: %w", name, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(artifactHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("artifact: write header: %w", err)
	}
	w.Flush()

	af := &artifactFile{f: f, w: w}
	a.files[key] = af
	return af, nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
