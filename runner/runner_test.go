package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"market-scanner/models"
	"market-scanner/normalize"
	"market-scanner/schedule"
	"market-scanner/scraper"
	"market-scanner/session"
	"market-scanner/storage"
	"market-scanner/utils"
)

type fakeAdapter struct {
	id     string
	domain string
	fetch  func(job models.Job) ([]*models.RawRecord, error)
}

func (f *fakeAdapter) SourceID() string { return f.id }
func (f *fakeAdapter) Domain() string   { return f.domain }
func (f *fakeAdapter) Fetch(_ context.Context, job models.Job, _ *session.Session) ([]*models.RawRecord, error) {
	return f.fetch(job)
}

type memSink struct {
	mu       sync.Mutex
	listings []*models.Listing
	fail     error
}

func (m *memSink) Accept(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.listings = append(m.listings, l)
	return nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listings)
}

func newTestRunner(t *testing.T, adapters []scraper.Adapter, sink storage.Sink, cfg Config) *Runner {
	t.Helper()
	log := utils.NewLogger()
	sessions := session.NewManager(log, session.ManagerConfig{BaseCooldown: time.Hour})
	limiter := schedule.NewLimiter(log, schedule.DomainBudget{MaxConcurrent: 2})
	retrier := schedule.NewRetrier(log, sessions, schedule.RetrierConfig{
		MaxAttempts: 2,
		DefaultBase: time.Millisecond,
		Jitter:      time.Millisecond,
	})
	norm := normalize.New(log, normalize.Config{Currency: "ZAR"})
	return New(log, limiter, retrier, adapters, norm, sink, nil, cfg)
}

func apiRecords(n int) []*models.RawRecord {
	records := make([]*models.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := models.NewRawRecord("geo-search-api")
		rec.Set("title", models.Str(fmt.Sprintf("Listing %d", i)))
		rec.Set("price", models.Num(float64(800+i)))
		rec.Set("url", models.Str(fmt.Sprintf("https://api.example.com/rooms/%d", i)))
		records = append(records, rec)
	}
	return records
}

func apiJob() models.Job {
	return models.Job{AreaName: "Sea Point", SourceID: "geo-search-api", SearchTerm: "sea point"}
}

func TestRunTruncatesToPerJobCap(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch:  func(models.Job) ([]*models.RawRecord, error) { return apiRecords(45), nil },
	}
	sink := &memSink{}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{MaxRecordsPerJob: 30})

	stats, err := r.Run(context.Background(), []models.Job{apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.RecordsTotal != 30 {
		t.Errorf("RecordsTotal = %d; want 30", stats.RecordsTotal)
	}
	if sink.count() != 30 {
		t.Errorf("sink received %d listings; want 30", sink.count())
	}
	for _, l := range sink.listings {
		if l.Source != "geo-search-api" {
			t.Fatalf("listing source = %q; want geo-search-api", l.Source)
		}
	}
	if stats.RecordsPerSource["geo-search-api"] != 30 {
		t.Errorf("RecordsPerSource = %v; want 30 for geo-search-api", stats.RecordsPerSource)
	}
}

func TestRunIsolatesJobFailures(t *testing.T) {
	good := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch:  func(models.Job) ([]*models.RawRecord, error) { return apiRecords(3), nil },
	}
	bad := &fakeAdapter{
		id:     "rental-grid",
		domain: "grid.example.com",
		fetch: func(models.Job) ([]*models.RawRecord, error) {
			return nil, &models.ValidationError{Reason: "hopeless"}
		},
	}
	sink := &memSink{}
	r := newTestRunner(t, []scraper.Adapter{good, bad}, sink, Config{})

	jobs := []models.Job{
		apiJob(),
		{AreaName: "Sea Point", SourceID: "rental-grid", SearchTerm: "sea point"},
	}
	stats, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.JobsSucceeded != 1 || stats.JobsFailed != 1 {
		t.Errorf("jobs = %d ok / %d failed; want 1/1", stats.JobsSucceeded, stats.JobsFailed)
	}
	if sink.count() != 3 {
		t.Errorf("sink received %d listings; want 3 from the healthy job", sink.count())
	}
}

func TestRunCountsRejectedRecords(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch: func(models.Job) ([]*models.RawRecord, error) {
			good := apiRecords(2)
			junk := models.NewRawRecord("geo-search-api")
			junk.Set("host_badge", models.Str("superhost"))
			return append(good, junk), nil
		},
	}
	sink := &memSink{}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{})

	stats, err := r.Run(context.Background(), []models.Job{apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.RecordsTotal != 2 {
		t.Errorf("RecordsTotal = %d; want 2", stats.RecordsTotal)
	}
	if stats.RecordsRejected != 1 {
		t.Errorf("RecordsRejected = %d; want 1", stats.RecordsRejected)
	}
}

func TestRunDeduplicatesByURL(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch: func(models.Job) ([]*models.RawRecord, error) {
			a := apiRecords(1)[0]
			b := models.NewRawRecord("geo-search-api")
			b.Set("title", models.Str("Same place, second card"))
			b.Set("price", models.Num(900))
			b.Set("url", models.Str("https://api.example.com/rooms/0"))
			return []*models.RawRecord{a, b}, nil
		},
	}
	sink := &memSink{}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{})

	stats, err := r.Run(context.Background(), []models.Job{apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sink.count() != 1 {
		t.Errorf("sink received %d listings; want 1 after URL dedupe", sink.count())
	}
	if stats.RecordsTotal != 1 || stats.RecordsRejected != 1 {
		t.Errorf("total/rejected = %d/%d; want 1/1", stats.RecordsTotal, stats.RecordsRejected)
	}
}

func TestRunCountsSinkErrors(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch:  func(models.Job) ([]*models.RawRecord, error) { return apiRecords(2), nil },
	}
	sink := &memSink{fail: fmt.Errorf("disk full")}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{})

	stats, err := r.Run(context.Background(), []models.Job{apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.SinkErrors != 2 {
		t.Errorf("SinkErrors = %d; want 2", stats.SinkErrors)
	}
	// Non-fatal sink errors must not fail the job.
	if stats.JobsSucceeded != 1 {
		t.Errorf("JobsSucceeded = %d; want 1", stats.JobsSucceeded)
	}
}

type fatalSink struct {
	mu      sync.Mutex
	accepts int
}

func (f *fatalSink) Accept(_ context.Context, _ *models.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts++
	return fmt.Errorf("writer gone: %w", storage.ErrSinkFatal)
}

func (f *fatalSink) Close() error { return nil }

func TestRunFatalSinkStopsStreaming(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch:  func(models.Job) ([]*models.RawRecord, error) { return apiRecords(5), nil },
	}
	sink := &fatalSink{}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{})

	stats, err := r.Run(context.Background(), []models.Job{apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A dead sink must not be offered the job's remaining listings.
	if sink.accepts != 1 {
		t.Errorf("Accept called %d times; want 1 before abandoning the loop", sink.accepts)
	}
	if stats.SinkErrors != 1 {
		t.Errorf("SinkErrors = %d; want 1", stats.SinkErrors)
	}
	if stats.RecordsTotal != 1 {
		t.Errorf("RecordsTotal = %d; want 1", stats.RecordsTotal)
	}
}

func TestRunFailsUnknownSource(t *testing.T) {
	sink := &memSink{}
	r := newTestRunner(t, nil, sink, Config{})

	stats, err := r.Run(context.Background(), []models.Job{{AreaName: "X", SourceID: "nope", SearchTerm: "x"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.JobsFailed != 1 {
		t.Errorf("JobsFailed = %d; want 1", stats.JobsFailed)
	}
}

func TestRunCancelledBeforeStartFailsAllJobs(t *testing.T) {
	adapter := &fakeAdapter{
		id:     "geo-search-api",
		domain: "api.example.com",
		fetch:  func(models.Job) ([]*models.RawRecord, error) { return apiRecords(1), nil },
	}
	sink := &memSink{}
	r := newTestRunner(t, []scraper.Adapter{adapter}, sink, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := r.Run(ctx, []models.Job{apiJob(), apiJob()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.JobsFailed != 2 {
		t.Errorf("JobsFailed = %d; want 2 when cancelled before scheduling", stats.JobsFailed)
	}
}
