// Package runner fans scrape jobs out through the scheduler, retry engine
// and adapters, normalizes what comes back, and streams canonical listings
// to the sink while aggregating run statistics.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-scanner/models"
	"market-scanner/normalize"
	"market-scanner/schedule"
	"market-scanner/scraper"
	"market-scanner/session"
	"market-scanner/storage"
	"market-scanner/utils"
)

// Config carries the orchestrator's tunables. MaxParallel bounds total
// in-flight jobs across all domains; per-domain budgets are the limiter's
// concern and independent of this.
type Config struct {
	MaxParallel      int
	MaxRecordsPerJob int
	AttemptTimeout   time.Duration
}

// Runner executes a set of jobs and reports RunStats. One job's failure
// never aborts the run; only an external cancellation or a fatal sink
// error stops scheduling, and even then in-flight attempts finish cleanly.
type Runner struct {
	log       *utils.Logger
	limiter   *schedule.Limiter
	retrier   *schedule.Retrier
	adapters  map[string]scraper.Adapter
	norm      *normalize.Normalizer
	sink      storage.Sink
	artifacts *storage.ArtifactWriter

	maxParallel    int
	maxRecords     int
	attemptTimeout time.Duration
}

// New builds a Runner over the given collaborators. The artifact writer
// may be nil when replay files are not wanted.
func New(
	log *utils.Logger,
	limiter *schedule.Limiter,
	retrier *schedule.Retrier,
	adapters []scraper.Adapter,
	norm *normalize.Normalizer,
	sink storage.Sink,
	artifacts *storage.ArtifactWriter,
	cfg Config,
) *Runner {
	byID := make(map[string]scraper.Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.SourceID()] = a
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.MaxRecordsPerJob <= 0 {
		cfg.MaxRecordsPerJob = 30
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 2 * time.Minute
	}
	return &Runner{
		log:            log,
		limiter:        limiter,
		retrier:        retrier,
		adapters:       byID,
		norm:           norm,
		sink:           sink,
		artifacts:      artifacts,
		maxParallel:    cfg.MaxParallel,
		maxRecords:     cfg.MaxRecordsPerJob,
		attemptTimeout: cfg.AttemptTimeout,
	}
}

// Run drives all jobs to a terminal state and returns the run's stats.
// Cancelling ctx stops further scheduling; jobs already fetching finish
// their current attempt so no browser session is abandoned mid-interaction.
func (r *Runner) Run(ctx context.Context, jobs []models.Job) (*models.RunStats, error) {
	return r.RunWithID(ctx, uuid.NewString(), jobs)
}

// RunWithID is Run with a caller-chosen run ID, for callers that need to
// track the run before it finishes.
func (r *Runner) RunWithID(ctx context.Context, runID string, jobs []models.Job) (*models.RunStats, error) {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	col := newCollector(runID, len(jobs))
	r.log.Info("[runner] run %s starting: %d jobs, parallelism %d",
		col.stats.RunID, len(jobs), r.maxParallel)

	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup

	for _, job := range jobs {
		job := job

		adapter, ok := r.adapters[job.SourceID]
		if !ok {
			r.log.Error("[runner] %s/%s: unknown source", job.AreaName, job.SourceID)
			col.jobFailed()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				r.log.Warn("[runner] %s/%s: not scheduled, run cancelled", job.AreaName, job.SourceID)
				col.jobFailed()
				return
			}
			if runCtx.Err() != nil {
				col.jobFailed()
				return
			}

			r.executeJob(runCtx, cancelRun, job, adapter, col)
		}()
	}

	wg.Wait()
	col.stats.FinishedAt = time.Now()

	s := col.snapshot()
	r.log.Info("[runner] run %s finished: jobs %d/%d ok, %d listings, %d rejected, %d sink errors (%.1fs)",
		s.RunID, s.JobsSucceeded, s.JobsTotal, s.RecordsTotal, s.RecordsRejected, s.SinkErrors,
		s.FinishedAt.Sub(s.StartedAt).Seconds())
	r.logCompleteness(col)

	return s, nil
}

func (r *Runner) executeJob(runCtx context.Context, cancelRun context.CancelFunc, job models.Job, adapter scraper.Adapter, col *collector) {
	var records []*models.RawRecord

	err := r.limiter.Do(runCtx, adapter.Domain(), func() error {
		var ferr error
		records, ferr = r.retrier.Run(runCtx, job, adapter.Domain(),
			func(_ context.Context, sess *session.Session) ([]*models.RawRecord, error) {
				// A started attempt runs to completion even when the run
				// is cancelled, bounded by its own timeout.
				attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), r.attemptTimeout)
				defer cancel()
				return adapter.Fetch(attemptCtx, job, sess)
			})
		return ferr
	})
	if err != nil {
		r.log.Error("[runner] %s/%s failed: %v", job.AreaName, job.SourceID, err)
		col.jobFailed()
		return
	}

	if len(records) > r.maxRecords {
		records = records[:r.maxRecords]
	}

	for _, raw := range records {
		listing, nerr := r.norm.Normalize(raw, job.AreaName)
		if nerr != nil {
			r.log.Warn("[runner] %s/%s: record rejected: %v", job.AreaName, job.SourceID, nerr)
			col.recordRejected()
			continue
		}

		if listing.URL != "" && !col.seen.Add(listing.URL) {
			col.recordRejected()
			continue
		}

		// Stream immediately so partial results survive a later crash.
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), 30*time.Second)
		serr := r.sink.Accept(sinkCtx, listing)
		cancel()
		if serr != nil {
			if errors.Is(serr, storage.ErrSinkFatal) {
				// A dead sink will not recover for this job's remaining
				// records either; abandon the loop and stop the run.
				r.log.Error("[runner] fatal sink error, cancelling run: %v", serr)
				col.sinkError()
				col.recordAccepted(listing)
				cancelRun()
				break
			}
			r.log.Warn("[runner] sink rejected %q: %v", listing.URL, serr)
			col.sinkError()
		}

		if r.artifacts != nil {
			if aerr := r.artifacts.Write(listing); aerr != nil {
				r.log.Warn("[runner] artifact write failed: %v", aerr)
			}
		}
		col.recordAccepted(listing)
	}

	col.jobSucceeded()
}

func (r *Runner) logCompleteness(col *collector) {
	s := col.snapshot()
	if s.RecordsTotal == 0 {
		return
	}
	col.mu.Lock()
	defer col.mu.Unlock()
	for _, field := range completenessFields {
		n := col.completeness[field]
		r.log.Info("[runner] field completeness %s: %d/%d (%.1f%%)",
			field, n, s.RecordsTotal, float64(n)/float64(s.RecordsTotal)*100)
	}
}
