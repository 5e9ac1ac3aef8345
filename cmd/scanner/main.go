package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"market-scanner/config"
	"market-scanner/normalize"
	"market-scanner/runner"
	"market-scanner/schedule"
	"market-scanner/scraper"
	"market-scanner/scraper/geoapi"
	"market-scanner/scraper/gridsite"
	"market-scanner/scraper/mobilesite"
	"market-scanner/session"
	"market-scanner/storage"
	"market-scanner/utils"
)

func main() {
	var (
		areasFlag   = flag.String("areas", "", "comma-separated area names (default: all catalogued areas)")
		sourcesFlag = flag.String("sources", "", "comma-separated source IDs (default: all)")
	)
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Market Scanner starting ===")
	logger.Info("Config: parallel %d | retries %d | records/job %d | currency %s",
		cfg.MaxParallel, cfg.MaxRetries, cfg.MaxRecordsPerJob, cfg.Currency)

	catalogue, err := config.LoadAreas(cfg.AreasFile)
	if err != nil {
		logger.Error("Failed to load area catalogue: %v", err)
		os.Exit(1)
	}
	logger.Info("Loaded %d areas from %s", len(catalogue.Areas), cfg.AreasFile)

	chromeBin := findChromeBinary(cfg.ChromeBin)
	if chromeBin == "" {
		logger.Warn("No Chrome/Chromium binary found; browser-driven sources will fail")
	} else {
		logger.Info("Using browser binary: %s", chromeBin)
	}

	adapters := []scraper.Adapter{
		geoapi.New(logger, geoapi.Config{
			BaseURL:    cfg.GeoAPIBaseURL,
			Currency:   cfg.Currency,
			MaxRecords: cfg.MaxRecordsPerJob,
		}),
		gridsite.New(logger, gridsite.Config{
			BaseURL:    cfg.GridBaseURL,
			MaxRecords: cfg.MaxRecordsPerJob,
			PageWait:   cfg.PageWaitTimeout,
		}),
		mobilesite.New(logger, mobilesite.Config{
			BaseURL:    cfg.MobileBaseURL,
			MaxRecords: cfg.MaxRecordsPerJob,
		}),
	}

	sources := splitList(*sourcesFlag)
	if len(sources) == 0 {
		for _, a := range adapters {
			sources = append(sources, a.SourceID())
		}
	}

	jobs, err := runner.BuildJobs(catalogue, splitList(*areasFlag), sources, runner.DefaultStay(time.Now()))
	if err != nil {
		logger.Error("Failed to build jobs: %v", err)
		os.Exit(1)
	}

	sessions := session.NewManager(logger, session.ManagerConfig{
		BaseCooldown: cfg.SessionCooldown,
		HTTPTimeout:  cfg.RequestTimeout,
		ChromeBin:    chromeBin,
	})
	limiter := schedule.NewLimiter(logger, schedule.DomainBudget{
		MaxConcurrent: cfg.DomainConcurrency,
		MinDelay:      cfg.DelayMin,
		MaxDelay:      cfg.DelayMax,
	})
	for domain, b := range cfg.DomainBudgets {
		logger.Info("Domain budget for %s: %d concurrent, %v-%v spacing", domain, b.MaxConcurrent, b.DelayMin, b.DelayMax)
		limiter.SetBudget(domain, schedule.DomainBudget{
			MaxConcurrent: b.MaxConcurrent,
			MinDelay:      b.DelayMin,
			MaxDelay:      b.DelayMax,
		})
	}
	retrier := schedule.NewRetrier(logger, sessions, schedule.RetrierConfig{
		MaxAttempts: cfg.MaxRetries,
		DefaultBase: 2 * time.Second,
		// Browser-driven sources trip anti-bot defenses harder; give them
		// more room between attempts than the JSON API.
		BaseDelays: map[string]time.Duration{
			gridsite.SourceID:   8 * time.Second,
			mobilesite.SourceID: 5 * time.Second,
			geoapi.SourceID:     2 * time.Second,
		},
	})
	norm := normalize.New(logger, normalize.Config{
		Currency: cfg.Currency,
		PriceMin: cfg.PriceMin,
		PriceMax: cfg.PriceMax,
	})

	sink, cleanup, err := buildSink(logger, cfg)
	if err != nil {
		logger.Error("Failed to build sink: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	artifacts, err := storage.NewArtifactWriter(cfg.ArtifactDir, time.Now())
	if err != nil {
		logger.Error("Failed to create artifact writer: %v", err)
		os.Exit(1)
	}
	defer artifacts.Close()

	r := runner.New(logger, limiter, retrier, adapters, norm, sink, artifacts, runner.Config{
		MaxParallel:      cfg.MaxParallel,
		MaxRecordsPerJob: cfg.MaxRecordsPerJob,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := r.Run(ctx, jobs)
	if err != nil {
		logger.Error("Run failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n  Run %s: %d/%d jobs ok, %d listings (%d rejected) in %.1fs\n",
		stats.RunID, stats.JobsSucceeded, stats.JobsTotal, stats.RecordsTotal,
		stats.RecordsRejected, stats.FinishedAt.Sub(stats.StartedAt).Seconds())
	for src, n := range stats.RecordsPerSource {
		fmt.Printf("    %-16s %d\n", src, n)
	}
	fmt.Printf("  Artifacts in %s | Listings in PostgreSQL (listings table)\n\n", cfg.ArtifactDir)

	if stats.JobsSucceeded == 0 {
		os.Exit(1)
	}
}

// buildSink assembles the configured sinks: PostgreSQL always, Kafka when
// brokers are configured.
func buildSink(logger *utils.Logger, cfg *config.Config) (storage.Sink, func(), error) {
	pg, err := storage.NewPostgresSink(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return pg, func() { pg.Close() }, nil
	}

	logger.Info("Publishing listings to Kafka topic %q via %s",
		cfg.KafkaTopic, strings.Join(cfg.KafkaBrokers, ","))
	kf := storage.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	composite := storage.NewCompositeSink(pg, kf)
	return composite, func() { composite.Close() }, nil
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
