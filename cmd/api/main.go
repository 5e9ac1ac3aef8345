package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"market-scanner/api"
	"market-scanner/config"
	"market-scanner/normalize"
	"market-scanner/runner"
	"market-scanner/schedule"
	"market-scanner/scraper"
	"market-scanner/scraper/geoapi"
	"market-scanner/scraper/gridsite"
	"market-scanner/scraper/mobilesite"
	"market-scanner/session"
	"market-scanner/status"
	"market-scanner/storage"
	"market-scanner/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Market Scanner API starting ===")

	catalogue, err := config.LoadAreas(cfg.AreasFile)
	if err != nil {
		logger.Error("Failed to load area catalogue: %v", err)
		os.Exit(1)
	}

	if cfg.RedisAddr == "" {
		logger.Error("REDIS_ADDR is required for the API server")
		os.Exit(1)
	}
	store, err := status.NewStore(cfg.RedisAddr, cfg.RedisKeyPrefix, 24*time.Hour)
	if err != nil {
		logger.Error("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	pg, err := storage.NewPostgresSink(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		os.Exit(1)
	}
	defer pg.Close()

	var sink storage.Sink = pg
	if len(cfg.KafkaBrokers) > 0 {
		sink = storage.NewCompositeSink(pg, storage.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	chromeBin := findChromeBinary(cfg.ChromeBin)
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
	sources := make([]string, 0, len(adapters))
	for _, a := range adapters {
		sources = append(sources, a.SourceID())
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
		limiter.SetBudget(domain, schedule.DomainBudget{
			MaxConcurrent: b.MaxConcurrent,
			MinDelay:      b.DelayMin,
			MaxDelay:      b.DelayMax,
		})
	}
	retrier := schedule.NewRetrier(logger, sessions, schedule.RetrierConfig{
		MaxAttempts: cfg.MaxRetries,
		DefaultBase: 2 * time.Second,
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

	r := runner.New(logger, limiter, retrier, adapters, norm, sink, nil, runner.Config{
		MaxParallel:      cfg.MaxParallel,
		MaxRecordsPerJob: cfg.MaxRecordsPerJob,
	})

	srv := api.NewServer(logger, r, store, catalogue, sources, pg)

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	logger.Info("API listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

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
	return ""
}
