package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DomainBudget is a per-domain override of the scheduler's defaults, for
// vendors that tolerate more or less load than the rest.
type DomainBudget struct {
	MaxConcurrent int
	DelayMin      time.Duration
	DelayMax      time.Duration
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr      string
	RedisKeyPrefix string

	Currency         string
	PriceMin         float64
	PriceMax         float64
	MaxParallel      int
	MaxRetries       int
	MaxRecordsPerJob int

	GeoAPIBaseURL string
	GridBaseURL   string
	MobileBaseURL string

	DomainConcurrency int
	DelayMin          time.Duration
	DelayMax          time.Duration
	DomainBudgets     map[string]DomainBudget
	SessionCooldown   time.Duration

	PageWaitTimeout time.Duration
	RequestTimeout  time.Duration

	AreasFile   string
	ArtifactDir string
	ChromeBin   string
	APIPort     int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scanner"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scanner123"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "listings.normalized"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "scanner:run:"),

		Currency:         getEnv("SCAN_CURRENCY", "ZAR"),
		PriceMin:         getEnvFloat("PRICE_MIN", 500),
		PriceMax:         getEnvFloat("PRICE_MAX", 500000),
		MaxParallel:      getEnvInt("MAX_PARALLEL", 4),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		MaxRecordsPerJob: getEnvInt("MAX_RECORDS_PER_JOB", 30),

		GeoAPIBaseURL: getEnv("GEO_API_BASE_URL", "https://www.airbnb.com/api/v3/map_search"),
		GridBaseURL:   getEnv("GRID_BASE_URL", "https://www.property24.com"),
		MobileBaseURL: getEnv("MOBILE_BASE_URL", "https://m.booking.com/searchresults.html"),

		DomainConcurrency: getEnvInt("DOMAIN_CONCURRENCY", 2),
		DelayMin:          getEnvDuration("DELAY_MIN_MS", 2000),
		DelayMax:          getEnvDuration("DELAY_MAX_MS", 5000),
		DomainBudgets:     parseDomainBudgets(getEnv("DOMAIN_BUDGETS", "")),
		SessionCooldown:   getEnvDuration("SESSION_COOLDOWN_MS", 60000),

		PageWaitTimeout: getEnvDuration("PAGE_WAIT_TIMEOUT_MS", 20000),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT_MS", 30000),

		AreasFile:   getEnv("AREAS_FILE", "./configs/areas.yaml"),
		ArtifactDir: getEnv("ARTIFACT_DIR", "./scan_results"),
		ChromeBin:   getEnv("CHROME_BIN", ""),
		APIPort:     getEnvInt("API_PORT", 8080),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

// parseDomainBudgets reads DOMAIN_BUDGETS entries of the form
// "domain=concurrency:minMs:maxMs", comma-separated, e.g.
// "www.property24.com=1:8000:15000,api.example.com=4:500:1500".
// Malformed entries are logged and skipped.
func parseDomainBudgets(s string) map[string]DomainBudget {
	budgets := make(map[string]DomainBudget)
	for _, entry := range splitCSV(s) {
		domain, spec, ok := strings.Cut(entry, "=")
		if !ok {
			log.Printf("[config] Ignoring malformed domain budget %q", entry)
			continue
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			log.Printf("[config] Ignoring malformed domain budget %q", entry)
			continue
		}
		conc, err1 := strconv.Atoi(parts[0])
		minMs, err2 := strconv.Atoi(parts[1])
		maxMs, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || conc <= 0 {
			log.Printf("[config] Ignoring malformed domain budget %q", entry)
			continue
		}
		budgets[strings.TrimSpace(domain)] = DomainBudget{
			MaxConcurrent: conc,
			DelayMin:      time.Duration(minMs) * time.Millisecond,
			DelayMax:      time.Duration(maxMs) * time.Millisecond,
		}
	}
	return budgets
}

func splitCSV(s string) []string {
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
