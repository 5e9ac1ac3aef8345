// Package status tracks the lifecycle of scan runs in Redis so the HTTP
// API can report progress on runs started by another process.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-scanner/models"
)

// ErrRunNotFound is returned when no status exists for a run ID.
var ErrRunNotFound = errors.New("status: run not found")

// State is the coarse lifecycle of a run.
type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// RunStatus is the stored view of one run.
type RunStatus struct {
	RunID     string           `json:"run_id"`
	State     State            `json:"state"`
	Error     string           `json:"error,omitempty"`
	Stats     *models.RunStats `json:"stats,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store persists run statuses in Redis with a TTL, so finished runs stay
// queryable for a while without unbounded growth.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(addr, prefix string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("status: redis ping %q: %w", addr, err)
	}
	if prefix == "" {
		prefix = "scanner:run:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *Store) key(runID string) string {
	return s.prefix + runID
}

// Set writes or overwrites the status for a run.
func (s *Store) Set(ctx context.Context, st *RunStatus) error {
	st.UpdatedAt = time.Now()
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("status: marshal run %q: %w", st.RunID, err)
	}
	if err := s.client.Set(ctx, s.key(st.RunID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("status: store run %q: %w", st.RunID, err)
	}
	return nil
}

// Get fetches the status for a run, or ErrRunNotFound.
func (s *Store) Get(ctx context.Context, runID string) (*RunStatus, error) {
	payload, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("status: fetch run %q: %w", runID, err)
	}

	var st RunStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("status: decode run %q: %w", runID, err)
	}
	return &st, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
