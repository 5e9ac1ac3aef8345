package models

import "time"

// RunStats is the aggregate outcome of one orchestrator invocation. Every
// job lands in exactly one of succeeded/failed, and every extracted raw
// record in exactly one of normalized/rejected. Only the orchestrator
// mutates it; it serializes mutation behind its own lock.
type RunStats struct {
	RunID            string         `json:"run_id"`
	JobsTotal        int            `json:"jobs_total"`
	JobsSucceeded    int            `json:"jobs_succeeded"`
	JobsFailed       int            `json:"jobs_failed"`
	RecordsTotal     int            `json:"records_total"`
	RecordsPerSource map[string]int `json:"records_per_source"`
	RecordsRejected  int            `json:"records_rejected"`
	SinkErrors       int            `json:"sink_errors"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
}

// NewRunStats starts a stats record for the given run.
func NewRunStats(runID string, jobsTotal int) *RunStats {
	return &RunStats{
		RunID:            runID,
		JobsTotal:        jobsTotal,
		RecordsPerSource: make(map[string]int),
		StartedAt:        time.Now(),
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *RunStats) Clone() *RunStats {
	perSource := make(map[string]int, len(s.RecordsPerSource))
	for k, v := range s.RecordsPerSource {
		perSource[k] = v
	}
	out := *s
	out.RecordsPerSource = perSource
	return &out
}
