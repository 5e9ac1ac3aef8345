package runner

import (
	"sync"

	"market-scanner/models"
	"market-scanner/utils"
)

// completenessFields are the canonical fields reported in the end-of-run
// coverage summary.
var completenessFields = []string{
	"price", "bedrooms", "bathrooms", "size_sqm", "rating", "amenities",
}

// collector guards the run's mutable stats behind one mutex so job
// goroutines can report concurrently. RunStats itself stays a plain
// serializable struct.
type collector struct {
	mu           sync.Mutex
	stats        *models.RunStats
	completeness map[string]int
	seen         *utils.URLSet
}

func newCollector(runID string, jobsTotal int) *collector {
	return &collector{
		stats:        models.NewRunStats(runID, jobsTotal),
		completeness: make(map[string]int, len(completenessFields)),
		seen:         utils.NewURLSet(),
	}
}

func (c *collector) jobSucceeded() {
	c.mu.Lock()
	c.stats.JobsSucceeded++
	c.mu.Unlock()
}

func (c *collector) jobFailed() {
	c.mu.Lock()
	c.stats.JobsFailed++
	c.mu.Unlock()
}

func (c *collector) recordRejected() {
	c.mu.Lock()
	c.stats.RecordsRejected++
	c.mu.Unlock()
}

func (c *collector) sinkError() {
	c.mu.Lock()
	c.stats.SinkErrors++
	c.mu.Unlock()
}

func (c *collector) recordAccepted(l *models.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.RecordsTotal++
	c.stats.RecordsPerSource[l.Source]++

	if l.Price != nil {
		c.completeness["price"]++
	}
	if l.Bedrooms != nil {
		c.completeness["bedrooms"]++
	}
	if l.Bathrooms != nil {
		c.completeness["bathrooms"]++
	}
	if l.SizeSqm != nil {
		c.completeness["size_sqm"]++
	}
	if l.Rating != nil {
		c.completeness["rating"]++
	}
	if len(l.Amenities) > 0 {
		c.completeness["amenities"]++
	}
}

func (c *collector) snapshot() *models.RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Clone()
}
