package models

import (
	"fmt"
	"time"
)

// GeoBounds is a north-east / south-west bounding box for map searches.
type GeoBounds struct {
	NELat  float64 `yaml:"ne_lat" json:"ne_lat"`
	NELong float64 `yaml:"ne_long" json:"ne_long"`
	SWLat  float64 `yaml:"sw_lat" json:"sw_lat"`
	SWLong float64 `yaml:"sw_long" json:"sw_long"`
}

// IsZero reports whether no bounding box was supplied.
func (b GeoBounds) IsZero() bool {
	return b.NELat == 0 && b.NELong == 0 && b.SWLat == 0 && b.SWLong == 0
}

// StayWindow is a check-in/check-out pair for short-stay sources.
// Long-term rental sources leave it empty.
type StayWindow struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// IsZero reports whether no stay window was supplied.
func (w StayWindow) IsZero() bool {
	return w.CheckIn.IsZero() && w.CheckOut.IsZero()
}

// Job identifies one unit of scrape work: one area against one source.
// Jobs are immutable once created.
type Job struct {
	AreaName   string
	Bounds     GeoBounds
	SearchTerm string
	SourceID   string
	Stay       StayWindow
}

// Validate checks that the job carries enough information for any adapter
// to act on it. A job failing validation is terminal and never retried.
func (j Job) Validate() error {
	if j.AreaName == "" {
		return &ValidationError{Reason: "job has no area name"}
	}
	if j.SourceID == "" {
		return &ValidationError{Reason: "job has no source id"}
	}
	if j.Bounds.IsZero() && j.SearchTerm == "" {
		return &ValidationError{Reason: fmt.Sprintf("job %q/%q has neither geo bounds nor a search term", j.AreaName, j.SourceID)}
	}
	return nil
}
