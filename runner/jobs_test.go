package runner

import (
	"testing"
	"time"

	"market-scanner/config"
	"market-scanner/models"
)

func testCatalogue() *config.AreaCatalogue {
	return &config.AreaCatalogue{Areas: []config.Area{
		{Name: "Sea Point", Bounds: models.GeoBounds{NELat: -33.89, NELong: 18.40, SWLat: -33.93, SWLong: 18.37}, SearchTerm: "sea point cape town"},
		{Name: "Camps Bay", Bounds: models.GeoBounds{NELat: -33.93, NELong: 18.39, SWLat: -33.97, SWLong: 18.36}, SearchTerm: "camps bay cape town"},
	}}
}

func TestBuildJobsCrossesAreasAndSources(t *testing.T) {
	jobs, err := BuildJobs(testCatalogue(), nil, []string{"geo-search-api", "rental-grid"}, models.StayWindow{})
	if err != nil {
		t.Fatalf("BuildJobs failed: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("jobs = %d; want 2 areas x 2 sources = 4", len(jobs))
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			t.Errorf("built job %s/%s invalid: %v", j.AreaName, j.SourceID, err)
		}
	}
}

func TestBuildJobsFiltersAreas(t *testing.T) {
	jobs, err := BuildJobs(testCatalogue(), []string{"Camps Bay"}, []string{"mobile-cards"}, models.StayWindow{})
	if err != nil {
		t.Fatalf("BuildJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].AreaName != "Camps Bay" {
		t.Errorf("jobs = %+v; want a single Camps Bay job", jobs)
	}
}

func TestBuildJobsRejectsUnknownArea(t *testing.T) {
	if _, err := BuildJobs(testCatalogue(), []string{"Atlantis"}, []string{"rental-grid"}, models.StayWindow{}); err == nil {
		t.Error("expected error for unknown area")
	}
}

func TestBuildJobsRejectsEmptySources(t *testing.T) {
	if _, err := BuildJobs(testCatalogue(), nil, nil, models.StayWindow{}); err == nil {
		t.Error("expected error for empty source list")
	}
}

func TestDefaultStay(t *testing.T) {
	now := time.Date(2026, 8, 30, 16, 45, 0, 0, time.UTC)
	stay := DefaultStay(now)

	if got := stay.CheckOut.Sub(stay.CheckIn); got != 24*time.Hour {
		t.Errorf("stay length = %v; want one night", got)
	}
	if stay.CheckIn.Before(now) {
		t.Error("check-in must be in the future")
	}
}
