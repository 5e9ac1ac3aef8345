package runner

import (
	"fmt"
	"time"

	"market-scanner/config"
	"market-scanner/models"
)

// BuildJobs expands the area catalogue into one job per area/source pair.
// Empty areaNames means every catalogued area; sourceIDs must be non-empty.
// The stay window applies to short-stay sources and is passed through on
// every job; adapters that do not use it ignore it.
func BuildJobs(cat *config.AreaCatalogue, areaNames, sourceIDs []string, stay models.StayWindow) ([]models.Job, error) {
	if len(sourceIDs) == 0 {
		return nil, fmt.Errorf("jobs: no sources requested")
	}

	areas := cat.Areas
	if len(areaNames) > 0 {
		areas = areas[:0:0]
		for _, name := range areaNames {
			a, ok := cat.Find(name)
			if !ok {
				return nil, fmt.Errorf("jobs: unknown area %q", name)
			}
			areas = append(areas, a)
		}
	}

	jobs := make([]models.Job, 0, len(areas)*len(sourceIDs))
	for _, a := range areas {
		for _, src := range sourceIDs {
			jobs = append(jobs, models.Job{
				AreaName:   a.Name,
				Bounds:     a.Bounds,
				SearchTerm: a.SearchTerm,
				SourceID:   src,
				Stay:       stay,
			})
		}
	}
	return jobs, nil
}

// DefaultStay returns the standard one-night stay window a week out,
// used when the caller does not choose dates.
func DefaultStay(now time.Time) models.StayWindow {
	day := now.Truncate(24 * time.Hour)
	return models.StayWindow{
		CheckIn:  day.AddDate(0, 0, 7),
		CheckOut: day.AddDate(0, 0, 8),
	}
}
