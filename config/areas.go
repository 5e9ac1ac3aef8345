package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"market-scanner/models"
)

// Area is one named search area from the catalogue file.
type Area struct {
	Name       string           `yaml:"name"`
	Bounds     models.GeoBounds `yaml:"bounds"`
	SearchTerm string           `yaml:"search_term"`
}

// AreaCatalogue is the parsed areas.yaml file.
type AreaCatalogue struct {
	Areas []Area `yaml:"areas"`
}

// LoadAreas reads the YAML area catalogue from the given path.
func LoadAreas(path string) (*AreaCatalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("areas: read %q: %w", path, err)
	}

	cat := &AreaCatalogue{}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("areas: parse %q: %w", path, err)
	}
	if len(cat.Areas) == 0 {
		return nil, fmt.Errorf("areas: %q contains no areas", path)
	}
	return cat, nil
}

// Find returns the area with the given name, if present.
func (c *AreaCatalogue) Find(name string) (Area, bool) {
	for _, a := range c.Areas {
		if a.Name == name {
			return a, true
		}
	}
	return Area{}, false
}
