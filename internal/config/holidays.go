package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Holiday is one entry of the holiday calendar file:
//
//	holidays:
//	  - date: 2026-11-03
//	    name: 文化の日
type Holiday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type holidayFile struct {
	Holidays []Holiday `yaml:"holidays"`
}

// LoadHolidays reads the YAML holiday calendar. An empty path yields no holidays.
func LoadHolidays(path string) ([]Holiday, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading holidays file: %w", err)
	}

	var f holidayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing holidays file: %w", err)
	}
	for _, h := range f.Holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return nil, fmt.Errorf("holiday %q: invalid date: %w", h.Name, err)
		}
	}
	return f.Holidays, nil
}
