package observation

import (
	"time"

	"github.com/ValentinKolb/fieldlog/lib/species"
)

// Statistics are aggregates over all observations
type Statistics struct {
	Total          int            `json:"total"`
	CountBySpecies map[string]int `json:"countBySpecies"`
	// CountByMonth is keyed by "YYYY-MM". Observations with an unparseable date are not counted.
	CountByMonth map[string]int `json:"countByMonth"`
	// CountByType is nil if the store has no catalog to resolve species types.
	CountByType *TypeCounts `json:"countByType"`
}

// TypeCounts splits observations by the type of their species.
// Unresolved counts observations whose species id the catalog does not know.
type TypeCounts struct {
	Fish       int `json:"fish"`
	Bird       int `json:"bird"`
	Unresolved int `json:"unresolved"`
}

// Statistics computes the aggregates over the current collection
func (s *Store) Statistics() (Statistics, error) {
	defer s.metrics.observe("statistics", time.Now())

	observations, err := s.load()
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Total:          len(observations),
		CountBySpecies: make(map[string]int),
		CountByMonth:   make(map[string]int),
	}
	if s.catalog != nil {
		stats.CountByType = &TypeCounts{}
	}

	for _, o := range observations {
		stats.CountBySpecies[o.SpeciesID]++

		if d, _, ok := parseDate(o.Date); ok {
			stats.CountByMonth[monthKey(d)]++
		}

		if stats.CountByType == nil {
			continue
		}
		sp, ok := s.catalog.Lookup(o.SpeciesID)
		switch {
		case !ok:
			stats.CountByType.Unresolved++
		case sp.Type == species.TypeFish:
			stats.CountByType.Fish++
		case sp.Type == species.TypeBird:
			stats.CountByType.Bird++
		default:
			stats.CountByType.Unresolved++
		}
	}

	return stats, nil
}
