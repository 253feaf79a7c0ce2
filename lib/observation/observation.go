package observation

import (
	"encoding/json"
	"strings"
	"time"
)

// Observation is a single field sighting of a species.
// Location and Notes are optional, empty means absent.
type Observation struct {
	ID        string `json:"id"`
	SpeciesID string `json:"speciesId"`
	Date      string `json:"date"`
	Location  string `json:"location,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt"`
}

const dateOnly = "2006-01-02"

// --------------------------------------------------------------------------
// Blob codec
// --------------------------------------------------------------------------

// decode parses the blob stored under the store key. The blob is a JSON array of records.
func decode(blob []byte) ([]Observation, error) {
	var observations []Observation
	if err := json.Unmarshal(blob, &observations); err != nil {
		return nil, err
	}
	return observations, nil
}

func encode(observations []Observation) ([]byte, error) {
	if observations == nil {
		observations = []Observation{}
	}
	return json.Marshal(observations)
}

// --------------------------------------------------------------------------
// Dates
// --------------------------------------------------------------------------

// parseDate accepts a calendar date (2024-03-01) or an RFC 3339 timestamp.
// dateOnlyInput is true for the first form.
func parseDate(s string) (t time.Time, dateOnlyInput bool, ok bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, true
	}
	return time.Time{}, false, false
}

// calendarDay is midnight UTC of the day the date was written for, ignoring its offset
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// monthKey returns "YYYY-MM" from the calendar fields of the date as written
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// compareObservations orders by date descending, then createdAt descending, then id descending.
// Observations with an unparseable date sort after all others.
func compareObservations(a, b Observation) int {
	ad, _, aok := parseDate(a.Date)
	bd, _, bok := parseDate(b.Date)
	switch {
	case aok && !bok:
		return -1
	case !aok && bok:
		return 1
	case aok && bok && !ad.Equal(bd):
		if ad.After(bd) {
			return -1
		}
		return 1
	}

	ac, aerr := time.Parse(time.RFC3339Nano, a.CreatedAt)
	bc, berr := time.Parse(time.RFC3339Nano, b.CreatedAt)
	if aerr == nil && berr == nil {
		if !ac.Equal(bc) {
			if ac.After(bc) {
				return -1
			}
			return 1
		}
	} else if c := strings.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
		return c
	}

	return strings.Compare(b.ID, a.ID)
}
