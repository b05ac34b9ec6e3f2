package entity

import (
	"sort"
	"time"
)

// Restaurant is what a provider knows about a venue.
type Restaurant struct {
	Ref      string    `json:"ref" bson:"ref"`
	Provider string    `json:"provider" bson:"provider"`
	Name     string    `json:"name" bson:"name"`
	City     string    `json:"city" bson:"city"`
	Address  string    `json:"address" bson:"address"`
	URL      string    `json:"url" bson:"url"`
	CachedAt time.Time `json:"cached_at" bson:"cached_at"`
}

// Slot is one bookable time offered by a provider.
type Slot struct {
	Time  string `json:"time" bson:"time"`
	Area  string `json:"area" bson:"area"`
	Token string `json:"token,omitempty" bson:"token,omitempty"`
}

// Availability is the provider answer for one restaurant, date and party size.
type Availability struct {
	Slots         []Slot     `json:"slots"`
	OccupiedUntil *time.Time `json:"occupied_until,omitempty"`
}

// Match returns the slot that satisfies the requested time and area.
func (a *Availability) Match(c Criteria) (Slot, bool) {
	if a == nil {
		return Slot{}, false
	}
	for _, s := range a.Slots {
		if s.Time == c.Time && AreaMatches(c.Area, s.Area) {
			return s, true
		}
	}
	return Slot{}, false
}

// Alternatives returns up to limit other free times in the requested area, nearest first.
func (a *Availability) Alternatives(c Criteria, limit int) []Slot {
	if a == nil || limit <= 0 {
		return nil
	}
	want, err := time.Parse(TimeLayout, c.Time)
	if err != nil {
		return nil
	}

	type candidate struct {
		slot Slot
		diff time.Duration
	}
	seen := make(map[string]bool)
	var candidates []candidate
	for _, s := range a.Slots {
		if s.Time == c.Time || seen[s.Time] || !AreaMatches(c.Area, s.Area) {
			continue
		}
		t, err := time.Parse(TimeLayout, s.Time)
		if err != nil {
			continue
		}
		diff := t.Sub(want)
		if diff < 0 {
			diff = -diff
		}
		seen[s.Time] = true
		candidates = append(candidates, candidate{slot: s, diff: diff})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].diff < candidates[j].diff
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result := make([]Slot, len(candidates))
	for i, cd := range candidates {
		result[i] = cd.slot
	}
	return result
}
