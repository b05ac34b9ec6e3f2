package entity

import (
	"testing"
	"time"
)

func TestAvailabilityMatch(t *testing.T) {
	a := &Availability{Slots: []Slot{
		{Time: "19:00", Area: "indoor"},
		{Time: "19:30", Area: "bar"},
		{Time: "19:30", Area: "outdoor"},
	}}

	tests := []struct {
		time, area string
		want       bool
	}{
		{"19:30", "outdoor", true},
		{"19:30", AreaAny, true},
		{"19:30", "indoor", false},
		{"20:00", AreaAny, false},
		{"19:00", "", true},
	}
	for _, tt := range tests {
		_, ok := a.Match(Criteria{Time: tt.time, Area: tt.area})
		if ok != tt.want {
			t.Errorf("Match(%s, %s) = %v, want %v", tt.time, tt.area, ok, tt.want)
		}
	}

	var empty *Availability
	if _, ok := empty.Match(Criteria{Time: "19:30"}); ok {
		t.Error("nil availability matched")
	}
}

func TestAvailabilityAlternatives(t *testing.T) {
	a := &Availability{Slots: []Slot{
		{Time: "17:00", Area: "indoor"},
		{Time: "18:45", Area: "indoor"},
		{Time: "18:45", Area: "indoor"},
		{Time: "19:30", Area: "indoor"},
		{Time: "20:00", Area: "bar"},
		{Time: "21:30", Area: "indoor"},
	}}

	got := a.Alternatives(Criteria{Time: "19:30", Area: "indoor"}, 3)
	want := []string{"18:45", "21:30", "17:00"}
	if len(got) != len(want) {
		t.Fatalf("Alternatives = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Time != want[i] {
			t.Errorf("Alternatives[%d] = %s, want %s", i, got[i].Time, want[i])
		}
	}

	if got := a.Alternatives(Criteria{Time: "19:30"}, 0); got != nil {
		t.Errorf("limit 0 returned %v", got)
	}
}

func TestSubscriptionExpiredAt(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, loc)
	sub := NewSubscription(ProviderResy, "1", Criteria{Date: "2025-03-17", Time: "19:30"}, created)

	if sub.ID == "" || !sub.IsActive() {
		t.Fatalf("new subscription = %+v", sub)
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"fresh", created.Add(time.Hour), false},
		{"window passed", created.Add(72 * time.Hour), true},
		{"reservation passed", time.Date(2025, 3, 17, 19, 30, 0, 0, loc), true},
		{"reservation ahead", time.Date(2025, 3, 12, 19, 29, 0, 0, loc), false},
	}
	for _, tt := range tests {
		if got := sub.ExpiredAt(tt.now, 72*time.Hour, loc); got != tt.want {
			t.Errorf("%s: ExpiredAt = %v, want %v", tt.name, got, tt.want)
		}
	}

	// without a window only the reservation time counts
	if sub.ExpiredAt(created.Add(100*time.Hour), 0, loc) {
		t.Error("expired without a window before the reservation time")
	}
}

func TestCriteriaGroupKey(t *testing.T) {
	a := Criteria{Restaurant: "x", Date: "2025-03-17", PartySize: 4, Time: "19:00", Area: "bar"}
	b := Criteria{Restaurant: "x", Date: "2025-03-17", PartySize: 4, Time: "21:00", Area: "outdoor"}
	c := Criteria{Restaurant: "x", Date: "2025-03-17", PartySize: 2}

	if a.GroupKey() != b.GroupKey() {
		t.Error("time and area split the group")
	}
	if a.GroupKey() == c.GroupKey() {
		t.Error("party size did not split the group")
	}
}
