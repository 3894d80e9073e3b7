package calendar

import (
	"testing"
	"time"
)

func testSchedule() VenueSchedule {
	s := DefaultEquitySchedule()
	s.Holidays["2024-07-04"] = Holiday{Date: mustTime("2024-07-04T00:00:00Z"), FullClose: true}
	s.Holidays["2024-11-29"] = Holiday{Date: mustTime("2024-11-29T00:00:00Z"), EarlyClose: 13 * time.Hour}
	return s
}

func TestMarketCalendar_IsTrading(t *testing.T) {
	cal := NewMarketCalendar(map[Venue]VenueSchedule{"NYSE": testSchedule()})

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"regular session open", mustTime("2024-07-01T14:00:00Z"), true},
		{"before open", mustTime("2024-07-01T09:00:00Z"), false},
		{"after close", mustTime("2024-07-01T21:00:00Z"), false},
		{"weekend", mustTime("2024-06-30T15:00:00Z"), false},
		{"full holiday", mustTime("2024-07-04T15:00:00Z"), false},
		{"early close still open", mustTime("2024-11-29T17:00:00Z"), true},
		{"early close past new close", mustTime("2024-11-29T19:00:00Z"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsTrading(tt.ts, "NYSE"); got != tt.want {
				t.Errorf("IsTrading(%s) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestMarketCalendar_NextSessionOpen_SkipsWeekendAndHoliday(t *testing.T) {
	cal := NewMarketCalendar(map[Venue]VenueSchedule{"NYSE": testSchedule()})

	// Wednesday July 3 2024 after close -> next open skips the July 4 holiday
	// and lands on Friday July 5.
	got, err := cal.NextSessionOpen(mustTime("2024-07-03T21:00:00Z"), "NYSE")
	if err != nil {
		t.Fatalf("NextSessionOpen: %v", err)
	}
	want := mustTime("2024-07-05T09:30:00Z")
	if !got.Equal(want) {
		t.Errorf("NextSessionOpen = %s, want %s", got, want)
	}
}

func TestMarketCalendar_AdvanceBusinessDays(t *testing.T) {
	cal := NewMarketCalendar(map[Venue]VenueSchedule{"NYSE": testSchedule()})

	// From Wednesday July 3 2024, +2 business days skips July 4 (holiday)
	// and the weekend of July 6-7: Fri 5, Mon 8.
	got, err := cal.AdvanceBusinessDays(mustTime("2024-07-03T00:00:00Z"), 2, "NYSE")
	if err != nil {
		t.Fatalf("AdvanceBusinessDays: %v", err)
	}
	want := mustTime("2024-07-08T00:00:00Z")
	if !got.Equal(want) {
		t.Errorf("AdvanceBusinessDays = %s, want %s", got, want)
	}
}

func TestMarketCalendar_UnknownVenue(t *testing.T) {
	cal := NewMarketCalendar(map[Venue]VenueSchedule{})
	if cal.IsTrading(time.Now(), "NASDAQ") {
		t.Error("IsTrading on unknown venue should be false")
	}
	if _, err := cal.NextSessionOpen(time.Now(), "NASDAQ"); err == nil {
		t.Error("NextSessionOpen on unknown venue should error")
	}
}
