package engine

import (
	"testing"
	"time"

	"simulor/libs/calendar"
)

func nyCalendar() *calendar.MarketCalendar {
	return calendar.NewMarketCalendar(map[calendar.Venue]calendar.VenueSchedule{
		"NYSE": calendar.DefaultEquitySchedule(),
	})
}

func TestSchedulerFiresDueCallbacksInPriorityOrder(t *testing.T) {
	s := NewScheduler(nyCalendar())
	at := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC) // a Tuesday

	var order []string
	s.Schedule(Callback{At: at, Priority: 2, Fn: func(time.Time) { order = append(order, "second") }})
	s.Schedule(Callback{At: at, Priority: 1, Fn: func(time.Time) { order = append(order, "first") }})
	s.Schedule(Callback{At: at.Add(time.Minute), Priority: 0, Fn: func(time.Time) { order = append(order, "future") }})

	s.Fire(at)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected fire order: %v", order)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 callback still queued, got %d", s.Len())
	}
}

func TestSchedulerIntervalRecurrence(t *testing.T) {
	s := NewScheduler(nyCalendar())
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	fires := 0
	s.Schedule(Callback{
		At:         start,
		Recurrence: Interval,
		Every:      time.Hour,
		Fn:         func(time.Time) { fires++ },
	})

	s.Fire(start)
	s.Fire(start.Add(time.Hour))
	s.Fire(start.Add(2 * time.Hour))

	if fires != 3 {
		t.Fatalf("expected 3 fires, got %d", fires)
	}
	if s.Len() != 1 {
		t.Fatalf("expected the recurring callback still armed, got %d queued", s.Len())
	}
}

func TestSchedulerDailyAtSkipsWeekendsWhenSessionBound(t *testing.T) {
	s := NewScheduler(nyCalendar())
	friday := time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC)

	var fired []time.Time
	s.Schedule(Callback{
		At:           friday,
		Recurrence:   DailyAt,
		SessionBound: true,
		Venue:        "NYSE",
		Fn:           func(now time.Time) { fired = append(fired, now) },
	})

	s.Fire(friday)
	monday := time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC)
	s.Fire(monday)

	if len(fired) != 2 {
		t.Fatalf("expected 2 fires (Friday, then Monday skipping the weekend), got %d", len(fired))
	}
}

func TestSchedulerOneShotDoesNotRearm(t *testing.T) {
	s := NewScheduler(nyCalendar())
	at := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	fires := 0
	s.Schedule(Callback{At: at, Fn: func(time.Time) { fires++ }})
	s.Fire(at)
	s.Fire(at.Add(24 * time.Hour))

	if fires != 1 {
		t.Fatalf("expected exactly 1 fire for a one-shot callback, got %d", fires)
	}
	if s.Len() != 0 {
		t.Fatalf("expected the queue empty after a one-shot fires, got %d", s.Len())
	}
}
