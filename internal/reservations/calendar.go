package reservations

import (
	"context"
	"fmt"
	"time"
)

type CalendarDay struct {
	Date  time.Time
	Slots map[string]int // HH:MM -> confirmed reservations
	Total int
}

type Month struct {
	Year  int
	Month time.Month
	Days  []CalendarDay
}

// Calendar counts confirmed reservations per day and slot for one month.
// Every day of the month is present, including empty ones.
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) (Month, error) {
	if month < time.January || month > time.December {
		return Month{}, fmt.Errorf("invalid month %d", month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	counts, err := s.store.CountSlots(ctx, first, next.AddDate(0, 0, -1))
	if err != nil {
		return Month{}, err
	}

	out := Month{Year: year, Month: month}
	byDay := map[int]int{}
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		byDay[d.Day()] = len(out.Days)
		out.Days = append(out.Days, CalendarDay{Date: d, Slots: map[string]int{}})
	}
	for _, c := range counts {
		if c.Date.Year() != year || c.Date.Month() != month {
			continue
		}
		day := &out.Days[byDay[c.Date.Day()]]
		day.Slots[c.Time] += c.Count
		day.Total += c.Count
	}
	return out, nil
}
