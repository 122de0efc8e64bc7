package reservations

import (
	"context"
	"time"
)

type Engine struct {
	store Store
}

func NewEngine(s Store) *Engine { return &Engine{store: s} }

// TablesAvailable returns the tables open for booking at exactly (date, hhmm),
// lowest id first. hhmm is not checked against the slot schedule.
func (e *Engine) TablesAvailable(ctx context.Context, date time.Time, hhmm string) ([]Table, error) {
	tables, err := e.store.AvailableTables(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := e.store.BookedTableIDs(ctx, date, hhmm)
	if err != nil {
		return nil, err
	}

	taken := make(map[int64]struct{}, len(booked))
	for _, id := range booked {
		taken[id] = struct{}{}
	}

	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if _, ok := taken[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
