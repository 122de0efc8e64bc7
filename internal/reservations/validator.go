package reservations

import (
	"context"
	"errors"
	"time"
)

type Request struct {
	UserID    int64
	TableID   int64
	Date      time.Time
	Time      string
	PartySize int
}

type Validator struct {
	store Store
}

func NewValidator(s Store) *Validator { return &Validator{store: s} }

// Validate runs the admission rules in order and stops at the first failure.
// Conflicts are read from the store on every call.
func (v *Validator) Validate(ctx context.Context, req Request) (Decision, error) {
	table, err := v.store.GetTable(ctx, req.TableID)
	if errors.Is(err, ErrNotFound) {
		return Reject(ReasonTableNotFound), nil
	}
	if err != nil {
		return Decision{}, err
	}

	if req.PartySize < 1 {
		return Reject(ReasonInvalidPartySize), nil
	}
	if table.Capacity < req.PartySize {
		return Reject(ReasonInsufficientCapacity), nil
	}
	if !table.Available() {
		return Reject(ReasonTableUnavailable), nil
	}

	booked, err := v.store.TableBooked(ctx, req.TableID, req.Date, req.Time)
	if err != nil {
		return Decision{}, err
	}
	if booked {
		return Reject(ReasonTableUnavailable), nil
	}

	dup, err := v.store.UserBooked(ctx, req.UserID, req.Date, req.Time)
	if err != nil {
		return Decision{}, err
	}
	if dup {
		return Reject(ReasonDuplicateUserSlot), nil
	}

	return Accept(), nil
}
