package reservations

import (
	"context"
	"time"
)

// Store is the persistence the reservation core needs. Implementations must
// enforce at most one confirmed reservation per (table, date, time) and per
// (user, date, time) and report violations as ErrTableSlotTaken and
// ErrUserSlotTaken.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	ListTables(ctx context.Context) ([]Table, error)
	AvailableTables(ctx context.Context) ([]Table, error)
	GetTable(ctx context.Context, id int64) (Table, error)
	SetTableStatus(ctx context.Context, id int64, status string) error

	BookedTableIDs(ctx context.Context, date time.Time, hhmm string) ([]int64, error)
	TableBooked(ctx context.Context, tableID int64, date time.Time, hhmm string) (bool, error)
	UserBooked(ctx context.Context, userID int64, date time.Time, hhmm string) (bool, error)

	Insert(ctx context.Context, r Reservation) (Reservation, error)
	InsertOrderLines(ctx context.Context, reservationID int64, lines []OrderLine) error
	SetStatus(ctx context.Context, id int64, status Status) error

	Get(ctx context.Context, id int64) (Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]Reservation, error)
	ListConfirmedOn(ctx context.Context, date time.Time) ([]Reservation, error)
	ListRecent(ctx context.Context, limit int) ([]Reservation, error)
	OrderSummary(ctx context.Context, reservationID int64) ([]SummaryLine, error)

	CountSlots(ctx context.Context, from, to time.Time) ([]SlotCount, error)
	Stats(ctx context.Context, today time.Time) (Stats, error)
}
