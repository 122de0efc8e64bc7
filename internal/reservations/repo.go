package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/example/sabores-reservas/internal/db"
)

// Index names from the 0002 migration.
const (
	tableSlotIndex = "reservations_table_slot_confirmed"
	userSlotIndex  = "reservations_user_slot_confirmed"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

const tableCols = `id, number, capacity, status`

func scanTables(rows db.Rows) ([]Table, error) {
	defer rows.Close()
	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tableCols+` FROM restaurant_tables ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanTables(rows)
}

func (r *Repo) AvailableTables(ctx context.Context) ([]Table, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE status=$1 ORDER BY id`, TableAvailable)
	if err != nil {
		return nil, err
	}
	return scanTables(rows)
}

func (r *Repo) GetTable(ctx context.Context, id int64) (Table, error) {
	var t Table
	err := r.db.QueryRow(ctx, `SELECT `+tableCols+` FROM restaurant_tables WHERE id=$1`, id).
		Scan(&t.ID, &t.Number, &t.Capacity, &t.Status)
	if err != nil {
		return Table{}, notFound(err)
	}
	return t, nil
}

func (r *Repo) SetTableStatus(ctx context.Context, id int64, status string) error {
	return r.db.Exec(ctx, `UPDATE restaurant_tables SET status=$2 WHERE id=$1`, id, status)
}

// EnsureTable adds table number unless it exists and reports whether it did.
func (r *Repo) EnsureTable(ctx context.Context, number, capacity int) (bool, error) {
	n, err := r.db.ExecCount(ctx, `
INSERT INTO restaurant_tables(number, capacity) VALUES ($1, $2)
ON CONFLICT (number) DO NOTHING`, number, capacity)
	return n > 0, err
}

func (r *Repo) BookedTableIDs(ctx context.Context, date time.Time, hhmm string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
SELECT table_id FROM reservations
WHERE reservation_date=$1 AND reservation_time=$2 AND status='confirmed'`, date, hhmm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) TableBooked(ctx context.Context, tableID int64, date time.Time, hhmm string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM reservations
WHERE table_id=$1 AND reservation_date=$2 AND reservation_time=$3 AND status='confirmed')`,
		tableID, date, hhmm).Scan(&ok)
	return ok, err
}

func (r *Repo) UserBooked(ctx context.Context, userID int64, date time.Time, hhmm string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM reservations
WHERE user_id=$1 AND reservation_date=$2 AND reservation_time=$3 AND status='confirmed')`,
		userID, date, hhmm).Scan(&ok)
	return ok, err
}

func (r *Repo) Insert(ctx context.Context, res Reservation) (Reservation, error) {
	err := r.db.QueryRow(ctx, `
INSERT INTO reservations(user_id, table_id, reservation_date, reservation_time, party_size, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at, (SELECT number FROM restaurant_tables WHERE id=$2)`,
		res.UserID, res.TableID, res.Date, res.Time, res.PartySize, string(res.Status), res.Notes,
	).Scan(&res.ID, &res.CreatedAt, &res.TableNumber)
	if name, ok := db.UniqueViolation(err); ok {
		switch name {
		case tableSlotIndex:
			return Reservation{}, ErrTableSlotTaken
		case userSlotIndex:
			return Reservation{}, ErrUserSlotTaken
		}
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	return res, nil
}

func (r *Repo) InsertOrderLines(ctx context.Context, reservationID int64, lines []OrderLine) error {
	for _, l := range lines {
		var dishID, beverageID *int64
		id := l.ItemID
		switch l.Kind {
		case KindDish:
			dishID = &id
		case KindBeverage:
			beverageID = &id
		default:
			return fmt.Errorf("order line: unknown item kind %q", l.Kind)
		}
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		if err := r.db.Exec(ctx, `
INSERT INTO order_lines(reservation_id, dish_id, beverage_id, quantity) VALUES ($1,$2,$3,$4)`,
			reservationID, dishID, beverageID, qty); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) SetStatus(ctx context.Context, id int64, status Status) error {
	n, err := r.db.ExecCount(ctx, `UPDATE reservations SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const reservationSelect = `
SELECT r.id, r.user_id, r.table_id, t.number, r.reservation_date, r.reservation_time, r.party_size, r.status, r.notes, r.created_at
FROM reservations r
JOIN restaurant_tables t ON t.id = r.table_id`

func scanReservation(row db.Row) (Reservation, error) {
	var res Reservation
	var status string
	if err := row.Scan(&res.ID, &res.UserID, &res.TableID, &res.TableNumber, &res.Date, &res.Time,
		&res.PartySize, &status, &res.Notes, &res.CreatedAt); err != nil {
		return Reservation{}, err
	}
	res.Status = Status(status)
	return res, nil
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Reservation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (Reservation, error) {
	res, err := scanReservation(r.db.QueryRow(ctx, reservationSelect+` WHERE r.id=$1`, id))
	if err != nil {
		return Reservation{}, notFound(err)
	}
	return res, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Reservation, error) {
	return r.list(ctx, reservationSelect+`
WHERE r.user_id=$1
ORDER BY r.reservation_date DESC, r.reservation_time DESC`, userID)
}

func (r *Repo) ListConfirmedOn(ctx context.Context, date time.Time) ([]Reservation, error) {
	return r.list(ctx, reservationSelect+`
WHERE r.reservation_date=$1 AND r.status='confirmed'
ORDER BY r.reservation_time, r.id`, date)
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Reservation, error) {
	return r.list(ctx, reservationSelect+`
ORDER BY r.created_at DESC
LIMIT $1`, limit)
}

func (r *Repo) OrderSummary(ctx context.Context, reservationID int64) ([]SummaryLine, error) {
	rows, err := r.db.Query(ctx, `
SELECT CASE WHEN ol.dish_id IS NOT NULL THEN 'dish' ELSE 'beverage' END,
       COALESCE(d.name, b.name), ol.quantity, COALESCE(d.price_cents, b.price_cents)
FROM order_lines ol
LEFT JOIN dishes d ON d.id = ol.dish_id
LEFT JOIN beverages b ON b.id = ol.beverage_id
WHERE ol.reservation_id=$1
ORDER BY ol.id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryLine
	for rows.Next() {
		var l SummaryLine
		var kind string
		if err := rows.Scan(&kind, &l.Name, &l.Quantity, &l.UnitCents); err != nil {
			return nil, err
		}
		l.Kind = ItemKind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) CountSlots(ctx context.Context, from, to time.Time) ([]SlotCount, error) {
	rows, err := r.db.Query(ctx, `
SELECT reservation_date, reservation_time, count(*)
FROM reservations
WHERE status='confirmed' AND reservation_date BETWEEN $1 AND $2
GROUP BY reservation_date, reservation_time
ORDER BY reservation_date, reservation_time`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotCount
	for rows.Next() {
		var c SlotCount
		if err := rows.Scan(&c.Date, &c.Time, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) Stats(ctx context.Context, today time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE status='confirmed'),
       count(*) FILTER (WHERE status='cancelled'),
       count(*) FILTER (WHERE status='confirmed' AND reservation_date=$1),
       count(*) FILTER (WHERE status='confirmed' AND reservation_date>$1)
FROM reservations`, today).Scan(&s.Total, &s.Confirmed, &s.Cancelled, &s.Today, &s.Upcoming)
	return s, err
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("reservations: %w", err)
}
