// Package testutil has in-memory stores and database helpers shared by tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/sabores-reservas/internal/reservations"
)

// Reservations is an in-memory reservations.Store. It enforces the same
// confirmed-slot uniqueness as the Postgres indexes and rolls back a failed
// WithTx.
type Reservations struct {
	txMu sync.Mutex
	mu   sync.Mutex

	tables  map[int64]reservations.Table
	rows    map[int64]reservations.Reservation
	lines   map[int64][]reservations.OrderLine
	names   map[reservations.ItemKind]map[int64]pricedName
	nextID  int64
	lineSeq int64

	// FailInsert, when set, is returned by Insert.
	FailInsert error
	// FailLines, when set, is returned by InsertOrderLines.
	FailLines error
	// SkipChecks makes TableBooked and UserBooked always report false, to
	// reach the uniqueness guard behind the validator.
	SkipChecks bool
}

type pricedName struct {
	name  string
	cents int64
}

func NewReservations() *Reservations {
	return &Reservations{
		tables: map[int64]reservations.Table{},
		rows:   map[int64]reservations.Reservation{},
		lines:  map[int64][]reservations.OrderLine{},
		names:  map[reservations.ItemKind]map[int64]pricedName{},
	}
}

func (s *Reservations) AddTable(t reservations.Table) reservations.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = reservations.TableAvailable
	}
	if t.Number == 0 {
		t.Number = int(t.ID)
	}
	s.tables[t.ID] = t
	return t
}

// NameItem lets OrderSummary resolve an order line's item.
func (s *Reservations) NameItem(kind reservations.ItemKind, id int64, name string, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[kind] == nil {
		s.names[kind] = map[int64]pricedName{}
	}
	s.names[kind][id] = pricedName{name: name, cents: cents}
}

// Seed stores r as is, bypassing the uniqueness checks.
func (s *Reservations) Seed(r reservations.Reservation) reservations.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	} else if r.ID > s.nextID {
		s.nextID = r.ID
	}
	if r.Status == "" {
		r.Status = reservations.StatusConfirmed
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.TableNumber = s.tables[r.TableID].Number
	s.rows[r.ID] = r
	return r
}

func (s *Reservations) Lines(reservationID int64) []reservations.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reservations.OrderLine(nil), s.lines[reservationID]...)
}

func (s *Reservations) All() []reservations.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reservations.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Reservations) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	rows := make(map[int64]reservations.Reservation, len(s.rows))
	for k, v := range s.rows {
		rows[k] = v
	}
	lines := make(map[int64][]reservations.OrderLine, len(s.lines))
	for k, v := range s.lines {
		lines[k] = append([]reservations.OrderLine(nil), v...)
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.rows, s.lines = rows, lines
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Reservations) sortedTables(onlyAvailable bool) []reservations.Table {
	var out []reservations.Table
	for _, t := range s.tables {
		if onlyAvailable && !t.Available() {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Reservations) ListTables(ctx context.Context) ([]reservations.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTables(false), nil
}

func (s *Reservations) AvailableTables(ctx context.Context) ([]reservations.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTables(true), nil
}

func (s *Reservations) GetTable(ctx context.Context, id int64) (reservations.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return reservations.Table{}, reservations.ErrNotFound
	}
	return t, nil
}

func (s *Reservations) SetTableStatus(ctx context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return reservations.ErrNotFound
	}
	t.Status = status
	s.tables[id] = t
	return nil
}

func sameSlot(r reservations.Reservation, date time.Time, hhmm string) bool {
	return r.Confirmed() && r.Date.Equal(date) && r.Time == hhmm
}

func (s *Reservations) BookedTableIDs(ctx context.Context, date time.Time, hhmm string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, r := range s.rows {
		if sameSlot(r, date, hhmm) {
			out = append(out, r.TableID)
		}
	}
	return out, nil
}

func (s *Reservations) TableBooked(ctx context.Context, tableID int64, date time.Time, hhmm string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SkipChecks {
		return false, nil
	}
	for _, r := range s.rows {
		if r.TableID == tableID && sameSlot(r, date, hhmm) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Reservations) UserBooked(ctx context.Context, userID int64, date time.Time, hhmm string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SkipChecks {
		return false, nil
	}
	for _, r := range s.rows {
		if r.UserID == userID && sameSlot(r, date, hhmm) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Reservations) Insert(ctx context.Context, r reservations.Reservation) (reservations.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsert != nil {
		return reservations.Reservation{}, s.FailInsert
	}
	if r.Confirmed() {
		for _, x := range s.rows {
			if !sameSlot(x, r.Date, r.Time) {
				continue
			}
			if x.TableID == r.TableID {
				return reservations.Reservation{}, reservations.ErrTableSlotTaken
			}
			if x.UserID == r.UserID {
				return reservations.Reservation{}, reservations.ErrUserSlotTaken
			}
		}
	}
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = time.Now()
	r.TableNumber = s.tables[r.TableID].Number
	s.rows[r.ID] = r
	return r, nil
}

func (s *Reservations) InsertOrderLines(ctx context.Context, reservationID int64, lines []reservations.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLines != nil {
		return s.FailLines
	}
	for _, l := range lines {
		s.lineSeq++
		l.ID = s.lineSeq
		l.ReservationID = reservationID
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		s.lines[reservationID] = append(s.lines[reservationID], l)
	}
	return nil
}

func (s *Reservations) SetStatus(ctx context.Context, id int64, status reservations.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return reservations.ErrNotFound
	}
	r.Status = status
	s.rows[id] = r
	return nil
}

func (s *Reservations) Get(ctx context.Context, id int64) (reservations.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return reservations.Reservation{}, reservations.ErrNotFound
	}
	return r, nil
}

func (s *Reservations) filter(keep func(reservations.Reservation) bool) []reservations.Reservation {
	var out []reservations.Reservation
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Reservations) ListByUser(ctx context.Context, userID int64) ([]reservations.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r reservations.Reservation) bool { return r.UserID == userID }), nil
}

func (s *Reservations) ListConfirmedOn(ctx context.Context, date time.Time) ([]reservations.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r reservations.Reservation) bool { return r.Confirmed() && r.Date.Equal(date) }), nil
}

func (s *Reservations) ListRecent(ctx context.Context, limit int) ([]reservations.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(func(reservations.Reservation) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Reservations) OrderSummary(ctx context.Context, reservationID int64) ([]reservations.SummaryLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reservations.SummaryLine
	for _, l := range s.lines[reservationID] {
		n := s.names[l.Kind][l.ItemID]
		out = append(out, reservations.SummaryLine{Kind: l.Kind, Name: n.name, Quantity: l.Quantity, UnitCents: n.cents})
	}
	return out, nil
}

func (s *Reservations) CountSlots(ctx context.Context, from, to time.Time) ([]reservations.SlotCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		date time.Time
		hhmm string
	}
	counts := map[key]int{}
	for _, r := range s.rows {
		if !r.Confirmed() || r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		counts[key{r.Date, r.Time}]++
	}
	var out []reservations.SlotCount
	for k, n := range counts {
		out = append(out, reservations.SlotCount{Date: k.date, Time: k.hhmm, Count: n})
	}
	return out, nil
}

func (s *Reservations) Stats(ctx context.Context, today time.Time) (reservations.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st reservations.Stats
	for _, r := range s.rows {
		st.Total++
		if !r.Confirmed() {
			st.Cancelled++
			continue
		}
		st.Confirmed++
		switch {
		case r.Date.Equal(today):
			st.Today++
		case r.Date.After(today):
			st.Upcoming++
		}
	}
	return st, nil
}
