package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/metrics"
)

// Service is the entry point for booking, cancelling and reading
// reservations, shared by the web forms, the assistant and the CLI.
type Service struct {
	store     Store
	engine    *Engine
	validator *Validator

	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		engine:    NewEngine(store),
		validator: NewValidator(store),
		clock:     clock.NewSystem(nil),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Actor is who asks for a change. Admins may act on any reservation.
type Actor struct {
	UserID int64
	Admin  bool
}

func (a Actor) owns(r Reservation) bool { return a.Admin || r.UserID == a.UserID }

type Booking struct {
	Request
	Notes string
	Lines []OrderLine
}

func (s *Service) TablesAvailable(ctx context.Context, date time.Time, hhmm string) ([]Table, error) {
	return s.engine.TablesAvailable(ctx, clock.Date(date), hhmm)
}

func (s *Service) Validate(ctx context.Context, req Request) (Decision, error) {
	req.Date = clock.Date(req.Date)
	d, err := s.validator.Validate(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if d.Accepted() {
		s.metrics.Admission("accepted")
	} else {
		s.metrics.Admission(string(d.Reason))
		s.log.Info("Reservations:Validate:Rejected",
			"user_id", req.UserID, "table_id", req.TableID,
			"date", req.Date.Format(time.DateOnly), "time", req.Time, "reason", d.Reason)
	}
	return d, nil
}

// Create writes the reservation and its order lines in one transaction.
// It assumes Validate already accepted b; a conflict that slipped past the
// check comes back as *RejectedError.
func (s *Service) Create(ctx context.Context, b Booking) (Reservation, error) {
	if b.PartySize < 1 {
		return Reservation{}, &RejectedError{Reason: ReasonInvalidPartySize}
	}

	r := Reservation{
		UserID:    b.UserID,
		TableID:   b.TableID,
		Date:      clock.Date(b.Date),
		Time:      b.Time,
		PartySize: b.PartySize,
		Status:    StatusConfirmed,
		Notes:     b.Notes,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		created, err := s.store.Insert(ctx, r)
		if err != nil {
			return err
		}
		if len(b.Lines) > 0 {
			if err := s.store.InsertOrderLines(ctx, created.ID, b.Lines); err != nil {
				return fmt.Errorf("order lines: %w", err)
			}
		}
		r = created
		return nil
	})
	switch {
	case errors.Is(err, ErrTableSlotTaken):
		s.metrics.Reservation("conflict")
		return Reservation{}, &RejectedError{Reason: ReasonTableUnavailable}
	case errors.Is(err, ErrUserSlotTaken):
		s.metrics.Reservation("conflict")
		return Reservation{}, &RejectedError{Reason: ReasonDuplicateUserSlot}
	case err != nil:
		s.metrics.Reservation("error")
		return Reservation{}, fmt.Errorf("create reservation: %w", err)
	}

	s.metrics.Reservation("created")
	s.log.Info("Reservations:Create:Created",
		"reservation_id", r.ID, "user_id", r.UserID, "table_id", r.TableID,
		"date", r.Date.Format(time.DateOnly), "time", r.Time, "lines", len(b.Lines))
	return r, nil
}

// Book validates and creates in one call, for the direct booking form.
func (s *Service) Book(ctx context.Context, b Booking) (Reservation, error) {
	d, err := s.Validate(ctx, b.Request)
	if err != nil {
		return Reservation{}, err
	}
	if !d.Accepted() {
		return Reservation{}, &RejectedError{Reason: d.Reason}
	}
	return s.Create(ctx, b)
}

// Cancel marks a reservation cancelled. Cancelling twice is not an error.
// A reservation the actor does not own reads as ErrNotFound.
func (s *Service) Cancel(ctx context.Context, id int64, actor Actor) (Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !actor.owns(r) {
		return Reservation{}, ErrNotFound
	}
	if r.Status == StatusCancelled {
		return r, nil
	}
	if err := s.store.SetStatus(ctx, id, StatusCancelled); err != nil {
		return Reservation{}, fmt.Errorf("cancel reservation %d: %w", id, err)
	}
	r.Status = StatusCancelled
	s.log.Info("Reservations:Cancel:Cancelled", "reservation_id", id, "by_user", actor.UserID, "admin", actor.Admin)
	return r, nil
}

// AttachOrderLines appends lines to a confirmed reservation the actor owns.
func (s *Service) AttachOrderLines(ctx context.Context, id int64, actor Actor, lines []OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !actor.owns(r) {
			return ErrNotFound
		}
		if !r.Confirmed() {
			return ErrNotConfirmed
		}
		return s.store.InsertOrderLines(ctx, id, lines)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (Reservation, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetForActor(ctx context.Context, id int64, actor Actor) (Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !actor.owns(r) {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Reservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// Upcoming is the user's confirmed reservations from today on.
func (s *Service) Upcoming(ctx context.Context, userID int64) ([]Reservation, error) {
	all, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := clock.Date(s.clock.Now())
	var out []Reservation
	for _, r := range all {
		if r.Confirmed() && !r.Date.Before(today) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) ConfirmedOn(ctx context.Context, date time.Time) ([]Reservation, error) {
	return s.store.ListConfirmedOn(ctx, clock.Date(date))
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Reservation, error) {
	return s.store.ListRecent(ctx, limit)
}

func (s *Service) OrderSummary(ctx context.Context, id int64) ([]SummaryLine, error) {
	return s.store.OrderSummary(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx, clock.Date(s.clock.Now()))
}

func (s *Service) Tables(ctx context.Context) ([]Table, error) {
	return s.store.ListTables(ctx)
}

func (s *Service) SetTableStatus(ctx context.Context, id int64, status string) error {
	if _, err := s.store.GetTable(ctx, id); err != nil {
		return err
	}
	return s.store.SetTableStatus(ctx, id, status)
}
