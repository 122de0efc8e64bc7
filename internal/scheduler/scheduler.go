package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/reservations"
)

type Reservations interface {
	ConfirmedOn(ctx context.Context, date time.Time) ([]reservations.Reservation, error)
}

type Reminder interface {
	Reminder(ctx context.Context, reservationID int64) error
}

// Scheduler sends the day-before reminders once a day at Hour, checking
// every Interval. The last sweep date is kept in memory only, so a restart
// after Hour sweeps the same day again.
type Scheduler struct {
	Reservations Reservations
	Notifier     Reminder
	Clock        clock.Clock
	Hour         int
	Interval     time.Duration
	Timeout      time.Duration
	Log          *slog.Logger

	mu       sync.Mutex
	lastDate time.Time
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.Clock.Now()
	today := clock.Date(now)

	s.mu.Lock()
	due := now.Hour() >= s.Hour && today.After(s.lastDate)
	if due {
		s.lastDate = today
	}
	s.mu.Unlock()

	if due {
		s.Sweep(ctx)
	}
}

// Sweep sends a reminder for every confirmed reservation tomorrow. One
// failed reminder does not stop the rest. It returns how many were sent.
func (s *Scheduler) Sweep(ctx context.Context) int {
	tomorrow := clock.Date(s.Clock.Now()).AddDate(0, 0, 1)
	log := s.logger().With("date", tomorrow.Format(time.DateOnly))

	rs, err := s.Reservations.ConfirmedOn(ctx, tomorrow)
	if err != nil {
		log.Error("Scheduler:Sweep:QueryFailed", "error", err)
		return 0
	}

	sent := 0
	for _, r := range rs {
		rctx, cancel := context.WithTimeout(ctx, s.timeout())
		err := s.Notifier.Reminder(rctx, r.ID)
		cancel()
		if err != nil {
			log.Error("Scheduler:Sweep:ReminderFailed", "reservation_id", r.ID, "error", err)
			continue
		}
		sent++
	}
	log.Info("Scheduler:Sweep:Done", "reservations", len(rs), "sent", sent)
	return sent
}

func (s *Scheduler) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.Timeout
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
