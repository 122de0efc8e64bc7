package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/slots"
)

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Reservations.ListForUser(r.Context(), actor(r).UserID)
	if err != nil {
		s.serverError(w, r, "Reservations", err)
		return
	}
	s.render(w, r, http.StatusOK, "reservations.html", s.page(r, "Mis reservas", rs))
}

type reservationForm struct {
	Slots     []slots.Slot
	MinDate   string
	Date      string
	Time      string
	PartySize int
	TableID   int64
	Notes     string
}

func (s *Server) newForm() reservationForm {
	return reservationForm{
		Slots:     s.Slots.All(),
		MinDate:   clock.Date(s.now()).Format(time.DateOnly),
		PartySize: 2,
	}
}

func (s *Server) handleReservationNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "new_reservation.html", s.page(r, "Nueva reserva", s.newForm()))
}

func (s *Server) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := s.newForm()
	form.Date = strings.TrimSpace(r.FormValue("date"))
	form.Time = strings.TrimSpace(r.FormValue("time"))
	form.Notes = strings.TrimSpace(r.FormValue("notes"))
	form.PartySize, _ = strconv.Atoi(r.FormValue("party_size"))
	form.TableID, _ = strconv.ParseInt(r.FormValue("table_id"), 10, 64)

	fail := func(status int, msg string) {
		d := s.page(r, "Nueva reserva", form)
		d.Flash = msg
		s.render(w, r, status, "new_reservation.html", d)
	}

	date, err := time.Parse(time.DateOnly, form.Date)
	if err != nil {
		fail(http.StatusUnprocessableEntity, "Fecha no válida.")
		return
	}
	if date.Before(clock.Date(s.now())) {
		fail(http.StatusUnprocessableEntity, "La fecha no puede estar en el pasado.")
		return
	}
	if !s.Slots.IsSlot(form.Time) {
		fail(http.StatusUnprocessableEntity, "Elige uno de los horarios disponibles.")
		return
	}
	if form.TableID <= 0 {
		fail(http.StatusUnprocessableEntity, "Elige una mesa.")
		return
	}

	res, err := s.Reservations.Book(r.Context(), reservations.Booking{
		Request: reservations.Request{
			UserID: actor(r).UserID, TableID: form.TableID,
			Date: date, Time: form.Time, PartySize: form.PartySize,
		},
		Notes: form.Notes,
	})
	if reason, ok := reservations.Rejection(err); ok {
		fail(http.StatusConflict, reason.Message())
		return
	}
	if err != nil {
		s.serverError(w, r, "ReservationCreate", err)
		return
	}

	s.confirm(r, res.ID)
	http.Redirect(w, r, "/reservas/"+strconv.FormatInt(res.ID, 10), http.StatusSeeOther)
}

// confirm sends the confirmation mail. A failure is logged and does not undo
// the booking.
func (s *Server) confirm(r *http.Request, id int64) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if err := s.Notifier.Confirmation(ctx, id); err != nil {
		s.log(r).Error("Web:Confirm:NotifyFailed", "reservation_id", id, "error", err)
	}
}

type reservationPage struct {
	Reservation reservations.Reservation
	Lines       []reservations.SummaryLine
	TotalCents  int64
	SlotLabel   string
}

func (s *Server) handleReservation(w http.ResponseWriter, r *http.Request) {
	res, ok := s.ownReservation(w, r)
	if !ok {
		return
	}
	lines, err := s.Reservations.OrderSummary(r.Context(), res.ID)
	if err != nil {
		s.serverError(w, r, "Reservation", err)
		return
	}
	p := reservationPage{Reservation: res, Lines: lines, SlotLabel: s.Slots.Label(res.Time)}
	for _, l := range lines {
		p.TotalCents += l.TotalCents()
	}
	s.render(w, r, http.StatusOK, "reservation.html", s.page(r, "Reserva #"+strconv.FormatInt(res.ID, 10), p))
}

func (s *Server) ownReservation(w http.ResponseWriter, r *http.Request) (reservations.Reservation, bool) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return reservations.Reservation{}, false
	}
	res, err := s.Reservations.GetForActor(r.Context(), id, actor(r))
	if errors.Is(err, reservations.ErrNotFound) {
		http.NotFound(w, r)
		return reservations.Reservation{}, false
	}
	if err != nil {
		s.serverError(w, r, "Reservation", err)
		return reservations.Reservation{}, false
	}
	return res, true
}

// handleCancelConfirm is where the cancel link in the confirmation mail lands.
func (s *Server) handleCancelConfirm(w http.ResponseWriter, r *http.Request) {
	res, ok := s.ownReservation(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "cancel.html", s.page(r, "Cancelar reserva", res))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, err := s.Reservations.Cancel(r.Context(), id, reservations.Actor{UserID: actor(r).UserID})
	if errors.Is(err, reservations.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, "Cancel", err)
		return
	}
	http.Redirect(w, r, "/reservas", http.StatusSeeOther)
}

type tableJSON struct {
	ID       int64 `json:"id"`
	Number   int   `json:"number"`
	Capacity int   `json:"capacity"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := time.Parse(time.DateOnly, q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	hhmm := q.Get("time")
	if !s.Slots.IsSlot(hhmm) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "time must be one of " + strings.Join(s.Slots.Starts(), ", ")})
		return
	}
	party, _ := strconv.Atoi(q.Get("party_size"))

	tables, err := s.Reservations.TablesAvailable(r.Context(), date, hhmm)
	if err != nil {
		s.log(r).Error("Web:Availability:Failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "availability unavailable"})
		return
	}
	out := make([]tableJSON, 0, len(tables))
	for _, t := range tables {
		if party > 0 && t.Capacity < party {
			continue
		}
		out = append(out, tableJSON{ID: t.ID, Number: t.Number, Capacity: t.Capacity})
	}
	writeJSON(w, http.StatusOK, out)
}
