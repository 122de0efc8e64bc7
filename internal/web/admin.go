package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/slots"
)

const adminListLimit = 200

type dashboardPage struct {
	Users  int
	Stats  reservations.Stats
	Recent []reservations.Reservation
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	users, err := s.Users.Count(r.Context())
	if err != nil {
		s.serverError(w, r, "AdminDashboard", err)
		return
	}
	stats, err := s.Reservations.Stats(r.Context())
	if err != nil {
		s.serverError(w, r, "AdminDashboard", err)
		return
	}
	recent, err := s.Reservations.Recent(r.Context(), 10)
	if err != nil {
		s.serverError(w, r, "AdminDashboard", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin.html", s.page(r, "Administración", dashboardPage{Users: users, Stats: stats, Recent: recent}))
}

func (s *Server) handleAdminReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Reservations.Recent(r.Context(), adminListLimit)
	if err != nil {
		s.serverError(w, r, "AdminReservations", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_reservations.html", s.page(r, "Reservas", rs))
}

func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, err := s.Reservations.Cancel(r.Context(), id, actor(r))
	if errors.Is(err, reservations.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, "AdminCancel", err)
		return
	}
	http.Redirect(w, r, "/admin/reservas", http.StatusSeeOther)
}

func (s *Server) handleAdminTables(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Reservations.Tables(r.Context())
	if err != nil {
		s.serverError(w, r, "AdminTables", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_tables.html", s.page(r, "Mesas", ts))
}

var tableStatuses = map[string]bool{
	reservations.TableAvailable: true,
	"maintenance":               true,
}

func (s *Server) handleAdminTableStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	status := r.FormValue("status")
	if !tableStatuses[status] {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	err := s.Reservations.SetTableStatus(r.Context(), id, status)
	if errors.Is(err, reservations.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, "AdminTableStatus", err)
		return
	}
	s.log(r).Info("Web:AdminTableStatus:Changed", "table_id", id, "status", status)
	http.Redirect(w, r, "/admin/mesas", http.StatusSeeOther)
}

func (s *Server) handleAdminMenu(w http.ResponseWriter, r *http.Request) {
	dishes, err := s.Menu.List(r.Context(), reservations.KindDish, false)
	if err != nil {
		s.serverError(w, r, "AdminMenu", err)
		return
	}
	beverages, err := s.Menu.List(r.Context(), reservations.KindBeverage, false)
	if err != nil {
		s.serverError(w, r, "AdminMenu", err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_menu.html", s.page(r, "Menú", menuPage{Dishes: dishes, Beverages: beverages}))
}

func (s *Server) handleAdminMenuAvailable(w http.ResponseWriter, r *http.Request) {
	kind, err := menu.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	available, err := strconv.ParseBool(r.FormValue("available"))
	if err != nil {
		http.Error(w, "invalid available flag", http.StatusBadRequest)
		return
	}
	err = s.Menu.SetAvailable(r.Context(), kind, id, available)
	if errors.Is(err, menu.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, "AdminMenuAvailable", err)
		return
	}
	http.Redirect(w, r, "/admin/menu", http.StatusSeeOther)
}

type calendarPage struct {
	Month      reservations.Month
	Slots      []slots.Slot
	Prev, Next time.Time
}

func (s *Server) handleAdminCalendar(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	year, month := now.Year(), now.Month()
	if v, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		year = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil {
		month = time.Month(v)
	}
	m, err := s.Reservations.Calendar(r.Context(), year, month)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	s.render(w, r, http.StatusOK, "admin_calendar.html", s.page(r, "Calendario", calendarPage{
		Month: m,
		Slots: s.Slots.All(),
		Prev:  first.AddDate(0, -1, 0),
		Next:  first.AddDate(0, 1, 0),
	}))
}
