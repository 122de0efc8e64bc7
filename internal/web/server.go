package web

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/metrics"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/slots"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Users interface {
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
	CreateUser(ctx context.Context, nu auth.NewUser) (auth.User, error)
	Count(ctx context.Context) (int, error)
}

type Menu interface {
	menu.Catalog
	List(ctx context.Context, kind reservations.ItemKind, onlyAvailable bool) ([]menu.Item, error)
	SetAvailable(ctx context.Context, kind reservations.ItemKind, id int64, available bool) error
}

type Assistant interface {
	HandleUtterance(ctx context.Context, userID int64, text string) string
}

type Notifier interface {
	Confirmation(ctx context.Context, reservationID int64) error
}

type Server struct {
	Sessions     *auth.Store
	Users        Users
	Reservations *reservations.Service
	Menu         Menu
	Assistant    Assistant
	Notifier     Notifier // optional
	Slots        slots.Schedule
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	Restaurant   string
	Log          *slog.Logger

	NotifyTimeout time.Duration
}

type tmplData struct {
	Title      string
	Restaurant string
	Session    auth.Session
	LoggedIn   bool
	CartCount  int

	Flash string
	Data  any
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /metrics", s.Metrics.Handler())

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.handleMenu)
	mux.HandleFunc("GET /menu", s.handleMenu)
	mux.HandleFunc("GET /api/menu/{kind}", s.handleMenuJSON)

	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.Sessions.RequireAuth(h))
	}
	authed("GET /carrito", s.handleCart)
	authed("POST /carrito/agregar", s.handleCartAdd)
	authed("POST /carrito/quitar", s.handleCartRemove)
	authed("POST /carrito/vaciar", s.handleCartClear)
	authed("POST /carrito/asociar", s.handleCartAttach)

	authed("GET /reservas", s.handleReservations)
	authed("GET /reservas/nueva", s.handleReservationNew)
	authed("POST /reservas/nueva", s.handleReservationCreate)
	authed("GET /reservas/{id}", s.handleReservation)
	authed("GET /reservas/{id}/cancelar", s.handleCancelConfirm)
	authed("POST /reservas/{id}/cancelar", s.handleCancel)
	authed("GET /api/availability", s.handleAvailability)

	authed("GET /chat", s.handleChatPage)
	authed("POST /chatbot", s.handleChat)
	authed("GET /chatbot/ws", s.handleChatSocket)

	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.Sessions.RequireAdmin(h))
	}
	admin("GET /admin", s.handleAdminDashboard)
	admin("GET /admin/reservas", s.handleAdminReservations)
	admin("POST /admin/reservas/{id}/cancelar", s.handleAdminCancel)
	admin("GET /admin/mesas", s.handleAdminTables)
	admin("POST /admin/mesas/{id}/estado", s.handleAdminTableStatus)
	admin("GET /admin/menu", s.handleAdminMenu)
	admin("POST /admin/menu/{kind}/{id}/disponible", s.handleAdminMenuAvailable)
	admin("GET /admin/calendario", s.handleAdminCalendar)

	return s.requestLog(mux)
}

type ctxKey string

const logKey ctxKey = "log"

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack is needed by the chat socket upgrade.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("web: response writer cannot hijack")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// requestLog tags each request with an id and logs it once done.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		log := s.logger().With("request_id", id)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), logKey, log)))

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		log.Debug("Web:Request:Done", "method", r.Method, "path", r.URL.Path,
			"status", sw.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Server) log(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(logKey).(*slog.Logger); ok {
		return l
	}
	return s.logger()
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

var funcs = template.FuncMap{
	"money": menu.FormatCents,
	"date":  func(t time.Time) string { return t.Format("02/01/2006") },
	"iso":   func(t time.Time) string { return t.Format(time.DateOnly) },
	"dict":  dict,
}

func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

func (s *Server) page(r *http.Request, title string, data any) tmplData {
	d := tmplData{Title: title, Restaurant: s.Restaurant, Data: data}
	if sess, ok := s.Sessions.GetSession(r); ok {
		d.Session, d.LoggedIn = sess, true
		d.CartCount = s.loadCart(r).Count()
	}
	return d
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data tmplData) {
	t, err := template.New("").Funcs(funcs).ParseFS(fs,
		"templates/base.html",
		"templates/"+name,
	)
	if err != nil {
		s.log(r).Error("Web:Render:ParseFailed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.log(r).Error("Web:Render:ExecuteFailed", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log(r).Error("Web:"+op+":Failed", "path", r.URL.Path, "error", err)
	http.Error(w, "Hubo un problema. Por favor, inténtalo de nuevo.", http.StatusInternalServerError)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func actor(r *http.Request) reservations.Actor {
	sess, _ := auth.SessionFromContext(r.Context())
	return reservations.Actor{UserID: sess.UserID, Admin: sess.Admin}
}

// Start serves h on addr until ctx is done, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("Web:Start:Listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
