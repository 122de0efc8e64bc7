// Package auth owns user accounts, password checks and the signed session
// cookie. The admin role is a column on the user, copied into the session
// at login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/sabores-reservas/internal/db"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotFound           = errors.New("user not found")
)

type User struct {
	ID         int64
	Email      string
	Name       string
	Phone      string
	Admin      bool
	TelegramID *int64
	CreatedAt  time.Time
}

type Store struct {
	sc *securecookie.SecureCookie
	db *db.DB
}

type ctxKey string

const sessionKey ctxKey = "session"

const sessionTTL = 14 * 24 * time.Hour

// NewStore may be given a nil d when only sessions are needed.
func NewStore(d *db.DB, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	// keep cookie small and secure
	sc.MaxAge(int(sessionTTL.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Store{sc: sc, db: d}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

type NewUser struct {
	Email    string
	Name     string
	Phone    string
	Password string
	Admin    bool
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Store) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	email := normalizeEmail(nu.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("invalid email %q", nu.Email)
	}
	if len(nu.Password) < 6 {
		return User{}, fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(nu.Name)
	if name == "" {
		name = email
	}

	u := User{Email: email, Name: name, Phone: strings.TrimSpace(nu.Phone), Admin: nu.Admin}
	err = s.db.QueryRow(ctx, `
INSERT INTO users(email, name, phone, password_bcrypt, is_admin) VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at`, u.Email, u.Name, u.Phone, hash, u.Admin).Scan(&u.ID, &u.CreatedAt)
	if _, dup := db.UniqueViolation(err); dup {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureUser creates nu unless its email is already registered. It reports
// whether a row was added.
func (s *Store) EnsureUser(ctx context.Context, nu NewUser) (bool, error) {
	_, err := s.CreateUser(ctx, nu)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var hash string
	u, err := s.scanUser(s.db.QueryRow(ctx, userSelect+`, password_bcrypt FROM users WHERE email=$1`, normalizeEmail(email)), &hash)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(hash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

const userSelect = `SELECT id, email, name, phone, is_admin, telegram_id, created_at`

func (s *Store) scanUser(row db.Row, extra ...any) (User, error) {
	var u User
	dest := append([]any{&u.ID, &u.Email, &u.Name, &u.Phone, &u.Admin, &u.TelegramID, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if db.IsNotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("auth: %w", err)
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, userSelect+` FROM users WHERE id=$1`, id))
}

func (s *Store) ByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, userSelect+` FROM users WHERE email=$1`, normalizeEmail(email)))
}

func (s *Store) ByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	return s.scanUser(s.db.QueryRow(ctx, userSelect+` FROM users WHERE telegram_id=$1`, telegramID))
}

// BindTelegram links a Telegram account to the user with email, creating
// that user with a random password when none exists. A Telegram id bound to
// another user is moved.
func (s *Store) BindTelegram(ctx context.Context, telegramID int64, email string) (User, bool, error) {
	var (
		u       User
		created bool
	)
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.ByEmail(ctx, email)
		if errors.Is(err, ErrNotFound) {
			u, err = s.CreateUser(ctx, NewUser{
				Email:    email,
				Name:     fmt.Sprintf("Usuario Telegram %d", telegramID),
				Phone:    fmt.Sprintf("Telegram:%d", telegramID),
				Password: uuid.NewString(),
			})
			created = true
		}
		if err != nil {
			return err
		}
		if err := s.db.Exec(ctx, `UPDATE users SET telegram_id=NULL WHERE telegram_id=$1 AND id<>$2`, telegramID, u.ID); err != nil {
			return err
		}
		if err := s.db.Exec(ctx, `UPDATE users SET telegram_id=$2 WHERE id=$1`, u.ID, telegramID); err != nil {
			return err
		}
		u.TelegramID = &telegramID
		return nil
	})
	if err != nil {
		return User{}, false, err
	}
	return u, created, nil
}

func (s *Store) SetAdmin(ctx context.Context, email string, admin bool) error {
	n, err := s.db.ExecCount(ctx, `UPDATE users SET is_admin=$2 WHERE email=$1`, normalizeEmail(email), admin)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

type Session struct {
	UserID int64  `json:"uid"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
}

const cookieName = "reservas_session"

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, u User) error {
	return s.SaveValue(w, r, cookieName, Session{UserID: u.ID, Name: u.Name, Admin: u.Admin})
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	s.ClearValue(w, cookieName)
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	var sess Session
	if !s.LoadValue(r, cookieName, &sess) || sess.UserID <= 0 {
		return Session{}, false
	}
	return sess, true
}

// SaveValue stores v in its own signed and encrypted cookie.
func (s *Store) SaveValue(w http.ResponseWriter, r *http.Request, name string, v any) error {
	encoded, err := s.sc.Encode(name, v)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil, // ok for local http; secure in https
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) LoadValue(r *http.Request, name string, dst any) bool {
	c, err := r.Cookie(name)
	if err != nil {
		return false
	}
	return s.sc.Decode(name, c.Value, dst) == nil
}

func (s *Store) ClearValue(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireAdmin is RequireAuth plus the admin role.
func (s *Store) RequireAdmin(next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, _ := SessionFromContext(r.Context()); !sess.Admin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	sess, ok := SessionFromContext(ctx)
	return sess.UserID, ok
}
