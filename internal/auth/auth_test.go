package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions() *auth.Store {
	return auth.NewStore(nil, []byte("0123456789abcdef0123456789abcdef"), []byte("0123456789abcdef"))
}

func TestPasswordHash(t *testing.T) {
	h, err := auth.HashPassword("secreto")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(h, "secreto"))
	assert.False(t, auth.CheckPassword(h, "otro"))
}

func TestSessionRoundTrip(t *testing.T) {
	s := newSessions()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, s.SetSession(rec, req, auth.User{ID: 7, Name: "Ana", Admin: true}))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	sess, ok := s.GetSession(next)
	require.True(t, ok)
	assert.Equal(t, auth.Session{UserID: 7, Name: "Ana", Admin: true}, sess)
}

func TestSessionTampered(t *testing.T) {
	s := newSessions()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "reservas_session", Value: "garbage"})
	_, ok := s.GetSession(req)
	assert.False(t, ok)
}

func TestRequireAuthRedirects(t *testing.T) {
	s := newSessions()
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reservas", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAdmin(t *testing.T) {
	s := newSessions()
	var seen auth.Session
	h := s.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.SessionFromContext(r.Context())
	}))

	call := func(u auth.User) int {
		login := httptest.NewRecorder()
		require.NoError(t, s.SetSession(login, httptest.NewRequest(http.MethodGet, "/", nil), u))
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		for _, c := range login.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, call(auth.User{ID: 2}))
	assert.Equal(t, http.StatusOK, call(auth.User{ID: 1, Admin: true}))
	assert.Equal(t, int64(1), seen.UserID)
}

func TestUsersPostgres(t *testing.T) {
	d := testutil.NewTestDB(t)
	ctx := context.Background()
	s := auth.NewStore(d, make([]byte, 32), make([]byte, 16))

	u, err := s.CreateUser(ctx, auth.NewUser{Email: " Ana@Example.com ", Password: "secreto", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.False(t, u.Admin)

	_, err = s.CreateUser(ctx, auth.NewUser{Email: "ana@example.com", Password: "secreto"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	got, err := s.Authenticate(ctx, "ANA@example.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Authenticate(ctx, "ana@example.com", "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nadie@example.com", "secreto")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, s.SetAdmin(ctx, "ana@example.com", true))
	got, err = s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Admin)
}

func TestBindTelegram(t *testing.T) {
	d := testutil.NewTestDB(t)
	ctx := context.Background()
	s := auth.NewStore(d, make([]byte, 32), make([]byte, 16))

	u, created, err := s.BindTelegram(ctx, 555, "bot@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, u.TelegramID)

	byTG, err := s.ByTelegramID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byTG.ID)

	other, err := s.CreateUser(ctx, auth.NewUser{Email: "otra@example.com", Password: "secreto"})
	require.NoError(t, err)
	moved, created, err := s.BindTelegram(ctx, 555, "otra@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, other.ID, moved.ID)

	prev, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, prev.TelegramID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
