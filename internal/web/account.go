package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/sabores-reservas/internal/auth"
)

type registerForm struct {
	Name  string
	Email string
	Phone string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "login.html", s.page(r, "Iniciar sesión", nil))
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		u, err := s.Users.Authenticate(r.Context(), email, r.FormValue("password"))
		if errors.Is(err, auth.ErrInvalidCredentials) {
			d := s.page(r, "Iniciar sesión", nil)
			d.Flash = "Correo o contraseña incorrectos."
			s.render(w, r, http.StatusUnauthorized, "login.html", d)
			return
		}
		if err != nil {
			s.serverError(w, r, "Login", err)
			return
		}
		if err := s.Sessions.SetSession(w, r, u); err != nil {
			s.serverError(w, r, "Login", err)
			return
		}
		s.log(r).Info("Web:Login:Succeeded", "user_id", u.ID, "admin", u.Admin)
		if u.Admin {
			http.Redirect(w, r, "/admin", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/reservas", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "register.html", s.page(r, "Crear cuenta", registerForm{}))
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form := registerForm{
			Name:  strings.TrimSpace(r.FormValue("name")),
			Email: strings.TrimSpace(r.FormValue("email")),
			Phone: strings.TrimSpace(r.FormValue("phone")),
		}
		password := r.FormValue("password")
		fail := func(msg string) {
			d := s.page(r, "Crear cuenta", form)
			d.Flash = msg
			s.render(w, r, http.StatusUnprocessableEntity, "register.html", d)
		}

		switch {
		case form.Name == "" || form.Email == "":
			fail("Nombre y correo son obligatorios.")
			return
		case len(password) < 6:
			fail("La contraseña debe tener al menos 6 caracteres.")
			return
		case password != r.FormValue("confirm"):
			fail("Las contraseñas no coinciden.")
			return
		}

		u, err := s.Users.CreateUser(r.Context(), auth.NewUser{
			Email: form.Email, Name: form.Name, Phone: form.Phone, Password: password,
		})
		if errors.Is(err, auth.ErrEmailTaken) {
			fail("Ese correo ya está registrado.")
			return
		}
		if err != nil {
			s.serverError(w, r, "Register", err)
			return
		}
		if err := s.Sessions.SetSession(w, r, u); err != nil {
			s.serverError(w, r, "Register", err)
			return
		}
		s.log(r).Info("Web:Register:Created", "user_id", u.ID)
		http.Redirect(w, r, "/reservas", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Sessions.ClearSession(w)
	s.Sessions.ClearValue(w, cartCookie)
	http.Redirect(w, r, "/login", http.StatusFound)
}
