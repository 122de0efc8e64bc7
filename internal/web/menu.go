package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/reservations"
)

const cartCookie = "reservas_cart"

type menuPage struct {
	Dishes    []menu.Item
	Beverages []menu.Item
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	dishes, err := s.Menu.List(r.Context(), reservations.KindDish, true)
	if err != nil {
		s.serverError(w, r, "Menu", err)
		return
	}
	beverages, err := s.Menu.List(r.Context(), reservations.KindBeverage, true)
	if err != nil {
		s.serverError(w, r, "Menu", err)
		return
	}
	s.render(w, r, http.StatusOK, "menu.html", s.page(r, "Menú", menuPage{Dishes: dishes, Beverages: beverages}))
}

type menuItemJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Price       string `json:"price"`
}

func (s *Server) handleMenuJSON(w http.ResponseWriter, r *http.Request) {
	kind, err := menu.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown menu"})
		return
	}
	items, err := s.Menu.List(r.Context(), kind, true)
	if err != nil {
		s.log(r).Error("Web:MenuJSON:Failed", "kind", kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "menu unavailable"})
		return
	}
	out := make([]menuItemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, menuItemJSON{
			ID: it.ID, Name: it.Name, Description: it.Description, Category: it.Category,
			PriceCents: it.PriceCents, Price: menu.FormatCents(it.PriceCents),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadCart(r *http.Request) menu.Cart {
	var c menu.Cart
	if !s.Sessions.LoadValue(r, cartCookie, &c) {
		return menu.Cart{}
	}
	return c
}

func (s *Server) saveCart(w http.ResponseWriter, r *http.Request, c menu.Cart) error {
	if c.Empty() {
		s.Sessions.ClearValue(w, cartCookie)
		return nil
	}
	return s.Sessions.SaveValue(w, r, cartCookie, c)
}

type cartPage struct {
	Summary      menu.Summary
	Reservations []reservations.Reservation
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	s.renderCart(w, r, http.StatusOK, "")
}

func (s *Server) renderCart(w http.ResponseWriter, r *http.Request, status int, flash string) {
	sum, err := s.loadCart(r).Price(r.Context(), s.Menu)
	if err != nil {
		s.serverError(w, r, "Cart", err)
		return
	}
	upcoming, err := s.Reservations.Upcoming(r.Context(), actor(r).UserID)
	if err != nil {
		s.serverError(w, r, "Cart", err)
		return
	}
	d := s.page(r, "Mi pedido", cartPage{Summary: sum, Reservations: upcoming})
	d.Flash = flash
	s.render(w, r, status, "cart.html", d)
}

func cartItemForm(r *http.Request) (reservations.ItemKind, int64, error) {
	if err := r.ParseForm(); err != nil {
		return "", 0, err
	}
	kind, err := menu.ParseKind(r.FormValue("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(r.FormValue("item_id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errors.New("invalid item id")
	}
	return kind, id, nil
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	kind, id, err := cartItemForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	qty := 1
	if v := r.FormValue("quantity"); v != "" {
		if qty, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid quantity", http.StatusBadRequest)
			return
		}
	}

	it, err := s.Menu.Get(r.Context(), kind, id)
	if errors.Is(err, menu.ErrNotFound) || (err == nil && !it.Available) {
		s.renderCart(w, r, http.StatusNotFound, "Ese producto no está disponible.")
		return
	}
	if err != nil {
		s.serverError(w, r, "CartAdd", err)
		return
	}

	cart := s.loadCart(r)
	if err := cart.Add(kind, id, qty); err != nil {
		s.renderCart(w, r, http.StatusUnprocessableEntity, "Cantidad no válida.")
		return
	}
	if err := s.saveCart(w, r, cart); err != nil {
		s.serverError(w, r, "CartAdd", err)
		return
	}
	http.Redirect(w, r, "/carrito", http.StatusSeeOther)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	kind, id, err := cartItemForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cart := s.loadCart(r)
	cart.Remove(kind, id)
	if err := s.saveCart(w, r, cart); err != nil {
		s.serverError(w, r, "CartRemove", err)
		return
	}
	http.Redirect(w, r, "/carrito", http.StatusSeeOther)
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	s.Sessions.ClearValue(w, cartCookie)
	http.Redirect(w, r, "/carrito", http.StatusSeeOther)
}

func (s *Server) handleCartAttach(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("reservation_id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid reservation id", http.StatusBadRequest)
		return
	}

	cart := s.loadCart(r)
	if cart.Empty() {
		s.renderCart(w, r, http.StatusUnprocessableEntity, "Tu pedido está vacío.")
		return
	}
	err = menu.AttachCart(r.Context(), s.Reservations, &cart, id, actor(r))
	switch {
	case errors.Is(err, reservations.ErrNotFound):
		s.renderCart(w, r, http.StatusNotFound, "Reserva no encontrada.")
		return
	case errors.Is(err, reservations.ErrNotConfirmed):
		s.renderCart(w, r, http.StatusConflict, "La reserva no está confirmada.")
		return
	case err != nil:
		s.serverError(w, r, "CartAttach", err)
		return
	}
	s.Sessions.ClearValue(w, cartCookie)
	s.log(r).Info("Web:CartAttach:Attached", "reservation_id", id, "user_id", actor(r).UserID)
	http.Redirect(w, r, "/reservas/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}
