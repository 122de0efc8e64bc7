// Package seed loads the restaurant's starting tables, menu and admin
// account. Running it twice changes nothing.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/reservations"
)

type Tables interface {
	EnsureTable(ctx context.Context, number, capacity int) (bool, error)
}

type Menu interface {
	Ensure(ctx context.Context, it menu.Item) (bool, error)
}

type Users interface {
	EnsureUser(ctx context.Context, nu auth.NewUser) (bool, error)
}

const (
	TableCount    = 20
	TableCapacity = 4
)

var Dishes = []menu.Item{
	{Name: "Ensalada fresca", Category: "entrada", PriceCents: 850},
	{Name: "Sopa del día", Category: "entrada", PriceCents: 600},
	{Name: "Carne asada", Category: "plato fuerte", PriceCents: 1800},
	{Name: "Pollo al horno", Category: "plato fuerte", PriceCents: 1600},
	{Name: "Pescado grillado", Category: "plato fuerte", PriceCents: 2000},
	{Name: "Pasta carbonara", Category: "plato fuerte", PriceCents: 1400},
	{Name: "Pizza margarita", Category: "plato fuerte", PriceCents: 1200},
	{Name: "Hamburguesa clásica", Category: "plato fuerte", PriceCents: 1300},
	{Name: "Tarta de manzana", Category: "postre", PriceCents: 500},
	{Name: "Helado de vainilla", Category: "postre", PriceCents: 450},
}

var Beverages = []menu.Item{
	{Name: "Jugo de naranja", Category: "jugo", PriceCents: 350},
	{Name: "Jugo de fresa", Category: "jugo", PriceCents: 350},
	{Name: "Refresco de cola", Category: "refresco", PriceCents: 250},
	{Name: "Refresco de limón", Category: "refresco", PriceCents: 250},
	{Name: "Agua mineral", Category: "agua", PriceCents: 200},
	{Name: "Cerveza local", Category: "cerveza", PriceCents: 400},
	{Name: "Vino tinto", Category: "vino", PriceCents: 600},
}

// DefaultAdmin is the demo administrator.
var DefaultAdmin = auth.NewUser{Email: "admin@example.com", Name: "Admin", Password: "admin123", Admin: true}

// Result counts what was actually inserted.
type Result struct {
	Tables    int
	Dishes    int
	Beverages int
	Admin     bool
}

type Seeder struct {
	Tables Tables
	Menu   Menu
	Users  Users
	Log    *slog.Logger
}

func (s *Seeder) Run(ctx context.Context, admin auth.NewUser) (Result, error) {
	var res Result

	for n := 1; n <= TableCount; n++ {
		added, err := s.Tables.EnsureTable(ctx, n, TableCapacity)
		if err != nil {
			return res, fmt.Errorf("seed table %d: %w", n, err)
		}
		if added {
			res.Tables++
		}
	}

	ensure := func(kind reservations.ItemKind, items []menu.Item, count *int) error {
		for _, it := range items {
			it.Kind, it.Available = kind, true
			added, err := s.Menu.Ensure(ctx, it)
			if err != nil {
				return fmt.Errorf("seed %s %q: %w", kind, it.Name, err)
			}
			if added {
				*count++
			}
		}
		return nil
	}
	if err := ensure(reservations.KindDish, Dishes, &res.Dishes); err != nil {
		return res, err
	}
	if err := ensure(reservations.KindBeverage, Beverages, &res.Beverages); err != nil {
		return res, err
	}

	added, err := s.Users.EnsureUser(ctx, admin)
	if err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	res.Admin = added

	if s.Log != nil {
		s.Log.Info("Seed:Run:Done", "tables", res.Tables, "dishes", res.Dishes,
			"beverages", res.Beverages, "admin_created", res.Admin)
	}
	return res, nil
}
