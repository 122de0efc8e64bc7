// Package menu is the restaurant's dishes and beverages and the guest's
// cart of them.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/sabores-reservas/internal/reservations"
)

// Item is a dish or a beverage. Category holds the dish course or the
// beverage type.
type Item struct {
	Kind        reservations.ItemKind
	ID          int64
	Name        string
	Description string
	Category    string
	PriceCents  int64
	Available   bool
}

var ErrNotFound = errors.New("menu item not found")

// Catalog is the lookup side of the menu store.
type Catalog interface {
	ByName(ctx context.Context, kind reservations.ItemKind, name string) (Item, error)
	Get(ctx context.Context, kind reservations.ItemKind, id int64) (Item, error)
}

func ParseKind(s string) (reservations.ItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dish", "dishes", "plato", "platos":
		return reservations.KindDish, nil
	case "beverage", "beverages", "bebida", "bebidas":
		return reservations.KindBeverage, nil
	}
	return "", fmt.Errorf("unknown menu kind %q", s)
}

// FormatCents renders a price the way the menu and the emails show it.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

// ResolveNames turns dish and beverage names into order lines by exact name.
// Repeated names add up. Names with no available item are returned in
// unmatched and otherwise ignored.
func ResolveNames(ctx context.Context, c Catalog, dishes, beverages []string) (lines []reservations.OrderLine, unmatched []string, err error) {
	index := map[reservations.ItemKind]map[int64]int{}
	add := func(kind reservations.ItemKind, names []string) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			it, err := c.ByName(ctx, kind, name)
			if errors.Is(err, ErrNotFound) || (err == nil && !it.Available) {
				unmatched = append(unmatched, name)
				continue
			}
			if err != nil {
				return err
			}
			if index[kind] == nil {
				index[kind] = map[int64]int{}
			}
			if i, ok := index[kind][it.ID]; ok {
				lines[i].Quantity++
				continue
			}
			index[kind][it.ID] = len(lines)
			lines = append(lines, reservations.OrderLine{Kind: kind, ItemID: it.ID, Quantity: 1})
		}
		return nil
	}

	if err := add(reservations.KindDish, dishes); err != nil {
		return nil, nil, err
	}
	if err := add(reservations.KindBeverage, beverages); err != nil {
		return nil, nil, err
	}
	return lines, unmatched, nil
}
