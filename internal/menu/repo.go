package menu

import (
	"context"
	"fmt"

	"github.com/example/sabores-reservas/internal/db"
	"github.com/example/sabores-reservas/internal/reservations"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// Dishes keep their course in category, beverages their type in kind; both
// come back as Item.Category.
func selectFor(kind reservations.ItemKind) (string, error) {
	switch kind {
	case reservations.KindDish:
		return `SELECT id, name, description, category, price_cents, available FROM dishes`, nil
	case reservations.KindBeverage:
		return `SELECT id, name, '', kind, price_cents, available FROM beverages`, nil
	}
	return "", fmt.Errorf("unknown menu kind %q", kind)
}

func tableFor(kind reservations.ItemKind) (string, error) {
	switch kind {
	case reservations.KindDish:
		return "dishes", nil
	case reservations.KindBeverage:
		return "beverages", nil
	}
	return "", fmt.Errorf("unknown menu kind %q", kind)
}

func scanItem(kind reservations.ItemKind, row db.Row) (Item, error) {
	it := Item{Kind: kind}
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.PriceCents, &it.Available)
	return it, err
}

func (r *Repo) List(ctx context.Context, kind reservations.ItemKind, onlyAvailable bool) ([]Item, error) {
	q, err := selectFor(kind)
	if err != nil {
		return nil, err
	}
	if onlyAvailable {
		q += ` WHERE available`
	}
	q += ` ORDER BY id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) ByName(ctx context.Context, kind reservations.ItemKind, name string) (Item, error) {
	q, err := selectFor(kind)
	if err != nil {
		return Item{}, err
	}
	it, err := scanItem(kind, r.db.QueryRow(ctx, q+` WHERE name=$1`, name))
	if err != nil {
		return Item{}, notFound(err)
	}
	return it, nil
}

func (r *Repo) Get(ctx context.Context, kind reservations.ItemKind, id int64) (Item, error) {
	q, err := selectFor(kind)
	if err != nil {
		return Item{}, err
	}
	it, err := scanItem(kind, r.db.QueryRow(ctx, q+` WHERE id=$1`, id))
	if err != nil {
		return Item{}, notFound(err)
	}
	return it, nil
}

func (r *Repo) SetAvailable(ctx context.Context, kind reservations.ItemKind, id int64, available bool) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	n, err := r.db.ExecCount(ctx, `UPDATE `+table+` SET available=$2 WHERE id=$1`, id, available)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure inserts the item unless one with the same name exists. It reports
// whether a row was added.
func (r *Repo) Ensure(ctx context.Context, it Item) (bool, error) {
	var n int64
	var err error
	switch it.Kind {
	case reservations.KindDish:
		n, err = r.db.ExecCount(ctx, `
INSERT INTO dishes(name, description, category, price_cents, available) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (name) DO NOTHING`, it.Name, it.Description, it.Category, it.PriceCents, it.Available)
	case reservations.KindBeverage:
		n, err = r.db.ExecCount(ctx, `
INSERT INTO beverages(name, kind, price_cents, available) VALUES ($1,$2,$3,$4)
ON CONFLICT (name) DO NOTHING`, it.Name, it.Category, it.PriceCents, it.Available)
	default:
		return false, fmt.Errorf("unknown menu kind %q", it.Kind)
	}
	return n > 0, err
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("menu: %w", err)
}
