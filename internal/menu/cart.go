package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/sabores-reservas/internal/reservations"
)

const MaxQuantity = 20

type CartItem struct {
	Kind     reservations.ItemKind
	ItemID   int64
	Quantity int
}

// Cart belongs to one guest session. It is plain data so the web layer can
// keep it in a signed cookie.
type Cart struct {
	Items []CartItem
}

// Add puts qty of an item in the cart, merging with what is already there.
func (c *Cart) Add(kind reservations.ItemKind, id int64, qty int) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	for i := range c.Items {
		if c.Items[i].Kind == kind && c.Items[i].ItemID == id {
			if c.Items[i].Quantity+qty > MaxQuantity {
				return fmt.Errorf("at most %d of one item", MaxQuantity)
			}
			c.Items[i].Quantity += qty
			return nil
		}
	}
	if qty > MaxQuantity {
		return fmt.Errorf("at most %d of one item", MaxQuantity)
	}
	c.Items = append(c.Items, CartItem{Kind: kind, ItemID: id, Quantity: qty})
	return nil
}

func (c *Cart) Remove(kind reservations.ItemKind, id int64) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.Kind == kind && it.ItemID == id {
			continue
		}
		out = append(out, it)
	}
	c.Items = out
}

func (c *Cart) Clear() { c.Items = nil }

func (c Cart) Empty() bool { return len(c.Items) == 0 }

// Count is the total number of units.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) OrderLines() []reservations.OrderLine {
	out := make([]reservations.OrderLine, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, reservations.OrderLine{Kind: it.Kind, ItemID: it.ItemID, Quantity: it.Quantity})
	}
	return out
}

type PricedLine struct {
	Item     Item
	Quantity int
}

func (l PricedLine) TotalCents() int64 { return l.Item.PriceCents * int64(l.Quantity) }

type Summary struct {
	Lines      []PricedLine
	TotalCents int64
}

// Price looks every cart item up in the catalog. Items that disappeared from
// the menu are left out of the summary.
func (c Cart) Price(ctx context.Context, cat Catalog) (Summary, error) {
	var s Summary
	for _, it := range c.Items {
		item, err := cat.Get(ctx, it.Kind, it.ItemID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Summary{}, err
		}
		l := PricedLine{Item: item, Quantity: it.Quantity}
		s.Lines = append(s.Lines, l)
		s.TotalCents += l.TotalCents()
	}
	return s, nil
}

// Attacher is the slice of reservations.Service AttachCart needs.
type Attacher interface {
	AttachOrderLines(ctx context.Context, id int64, actor reservations.Actor, lines []reservations.OrderLine) error
}

// AttachCart adds the cart's items to a reservation and empties the cart on
// success.
func AttachCart(ctx context.Context, a Attacher, cart *Cart, reservationID int64, actor reservations.Actor) error {
	if cart.Empty() {
		return fmt.Errorf("cart is empty")
	}
	if err := a.AttachOrderLines(ctx, reservationID, actor, cart.OrderLines()); err != nil {
		return err
	}
	cart.Clear()
	return nil
}
