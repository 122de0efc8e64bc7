package testutil

import (
	"context"
	"sync"

	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/reservations"
)

// Menu is an in-memory menu.Catalog.
type Menu struct {
	mu    sync.Mutex
	items []menu.Item

	// Fail, when set, is returned by every lookup.
	Fail error
}

func NewMenu(items ...menu.Item) *Menu {
	m := &Menu{}
	for _, it := range items {
		m.Add(it)
	}
	return m
}

func (m *Menu) Add(it menu.Item) menu.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.ID == 0 {
		it.ID = int64(len(m.items) + 1)
	}
	m.items = append(m.items, it)
	return it
}

func (m *Menu) ByName(ctx context.Context, kind reservations.ItemKind, name string) (menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return menu.Item{}, m.Fail
	}
	for _, it := range m.items {
		if it.Kind == kind && it.Name == name {
			return it, nil
		}
	}
	return menu.Item{}, menu.ErrNotFound
}

func (m *Menu) Get(ctx context.Context, kind reservations.ItemKind, id int64) (menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return menu.Item{}, m.Fail
	}
	for _, it := range m.items {
		if it.Kind == kind && it.ID == id {
			return it, nil
		}
	}
	return menu.Item{}, menu.ErrNotFound
}

func (m *Menu) List(ctx context.Context, kind reservations.ItemKind, onlyAvailable bool) ([]menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []menu.Item
	for _, it := range m.items {
		if it.Kind != kind || (onlyAvailable && !it.Available) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *Menu) SetAvailable(ctx context.Context, kind reservations.ItemKind, id int64, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Kind == kind && m.items[i].ID == id {
			m.items[i].Available = available
			return nil
		}
	}
	return menu.ErrNotFound
}
