// Package slots holds the fixed service blocks a reservation can start at.
package slots

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Slot struct {
	Start string // HH:MM, 24h
	Label string
}

type Schedule struct {
	slots []Slot
	index map[string]int
}

// Default is the restaurant's lunch and dinner service, two sittings each.
func Default() Schedule {
	s, _ := New([]Slot{
		{Start: "12:00", Label: "Almuerzo (12:00 - 14:00)"},
		{Start: "14:00", Label: "Almuerzo (14:00 - 16:00)"},
		{Start: "19:00", Label: "Cena (19:00 - 21:00)"},
		{Start: "21:00", Label: "Cena (21:00 - 23:00)"},
	})
	return s
}

// New builds a schedule ordered by start time. Starts must be canonical
// HH:MM and unique.
func New(in []Slot) (Schedule, error) {
	if len(in) == 0 {
		return Schedule{}, fmt.Errorf("at least one slot required")
	}
	out := make([]Slot, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	idx := make(map[string]int, len(out))
	for i, s := range out {
		if !Canonical(s.Start) {
			return Schedule{}, fmt.Errorf("slot %q: want HH:MM", s.Start)
		}
		if _, dup := idx[s.Start]; dup {
			return Schedule{}, fmt.Errorf("slot %q listed twice", s.Start)
		}
		if strings.TrimSpace(s.Label) == "" {
			out[i].Label = s.Start
		}
		idx[s.Start] = i
	}
	return Schedule{slots: out, index: idx}, nil
}

// Parse reads "12:00=Almuerzo,19:00=Cena". A label may be omitted.
func Parse(spec string) (Schedule, error) {
	var in []Slot
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, label, _ := strings.Cut(part, "=")
		in = append(in, Slot{Start: strings.TrimSpace(start), Label: strings.TrimSpace(label)})
	}
	return New(in)
}

func (s Schedule) All() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s Schedule) IsSlot(hhmm string) bool {
	_, ok := s.index[hhmm]
	return ok
}

// Label returns the slot label, or hhmm itself for an unknown start.
func (s Schedule) Label(hhmm string) string {
	if i, ok := s.index[hhmm]; ok {
		return s.slots[i].Label
	}
	return hhmm
}

// Starts lists the start times, e.g. for "we serve at 12:00, 19:00".
func (s Schedule) Starts() []string {
	out := make([]string, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.Start)
	}
	return out
}

// Canonical reports whether v is a valid zero-padded 24h HH:MM.
func Canonical(v string) bool {
	if len(v) != 5 {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}
