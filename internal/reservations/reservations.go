// Package reservations decides whether a table can be booked for a slot and
// records the booking. The storage layer's unique indexes are the final word
// on conflicts; the validator exists to give the guest a readable reason.
package reservations

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

const TableAvailable = "available"

type Table struct {
	ID       int64
	Number   int
	Capacity int
	Status   string
}

func (t Table) Available() bool { return t.Status == TableAvailable }

type Reservation struct {
	ID          int64
	UserID      int64
	TableID     int64
	TableNumber int
	Date        time.Time // UTC midnight
	Time        string    // HH:MM
	PartySize   int
	Status      Status
	Notes       string
	CreatedAt   time.Time
}

func (r Reservation) Confirmed() bool { return r.Status == StatusConfirmed }

type ItemKind string

const (
	KindDish     ItemKind = "dish"
	KindBeverage ItemKind = "beverage"
)

// OrderLine references exactly one menu item.
type OrderLine struct {
	ID            int64
	ReservationID int64
	Kind          ItemKind
	ItemID        int64
	Quantity      int
}

// SummaryLine is an order line joined with its menu item.
type SummaryLine struct {
	Kind      ItemKind
	Name      string
	Quantity  int
	UnitCents int64
}

func (l SummaryLine) TotalCents() int64 { return l.UnitCents * int64(l.Quantity) }

type Stats struct {
	Total     int
	Confirmed int
	Cancelled int
	Today     int
	Upcoming  int
}

// SlotCount is the number of confirmed reservations at one date and time.
type SlotCount struct {
	Date  time.Time
	Time  string
	Count int
}

var (
	ErrNotFound = errors.New("reservation not found")

	// Returned by Store.Insert when a unique index rejects the row.
	ErrTableSlotTaken = errors.New("table already booked for slot")
	ErrUserSlotTaken  = errors.New("user already booked for slot")

	ErrNotConfirmed = errors.New("reservation is not confirmed")
)

type Reason string

const (
	ReasonTableNotFound        Reason = "TableNotFound"
	ReasonInvalidPartySize     Reason = "InvalidPartySize"
	ReasonInsufficientCapacity Reason = "InsufficientCapacity"
	ReasonTableUnavailable     Reason = "TableUnavailable"
	ReasonDuplicateUserSlot    Reason = "DuplicateUserSlot"
)

var reasonMessages = map[Reason]string{
	ReasonTableNotFound:        "Mesa no encontrada.",
	ReasonInvalidPartySize:     "El número de comensales debe ser al menos 1.",
	ReasonInsufficientCapacity: "La mesa no tiene capacidad suficiente.",
	ReasonTableUnavailable:     "La mesa no está disponible en ese horario.",
	ReasonDuplicateUserSlot:    "Ya tienes una reserva en ese horario.",
}

// Message is the guest-facing text for r.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// Decision is the outcome of an admission check. The zero value accepts.
type Decision struct {
	Reason Reason
}

func Accept() Decision           { return Decision{} }
func Reject(r Reason) Decision   { return Decision{Reason: r} }
func (d Decision) Accepted() bool { return d.Reason == "" }

type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("reservation rejected: %s", e.Reason)
}

// Rejection extracts the admission reason from err, if it carries one.
func Rejection(err error) (Reason, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
