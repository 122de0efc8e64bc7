// Package intent turns the language model's reply into a typed request.
// Parsing is total: whatever the model says, the caller gets an Intent.
package intent

import (
	"strings"
	"time"
)

type Kind string

const (
	KindGeneral     Kind = "general"
	KindReservation Kind = "reservation"
	KindUnparseable Kind = "unparseable"
)

// Intent is one of General, ReservationRequest or Unparseable.
type Intent interface {
	Kind() Kind
}

// General is a conversational answer with no booking attached.
type General struct {
	Response string
}

func (General) Kind() Kind { return KindGeneral }

// ReservationRequest is a booking attempt. When Clarification is set the
// date or time could not be used and the guest must be asked again; Date
// and Time are then not meaningful.
type ReservationRequest struct {
	Date      time.Time // UTC midnight
	Time      string    // HH:MM
	PartySize int
	Dishes    []string
	Beverages []string
	Response  string

	Clarification string
}

func (ReservationRequest) Kind() Kind { return KindReservation }

func (r ReservationRequest) Ready() bool { return r.Clarification == "" }

// Unparseable carries a reply that was not the expected JSON shape.
type Unparseable struct {
	Raw string
}

func (Unparseable) Kind() Kind { return KindUnparseable }

// Messages are the guest-facing texts the parser can produce. "{value}" is
// replaced with the offending input.
type Messages struct {
	Fallback        string `yaml:"fallback"`
	MissingDateTime string `yaml:"missing_date_time"`
	InvalidDate     string `yaml:"invalid_date"`
	NoTimeDigits    string `yaml:"no_time_digits"`
	InvalidTime     string `yaml:"invalid_time"`
}

func DefaultMessages() Messages {
	return Messages{
		Fallback:        "Lo siento, no pude generar una respuesta.",
		MissingDateTime: "Necesito fecha y hora para reservar.",
		InvalidDate:     `No entendí la fecha "{value}". Indícala como AAAA-MM-DD, por ejemplo 2025-10-04.`,
		NoTimeDigits:    `No pude extraer la hora de "{value}". Usa formato HH:MM como "12:00".`,
		InvalidTime:     `Hora inválida "{value}". Usa HH:MM (ej. 12:00).`,
	}
}

// Merge fills empty fields of m from d.
func (m Messages) Merge(d Messages) Messages {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) == "" {
			return b
		}
		return a
	}
	return Messages{
		Fallback:        pick(m.Fallback, d.Fallback),
		MissingDateTime: pick(m.MissingDateTime, d.MissingDateTime),
		InvalidDate:     pick(m.InvalidDate, d.InvalidDate),
		NoTimeDigits:    pick(m.NoTimeDigits, d.NoTimeDigits),
		InvalidTime:     pick(m.InvalidTime, d.InvalidTime),
	}
}

func fill(msg, value string) string {
	return strings.ReplaceAll(msg, "{value}", value)
}
