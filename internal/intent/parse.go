package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/example/sabores-reservas/internal/clock"
)

const defaultPartySize = 2

// Keys are looked up in order; the Spanish ones are what older prompts asked
// the model for.
var (
	keyIntent    = []string{"intent", "intencion", "intención"}
	keyResponse  = []string{"response", "respuesta"}
	keyDate      = []string{"date", "fecha"}
	keyTime      = []string{"time", "hora"}
	keyPartySize = []string{"partySize", "party_size", "num_comensales", "comensales", "guests"}
	keyDishes    = []string{"dishes", "platos"}
	keyBeverages = []string{"beverages", "bebidas"}
)

type Parser struct {
	clock clock.Clock
	msgs  Messages
}

func NewParser(c clock.Clock, msgs Messages) *Parser {
	return &Parser{clock: c, msgs: msgs.Merge(DefaultMessages())}
}

// Parse never fails: a reply it cannot read becomes Unparseable.
func (p *Parser) Parse(raw string) (out Intent) {
	defer func() {
		if r := recover(); r != nil {
			out = Unparseable{Raw: raw}
		}
	}()

	obj, ok := decodeObject(raw)
	if !ok {
		return Unparseable{Raw: raw}
	}

	name, hasIntent := lookupString(obj, keyIntent)
	response, hasResponse := lookupString(obj, keyResponse)
	if !hasIntent && !hasResponse {
		return Unparseable{Raw: raw}
	}
	response = strings.TrimSpace(response)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reservation", "reserva", "reservar", "booking":
		return p.reservation(obj, response)
	}
	if response == "" {
		response = p.msgs.Fallback
	}
	return General{Response: response}
}

func (p *Parser) reservation(obj map[string]any, response string) ReservationRequest {
	req := ReservationRequest{
		PartySize: partySize(obj),
		Dishes:    lookupList(obj, keyDishes),
		Beverages: lookupList(obj, keyBeverages),
		Response:  response,
	}

	dateRaw, _ := lookupString(obj, keyDate)
	timeRaw, _ := lookupString(obj, keyTime)
	dateRaw, timeRaw = strings.TrimSpace(dateRaw), strings.TrimSpace(timeRaw)
	if dateRaw == "" || timeRaw == "" {
		req.Clarification = response
		if req.Clarification == "" {
			req.Clarification = p.msgs.MissingDateTime
		}
		return req
	}

	date, ok := NormalizeDate(dateRaw, p.clock.Now())
	if !ok {
		req.Clarification = fill(p.msgs.InvalidDate, dateRaw)
		return req
	}

	hhmm, err := NormalizeTime(timeRaw)
	switch {
	case errors.Is(err, ErrNoTimeDigits):
		req.Clarification = fill(p.msgs.NoTimeDigits, timeRaw)
		return req
	case err != nil:
		req.Clarification = fill(p.msgs.InvalidTime, timeRaw)
		return req
	}

	req.Date = clock.Date(date)
	req.Time = hhmm
	return req
}

// decodeObject reads a JSON object out of raw. Besides the bare object it
// accepts one wrapped in a markdown code fence or surrounded by prose.
func decodeObject(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if obj, ok := strictObject(s); ok {
		return obj, true
	}
	if inner, ok := stripFence(s); ok {
		if obj, ok := strictObject(inner); ok {
			return obj, true
		}
		s = inner
	}
	if candidate, ok := firstObject(s); ok {
		return strictObject(candidate)
	}
	return nil, false
}

func strictObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Anything after the object means s was not a single object.
	if strings.TrimSpace(s[dec.InputOffset():]) != "" {
		return nil, false
	}
	return obj, true
}

func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{}") {
		rest = rest[nl+1:] // language tag
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstObject returns the first brace-balanced {...} span, ignoring braces
// inside JSON strings.
func firstObject(s string) (string, bool) {
	b := []byte(s)
	start := bytes.IndexByte(b, '{')
	for start >= 0 {
		depth, inStr, esc := 0, false, false
		for i := start; i < len(b); i++ {
			c := b[i]
			switch {
			case esc:
				esc = false
			case inStr && c == '\\':
				esc = true
			case c == '"':
				inStr = !inStr
			case inStr:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := bytes.IndexByte(b[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(obj map[string]any, keys []string) (string, bool) {
	v, ok := lookup(obj, keys)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func lookupList(obj map[string]any, keys []string) []string {
	v, ok := lookup(obj, keys)
	if !ok {
		return []string{}
	}
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case string:
		add(t)
	case []any:
		for _, e := range t {
			switch x := e.(type) {
			case string:
				add(x)
			case map[string]any:
				if name, ok := lookupString(x, []string{"name", "nombre"}); ok {
					add(name)
				}
			}
		}
	}
	return out
}

func partySize(obj map[string]any) int {
	v, ok := lookup(obj, keyPartySize)
	if !ok {
		return defaultPartySize
	}
	var n float64
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return defaultPartySize
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return defaultPartySize
		}
		n = f
	default:
		return defaultPartySize
	}
	if n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
		return defaultPartySize
	}
	return int(n)
}
