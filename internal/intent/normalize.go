package intent

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
)

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	dayOfMonth  = regexp.MustCompile(`(\d{1,2})\s+de\s+([a-záéíóúñ]+|\d{1,2})(?:\s*,?\s*(?:(?:de|del)\s+)?(\d{3,}))?`)
	slashDate   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
	colonTime   = regexp.MustCompile(`(\d{1,2})\s*:\s*(\d{2})`)
	digitRuns   = regexp.MustCompile(`\d+`)
	isoDatePart = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`)
)

// NormalizeDate reads the date forms the assistant tends to produce:
// YYYY-MM-DD (padding optional), "4 de octubre [[de|,] 2025]", "4/10[/2025]",
// "10-04" and the words hoy, mañana and pasado mañana. A missing year is
// taken from now. The result is UTC midnight.
func NormalizeDate(raw string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(spaceRe.ReplaceAllString(strings.TrimSpace(raw), " "))
	if s == "" {
		return time.Time{}, false
	}
	today := clock.Date(now)

	switch s {
	case "hoy", "today":
		return today, true
	case "mañana", "manana", "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "pasado mañana", "pasado manana":
		return today.AddDate(0, 0, 2), true
	}

	if strings.Contains(s, "de ") {
		m := dayOfMonth.FindStringSubmatch(s)
		if m == nil {
			return time.Time{}, false
		}
		month, ok := spanishMonths[m[2]]
		if !ok {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return time.Time{}, false
			}
			month = time.Month(n)
		}
		if m[3] != "" && len(m[3]) != 4 {
			return time.Time{}, false
		}
		return build(m[3], int(month), m[1], now.Year())
	}

	if m := slashDate.FindStringSubmatch(s); m != nil {
		mon, _ := strconv.Atoi(m[2])
		return build(m[3], mon, m[1], now.Year())
	}

	if parts := strings.Split(s, "-"); len(parts) == 2 {
		s = strconv.Itoa(now.Year()) + "-" + s
	}
	if loc := isoDatePart.FindStringIndex(s); loc != nil && loc[1] < len(s) && (s[loc[1]] == 't' || s[loc[1]] == ' ') {
		s = s[:loc[1]] // drop a trailing time, "T20:00:00Z" or " 20:00"
	}
	t, err := time.Parse("2006-1-2", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func build(yearStr string, month int, dayStr string, defaultYear int) (time.Time, bool) {
	year := defaultYear
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			return time.Time{}, false
		}
		year = y
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date rolls 31 de junio over into July.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

var (
	ErrNoTimeDigits = errors.New("no hour and minute in time")
	ErrInvalidTime  = errors.New("not a valid 24h time")
)

// NormalizeTime extracts an HH:MM time. "8 : 00" and "800" both give
// "08:00". A string with fewer than two digit groups fails with
// ErrNoTimeDigits; one that does not make a real time with ErrInvalidTime.
func NormalizeTime(raw string) (string, error) {
	s := spaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")

	var hh, mm string
	if m := colonTime.FindStringSubmatch(s); m != nil {
		hh, mm = pad2(m[1]), m[2]
	} else {
		groups := digitGroups(s)
		if len(groups) < 2 {
			return "", ErrNoTimeDigits
		}
		hh, mm = pad2(groups[0]), pad2(groups[1])
	}

	out := hh + ":" + mm
	if _, err := time.Parse("15:04", out); err != nil {
		return "", ErrInvalidTime
	}
	return out, nil
}

// digitGroups splits digit runs into one-or-two digit groups. A lone run of
// three or four digits is read as H/HH followed by MM.
func digitGroups(s string) []string {
	var out []string
	for _, run := range digitRuns.FindAllString(s, -1) {
		switch {
		case len(run) <= 2:
			out = append(out, run)
		case len(run) <= 4:
			out = append(out, run[:len(run)-2], run[len(run)-2:])
		default:
			for i := 0; i < len(run); i += 2 {
				end := i + 2
				if end > len(run) {
					end = len(run)
				}
				out = append(out, run[i:end])
			}
		}
	}
	return out
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
