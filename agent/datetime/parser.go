package datetime

import (
	"regexp"
	"strconv"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var (
	numericDatePattern = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[/\-.](\d{1,2})(?:[/\-.](\d{2}|\d{4}))?(?:[^\d]|$)`)
	clockPattern       = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\s*(?::|h)\s*(\d{2})?`)
	bareHourPattern    = regexp.MustCompile(`^(?:as\s+|at\s+)?(\d{1,2})$`)
)

var weekdayTokens = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"sunday":    time.Sunday,
	"segunda":   time.Monday,
	"monday":    time.Monday,
	"terca":     time.Tuesday,
	"tuesday":   time.Tuesday,
	"quarta":    time.Wednesday,
	"wednesday": time.Wednesday,
	"quinta":    time.Thursday,
	"thursday":  time.Thursday,
	"sexta":     time.Friday,
	"friday":    time.Friday,
	"sabado":    time.Saturday,
	"saturday":  time.Saturday,
}

type period struct {
	from, to int // minutes of day, [from, to)
}

var periodTokens = map[string]period{
	"manha":     {0, 12 * 60},
	"morning":   {0, 12 * 60},
	"tarde":     {12 * 60, 18 * 60},
	"afternoon": {12 * 60, 18 * 60},
	"noite":     {18 * 60, 24 * 60},
	"evening":   {18 * 60, 24 * 60},
	"night":     {18 * 60, 24 * 60},
}

var _ contractx.DateTimeParser = (*Parser)(nil)

// Parser extracts booking dates and slot choices from free text. It holds no
// mutable state and is safe for concurrent use.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Parser)

func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// ParseDate returns a calendar date (midnight in loc) that is today or later
// in loc, or false if the text names no such date. A nil loc falls back to
// the parser location.
func (p *Parser) ParseDate(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = p.loc
	}
	now := p.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	folded := Fold(text)
	if folded == "" {
		return time.Time{}, false
	}

	if m := numericDatePattern.FindStringSubmatch(folded); m != nil {
		return p.explicitDate(today, m[1], m[2], m[3])
	}

	tokens := Tokens(folded)
	switch {
	case containsSeq(tokens, "depois", "de", "amanha"), containsSeq(tokens, "day", "after", "tomorrow"):
		return today.AddDate(0, 0, 2), true
	case containsSeq(tokens, "amanha"), containsSeq(tokens, "tomorrow"):
		return today.AddDate(0, 0, 1), true
	case containsSeq(tokens, "hoje"), containsSeq(tokens, "today"):
		return today, true
	}

	for _, tok := range tokens {
		wd, ok := weekdayTokens[tok]
		if !ok {
			continue
		}
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return today.AddDate(0, 0, delta), true
	}

	return time.Time{}, false
}

func (p *Parser) explicitDate(today time.Time, dayRaw, monthRaw, yearRaw string) (time.Time, bool) {
	day, err := strconv.Atoi(dayRaw)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(monthRaw)
	if err != nil {
		return time.Time{}, false
	}
	year := today.Year()
	if yearRaw != "" {
		year, err = strconv.Atoi(yearRaw)
		if err != nil {
			return time.Time{}, false
		}
		if year < 100 {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
	// time.Date normalizes overflow (31/02 -> 03/03); reject it.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	if d.Before(today) {
		return time.Time{}, false
	}
	return d, true
}

// MatchTime resolves text to one of slots: exact label first, then an
// explicit clock time, then a period of the day (first slot in that period).
func (p *Parser) MatchTime(text string, slots []contractx.Slot) (contractx.Slot, bool) {
	folded := Fold(text)
	if folded == "" || len(slots) == 0 {
		return contractx.Slot{}, false
	}

	for _, s := range slots {
		if Fold(s.Label) == folded {
			return s, true
		}
	}

	if minute, ok := clockMinute(folded); ok {
		for _, s := range slots {
			if slotMinute(s) == minute {
				return s, true
			}
		}
	}

	for _, tok := range Tokens(folded) {
		per, ok := periodTokens[tok]
		if !ok {
			continue
		}
		for _, s := range slots {
			if m := slotMinute(s); m >= per.from && m < per.to {
				return s, true
			}
		}
		return contractx.Slot{}, false
	}

	return contractx.Slot{}, false
}

func clockMinute(folded string) (int, bool) {
	var hourRaw, minRaw string
	if m := clockPattern.FindStringSubmatch(folded); m != nil {
		hourRaw, minRaw = m[1], m[2]
	} else if m := bareHourPattern.FindStringSubmatch(folded); m != nil {
		hourRaw = m[1]
	} else {
		return 0, false
	}

	hour, err := strconv.Atoi(hourRaw)
	if err != nil || hour > 23 {
		return 0, false
	}
	minute := 0
	if minRaw != "" {
		minute, err = strconv.Atoi(minRaw)
		if err != nil || minute > 59 {
			return 0, false
		}
	}
	return hour*60 + minute, true
}

func slotMinute(s contractx.Slot) int {
	if m, ok := clockMinute(Fold(s.Label)); ok {
		return m
	}
	return s.MinuteOfDay()
}
