package timewindow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/teemow/agentcal/internal/textfold"
)

// DefaultDuration is used when a phrase names only a start.
const DefaultDuration = time.Hour

// DateOrder decides how numeric slash dates such as 03/04 are read.
type DateOrder string

const (
	// DateOrderUnset treats slash dates that read both ways as ambiguous.
	DateOrderUnset DateOrder = ""
	// DateOrderDMY reads 03/04 as the 3rd of April.
	DateOrderDMY DateOrder = "dmy"
	// DateOrderMDY reads 03/04 as March 4th.
	DateOrderMDY DateOrder = "mdy"
)

var (
	meridiemDotsRe = regexp.MustCompile(`\b([ap])\.\s?m\.?`)
	isoJoinRe      = regexp.MustCompile(`(\d{4}-\d{1,2}-\d{1,2})t(\d)`)
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
	monthDayRe     = regexp.MustCompile(`\b(` + alternation(monthNames) + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayMonthRe     = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+|de\s+)?(` + alternation(monthNames) + `)\b(?:,?\s+(?:de\s+)?(\d{4})\b)?`)
	inRe           = regexp.MustCompile(`\b(?:in|em|daqui a)\s+(\d+|` + alternation(numberWords) + `)\s*(minutes?|mins?|hours?|hrs?|days?|weeks?|minutos?|horas?|dias?|semanas?)\b`)
	forRe          = regexp.MustCompile(`\b(?:for|por|durante)\s+(\d+|` + alternation(numberWords) + `)\s*(minutes?|mins?|m|hours?|hrs?|h|minutos?|horas?)\b`)
	rangeRe        = regexp.MustCompile(`(?:\b(?:from|between|das|de)\s+)?\b(\d{1,2}(?:(?::|h)\d{2})?h?(?:\s*(?:am|pm))?)\s*(?:-|\bto\b|\buntil\b|\btill\b|\band\b|\bas\b|\bate\b)\s*(\d{1,2}(?:(?::|h)\d{2})?h?(?:\s*(?:am|pm))?)\b`)
	relativeDayRe  = regexp.MustCompile(`\b(` + alternation(relativeDays) + `)\b`)
	weekdayRe      = regexp.MustCompile(`\b(?:(next|this|proxima|proximo|esta|este)\s+)?(` + alternation(weekdayNames) + `)\b`)
	partOfDayRe    = regexp.MustCompile(`\b(` + alternation(partsOfDay) + `)\b`)
	namedClockRe   = regexp.MustCompile(`\b(` + alternation(namedClocks) + `)\b`)
	clockRe        = regexp.MustCompile(`\b(\d{1,2})(?:(:|h)(\d{2}))?(h)?(?:\s*(am|pm))?\b`)
	clockTokenRe   = regexp.MustCompile(`^(\d{1,2})(?:(:|h)(\d{2}))?(h)?(?:\s*(am|pm))?$`)
)

// Normalizer turns date-time phrases into UTC windows relative to a
// reference instant, interpreting wall-clock values in a fixed location.
type Normalizer struct {
	loc             *time.Location
	defaultDuration time.Duration
	dateOrder       DateOrder
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDateOrder sets how numeric slash dates are read.
func WithDateOrder(order DateOrder) Option {
	return func(n *Normalizer) {
		n.dateOrder = order
	}
}

// NewNormalizer creates a normalizer for loc. A nil loc means UTC and a
// non-positive duration means DefaultDuration.
func NewNormalizer(loc *time.Location, defaultDuration time.Duration, opts ...Option) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}
	n := &Normalizer{loc: loc, defaultDuration: defaultDuration}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Location returns the wall-clock location phrases are read in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// DefaultDuration returns the length applied to start-only phrases.
func (n *Normalizer) DefaultDuration() time.Duration {
	return n.defaultDuration
}

// Normalize resolves phrase against now using the default duration.
func (n *Normalizer) Normalize(phrase string, now time.Time) (Window, error) {
	return n.NormalizeWithDuration(phrase, now, 0)
}

// NormalizeWithDuration resolves phrase against now. d is the length used when
// the phrase states neither an end nor a length; d <= 0 means the default.
func (n *Normalizer) NormalizeWithDuration(phrase string, now time.Time, d time.Duration) (Window, error) {
	if d <= 0 {
		d = n.defaultDuration
	}
	now = now.In(n.loc)

	if t, err := time.Parse(time.RFC3339, strings.ToUpper(strings.TrimSpace(phrase))); err == nil {
		if t.Before(now) {
			return Window{}, pastInstant(phrase)
		}
		return Of(t, d)
	}

	text := prepare(phrase)
	if text == "" {
		return Window{}, unparseable(phrase)
	}

	tok := n.scan(text)
	if tok.invalid != "" {
		return Window{}, &NormalizationError{Reason: ReasonUnparseable, Phrase: phrase, Detail: tok.invalid}
	}
	if tok.length > 0 {
		d = tok.length
	}

	if tok.hasOffset {
		if len(tok.clocks) > 0 || tok.hasDate() {
			return Window{}, ambiguous(phrase, "relative offset combined with an explicit date or time")
		}
		return Of(now.Add(tok.offset), d)
	}

	if len(tok.clocks) == 0 {
		if tok.hasDate() {
			return Window{}, ambiguous(phrase, "no time of day given")
		}
		return Window{}, unparseable(phrase)
	}

	clocks := dedupeClocks(tok.clocks)
	if len(clocks) > 1 {
		return Window{}, ambiguous(phrase, "more than one time of day")
	}
	start, ok := clocks[0].resolve(tok.hint)
	if !ok {
		return Window{}, ambiguous(phrase, fmt.Sprintf("%d could be morning or evening", clocks[0].hour))
	}

	day, explicit, err := n.resolveDay(tok, now, start)
	if err != nil {
		return Window{}, &NormalizationError{Reason: ReasonAmbiguous, Phrase: phrase, Detail: err.Error()}
	}

	begin := start.on(day, n.loc)
	if !explicit && begin.Before(now) {
		begin = start.on(day.AddDate(0, 0, 1), n.loc)
	}
	if begin.Before(now) {
		return Window{}, pastInstant(phrase)
	}

	end := begin.Add(d)
	if tok.end != nil {
		endClock, ok := tok.end.resolve(tok.hint)
		if !ok {
			return Window{}, ambiguous(phrase, "range end could be morning or evening")
		}
		end = endClock.on(begin, n.loc)
		if !end.After(begin) {
			end = endClock.on(begin.AddDate(0, 0, 1), n.loc)
		}
	}

	return New(begin, end)
}

// ClockCandidates returns every time of day the phrase could mean. A bare
// hour such as "3" yields both 03:00 and 15:00; dates are ignored.
func (n *Normalizer) ClockCandidates(phrase string) []Clock {
	return clockCandidates(n.scan(prepare(phrase)))
}

// ReplyScan describes the time references in a short reply.
type ReplyScan struct {
	Clocks []Clock
	// Dated is set when the reply also names a date, weekday, relative
	// day, offset or length, which makes it a new request rather than a
	// pick among offered times.
	Dated bool
	// Rest holds the folded words no time pattern claimed.
	Rest []string
}

// ScanReply reports the clocks in phrase together with everything else
// the phrase says.
func (n *Normalizer) ScanReply(phrase string) ReplyScan {
	tok := n.scan(prepare(phrase))
	return ReplyScan{
		Clocks: clockCandidates(tok),
		Dated:  tok.hasDate() || tok.hasOffset || tok.length > 0,
		Rest: strings.FieldsFunc(tok.rest, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}),
	}
}

func clockCandidates(tok *tokens) []Clock {
	var out []Clock
	for _, rc := range dedupeClocks(tok.clocks) {
		if c, ok := rc.resolve(tok.hint); ok {
			out = append(out, Clock{Hour: c.hour, Minute: c.minute})
			continue
		}
		out = append(out,
			Clock{Hour: rc.hour % 12, Minute: rc.minute},
			Clock{Hour: rc.hour%12 + 12, Minute: rc.minute},
		)
	}
	return out
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Of returns the instant at this clock on t's calendar day in loc.
func (c Clock) Of(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Before reports whether c is earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

// ParseClock parses a 24-hour HH:MM clock such as "09:00".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func prepare(phrase string) string {
	text := textfold.Fold(phrase)
	text = meridiemDotsRe.ReplaceAllString(text, "${1}m")
	text = isoJoinRe.ReplaceAllString(text, "$1 $2")
	return strings.Trim(text, " .,;!?")
}

type clockForm int

const (
	formBare clockForm = iota
	formColon
	formH
	formMeridiem
)

type rawClock struct {
	hour     int
	minute   int
	form     clockForm
	meridiem string
}

// resolve converts the raw clock to 24-hour form. ok is false for a bare
// hour from 1 to 12 with no meridiem and no part-of-day hint.
func (c rawClock) resolve(hint string) (rawClock, bool) {
	switch c.form {
	case formMeridiem:
		return applyMeridiem(c, c.meridiem), true
	case formColon, formH:
		if hint == "pm" && c.hour >= 1 && c.hour < 12 {
			c.hour += 12
		}
		return c, true
	default:
		if c.hour == 0 || c.hour > 12 {
			return c, true
		}
		if hint == "" {
			return c, false
		}
		return applyMeridiem(c, hint), true
	}
}

func applyMeridiem(c rawClock, meridiem string) rawClock {
	switch {
	case meridiem == "pm" && c.hour != 12:
		c.hour += 12
	case meridiem == "am" && c.hour == 12:
		c.hour = 0
	}
	c.form = formColon
	return c
}

func (c rawClock) on(day time.Time, loc *time.Location) time.Time {
	return Clock{Hour: c.hour, Minute: c.minute}.Of(day, loc)
}

func parseRawClock(s string) (rawClock, bool) {
	m := clockTokenRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return rawClock{}, false
	}
	return rawClockFromMatch(m[1], m[2], m[3], m[4], m[5])
}

func rawClockFromMatch(hour, sep, minute, hSuffix, meridiem string) (rawClock, bool) {
	h, _ := strconv.Atoi(hour)
	c := rawClock{hour: h, form: formBare}
	if minute != "" {
		c.minute, _ = strconv.Atoi(minute)
	}
	switch {
	case meridiem != "":
		c.form = formMeridiem
		c.meridiem = meridiem
		if h < 1 || h > 12 {
			return rawClock{}, false
		}
	case sep == "h" || hSuffix != "":
		c.form = formH
	case sep == ":":
		c.form = formColon
	}
	if c.hour > 23 || c.minute > 59 {
		return rawClock{}, false
	}
	return c, true
}

func dedupeClocks(clocks []rawClock) []rawClock {
	var out []rawClock
	for _, c := range clocks {
		dup := false
		for _, o := range out {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

type dateRef struct {
	year  int
	month time.Month
	day   int
}

type weekdayRef struct {
	day  time.Weekday
	next bool
	this bool
}

type tokens struct {
	dates     []dateRef
	relDays   []int
	weekdays  []weekdayRef
	offset    time.Duration
	hasOffset bool
	length    time.Duration
	clocks    []rawClock
	end       *rawClock
	hint      string
	invalid   string
	// rest is the text no pattern claimed.
	rest      string
}

func (t *tokens) hasDate() bool {
	return len(t.dates) > 0 || len(t.relDays) > 0 || len(t.weekdays) > 0
}

// scanner consumes matches from the text so that later patterns never see
// characters an earlier pattern already claimed.
type scanner struct {
	text string
}

func (s *scanner) take(re *regexp.Regexp, fn func(m []string)) {
	s.text = re.ReplaceAllStringFunc(s.text, func(match string) string {
		fn(re.FindStringSubmatch(match))
		return " "
	})
}

func (n *Normalizer) scan(text string) *tokens {
	tok := &tokens{}
	sc := &scanner{text: text}

	sc.take(isoDateRe, func(m []string) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		tok.addDate(y, time.Month(mo), d)
	})
	sc.take(monthDayRe, func(m []string) {
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		tok.addDate(y, monthNames[m[1]], d)
	})
	sc.take(dayMonthRe, func(m []string) {
		d, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[3])
		tok.addDate(y, monthNames[m[2]], d)
	})
	sc.take(slashDateRe, func(m []string) {
		n.addSlashDate(tok, m[1], m[2], m[3])
	})
	sc.take(inRe, func(m []string) {
		unit, subDay := unitDuration(m[2])
		amount := parseAmount(m[1])
		if subDay {
			tok.offset += time.Duration(amount * float64(unit))
			tok.hasOffset = true
			return
		}
		tok.relDays = append(tok.relDays, int(amount*float64(unit/(24*time.Hour))))
	})
	sc.take(forRe, func(m []string) {
		unit, _ := unitDuration(m[2])
		tok.length = time.Duration(parseAmount(m[1]) * float64(unit))
	})
	sc.take(rangeRe, func(m []string) {
		start, ok1 := parseRawClock(m[1])
		end, ok2 := parseRawClock(m[2])
		if !ok1 || !ok2 {
			tok.invalid = "invalid time range"
			return
		}
		if start.form == formBare && end.form == formMeridiem {
			start = inheritMeridiem(start, end)
		}
		tok.clocks = append(tok.clocks, start)
		tok.end = &end
	})
	sc.take(relativeDayRe, func(m []string) {
		tok.relDays = append(tok.relDays, relativeDays[m[1]])
		if m[1] == "tonight" {
			tok.hint = "pm"
		}
	})
	sc.take(weekdayRe, func(m []string) {
		ref := weekdayRef{day: weekdayNames[m[2]]}
		switch m[1] {
		case "next", "proxima", "proximo":
			ref.next = true
		case "this", "esta", "este":
			ref.this = true
		}
		tok.weekdays = append(tok.weekdays, ref)
	})
	// Named clocks go first so "noite" in "meia-noite" is not read as a
	// part of day.
	sc.take(namedClockRe, func(m []string) {
		tok.clocks = append(tok.clocks, namedClocks[m[1]])
	})
	sc.take(partOfDayRe, func(m []string) {
		tok.hint = partsOfDay[m[1]]
	})
	sc.take(clockRe, func(m []string) {
		c, ok := rawClockFromMatch(m[1], m[2], m[3], m[4], m[5])
		if !ok {
			tok.invalid = "invalid time of day"
			return
		}
		tok.clocks = append(tok.clocks, c)
	})

	tok.rest = sc.text
	return tok
}

// inheritMeridiem applies the end's am/pm to a bare start hour, falling back
// to the other half of the day when that would put the start after the end.
func inheritMeridiem(start, end rawClock) rawClock {
	endResolved := applyMeridiem(end, end.meridiem)
	s := applyMeridiem(start, end.meridiem)
	if s.hour*60+s.minute >= endResolved.hour*60+endResolved.minute {
		other := "am"
		if end.meridiem == "am" {
			other = "pm"
		}
		s = applyMeridiem(start, other)
	}
	return s
}

func (t *tokens) addDate(year int, month time.Month, day int) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		t.invalid = "invalid date"
		return
	}
	t.dates = append(t.dates, dateRef{year: year, month: month, day: day})
}

func (n *Normalizer) addSlashDate(tok *tokens, a, b, year string) {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	y := 0
	if year != "" {
		y, _ = strconv.Atoi(year)
		if y < 100 {
			y += 2000
		}
	}

	dmyValid := second >= 1 && second <= 12 && first >= 1 && first <= 31
	mdyValid := first >= 1 && first <= 12 && second >= 1 && second <= 31

	switch {
	case n.dateOrder == DateOrderDMY && dmyValid, dmyValid && !mdyValid:
		tok.addDate(y, time.Month(second), first)
	case n.dateOrder == DateOrderMDY && mdyValid, mdyValid && !dmyValid:
		tok.addDate(y, time.Month(first), second)
	case dmyValid && first == second:
		tok.addDate(y, time.Month(first), first)
	case dmyValid:
		// Both readings are valid; keep both so resolution reports ambiguity.
		tok.addDate(y, time.Month(second), first)
		tok.addDate(y, time.Month(first), second)
	default:
		tok.invalid = "invalid date"
	}
}

// resolveDay picks the calendar day the start falls on. explicit is false
// when no date token was present and the caller may roll forward a day.
func (n *Normalizer) resolveDay(tok *tokens, now time.Time, start rawClock) (time.Time, bool, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc)
	var days []time.Time

	for _, ref := range tok.dates {
		y := ref.year
		if y == 0 {
			y = today.Year()
		}
		d := time.Date(y, ref.month, ref.day, 0, 0, 0, 0, n.loc)
		if d.Month() != ref.month {
			return time.Time{}, false, fmt.Errorf("%s %d does not exist", ref.month, ref.day)
		}
		if ref.year == 0 && d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		days = append(days, d)
	}
	for _, offset := range tok.relDays {
		days = append(days, today.AddDate(0, 0, offset))
	}
	for _, ref := range tok.weekdays {
		ahead := (int(ref.day) - int(today.Weekday()) + 7) % 7
		switch {
		case ahead != 0 || ref.this:
		case ref.next:
			ahead = 7
		case start.on(today, n.loc).Before(now):
			ahead = 7
		}
		days = append(days, today.AddDate(0, 0, ahead))
	}

	if len(days) == 0 {
		return today, false, nil
	}
	for _, d := range days[1:] {
		if !d.Equal(days[0]) {
			return time.Time{}, false, fmt.Errorf("conflicting dates %s and %s", days[0].Format("2006-01-02"), d.Format("2006-01-02"))
		}
	}
	return days[0], true, nil
}

func parseAmount(s string) float64 {
	if v, ok := numberWords[s]; ok {
		return v
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return float64(v)
}
