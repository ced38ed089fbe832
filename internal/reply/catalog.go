package reply

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/teemow/agentcal/internal/calendar"
	"github.com/teemow/agentcal/internal/negotiator"
	"github.com/teemow/agentcal/internal/session"
	"github.com/teemow/agentcal/internal/timewindow"
)

// Layouts used to render times in replies.
const (
	DayTimeLayout = "Mon 02/01 15:04"
	TimeLayout    = "15:04"
)

// Catalog renders replies.
type Catalog struct {
	loc       *time.Location
	templates map[string]*template.Template
}

// outcomeData is the value negotiation templates are executed with.
type outcomeData struct {
	Subject      string
	Window       timewindow.Window
	Alternatives []timewindow.Window
	Link         string
	Attempts     int
	MaxAttempts  int
	Rechecked    bool
}

type searchData struct {
	Term   string
	Events []calendar.Event
}

// New builds a catalog rendering times in loc. overrides replaces default
// templates by name; an unknown name or a template that does not parse is
// an error.
func New(loc *time.Location, overrides map[string]string) (*Catalog, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := &Catalog{loc: loc, templates: make(map[string]*template.Template, len(defaultTemplates))}

	for name, text := range defaultTemplates {
		if override, ok := overrides[name]; ok {
			text = override
		}
		tmpl, err := template.New(name).Funcs(c.funcs()).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reply template %q: %w", name, err)
		}
		c.templates[name] = tmpl
	}

	var unknown []string
	for name := range overrides {
		if _, ok := defaultTemplates[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown reply templates: %s", strings.Join(unknown, ", "))
	}
	return c, nil
}

// Names returns the template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(defaultTemplates))
	for name := range defaultTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) funcs() template.FuncMap {
	return template.FuncMap{
		"when": c.when,
		"span": c.span,
		"inc":  func(i int) int { return i + 1 },
	}
}

func (c *Catalog) when(t time.Time) string {
	return t.In(c.loc).Format(DayTimeLayout)
}

func (c *Catalog) span(w timewindow.Window) string {
	start, end := w.Start.In(c.loc), w.End.In(c.loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return start.Format(DayTimeLayout) + "-" + end.Format(TimeLayout)
	}
	return start.Format(DayTimeLayout) + " - " + end.Format(DayTimeLayout)
}

// Render executes the named template.
func (c *Catalog) Render(name string, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown reply template %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render reply %q: %w", name, err)
	}
	return b.String(), nil
}

// mustRender falls back to the default template when an override fails
// at execution time.
func (c *Catalog) mustRender(name string, data any) string {
	text, err := c.Render(name, data)
	if err == nil {
		return text
	}
	tmpl := template.Must(template.New(name).Funcs(c.funcs()).Parse(defaultTemplates[name]))
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return defaultTemplates[KeyExternalFailure]
	}
	return b.String()
}

// Help is the reply for messages that were not understood.
func (c *Catalog) Help() string {
	return c.mustRender(KeyHelp, nil)
}

// RateLimited is the reply for users over their message quota.
func (c *Catalog) RateLimited() string {
	return c.mustRender(KeyRateLimited, nil)
}

// Unavailable is the reply when the message could not be processed
// because a dependency failed.
func (c *Catalog) Unavailable() string {
	return c.mustRender(KeyExternalFailure, nil)
}

// Negotiation renders a negotiator outcome.
func (c *Catalog) Negotiation(o negotiator.Outcome) string {
	return c.mustRender(negotiationKey(o), newOutcomeData(o))
}

func negotiationKey(o negotiator.Outcome) string {
	switch o.Failure {
	case negotiator.FailureNormalization:
		return clarifyKey(o.Reason)
	case negotiator.FailureExternalCall:
		return KeyExternalFailure
	case negotiator.FailureAvailabilityExhausted:
		return KeyNoAvailability
	case negotiator.FailureMaxRetries:
		return KeyMaxRetries
	}

	switch {
	case o.State == session.StateCreated:
		return KeyCreated
	case o.Declined:
		return KeyDeclined
	case o.State == session.StateAwaitingConfirmation && o.Reprompt:
		return KeyRepromptConfirm
	case o.State == session.StateAwaitingUserChoice && o.Reprompt:
		return KeyRepromptChoice
	case o.State == session.StateAwaitingConfirmation:
		return KeyConfirm
	case o.State == session.StateAwaitingUserChoice:
		return KeyChoose
	}
	return KeyPending
}

func clarifyKey(r timewindow.Reason) string {
	switch r {
	case timewindow.ReasonAmbiguous:
		return KeyClarifyAmbiguous
	case timewindow.ReasonPastInstant:
		return KeyClarifyPast
	default:
		return KeyClarifyUnparseable
	}
}

func newOutcomeData(o negotiator.Outcome) outcomeData {
	d := outcomeData{
		Subject:      o.Subject,
		Window:       o.Window,
		Alternatives: o.Alternatives,
		Attempts:     o.Attempts,
		MaxAttempts:  o.MaxAttempts,
		Rechecked:    o.Rechecked,
	}
	if o.Event != nil {
		d.Link = o.Event.Link
	}
	return d
}

// Availability renders the result of a stateless availability check.
func (c *Catalog) Availability(o negotiator.Outcome) string {
	switch {
	case o.Failure == negotiator.FailureNormalization:
		return c.mustRender(clarifyKey(o.Reason), newOutcomeData(o))
	case o.Failure == negotiator.FailureExternalCall:
		return c.mustRender(KeyExternalFailure, nil)
	case o.Free:
		return c.mustRender(KeyCheckFree, newOutcomeData(o))
	default:
		return c.mustRender(KeyCheckBusy, newOutcomeData(o))
	}
}

// Search renders keyword search results.
func (c *Catalog) Search(term string, events []calendar.Event) string {
	data := searchData{Term: term, Events: events}
	if len(events) == 0 {
		return c.mustRender(KeySearchEmpty, data)
	}
	return c.mustRender(KeySearchResults, data)
}

// SearchFailed is the reply when the calendar search failed.
func (c *Catalog) SearchFailed() string {
	return c.mustRender(KeySearchFailed, nil)
}
