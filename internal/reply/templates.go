package reply

// Template names. Configuration overrides use the same names.
const (
	KeyHelp               = "help"
	KeyConfirm            = "confirm"
	KeyChoose             = "choose"
	KeyCreated            = "created"
	KeyDeclined           = "declined"
	KeyNoAvailability     = "no_availability"
	KeyMaxRetries         = "max_retries"
	KeyRepromptConfirm    = "reprompt_confirm"
	KeyRepromptChoice     = "reprompt_choice"
	KeyClarifyAmbiguous   = "clarify_ambiguous"
	KeyClarifyUnparseable = "clarify_unparseable"
	KeyClarifyPast        = "clarify_past"
	KeyExternalFailure    = "external_failure"
	KeyPending            = "pending"
	KeyCheckFree          = "check_free"
	KeyCheckBusy          = "check_busy"
	KeySearchResults      = "search_results"
	KeySearchEmpty        = "search_empty"
	KeySearchFailed       = "search_failed"
	KeyRateLimited        = "rate_limited"
)

const alternativesList = `{{range $i, $w := .Alternatives}}
{{inc $i}}. {{span $w}}{{end}}`

var defaultTemplates = map[string]string{
	KeyHelp: `I can help with your calendar:
- schedule: "schedule team coffee tomorrow at 3pm"
- check availability: "am I free Tuesday 10:30?"
- search: "find events about dentist"`,

	KeyConfirm: `{{.Subject}} on {{span .Window}} is free. Shall I book it? (yes/no)`,

	KeyChoose: `{{if .Rechecked}}{{span .Window}} was just taken.{{else}}You are busy on {{span .Window}}.{{end}} Free times nearby:` +
		alternativesList + `
Reply with a number or a time, or "no" to cancel.`,

	KeyCreated: `Booked "{{.Subject}}" on {{span .Window}}.{{if .Link}}
{{.Link}}{{end}}`,

	KeyDeclined: `OK, I won't book "{{.Subject}}".`,

	KeyNoAvailability: `You are busy on {{span .Window}} and I found no free time nearby. Try another day or time.`,

	KeyMaxRetries: `I couldn't understand the answer, so I dropped "{{.Subject}}". Ask again whenever you like.`,

	KeyRepromptConfirm: `Sorry, I didn't get that. Should I book "{{.Subject}}" on {{span .Window}}? Please answer yes or no.`,

	KeyRepromptChoice: `Sorry, I didn't get that. Pick one of:` + alternativesList + `
Reply with a number or a time, or "no" to cancel.`,

	KeyClarifyAmbiguous: `That time could mean more than one thing. Please give a day and a time, like "tomorrow at 3pm" or "Tuesday 10:30".`,

	KeyClarifyUnparseable: `I couldn't find a time in that. Try something like "tomorrow at 3pm" or "Tuesday 10:30".`,

	KeyClarifyPast: `That time has already passed. Please pick a time in the future.`,

	KeyExternalFailure: `I couldn't reach the calendar just now. Please try again in a moment.`,

	KeyPending: `I'm still working on "{{.Subject}}". Send any message to try again.`,

	KeyCheckFree: `You are free on {{span .Window}}.`,

	KeyCheckBusy: `You are busy on {{span .Window}}.{{if .Alternatives}} Free times nearby:` + alternativesList +
		`{{else}} I found no free time nearby.{{end}}`,

	KeySearchResults: `Events matching "{{.Term}}":{{range .Events}}
- {{when .Window.Start}}: {{.Subject}}{{end}}`,

	KeySearchEmpty: `No upcoming events match "{{.Term}}".`,

	KeySearchFailed: `I couldn't search the calendar just now. Please try again in a moment.`,

	KeyRateLimited: `You are sending messages too quickly. Please wait a minute and try again.`,
}
