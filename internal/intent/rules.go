package intent

import (
	"context"
	"regexp"
	"strings"
)

// RuleOracle classifies English and Portuguese messages with fixed
// patterns. It needs no network access and is the default oracle.
type RuleOracle struct{}

// NewRuleOracle returns a RuleOracle.
func NewRuleOracle() *RuleOracle {
	return &RuleOracle{}
}

const (
	politePrefix = `^(?:(?:please|pls|hey|hi|ok|okay|por\s+favor|ol[aá]|oi)[,!]?\s+)*`
	trailing     = `[\s?.!]*$`

	enWeekdays = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
	ptWeekdays = `segunda(?:-feira)?|ter[cç]a(?:-feira)?|quarta(?:-feira)?|quinta(?:-feira)?|sexta(?:-feira)?|s[aá]bado|domingo`
	months     = `january|february|march|april|may|june|july|august|september|october|november|december|` +
		`janeiro|fevereiro|mar[cç]o|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro`
	countWords = `\d|an?\s|half|one|two|three|four|five|six|seven|eight|nine|ten|uma?\s|duas|dois|tr[eê]s|quatro|cinco|meia`
)

var (
	searchPatterns = []*regexp.Regexp{
		regexp.MustCompile(politePrefix +
			`(?:find|search(?:\s+for)?|look\s+(?:up|for)|show(?:\s+me)?|list|` +
			`buscar?|busque|procur(?:ar|e)|pesquis(?:ar|e)|mostr(?:ar|e)(?:\s+me)?|encontr(?:ar|e))\s+` +
			`(?:(?:my|the|all|any|meus|minhas|os|as|todos\s+os|todas\s+as)\s+)?` +
			`(?:(?:upcoming|future|next|pr[oó]xim[oa]s)\s+)?` +
			`(?:(?:events?|meetings?|appointments?|eventos?|reuni(?:[oõ]es|[aã]o)|compromissos?)\s+)?` +
			`(?:(?:about|with|for|called|named|matching|titled|sobre|com|chamad[oa]s?)\s+)?` +
			`(.+?)` + trailing),
	}

	availabilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(politePrefix +
			`(?:am\s+i|are\s+(?:you|we)|is\s+(?:it|the\s+calendar|my\s+calendar))\s+(?:free|available|busy)\s+(.+?)` + trailing),
		regexp.MustCompile(politePrefix +
			`(?:eu\s+)?(?:estou|estarei|est[aá]|t[oô])\s+(?:livre|dispon[ií]vel|ocupad[oa])\s+(.+?)` + trailing),
		regexp.MustCompile(politePrefix +
			`(?:check|verify|verificar?|verifique|checar?|cheque)\s+(?:my\s+|the\s+|a\s+|minha\s+)?` +
			`(?:availability|disponibilidade|agenda|calendar)\s+(?:for\s+|on\s+|at\s+|para\s+|em\s+)?(.+?)` + trailing),
		regexp.MustCompile(politePrefix +
			`(?:do\s+i\s+have\s+(?:anything|something|a\s+meeting|meetings|plans)|` +
			`(?:eu\s+)?tenho\s+(?:algo|alguma\s+coisa|algum\s+compromisso|compromisso|reuni[aã]o))\s+(.+?)` + trailing),
	}

	schedulePattern = regexp.MustCompile(politePrefix +
		`(?:can\s+you\s+|could\s+you\s+|i\s+want\s+to\s+|i'd\s+like\s+to\s+|quero\s+|gostaria\s+de\s+|pode\s+)?` +
		`(?:schedule|book|add|create|set\s+up|put|plan|arrange|` +
		`agend(?:ar|e|a)|marc(?:ar|a|e)|cri(?:ar|e|a)|adicion(?:ar|e|a)|coloc(?:ar|a|que))\s+` +
		`(?:me\s+)?(.+?)` + trailing)

	// timeStart finds where the time phrase begins inside the remainder of
	// a scheduling request.
	timeStart = regexp.MustCompile(`(?:^|\s)(` +
		`(?:at|[aà]s|tomorrow|today|tonight|amanh[aã]|hoje|depois\s+de\s+amanh[aã]|` +
		`noon|midnight|meio-dia|meia-noite|` + enWeekdays + `|` + ptWeekdays + `|` + months + `)(?:\s|$|[,.!?])|` +
		`(?:on|next|this)\s+(?:the\s+)?(?:` + enWeekdays + `|` + months + `|week|morning|afternoon|evening|\d)|` +
		`pr[oó]xim[oa]\s+(?:` + ptWeekdays + `|semana)|` +
		`from\s+\d|in\s+(?:` + countWords + `)|em\s+(?:` + countWords + `)|` +
		`n[ao]\s+(?:` + ptWeekdays + `|dia|pr[oó]xim)|` +
		`\d)`)

	leadingArticle = regexp.MustCompile(`^(?:an?|the|um|uma|o|a|my|meu|minha)\s+`)
	helpPattern    = regexp.MustCompile(politePrefix + `(?:help|ajuda|\?|what\s+can\s+you\s+do|o\s+que\s+voc[eê]\s+faz)` + trailing)
)

// Parse implements Oracle.
func (o *RuleOracle) Parse(ctx context.Context, message string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}

	original := strings.Join(strings.Fields(message), " ")
	lower := strings.ToLower(original)
	if len(lower) != len(original) {
		// Slicing the original by lowercase offsets needs equal lengths.
		original = lower
	}

	if original == "" || helpPattern.MatchString(lower) {
		return Unrecognized(), nil
	}

	for _, re := range availabilityPatterns {
		if m := re.FindStringSubmatchIndex(lower); m != nil {
			return Intent{Kind: KindCheckAvailability, TimePhrase: original[m[2]:m[3]]}, nil
		}
	}

	if m := schedulePattern.FindStringSubmatchIndex(lower); m != nil {
		return scheduleIntent(original[m[2]:m[3]]), nil
	}

	for _, re := range searchPatterns {
		if m := re.FindStringSubmatchIndex(lower); m != nil {
			term := strings.Trim(original[m[2]:m[3]], `"'“”`)
			if term != "" {
				return Intent{Kind: KindSearchByKeyword, SearchTerm: term}, nil
			}
		}
	}

	return Unrecognized(), nil
}

func scheduleIntent(rest string) Intent {
	lower := strings.ToLower(rest)
	subject, phrase := rest, ""
	if m := timeStart.FindStringSubmatchIndex(lower); m != nil {
		subject, phrase = rest[:m[2]], rest[m[2]:]
	}

	subject = strings.TrimSpace(subject)
	if loc := leadingArticle.FindStringIndex(strings.ToLower(subject)); loc != nil {
		subject = subject[loc[1]:]
	}
	subject = strings.Trim(strings.TrimSpace(subject), `"'“”,:`)

	return Intent{
		Kind:       KindSchedule,
		Subject:    subject,
		TimePhrase: strings.TrimSpace(phrase),
	}
}
