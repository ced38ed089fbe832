package negotiator

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/teemow/agentcal/internal/textfold"
	"github.com/teemow/agentcal/internal/timewindow"
)

type answer int

const (
	answerNone answer = iota
	answerYes
	answerNo
)

// Word lists are folded: no accents, lowercase.
var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "sure": true,
		"ok": true, "okay": true, "confirm": true, "confirmed": true, "correct": true,
		"perfect": true, "great": true, "fine": true,
		"sim": true, "s": true, "claro": true, "pode": true, "confirmo": true,
		"confirma": true, "confirmado": true, "isso": true, "beleza": true,
		"fechado": true, "certo": true, "perfeito": true, "otimo": true,
	}
	yesPhrases = []string{
		"go ahead", "sounds good", "do it", "book it", "please do", "that works",
		"pode marcar", "pode ser", "com certeza", "tudo bem", "manda ver",
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "cancel": true,
		"negative": true, "never": true, "none": true, "dont": true,
		"nao": true, "cancela": true, "cancelar": true, "nenhum": true, "nenhuma": true,
	}
	noPhrases = []string{
		"never mind", "nevermind", "not now", "forget it",
		"deixa pra la", "deixa para la", "esquece",
	}
)

var ordinalWords = map[string]int{
	"first": 0, "primeiro": 0, "primeira": 0,
	"second": 1, "segundo": 1, "segunda": 1,
	"third": 2, "terceiro": 2, "terceira": 2,
	"fourth": 3, "quarto": 3, "quarta": 3,
	"fifth": 4, "quinto": 4, "quinta": 4,
}

// soleOrdinalWords count only when they are the whole reply.
var soleOrdinalWords = map[string]int{
	"one": 0, "um": 0, "uma": 0,
	"two": 1, "dois": 1, "duas": 1,
	"three": 2, "tres": 2,
	"four": 3, "quatro": 3,
	"five": 4, "cinco": 4,
}

var lastWords = map[string]bool{"last": true, "ultimo": true, "ultima": true}

var digitOrdinalRe = regexp.MustCompile(`^#?(\d{1,2})(?:st|nd|rd|th|a|o)?$`)

// replyTokens folds text and splits it into words, dropping punctuation
// except the characters that carry meaning in times and ordinals.
func replyTokens(text string) []string {
	folded := textfold.Fold(text)
	folded = strings.NewReplacer("'", "", "’", "").Replace(folded)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':' && r != '#'
	})
}

func parseYesNo(text string) answer {
	tokens := replyTokens(text)
	if len(tokens) == 0 {
		return answerNone
	}
	joined := strings.Join(tokens, " ")
	for _, p := range noPhrases {
		if joined == p || strings.HasPrefix(joined, p+" ") {
			return answerNo
		}
	}
	for _, p := range yesPhrases {
		if joined == p || strings.HasPrefix(joined, p+" ") {
			return answerYes
		}
	}
	switch {
	case noWords[tokens[0]]:
		return answerNo
	case yesWords[tokens[0]]:
		return answerYes
	}
	return answerNone
}

// parseOrdinal finds a position among n alternatives in a reply such as
// "2", "#2", "option 2", "the 2nd", "the second one" or "last".
func parseOrdinal(text string, n int) (int, bool) {
	tokens := replyTokens(text)
	if len(tokens) == 0 || n == 0 {
		return 0, false
	}

	if len(tokens) == 1 {
		if idx, ok := soleOrdinalWords[tokens[0]]; ok {
			return inRange(idx, n)
		}
	}

	found := -1
	for _, tok := range tokens {
		idx := -1
		if m := digitOrdinalRe.FindStringSubmatch(tok); m != nil {
			v, _ := strconv.Atoi(m[1])
			idx = v - 1
		} else if v, ok := ordinalWords[tok]; ok {
			idx = v
		} else if lastWords[tok] {
			idx = n - 1
		}
		if idx < 0 {
			continue
		}
		if found >= 0 && found != idx {
			return 0, false
		}
		found = idx
	}
	if found < 0 {
		return 0, false
	}
	return inRange(found, n)
}

func inRange(idx, n int) (int, bool) {
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// choiceWords may surround a position or time when picking an offered
// alternative: "I'll take the second one", "11:30 works for me".
var choiceWords = map[string]bool{
	"the": true, "a": true, "an": true, "at": true, "one": true, "option": true,
	"slot": true, "time": true, "please": true, "pls": true, "ok": true, "okay": true,
	"yes": true, "lets": true, "go": true, "with": true, "how": true, "about": true,
	"what": true, "i": true, "ill": true, "id": true, "take": true, "pick": true,
	"choose": true, "prefer": true, "want": true, "like": true, "that": true,
	"works": true, "for": true, "me": true, "is": true, "fine": true, "good": true,
	"then": true, "better": true,
	"o": true, "as": true, "de": true, "do": true, "da": true, "em": true, "na": true,
	"opcao": true, "horario": true, "sim": true, "quero": true, "prefiro": true,
	"fico": true, "com": true, "pode": true, "ser": true, "por": true, "favor": true,
	"melhor": true, "entao": true, "e": true,
}

// isChoiceWord reports whether word may appear in a reply that only
// picks an alternative.
func isChoiceWord(word string) bool {
	if choiceWords[word] || lastWords[word] || digitOrdinalRe.MatchString(word) {
		return true
	}
	_, ordinal := ordinalWords[word]
	_, sole := soleOrdinalWords[word]
	return ordinal || sole
}

func onlyChoiceWords(words []string) bool {
	for _, w := range words {
		if !isChoiceWord(w) {
			return false
		}
	}
	return true
}

// isOrdinalReply reports whether the reply consists of a position and
// filler words alone, such as "2", "#2", "option 2" or "the second one".
// Clock times, dates and any other words rule it out.
func isOrdinalReply(text string) bool {
	tokens := replyTokens(text)
	if len(tokens) == 0 {
		return false
	}
	positions := 0
	for _, tok := range tokens {
		if !isChoiceWord(tok) {
			return false
		}
		_, ordinal := ordinalWords[tok]
		_, sole := soleOrdinalWords[tok]
		if ordinal || sole || lastWords[tok] || digitOrdinalRe.MatchString(tok) {
			positions++
		}
	}
	return positions > 0
}

// matchClock returns the alternative whose local start is closest to a
// clock time named in the reply, within tolerance. Ties are not resolved.
func matchClock(clocks []timewindow.Clock, alternatives []timewindow.Window, loc *time.Location, tolerance time.Duration) (int, bool) {
	best, bestDiff, tie := -1, time.Duration(0), false
	for i, alt := range alternatives {
		local := alt.Start.In(loc)
		for _, c := range clocks {
			diff := local.Sub(c.Of(local, loc))
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				continue
			}
			switch {
			case best < 0 || diff < bestDiff:
				best, bestDiff, tie = i, diff, false
			case diff == bestDiff && best != i:
				tie = true
			}
		}
	}
	if best < 0 || tie {
		return 0, false
	}
	return best, true
}
