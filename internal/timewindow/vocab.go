package timewindow

import (
	"sort"
	"strings"
	"time"
)

// Vocabulary is matched against folded input, so accented forms appear
// without their marks ("terça" is "terca", "amanhã" is "amanha").

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "segunda": time.Monday, "segunda-feira": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "terca": time.Tuesday, "terca-feira": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "quarta": time.Wednesday, "quarta-feira": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "quinta": time.Thursday, "quinta-feira": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "sexta": time.Friday, "sexta-feira": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday,
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "janeiro": time.January,
	"february": time.February, "feb": time.February, "fevereiro": time.February, "fev": time.February,
	"march": time.March, "mar": time.March, "marco": time.March,
	"april": time.April, "apr": time.April, "abril": time.April, "abr": time.April,
	"may": time.May, "maio": time.May, "mai": time.May,
	"june": time.June, "jun": time.June, "junho": time.June,
	"july": time.July, "jul": time.July, "julho": time.July,
	"august": time.August, "aug": time.August, "agosto": time.August,
	"september": time.September, "sep": time.September, "sept": time.September, "setembro": time.September,
	"october": time.October, "oct": time.October, "outubro": time.October,
	"november": time.November, "nov": time.November, "novembro": time.November,
	"december": time.December, "dec": time.December, "dezembro": time.December, "dez": time.December,
}

// relativeDays maps day words to an offset from today.
var relativeDays = map[string]int{
	"today": 0, "hoje": 0, "tonight": 0,
	"tomorrow": 1, "amanha": 1,
	"day after tomorrow": 2, "depois de amanha": 2,
}

// numberWords maps spelled-out quantities to a multiplier of the unit.
var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "um": 1, "uma": 1,
	"two": 2, "dois": 2, "duas": 2,
	"three": 3, "tres": 3,
	"four": 4, "quatro": 4,
	"five": 5, "cinco": 5,
	"six": 6, "seis": 6,
	"seven": 7, "sete": 7,
	"eight": 8, "oito": 8,
	"nine": 9, "nove": 9,
	"ten": 10, "dez": 10,
	"eleven": 11, "onze": 11,
	"twelve": 12, "doze": 12,
	"half an": 0.5, "half a": 0.5, "meia": 0.5,
}

// partsOfDay set the meridiem for hours that are otherwise ambiguous.
var partsOfDay = map[string]string{
	"morning": "am", "manha": "am",
	"afternoon": "pm", "evening": "pm", "night": "pm", "tonight": "pm",
	"tarde": "pm", "noite": "pm",
}

var namedClocks = map[string]rawClock{
	"noon":       {hour: 12, form: formColon},
	"midday":     {hour: 12, form: formColon},
	"meio-dia":   {hour: 12, form: formColon},
	"meio dia":   {hour: 12, form: formColon},
	"midnight":   {hour: 0, form: formColon},
	"meia-noite": {hour: 0, form: formColon},
	"meia noite": {hour: 0, form: formColon},
}

// alternation builds a regexp alternation with longer words first so that
// "segunda-feira" wins over "segunda".
func alternation[V any](words map[string]V) string {
	keys := make([]string, 0, len(words))
	for k := range words {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return strings.Join(keys, "|")
}

func unitDuration(unit string) (time.Duration, bool) {
	switch {
	case strings.HasPrefix(unit, "min"), unit == "m":
		return time.Minute, true
	case strings.HasPrefix(unit, "h"), strings.HasPrefix(unit, "hora"):
		return time.Hour, true
	case strings.HasPrefix(unit, "day"), strings.HasPrefix(unit, "dia"):
		return 24 * time.Hour, false
	case strings.HasPrefix(unit, "week"), strings.HasPrefix(unit, "semana"):
		return 7 * 24 * time.Hour, false
	}
	return 0, false
}
