package invoice

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

// monthLexicon maps European month names that differ from English to their
// English equivalent. Keys are lower case.
var monthLexicon = map[string]string{
	// German / Austrian
	"januar":   "January",
	"februar":  "February",
	"märz":     "March",
	"mär":      "March",
	"mai":      "May",
	"juni":     "June",
	"juli":     "July",
	"oktober":  "October",
	"dezember": "December",
	// Norwegian / Danish / Swedish
	"mars":     "March",
	"desember": "December",
	// Dutch
	"januari":  "January",
	"februari": "February",
	"maart":    "March",
	"mei":      "May",
	"december": "December",
	// French
	"janvier":  "January",
	"février":  "February",
	"avril":    "April",
	"juin":     "June",
	"juillet":  "July",
	"août":     "August",
	"octobre":  "October",
	"novembre": "November",
	"décembre": "December",
	// Italian
	"gennaio":   "January",
	"febbraio":  "February",
	"marzo":     "March",
	"aprile":    "April",
	"maggio":    "May",
	"giugno":    "June",
	"luglio":    "July",
	"settembre": "September",
	"ottobre":   "October",
	"dicembre":  "December",
	// Spanish
	"enero":      "January",
	"febrero":    "February",
	"junio":      "June",
	"julio":      "July",
	"agosto":     "August",
	"septiembre": "September",
	"octubre":    "October",
	"noviembre":  "November",
	"diciembre":  "December",
}

var (
	// wordPattern matches whole words, including non-ASCII letters.
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	dateTokenPattern = regexp.MustCompile(`\p{L}+|\d+`)

	fillerPattern  = regexp.MustCompile(`(?i)\b(monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thu|friday|fri|saturday|sat|sunday|sun|of|the)\b\.?,?`)
	ordinalPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	dayDotPattern  = regexp.MustCompile(`\b(\d{1,2})\.(\s)`)
	dottedPattern  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

var englishMonths = map[string]bool{
	"january": true, "jan": true, "february": true, "feb": true,
	"march": true, "mar": true, "april": true, "apr": true, "may": true,
	"june": true, "jun": true, "july": true, "jul": true,
	"august": true, "aug": true, "september": true, "sep": true, "sept": true,
	"october": true, "oct": true, "november": true, "nov": true,
	"december": true, "dec": true,
}

// translateMonths replaces known European month names with English ones.
// Matching is case-insensitive and only on whole words.
func translateMonths(s string) string {
	return wordPattern.ReplaceAllStringFunc(s, func(word string) string {
		if english, ok := monthLexicon[strings.ToLower(word)]; ok {
			return english
		}
		return word
	})
}

// normalizeDate prepares the raw date value for coercion. Native dates and
// strict YYYY-MM-DD strings pass through, other strings are parsed day-first,
// anything else becomes nil.
func normalizeDate(v any) any {
	switch d := v.(type) {
	case nil:
		return nil
	case civil.Date, *civil.Date, time.Time, *time.Time:
		return v
	case string:
		if _, err := civil.ParseDate(d); err == nil {
			return d
		}
		parsed, ok := parseDayFirst(translateMonths(d))
		if !ok {
			return nil
		}
		return parsed
	default:
		return nil
	}
}

// parseDayFirst is a lenient date parser that resolves ambiguous numeric
// dates as day before month. Two-digit years follow time.Parse: 69-99 map
// to 19xx, 00-68 to 20xx.
func parseDayFirst(s string) (d civil.Date, ok bool) {
	s = cleanDate(s)
	if !hasDayMonthYear(s) {
		return civil.Date{}, false
	}

	defer func() {
		if recover() != nil {
			d, ok = civil.Date{}, false
		}
	}()
	t, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// cleanDate rewrites the forms invoices use into ones dateparse reads:
// weekday names and ordinals dropped, "15." day markers unpunctuated and
// dotted numeric dates turned into slashed ones, which honor day-first order.
func cleanDate(s string) string {
	s = fillerPattern.ReplaceAllString(s, " ")
	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = dayDotPattern.ReplaceAllString(s, "$1$2")
	s = strings.Trim(spacePattern.ReplaceAllString(s, " "), " ,")
	return dottedPattern.ReplaceAllString(s, "$1/$2/$3")
}

// hasDayMonthYear reports whether s carries all three date parts. dateparse
// also accepts years, year-months and unix timestamps, none of which name a day.
func hasDayMonthYear(s string) bool {
	var numbers []string
	named := false
	for _, tok := range dateTokenPattern.FindAllString(strings.ToLower(s), -1) {
		switch {
		case tok[0] >= '0' && tok[0] <= '9':
			numbers = append(numbers, tok)
		case englishMonths[tok]:
			named = true
		}
	}
	switch {
	case named:
		return len(numbers) >= 2
	case len(numbers) == 1:
		return len(numbers[0]) == 8
	default:
		return len(numbers) >= 3
	}
}
