package leads

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"leadline_backend/internal/tables"
	"leadline_backend/internal/users"
	"leadline_backend/platform/phone"
)

// Extractor pulls location and budget out of message text, backed by the
// versioned location and currency tables.
type Extractor struct {
	tables   *tables.Tables
	patterns []currencyPattern
}

type currencyPattern struct {
	code string
	rate float64
	re   *regexp.Regexp
}

const amountPattern = `([0-9][0-9,]*(?:\.[0-9]+)?)`

func NewExtractor(t *tables.Tables) *Extractor {
	codes := make([]string, 0, len(t.Currencies))
	for code := range t.Currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var patterns []currencyPattern
	for _, code := range codes {
		cur := t.Currencies[code]
		for _, sym := range cur.Symbols {
			patterns = append(patterns, currencyPattern{
				code: code,
				rate: cur.RateToUSD,
				re:   compileSymbol(sym),
			})
		}
	}

	return &Extractor{tables: t, patterns: patterns}
}

// compileSymbol builds a pattern matching the symbol adjacent to an amount,
// on either side. Word symbols ("naira", "usd") get word boundaries so that
// e.g. the ZAR "r" does not match inside arbitrary words.
func compileSymbol(sym string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.ToLower(sym))
	if isWordSymbol(sym) {
		return regexp.MustCompile(
			`(?i)(?:\b` + quoted + `\s*` + amountPattern + `\b|\b` + amountPattern + `\s*` + quoted + `\b)`)
	}
	return regexp.MustCompile(
		`(?i)(?:` + quoted + `\s*` + amountPattern + `|` + amountPattern + `\s*` + quoted + `)`)
}

func isWordSymbol(sym string) bool {
	for _, r := range sym {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(sym) > 0
}

// Budget finds the first currency-tagged amount in text and converts it to
// USD via the static rate table. The earliest match in the text wins when
// several currencies appear.
func (e *Extractor) Budget(text string) (code string, amount, usd float64, ok bool) {
	lowered := strings.ToLower(text)

	best := -1
	var bestPattern currencyPattern
	var bestMatch []string
	for _, p := range e.patterns {
		loc := p.re.FindStringSubmatchIndex(lowered)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			bestPattern = p
			bestMatch = p.re.FindStringSubmatch(lowered)
		}
	}
	if best == -1 {
		return "", 0, 0, false
	}

	// The alternation has two capture groups; exactly one is filled.
	raw := bestMatch[1]
	if raw == "" {
		raw = bestMatch[2]
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || value <= 0 {
		return "", 0, 0, false
	}

	return bestPattern.code, value, value * bestPattern.rate, true
}

// LocationFromText matches known place aliases against the message.
func (e *Extractor) LocationFromText(text string) (Location, bool) {
	lowered := strings.ToLower(text)
	for _, loc := range e.tables.Locations {
		for _, alias := range loc.Aliases {
			if containsWord(lowered, strings.ToLower(alias)) {
				return Location{
					Country: loc.Country,
					Region:  loc.Region,
					City:    loc.City,
					Lat:     loc.Lat,
					Lon:     loc.Lon,
				}, true
			}
		}
	}
	return Location{}, false
}

// containsWord is a substring check that refuses matches embedded in a
// longer word, so "to" style aliases cannot fire inside other words.
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		beforeOK := idx == 0 || !isLetter(haystack[idx-1])
		afterOK := end == len(haystack) || !isLetter(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ResolveLocation applies the extraction priority: the user's stored
// location, then place names in the text, then the country implied by the
// phone's calling code.
func (e *Extractor) ResolveLocation(u users.User, text string) Location {
	if u.Country != nil && *u.Country != "" {
		loc := Location{Country: *u.Country, Lat: u.Latitude, Lon: u.Longitude}
		if u.Region != nil {
			loc.Region = *u.Region
		}
		if u.City != nil {
			loc.City = *u.City
		}
		return loc
	}

	if loc, ok := e.LocationFromText(text); ok {
		return loc
	}

	return Location{Country: phone.CountryFromPhone(u.Phone)}
}
