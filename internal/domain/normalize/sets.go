package normalize

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	namesOnce     sync.Once
	languageNames map[string]string
	regionNames   map[string]string
)

// loadNames builds English display name lookups, e.g. "german" -> "de", "germany" -> "DE".
func loadNames() {
	languageNames = make(map[string]string)
	regionNames = make(map[string]string)

	langNamer := display.English.Languages()
	regionNamer := display.English.Regions()
	fold := cases.Fold()

	for a := 'a'; a <= 'z'; a++ {
		for b := 'a'; b <= 'z'; b++ {
			code := string([]rune{a, b})

			if base, err := language.ParseBase(code); err == nil {
				if name := langNamer.Name(base); name != "" {
					languageNames[fold.String(name)] = base.String()
				}
			}

			if region, err := language.ParseRegion(code); err == nil && region.IsCountry() {
				if name := regionNamer.Name(region); name != "" {
					regionNames[fold.String(name)] = region.String()
				}
			}
		}
	}
}

// CanonicalLanguage maps codes ("en", "eng", "en-US") and English names
// ("English") to a base language code. Unknown values are case-folded.
func CanonicalLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if base, err := language.ParseBase(s); err == nil {
		return base.String()
	}
	namesOnce.Do(loadNames)
	folded := cases.Fold().String(s)
	if code, ok := languageNames[folded]; ok {
		return code
	}
	if tag, err := language.Parse(s); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	return folded
}

// CanonicalCountry maps ISO codes ("DE", "DEU") and English names ("Germany")
// to an ISO 3166 alpha-2 code. Unknown values are case-folded.
func CanonicalCountry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if region, err := language.ParseRegion(s); err == nil && region.IsCountry() {
		return region.String()
	}
	namesOnce.Do(loadNames)
	folded := cases.Fold().String(s)
	if code, ok := regionNames[folded]; ok {
		return code
	}
	return folded
}

// canonicalSet applies canon to every value, drops empties and duplicates, and sorts.
func canonicalSet(values []string, canon func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := canon(v); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func foldText(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

var stopwords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "from": {}, "into": {}, "about": {},
	"that": {}, "this": {}, "are": {}, "was": {}, "our": {}, "your": {}, "their": {},
	"how": {}, "new": {}, "not": {},
}

// Keywords splits texts into a sorted set of folded tokens of three or more
// letters, without stopwords.
func Keywords(texts ...string) []string {
	fold := cases.Fold()
	var out []string
	for _, t := range texts {
		for _, tok := range strings.FieldsFunc(fold.String(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if len([]rune(tok)) < 3 {
				continue
			}
			if _, stop := stopwords[tok]; stop {
				continue
			}
			out = append(out, tok)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
