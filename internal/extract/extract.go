// Package extract turns free-text posting fields into typed values.
//
// Every function here is pure: the same input and Config always give the
// same output. Nothing fails; input that cannot be resolved yields an empty
// value plus a model.Warning describing why.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultHourlyThreshold  = 1000
	DefaultHourlyMultiplier = 2080
)

// Config holds the tables the extractor matches against. The zero value
// extracts no skills and maps no location aliases.
type Config struct {
	// Skills is the vocabulary. Each entry is the canonical name returned
	// on a match.
	Skills []string
	// SkillAliases lists extra whole-word tokens per canonical skill, e.g.
	// "Python": {"django", "flask"}.
	SkillAliases map[string][]string

	HourlyThreshold  int64   // amounts below this are hourly
	HourlyMultiplier float64 // hours per year used to annualize

	LocationAliases   map[string]string // lower-cased input → canonical name
	CountryQualifiers []string          // trailing ", <country>" segments to drop
}

// Extractor applies a compiled Config. It holds no mutable state and is safe
// for concurrent use.
type Extractor struct {
	skills           []skillMatcher
	hourlyThreshold  int64
	hourlyMultiplier float64
	locationAliases  map[string]string
	countries        map[string]struct{}
}

type skillMatcher struct {
	name     string
	patterns []*regexp.Regexp
}

// New compiles cfg.
func New(cfg Config) (*Extractor, error) {
	e := &Extractor{
		hourlyThreshold:  cfg.HourlyThreshold,
		hourlyMultiplier: cfg.HourlyMultiplier,
		locationAliases:  make(map[string]string, len(cfg.LocationAliases)),
		countries:        make(map[string]struct{}),
	}
	if e.hourlyThreshold <= 0 {
		e.hourlyThreshold = DefaultHourlyThreshold
	}
	if e.hourlyMultiplier <= 0 {
		e.hourlyMultiplier = DefaultHourlyMultiplier
	}

	seen := make(map[string]bool)
	for _, name := range cfg.Skills {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true

		tokens := append([]string{name}, cfg.SkillAliases[name]...)
		m := skillMatcher{name: name}
		for _, tok := range tokens {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			re, err := compileWord(tok)
			if err != nil {
				return nil, fmt.Errorf("compile skill pattern %q: %w", tok, err)
			}
			m.patterns = append(m.patterns, re)
		}
		e.skills = append(e.skills, m)
	}

	for k, v := range cfg.LocationAliases {
		e.locationAliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, c := range cfg.CountryQualifiers {
		e.countries[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return e, nil
}

// compileWord builds a case-insensitive whole-word matcher for tok. Word
// edges are letters, digits and underscore, so tokens that begin or end in
// punctuation (C++, .NET, CI/CD) still match. Spaces in tok match any run of
// whitespace. Submatch 1 locates the token itself.
func compileWord(tok string) (*regexp.Regexp, error) {
	quoted := strings.ReplaceAll(regexp.QuoteMeta(tok), " ", `\s+`)
	return regexp.Compile(`(?i)(?:^|[^\pL\pN_])(` + quoted + `)(?:$|[^\pL\pN_])`)
}

func mustWords(words ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		re, err := compileWord(w)
		if err != nil {
			panic(err)
		}
		res = append(res, re)
	}
	return res
}

// firstIndex returns the byte offset of the earliest match of any pattern in
// text, or -1.
func firstIndex(patterns []*regexp.Regexp, text string) int {
	best := -1
	for _, re := range patterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[2] < best {
			best = loc[2]
		}
	}
	return best
}

func containsAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
