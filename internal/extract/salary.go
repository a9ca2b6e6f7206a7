package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/jobpipe/internal/model"
)

// Salary is a parsed compensation range, annualized.
type Salary struct {
	Min      *int64
	Max      *int64
	Currency model.Currency
}

// Empty reports whether no bound was parsed.
func (s Salary) Empty() bool { return s.Min == nil && s.Max == nil }

const (
	currencyPat = `(US\$|\$|€|£|\bUSD\b|\bEUR\b|\bGBP\b)`
	amountPat   = `(\d{1,3}(?:[,.]\d{3})+|\d+(?:\.\d+)?)\s*(?:([kKmM])\b)?`
)

var (
	salaryRangeRegex = regexp.MustCompile(`(?i)` + currencyPat + `?\s*` + amountPat + `\s*` + currencyPat + `?` +
		`\s*(?:-|–|—|\bto\b)\s*` +
		currencyPat + `?\s*` + amountPat + `\s*` + currencyPat + `?`)
	salarySingleRegex = regexp.MustCompile(`(?i)` + currencyPat + `?\s*` + amountPat + `\s*` + currencyPat + `?`)
	thousandsRegex    = regexp.MustCompile(`^\d{1,3}(?:[,.]\d{3})+$`)
)

// amount is one side of a parsed salary before annualization.
type amount struct {
	value    float64
	suffix   string
	currency string
}

// Salary parses an explicit compensation field. Bare numbers are accepted.
// Non-empty text that yields nothing records salary_unparsable.
func (e *Extractor) Salary(text string) (Salary, []model.Warning) {
	text = Text(text)
	if text == "" {
		return Salary{Currency: model.CurrencyUnknown}, nil
	}
	s, w, ok := e.parseSalary(text, false)
	if !ok && w == nil {
		return Salary{Currency: model.CurrencyUnknown}, []model.Warning{{
			Kind: model.WarnSalaryUnparsable, Field: "salary", Detail: fmt.Sprintf("no amount in %q", text),
		}}
	}
	return s, w
}

// SalaryFromDescription scans free text for a salary. An amount counts when
// it carries a currency marker, or a magnitude suffix next to pay wording
// ("salary", "per year", ...), so years, head counts and "401k" are not
// mistaken for pay. Finding nothing is not a warning.
func (e *Extractor) SalaryFromDescription(text string) (Salary, []model.Warning) {
	s, w, _ := e.parseSalary(text, true)
	return s, w
}

var (
	// payContextRegex is pay wording that makes a suffix-only amount a salary.
	payContextRegex = regexp.MustCompile(`(?i)(?:\b(?:salary|salaries|pay|paid|compensation|comp|base|ote|wages?|annual(?:ly)?|yearly|per\s+(?:year|annum|hour)|a\s+year|salaire|rémunération)\b|/\s*(?:yr|year|hr|hour)\b|\bp\.a\.)`)
	// countNounRegex follows amounts that measure something other than pay.
	countNounRegex = regexp.MustCompile(`(?i)^\s*\+?\s*(?:users|customers|clients|members|people|employees|engineers|developers|downloads|installs|devices|visitors|subscribers|requests|transactions|events|messages|records|companies|businesses|merchants|patients|students|sites|stars|lines|rows|in\s+funding|funding|arr|revenue|valuation)\b`)
)

const (
	payContextBefore = 40
	payContextAfter  = 20
)

func (e *Extractor) parseSalary(text string, description bool) (Salary, []model.Warning, bool) {
	none := Salary{Currency: model.CurrencyUnknown}
	outOfRange := func(raw string) []model.Warning {
		return []model.Warning{{
			Kind: model.WarnSalaryUnparsable, Field: "salary", Detail: fmt.Sprintf("amount out of range in %q", strings.TrimSpace(raw)),
		}}
	}

	for _, idx := range salaryRangeRegex.FindAllStringSubmatchIndex(text, -1) {
		m := groups(text, idx)
		lo, okLo := parseAmount(m[2], m[3], firstNonEmpty(m[1], m[4]))
		hi, okHi := parseAmount(m[6], m[7], firstNonEmpty(m[5], m[8]))
		if !okLo || !okHi {
			continue
		}
		if description && !acceptInDescription(text, idx[0], idx[1], lo, hi) {
			continue
		}
		// "50-70k": a suffix on the high side applies to a bare low side.
		if lo.suffix == "" && hi.suffix != "" && lo.value < 1000 {
			lo.suffix = hi.suffix
		}
		if hi.suffix == "" && lo.suffix != "" && hi.value < 1000 {
			hi.suffix = lo.suffix
		}

		cur, ok := resolveCurrency(lo.currency, hi.currency)
		if !ok {
			return none, []model.Warning{{
				Kind: model.WarnSalaryUnparsable, Field: "salary", Detail: fmt.Sprintf("mixed currencies in %q", m[0]),
			}}, false
		}
		low, okLow := e.annualize(lo)
		high, okHigh := e.annualize(hi)
		if !okLow || !okHigh {
			return none, outOfRange(m[0]), false
		}
		if low > high {
			return none, []model.Warning{{
				Kind: model.WarnSalaryInverted, Field: "salary", Detail: fmt.Sprintf("min %d exceeds max %d in %q", low, high, strings.TrimSpace(m[0])),
			}}, false
		}
		return Salary{Min: &low, Max: &high, Currency: cur}, nil, true
	}

	for _, idx := range salarySingleRegex.FindAllStringSubmatchIndex(text, -1) {
		m := groups(text, idx)
		a, ok := parseAmount(m[2], m[3], firstNonEmpty(m[1], m[4]))
		if !ok {
			continue
		}
		if description && !acceptInDescription(text, idx[0], idx[1], a) {
			continue
		}
		v, ok := e.annualize(a)
		if !ok {
			return none, outOfRange(m[0]), false
		}
		cur, _ := resolveCurrency(a.currency, "")
		lo, hi := v, v
		return Salary{Min: &lo, Max: &hi, Currency: cur}, nil, true
	}
	return none, nil, false
}

// groups returns the submatch strings for a FindAllStringSubmatchIndex entry.
func groups(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

// acceptInDescription decides whether the amounts matched at text[start:end]
// are pay. A following count noun ("2m users") always disqualifies them.
func acceptInDescription(text string, start, end int, amounts ...amount) bool {
	after := text[end:]
	if countNounRegex.MatchString(after) {
		return false
	}
	currency, suffix := false, false
	for _, a := range amounts {
		if a.currency != "" {
			currency = true
		}
		if a.suffix != "" {
			suffix = true
		}
		if a.currency == "" && a.suffix == "k" && a.value == 401 {
			return false
		}
	}
	if currency {
		return true
	}
	if !suffix || strings.HasPrefix(strings.TrimLeft(after, " \t"), "+") {
		return false
	}
	before := text[max(0, start-payContextBefore):start]
	if len(after) > payContextAfter {
		after = after[:payContextAfter]
	}
	return payContextRegex.MatchString(before) || payContextRegex.MatchString(after)
}

func parseAmount(num, suffix, currency string) (amount, bool) {
	if num == "" {
		return amount{}, false
	}
	if thousandsRegex.MatchString(num) {
		num = strings.NewReplacer(",", "", ".", "").Replace(num)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return amount{}, false
	}
	return amount{value: v, suffix: strings.ToLower(suffix), currency: currency}, true
}

// annualize applies the magnitude suffix, then converts hourly amounts. It
// reports false when the result does not fit an int64.
func (e *Extractor) annualize(a amount) (int64, bool) {
	v := a.value
	switch a.suffix {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	if v < float64(e.hourlyThreshold) {
		v *= e.hourlyMultiplier
	}
	v = math.Round(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func currencyOf(marker string) model.Currency {
	switch strings.ToUpper(marker) {
	case "$", "US$", "USD":
		return model.CurrencyUSD
	case "€", "EUR":
		return model.CurrencyEUR
	case "£", "GBP":
		return model.CurrencyGBP
	}
	return model.CurrencyUnknown
}

func resolveCurrency(a, b string) (model.Currency, bool) {
	ca, cb := currencyOf(a), currencyOf(b)
	switch {
	case ca == model.CurrencyUnknown:
		return cb, true
	case cb == model.CurrencyUnknown, ca == cb:
		return ca, true
	}
	return model.CurrencyUnknown, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
