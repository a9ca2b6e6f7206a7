package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amishk599/jobpipe/internal/model"
)

var locationPrefixRegex = regexp.MustCompile(`(?i)^(?:location|lieu)\s*:?\s*`)

// Location cleans a free-text location and maps it through the alias
// table. The whole string is looked up first, then its first comma segment.
// Unmapped values pass through cleaned.
func (e *Extractor) Location(raw string) (string, []model.Warning) {
	loc := Text(raw)
	loc = locationPrefixRegex.ReplaceAllString(loc, "")
	loc = strings.Trim(loc, " ,;-")
	loc = e.stripCountry(loc)

	if loc == "" {
		w := model.Warning{Kind: model.WarnLocationUnresolved, Field: "location"}
		if strings.TrimSpace(raw) != "" {
			w.Detail = fmt.Sprintf("nothing left of %q", raw)
		}
		return "", []model.Warning{w}
	}

	if alias, ok := e.locationAliases[strings.ToLower(loc)]; ok {
		return alias, nil
	}
	if head, rest, found := strings.Cut(loc, ","); found {
		if alias, ok := e.locationAliases[strings.ToLower(strings.TrimSpace(head))]; ok {
			return alias + "," + rest, nil
		}
	}
	return loc, nil
}

// stripCountry drops one trailing ", <country>" qualifier.
func (e *Extractor) stripCountry(loc string) string {
	i := strings.LastIndex(loc, ",")
	if i < 0 {
		return loc
	}
	tail := strings.ToLower(strings.TrimSpace(loc[i+1:]))
	if _, ok := e.countries[tail]; ok {
		return strings.TrimSpace(loc[:i])
	}
	return loc
}
