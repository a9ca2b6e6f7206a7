package extract

import (
	"regexp"
	"strings"

	"github.com/amishk599/jobpipe/internal/model"
)

type jobTypeRule struct {
	jobType  model.JobType
	keywords []*regexp.Regexp
}

// jobTypeRules are checked in priority order: a posting that mentions both
// an internship and full-time hours is an internship.
var jobTypeRules = []jobTypeRule{
	{model.JobTypeInternship, mustWords("internship", "intern", "stagiaire", "alternance", "apprenticeship")},
	{model.JobTypeContract, mustWords("contract", "contractor", "freelance", "contrat", "cdd", "temporary", "temporaire", "fixed-term", "fixed term")},
	{model.JobTypePartTime, mustWords("part-time", "part time", "temps partiel")},
	{model.JobTypeFullTime, mustWords("full-time", "full time", "fulltime", "permanent", "temps plein", "cdi")},
}

var (
	hybridWords = mustWords("hybrid", "hybride", "partially remote", "part-time remote")
	remoteWords = mustWords("remote", "work from home", "wfh", "télétravail", "teletravail", "fully remote")
	onsiteWords = mustWords("onsite", "on-site", "on site", "in office", "in-office", "office-based", "présentiel", "sur site")

	// negatedRemoteRegex matches "no remote", "not remote", "non-remote" and
	// similar; these count as onsite signals rather than remote ones.
	negatedRemoteRegex = regexp.MustCompile(`(?i)\b(?:no|not|non|never|without|pas\s+de)[\s-]+(?:a\s+|fully\s+|100%\s+)?(?:remote|wfh|work\s+from\s+home|t[ée]l[ée]travail)\b`)
)

// JobType classifies the employment type. hint is an explicit job-type
// field and is consulted before the free text.
func JobType(hint string, texts ...string) (model.JobType, []model.Warning) {
	if jt, ok := matchJobType(hint); ok {
		return jt, nil
	}
	if jt, ok := matchJobType(strings.Join(texts, "\n")); ok {
		return jt, nil
	}
	return model.JobTypeUnknown, []model.Warning{{Kind: model.WarnJobTypeUnknown, Field: "job_type"}}
}

func matchJobType(text string) (model.JobType, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, r := range jobTypeRules {
		if containsAny(r.keywords, text) {
			return r.jobType, true
		}
	}
	return "", false
}

// RemoteType classifies the work arrangement. An explicit hybrid keyword, or
// both remote and onsite signals, yields hybrid.
func RemoteType(texts ...string) (model.RemoteType, []model.Warning) {
	text := strings.Join(texts, "\n")
	if containsAny(hybridWords, text) {
		return model.RemoteHybrid, nil
	}
	negated := negatedRemoteRegex.MatchString(text)
	if negated {
		text = negatedRemoteRegex.ReplaceAllString(text, " ")
	}
	remote := containsAny(remoteWords, text)
	onsite := negated || containsAny(onsiteWords, text)
	switch {
	case remote && onsite:
		return model.RemoteHybrid, nil
	case remote:
		return model.RemoteRemote, nil
	case onsite:
		return model.RemoteOnsite, nil
	}
	return model.RemoteUnknown, []model.Warning{{Kind: model.WarnRemoteTypeUnknown, Field: "remote_type"}}
}
