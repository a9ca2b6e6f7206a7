// Package normalize converts raw postings into canonical jobs.
package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/amishk599/jobpipe/internal/extract"
	"github.com/amishk599/jobpipe/internal/model"
)

// Options switches optional extraction steps.
type Options struct {
	ExtractSkills bool
	ExtractSalary bool
}

// Normalizer applies the field extractor to raw postings. It keeps no state
// between calls and is safe for concurrent use.
type Normalizer struct {
	ext  *extract.Extractor
	opts Options
}

// New returns a Normalizer backed by ext.
func New(ext *extract.Extractor, opts Options) *Normalizer {
	return &Normalizer{ext: ext, opts: opts}
}

// Normalize converts each raw posting in order. The output has exactly one
// job per input; postings that cannot be identified come back FAILED.
func (n *Normalizer) Normalize(batch []model.RawJob) []model.Job {
	out := make([]model.Job, len(batch))
	for i, raw := range batch {
		out[i], _ = n.NormalizeOne(raw)
	}
	return out
}

// NormalizeOne converts a single raw posting. The returned job is always
// usable as a record of the attempt; err is non-nil (and wraps
// model.ErrMalformedInput) exactly when the job is FAILED.
func (n *Normalizer) NormalizeOne(raw model.RawJob) (model.Job, error) {
	job := model.Job{
		Title:       extract.Text(raw.Title),
		Company:     extract.Text(raw.Company),
		Description: extract.Text(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
		PostedAt:    raw.PostedAt,
		RawData:     raw.RawData,
		Currency:    model.CurrencyUnknown,
		Status:      model.StatusNormalized,
	}

	job.SourcePlatform = strings.ToLower(strings.TrimSpace(raw.SourcePlatform))
	if job.SourcePlatform == "" {
		if p := platformFromURL(job.URL); p != "" {
			job.SourcePlatform = p
			job.Warnings = append(job.Warnings, model.Warning{
				Kind: model.WarnIdentityDerived, Field: "source_platform", Detail: "derived from url host",
			})
		}
	}
	job.ExternalID = strings.TrimSpace(raw.ExternalID)
	if job.ExternalID == "" {
		if id := externalIDFromURL(job.URL); id != "" {
			job.ExternalID = id
			job.Warnings = append(job.Warnings, model.Warning{
				Kind: model.WarnIdentityDerived, Field: "external_id", Detail: "derived from url",
			})
		}
	}

	var missing []string
	if job.Title == "" {
		missing = append(missing, "title")
	}
	if job.SourcePlatform == "" {
		missing = append(missing, "source_platform")
	}
	if job.ExternalID == "" {
		missing = append(missing, "external_id")
	}
	if len(missing) > 0 {
		for _, f := range missing {
			job.Warnings = append(job.Warnings, model.Warning{Kind: model.WarnMissingField, Field: f})
		}
		job.Status = model.StatusFailed
		return job, fmt.Errorf("%w: %s missing %s", model.ErrMalformedInput, raw.Key(), strings.Join(missing, ", "))
	}

	if n.opts.ExtractSkills {
		job.RequiredSkills = n.ext.Skills(job.Title, job.Description)
	}

	if n.opts.ExtractSalary {
		s, warns := n.ext.Salary(raw.SalaryText)
		if s.Empty() && !model.HasWarning(warns, model.WarnSalaryInverted) {
			fromDesc, descWarns := n.ext.SalaryFromDescription(job.Description)
			s = fromDesc
			warns = append(warns, descWarns...)
		}
		job.SalaryMin, job.SalaryMax, job.Currency = s.Min, s.Max, s.Currency
		job.Warnings = append(job.Warnings, warns...)
	}

	jt, warns := extract.JobType(raw.JobTypeText, job.Title, job.Description)
	job.JobType = jt
	job.Warnings = append(job.Warnings, warns...)

	rt, warns := extract.RemoteType(raw.WorkplaceText, raw.Location, job.Title, job.Description)
	job.RemoteType = rt
	job.Warnings = append(job.Warnings, warns...)

	loc, warns := n.ext.Location(raw.Location)
	job.Location = loc
	job.Warnings = append(job.Warnings, warns...)

	return job, nil
}

var knownHosts = map[string]string{
	"greenhouse.io":          "greenhouse",
	"lever.co":               "lever",
	"ashbyhq.com":            "ashby",
	"myworkdayjobs.com":      "workday",
	"linkedin.com":           "linkedin",
	"indeed.com":             "indeed",
	"welcometothejungle.com": "welcometothejungle",
}

// platformFromURL maps a posting URL to the platform that hosts it. Unknown
// hosts map to their registrable-looking suffix, e.g. "careers.acme.com" →
// "acme.com".
func platformFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	for i := range labels {
		if p, ok := knownHosts[strings.Join(labels[i:], ".")]; ok {
			return p
		}
	}
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}

// externalIDFromURL builds a stable identifier from host, path and query.
func externalIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	id := strings.ToLower(u.Hostname()) + strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		id += "?" + u.Query().Encode()
	}
	return id
}
