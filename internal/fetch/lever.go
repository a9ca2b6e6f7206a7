package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverSalaryRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
	Interval string  `json:"interval"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	Description      string            `json:"description"`
	DescriptionPlain string            `json:"descriptionPlain"`
	Categories       leverCategories   `json:"categories"`
	CreatedAt        int64             `json:"createdAt"`
	WorkplaceType    string            `json:"workplaceType"`
	HostedURL        string            `json:"hostedUrl"`
	SalaryRange      *leverSalaryRange `json:"salaryRange"`
}

// LeverSource fetches postings from the Lever public postings API.
type LeverSource struct {
	name        string
	companySlug string
	company     string
	baseURL     string
	client      *http.Client
}

// NewLeverSource creates a source for a Lever board.
func NewLeverSource(name, companySlug, company string, client *http.Client) *LeverSource {
	return &LeverSource{
		name:        name,
		companySlug: companySlug,
		company:     company,
		baseURL:     leverBaseURL,
		client:      client,
	}
}

func (s *LeverSource) Name() string     { return s.name }
func (s *LeverSource) Platform() string { return "lever" }

// Fetch retrieves every posting on the board.
func (s *LeverSource) Fetch(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s?mode=json", s.baseURL, s.companySlug)
	what := "lever fetch for " + s.companySlug

	var payloads []json.RawMessage
	if err := getJSON(ctx, s.client, url, what, &payloads); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(payloads))
	for _, payload := range payloads {
		var lj leverJob
		if err := json.Unmarshal(payload, &lj); err != nil {
			return jobs, fmt.Errorf("%s: %w: %v", what, model.ErrMalformedInput, err)
		}

		// Prefer allLocations if available, fallback to location
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is Unix milliseconds
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt).UTC()
			postedAt = &t
		}

		description := lj.Description
		if description == "" {
			description = lj.DescriptionPlain
		}

		jobs = append(jobs, model.RawJob{
			SourcePlatform: "lever",
			ExternalID:     lj.ID,
			URL:            lj.HostedURL,
			Title:          lj.Text,
			Company:        s.company,
			Location:       location,
			Description:    description,
			SalaryText:     lj.SalaryRange.text(),
			JobTypeText:    lj.Categories.Commitment,
			WorkplaceText:  lj.WorkplaceType,
			PostedAt:       postedAt,
			RawData:        payload,
		})
	}
	return jobs, nil
}

// text renders the structured range in a form the salary parser reads.
func (r *leverSalaryRange) text() string {
	if r == nil || (r.Min == 0 && r.Max == 0) {
		return ""
	}
	cur := strings.ToUpper(r.Currency)
	switch {
	case r.Min > 0 && r.Max > 0:
		return fmt.Sprintf("%s %.0f - %.0f", cur, r.Min, r.Max)
	case r.Min > 0:
		return fmt.Sprintf("%s %.0f", cur, r.Min)
	default:
		return fmt.Sprintf("%s %.0f", cur, r.Max)
	}
}
