package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amishk599/jobpipe/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

type ashbyCompensation struct {
	Summary string `json:"compensationTierSummary"`
}

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Location         string             `json:"location"`
	JobURL           string             `json:"jobUrl"`
	PublishedAt      string             `json:"publishedAt"`
	IsListed         bool               `json:"isListed"`
	IsRemote         bool               `json:"isRemote"`
	WorkplaceType    string             `json:"workplaceType"`
	EmploymentType   string             `json:"employmentType"`
	DescriptionHTML  string             `json:"descriptionHtml"`
	DescriptionPlain string             `json:"descriptionPlain"`
	Compensation     *ashbyCompensation `json:"compensation"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// AshbySource fetches postings from the Ashby public job board API.
type AshbySource struct {
	name       string
	boardToken string
	company    string
	baseURL    string
	client     *http.Client
}

// NewAshbySource creates a source for an Ashby job board.
func NewAshbySource(name, boardToken, company string, client *http.Client) *AshbySource {
	return &AshbySource{
		name:       name,
		boardToken: boardToken,
		company:    company,
		baseURL:    ashbyBaseURL,
		client:     client,
	}
}

func (s *AshbySource) Name() string     { return s.name }
func (s *AshbySource) Platform() string { return "ashby" }

// Fetch retrieves the listed postings on the board. Unlisted ones are skipped.
func (s *AshbySource) Fetch(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s?includeCompensation=true", s.baseURL, s.boardToken)
	what := "ashby fetch for " + s.boardToken

	var resp ashbyResponse
	if err := getJSON(ctx, s.client, url, what, &resp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(resp.Jobs))
	for _, payload := range resp.Jobs {
		var aj ashbyJob
		if err := json.Unmarshal(payload, &aj); err != nil {
			return jobs, fmt.Errorf("%s: %w: %v", what, model.ErrMalformedInput, err)
		}
		if !aj.IsListed {
			continue
		}

		id := aj.ID
		if id == "" {
			id = aj.JobURL
		}
		description := aj.DescriptionHTML
		if description == "" {
			description = aj.DescriptionPlain
		}
		workplace := splitCamel(aj.WorkplaceType)
		if workplace == "" && aj.IsRemote {
			workplace = "Remote"
		}
		var salary string
		if aj.Compensation != nil {
			salary = aj.Compensation.Summary
		}

		jobs = append(jobs, model.RawJob{
			SourcePlatform: "ashby",
			ExternalID:     id,
			URL:            aj.JobURL,
			Title:          aj.Title,
			Company:        s.company,
			Location:       aj.Location,
			Description:    description,
			SalaryText:     salary,
			JobTypeText:    splitCamel(aj.EmploymentType),
			WorkplaceText:  workplace,
			PostedAt:       parseTime(aj.PublishedAt),
			RawData:        payload,
		})
	}
	return jobs, nil
}
