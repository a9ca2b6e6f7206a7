package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amishk599/jobpipe/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	Content        string             `json:"content"`
	FirstPublished string             `json:"first_published"`
	UpdatedAt      string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response. Jobs are
// kept raw so each posting's payload travels with it.
type greenhouseResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// GreenhouseSource fetches postings from the Greenhouse public boards API.
type GreenhouseSource struct {
	name       string
	boardToken string
	company    string
	baseURL    string
	client     *http.Client
}

// NewGreenhouseSource creates a source for a Greenhouse board.
func NewGreenhouseSource(name, boardToken, company string, client *http.Client) *GreenhouseSource {
	return &GreenhouseSource{
		name:       name,
		boardToken: boardToken,
		company:    company,
		baseURL:    greenhouseBaseURL,
		client:     client,
	}
}

func (s *GreenhouseSource) Name() string     { return s.name }
func (s *GreenhouseSource) Platform() string { return "greenhouse" }

// Fetch retrieves every posting on the board, descriptions included.
func (s *GreenhouseSource) Fetch(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", s.baseURL, s.boardToken)
	what := "greenhouse fetch for " + s.boardToken

	var resp greenhouseResponse
	if err := getJSON(ctx, s.client, url, what, &resp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(resp.Jobs))
	for _, payload := range resp.Jobs {
		var gj greenhouseJob
		if err := json.Unmarshal(payload, &gj); err != nil {
			return jobs, fmt.Errorf("%s: %w: %v", what, model.ErrMalformedInput, err)
		}

		posted := parseTime(gj.FirstPublished)
		if posted == nil {
			posted = parseTime(gj.UpdatedAt)
		}
		jobs = append(jobs, model.RawJob{
			SourcePlatform: "greenhouse",
			ExternalID:     strconv.FormatInt(gj.ID, 10),
			URL:            gj.AbsoluteURL,
			Title:          gj.Title,
			Company:        s.company,
			Location:       gj.Location.Name,
			Description:    gj.Content,
			PostedAt:       posted,
			RawData:        payload,
		})
	}
	return jobs, nil
}
