package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/jobpipe/internal/model"
)

func serve(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGreenhouseSource_Fetch(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": 12345,
				"title": "Software Engineer",
				"location": {"name": "San Francisco, CA"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
				"content": "&lt;p&gt;We use Go&lt;/p&gt;",
				"first_published": "2026-02-10T09:00:00Z",
				"updated_at": "2026-02-13T10:00:00Z"
			},
			{
				"id": 67890,
				"title": "Backend Engineer",
				"location": {"name": "Remote, US"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
				"updated_at": "2026-02-13T11:30:00Z"
			}
		]
	}`
	srv := serve(t, http.StatusOK, payload, func(r *http.Request) {
		if r.URL.Path != "/acme/jobs" || r.URL.Query().Get("content") != "true" {
			t.Errorf("unexpected request %s", r.URL)
		}
	})

	src := NewGreenhouseSource("acme-gh", "acme", "Acme Corp", srv.Client())
	src.baseURL = srv.URL

	jobs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ExternalID != "12345" || j.SourcePlatform != "greenhouse" {
		t.Errorf("unexpected key %s", j.Key())
	}
	if j.Company != "Acme Corp" || j.Title != "Software Engineer" || j.Location != "San Francisco, CA" {
		t.Errorf("unexpected job %+v", j)
	}
	if !strings.Contains(j.Description, "We use Go") {
		t.Errorf("description = %q", j.Description)
	}
	if j.PostedAt == nil || j.PostedAt.Day() != 10 {
		t.Errorf("PostedAt = %v, want first_published", j.PostedAt)
	}
	if jobs[1].PostedAt == nil || jobs[1].PostedAt.Day() != 13 {
		t.Errorf("PostedAt = %v, want updated_at fallback", jobs[1].PostedAt)
	}

	var raw map[string]any
	if err := json.Unmarshal(j.RawData, &raw); err != nil || raw["id"] != float64(12345) {
		t.Errorf("RawData = %s", j.RawData)
	}
	if src.Name() != "acme-gh" || src.Platform() != "greenhouse" {
		t.Errorf("Name/Platform = %s/%s", src.Name(), src.Platform())
	}
}

func TestGreenhouseSource_HTTPError(t *testing.T) {
	srv := serve(t, http.StatusTooManyRequests, `{}`, nil)
	src := NewGreenhouseSource("acme", "acme", "Acme", srv.Client())
	src.baseURL = srv.URL

	_, err := src.Fetch(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != 429 || httpErr.RetryAfter.Seconds() != 7 {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestGreenhouseSource_MalformedJSON(t *testing.T) {
	srv := serve(t, http.StatusOK, `{not valid json`, nil)
	src := NewGreenhouseSource("bad", "bad-co", "Bad Co", srv.Client())
	src.baseURL = srv.URL

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLeverSource_Fetch(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"description": "<div>Full HTML description</div>",
			"descriptionPlain": "Full HTML description",
			"categories": {
				"location": "San Francisco, CA",
				"commitment": "Full-time",
				"allLocations": ["San Francisco, CA", "Remote"]
			},
			"createdAt": 1769784074110,
			"workplaceType": "hybrid",
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"salaryRange": {"min": 120000, "max": 150000, "currency": "usd", "interval": "per-year-salary"}
		},
		{
			"id": "a1b2c3d4",
			"text": "Backend Engineer",
			"categories": {"location": "Remote", "commitment": "Contract"},
			"workplaceType": "remote",
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4"
		}
	]`
	srv := serve(t, http.StatusOK, payload, func(r *http.Request) {
		if r.URL.Query().Get("mode") != "json" {
			t.Errorf("expected mode=json, got %s", r.URL.RawQuery)
		}
	})

	src := NewLeverSource("acme-lever", "acme", "Acme Corp", srv.Client())
	src.baseURL = srv.URL

	jobs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.Location != "San Francisco, CA, Remote" {
		t.Errorf("Location = %q", j.Location)
	}
	if j.SalaryText != "USD 120000 - 150000" {
		t.Errorf("SalaryText = %q", j.SalaryText)
	}
	if j.JobTypeText != "Full-time" || j.WorkplaceText != "hybrid" {
		t.Errorf("JobTypeText/WorkplaceText = %q/%q", j.JobTypeText, j.WorkplaceText)
	}
	if j.PostedAt == nil || j.PostedAt.Year() != 2026 {
		t.Errorf("PostedAt = %v", j.PostedAt)
	}
	if jobs[1].SalaryText != "" || jobs[1].PostedAt != nil {
		t.Errorf("second job salary/posted = %q/%v", jobs[1].SalaryText, jobs[1].PostedAt)
	}
}

func TestAshbySource_Fetch(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": "5b1c",
				"title": "Platform Engineer",
				"location": "New York",
				"jobUrl": "https://jobs.ashbyhq.com/acme/5b1c",
				"publishedAt": "2026-02-12T08:00:00Z",
				"isListed": true,
				"isRemote": true,
				"employmentType": "FullTime",
				"descriptionPlain": "Kubernetes and Go",
				"compensation": {"compensationTierSummary": "$140K – $180K"}
			},
			{
				"id": "hidden",
				"title": "Secret Role",
				"jobUrl": "https://jobs.ashbyhq.com/acme/hidden",
				"isListed": false
			}
		]
	}`
	srv := serve(t, http.StatusOK, payload, func(r *http.Request) {
		if r.URL.Query().Get("includeCompensation") != "true" {
			t.Errorf("expected includeCompensation=true, got %s", r.URL.RawQuery)
		}
	})

	src := NewAshbySource("acme-ashby", "acme", "Acme Corp", srv.Client())
	src.baseURL = srv.URL

	jobs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 listed job, got %d", len(jobs))
	}
	j := jobs[0]
	if j.ExternalID != "5b1c" || j.SourcePlatform != "ashby" {
		t.Errorf("unexpected key %s", j.Key())
	}
	if j.JobTypeText != "Full Time" || j.WorkplaceText != "Remote" {
		t.Errorf("JobTypeText/WorkplaceText = %q/%q", j.JobTypeText, j.WorkplaceText)
	}
	if j.SalaryText != "$140K – $180K" {
		t.Errorf("SalaryText = %q", j.SalaryText)
	}
	if j.Description != "Kubernetes and Go" {
		t.Errorf("Description = %q", j.Description)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"120", 120},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in).Seconds(); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
