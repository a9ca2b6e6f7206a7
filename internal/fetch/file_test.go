package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amishk599/jobpipe/internal/model"
)

func TestDecodeRawJobs_Valid(t *testing.T) {
	data := `[
		{"source_platform": "greenhouse", "external_id": "1", "title": "Go Engineer", "posted_at": "2026-03-01T09:00:00Z", "team": "core"},
		{"url": "https://jobs.example.com/postings/42", "title": "SRE", "salary": "$120k - $150k"}
	]`
	jobs, err := DecodeRawJobs([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Key() != (model.NaturalKey{Platform: "greenhouse", ExternalID: "1"}) {
		t.Errorf("key = %s", jobs[0].Key())
	}
	if jobs[0].PostedAt == nil || jobs[0].PostedAt.Month() != 3 {
		t.Errorf("PostedAt = %v", jobs[0].PostedAt)
	}
	if len(jobs[0].RawData) == 0 {
		t.Error("RawData should default to the record")
	}
	if jobs[1].SalaryText != "$120k - $150k" {
		t.Errorf("SalaryText = %q", jobs[1].SalaryText)
	}
}

func TestDecodeRawJobs_InvalidRecordsArePartial(t *testing.T) {
	data := `[
		{"source_platform": "lever", "external_id": "ok", "title": "Engineer"},
		{"title": "No identity at all"},
		{"url": "https://x.example/1", "posted_at": "yesterday"},
		{"url": "https://x.example/2", "title": 7}
	]`
	jobs, err := DecodeRawJobs([]byte(data))
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
	if len(jobs) != 1 || jobs[0].ExternalID != "ok" {
		t.Fatalf("expected only the valid record, got %+v", jobs)
	}
}

func TestDecodeRawJobs_NotAnArray(t *testing.T) {
	_, err := DecodeRawJobs([]byte(`{"title": "x"}`))
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
}

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.json")
	if err := os.WriteFile(path, []byte(`[{"source_platform": "file", "external_id": "a", "title": "Go"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource("dump", path)
	jobs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	missing := NewFileSource("missing", filepath.Join(t.TempDir(), "nope.json"))
	if _, err := missing.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
