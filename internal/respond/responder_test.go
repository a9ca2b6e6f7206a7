package respond

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/amishk599/jobpipe/internal/filter"
	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/store"
)

type recordingDispatcher struct {
	sent []string
	fail map[string]bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, j model.Job) error {
	if d.fail[j.Title] {
		return errors.New("webhook down")
	}
	d.sent = append(d.sent, j.Title)
	return nil
}

func seed(t *testing.T, titles ...string) (*store.SQLStore, []model.Job) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var jobs []model.Job
	for i, title := range titles {
		j := sampleJob(title, "Acme")
		j.ID = ""
		j.ExternalID = string(rune('a' + i))
		j.Status = model.StatusNormalized
		stored, err := s.Upsert(context.Background(), j)
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		jobs = append(jobs, stored)
	}
	return s, jobs
}

func TestRespond_SendMarksResponded(t *testing.T) {
	s, jobs := seed(t, "Go Engineer", "Java Engineer")
	d := &recordingDispatcher{}
	r := NewResponder(s, d, filter.NewCriteriaFilter(filter.Criteria{TitleKeywords: []string{"go"}}), discardLogger())

	rep, err := r.Respond(context.Background(), jobs, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rep.Candidates != 1 || rep.Sent != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if len(d.sent) != 1 || d.sent[0] != "Go Engineer" {
		t.Fatalf("sent = %v", d.sent)
	}

	got, err := s.Get(context.Background(), jobs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusResponded {
		t.Errorf("status = %s, want RESPONDED", got.Status)
	}

	// A second pass finds nothing left to do.
	rep, err = r.Respond(context.Background(), []model.Job{got}, true)
	if err != nil || rep.Candidates != 0 {
		t.Fatalf("second pass = %+v, %v", rep, err)
	}
}

func TestRespond_DryRunDispatchesNothing(t *testing.T) {
	s, jobs := seed(t, "Go Engineer", "Go Developer")
	d := &recordingDispatcher{}
	r := NewResponder(s, d, nil, discardLogger())

	rep, err := r.Respond(context.Background(), jobs, false)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if rep.Candidates != 2 || rep.Sent != 0 || len(d.sent) != 0 {
		t.Fatalf("report = %+v, sent = %v", rep, d.sent)
	}
	counts, _ := s.CountByStatus(context.Background())
	if counts[model.StatusStored] != 2 {
		t.Errorf("counts = %v, want both still STORED", counts)
	}
}

func TestRespond_DispatchFailures(t *testing.T) {
	s, jobs := seed(t, "Go Engineer", "Go Developer")
	d := &recordingDispatcher{fail: map[string]bool{"Go Engineer": true}}
	r := NewResponder(s, d, nil, discardLogger())

	rep, err := r.Respond(context.Background(), jobs, true)
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if rep.Sent != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}

	d.fail["Go Developer"] = true
	s2, jobs2 := seed(t, "Go Engineer", "Go Developer")
	r2 := NewResponder(s2, d, nil, discardLogger())
	if _, err := r2.Respond(context.Background(), jobs2, true); err == nil {
		t.Fatal("expected error when every dispatch fails")
	}
}

func TestCandidates(t *testing.T) {
	s, jobs := seed(t, "Go Engineer", "Java Engineer", "Go SRE")
	if _, err := s.MarkResponded(context.Background(), jobs[2].ID); err != nil {
		t.Fatalf("MarkResponded: %v", err)
	}
	r := NewResponder(s, &recordingDispatcher{}, filter.NewCriteriaFilter(filter.Criteria{TitleKeywords: []string{"go"}}), discardLogger())

	got, err := r.Candidates(context.Background())
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Go Engineer" {
		t.Fatalf("candidates = %+v", got)
	}
}
