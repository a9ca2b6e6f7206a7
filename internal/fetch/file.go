package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/amishk599/jobpipe/internal/model"
)

// rawJobSchema describes one record of a raw postings file. A record must
// carry either a URL or a full natural key.
const rawJobSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "source_platform": {"type": "string"},
    "external_id":     {"type": "string"},
    "url":             {"type": "string"},
    "title":           {"type": "string"},
    "company":         {"type": "string"},
    "location":        {"type": "string"},
    "description":     {"type": "string"},
    "salary":          {"type": "string"},
    "job_type":        {"type": "string"},
    "workplace":       {"type": "string"},
    "posted_at":       {"type": "string", "format": "date-time"}
  },
  "anyOf": [
    {"required": ["url"]},
    {"required": ["source_platform", "external_id"]}
  ]
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource("raw_job.json", strings.NewReader(rawJobSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("raw_job.json")
	})
	return schema, schemaErr
}

// DecodeRawJobs parses a JSON array of raw postings. Records that do not
// match the schema are left out and reported together in one error wrapping
// model.ErrMalformedInput; the valid records are still returned. A record's
// raw_data defaults to the record itself.
func DecodeRawJobs(data []byte) ([]model.RawJob, error) {
	sch, err := recordSchema()
	if err != nil {
		return nil, model.Configurationf("raw job schema: %v", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: raw jobs must be a JSON array: %v", model.ErrMalformedInput, err)
	}

	jobs := make([]model.RawJob, 0, len(records))
	var problems []error
	for i, rec := range records {
		var v any
		if err := json.Unmarshal(rec, &v); err != nil {
			problems = append(problems, fmt.Errorf("record %d: %v", i, err))
			continue
		}
		if err := sch.Validate(v); err != nil {
			problems = append(problems, fmt.Errorf("record %d: %v", i, err))
			continue
		}
		var raw model.RawJob
		if err := json.Unmarshal(rec, &raw); err != nil {
			problems = append(problems, fmt.Errorf("record %d: %v", i, err))
			continue
		}
		if len(raw.RawData) == 0 {
			raw.RawData = rec
		}
		jobs = append(jobs, raw)
	}

	if len(problems) > 0 {
		return jobs, fmt.Errorf("%w: %d of %d records rejected: %w",
			model.ErrMalformedInput, len(problems), len(records), errors.Join(problems...))
	}
	return jobs, nil
}

// ReadRawJobs reads and decodes a raw postings file.
func ReadRawJobs(path string) ([]model.RawJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw jobs: %w", err)
	}
	return DecodeRawJobs(data)
}

// FileSource serves postings from a JSON file, re-read on every fetch.
type FileSource struct {
	name string
	path string
}

// NewFileSource creates a source for the file at path.
func NewFileSource(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string     { return s.name }
func (s *FileSource) Platform() string { return "file" }

// Fetch reads the file. Invalid records are reported alongside the valid ones.
func (s *FileSource) Fetch(ctx context.Context) ([]model.RawJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadRawJobs(s.path)
}
