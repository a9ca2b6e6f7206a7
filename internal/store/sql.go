package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobpipe/internal/model"
)

// SQLStore persists jobs in a SQL database. Upserts for one natural key are
// serialized by an in-process key lock plus a write transaction; upserts
// for different keys never wait on each other's key lock.
type SQLStore struct {
	db      *sql.DB
	d       dialect
	locks   *keyLocks
	now     func() time.Time
	closeFn func() error
}

var _ model.JobStore = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		d:       d,
		locks:   newKeyLocks(),
		now:     time.Now,
		closeFn: db.Close,
	}
}

// migrate creates the tables and indexes if they do not exist.
func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema (%s): %w", s.d.name, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.closeFn()
}

const jobColumns = `id, source_platform, external_id, title, company, location, description, url,
	salary_min, salary_max, currency, job_type, remote_type, required_skills, posted_at,
	status, raw_data, warnings, created_at, updated_at`

// Upsert inserts job or merges it into the record with the same natural
// key. A write that changes nothing returns the stored record untouched
// and records no audit entry.
func (s *SQLStore) Upsert(ctx context.Context, job model.Job) (model.Job, error) {
	if err := validateForUpsert(job); err != nil {
		return job, err
	}
	key := job.Key()
	unlock := s.locks.lock(key)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return job, dbError(ctx, "begin upsert", err)
	}
	defer tx.Rollback()

	if s.d.lockKey != nil {
		if err := s.d.lockKey(ctx, tx, key.String()); err != nil {
			return job, dbError(ctx, "lock key", err)
		}
	}

	existing, found, err := s.getByKey(ctx, tx, key)
	if err != nil {
		return job, err
	}
	now := s.now().UTC()

	if !found {
		stored, err := s.insert(ctx, tx, job, now)
		if err != nil {
			return job, err
		}
		if err := tx.Commit(); err != nil {
			return job, dbError(ctx, "commit insert", err)
		}
		return stored, nil
	}

	if job.ID != "" && job.ID != existing.ID {
		return job, model.Conflictf("%s: incoming id %s does not match stored id %s", key, job.ID, existing.ID)
	}

	merged, prior := merge(existing, job)
	if len(prior) == 0 {
		return existing, nil
	}
	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Nanosecond)
	}
	merged.UpdatedAt = now

	if err := s.update(ctx, tx, merged); err != nil {
		return job, err
	}
	if err := s.appendAudit(ctx, tx, merged.ID, now, prior); err != nil {
		return job, err
	}
	if err := tx.Commit(); err != nil {
		return job, dbError(ctx, "commit update", err)
	}
	return merged, nil
}

// UpsertBatch upserts jobs in order. Conflicting or malformed records come
// back FAILED with a warning and do not stop the batch; any other error
// aborts it and is returned with the records processed so far.
func (s *SQLStore) UpsertBatch(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	return upsertBatch(ctx, s, jobs)
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, job model.Job, now time.Time) (model.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	} else {
		var n int
		err := tx.QueryRowContext(ctx, s.d.rebind(`SELECT COUNT(*) FROM jobs WHERE id = ?`), job.ID).Scan(&n)
		if err != nil {
			return job, dbError(ctx, "check id", err)
		}
		if n > 0 {
			return job, model.Conflictf("%s: id %s already belongs to another posting", job.Key(), job.ID)
		}
	}
	job.Status = model.StatusStored
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Currency == "" {
		job.Currency = model.CurrencyUnknown
	}
	if job.JobType == "" {
		job.JobType = model.JobTypeUnknown
	}
	if job.RemoteType == "" {
		job.RemoteType = model.RemoteUnknown
	}
	if job.PostedAt != nil {
		t := job.PostedAt.UTC()
		job.PostedAt = &t
	}

	row, err := encodeJob(job)
	if err != nil {
		return job, fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, job.Key(), err)
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`INSERT INTO jobs (`+jobColumns+`, posted_or_created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), row.args()...)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return job, model.Conflictf("%s: concurrent insert: %v", job.Key(), err)
		}
		return job, dbError(ctx, "insert job", err)
	}
	return job, nil
}

func (s *SQLStore) update(ctx context.Context, tx *sql.Tx, job model.Job) error {
	row, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, job.Key(), err)
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE jobs SET
		title = ?, company = ?, location = ?, description = ?, url = ?,
		salary_min = ?, salary_max = ?, currency = ?, job_type = ?, remote_type = ?,
		required_skills = ?, posted_at = ?, status = ?, raw_data = ?, warnings = ?,
		updated_at = ?, posted_or_created_at = ?
		WHERE id = ?`),
		row.title, row.company, row.location, row.description, row.url,
		row.salaryMin, row.salaryMax, row.currency, row.jobType, row.remoteType,
		row.skills, row.postedAt, row.status, row.rawData, row.warnings,
		row.updatedAt, row.postedOrCreated,
		row.id,
	)
	if err != nil {
		return dbError(ctx, "update job", err)
	}
	return nil
}

func (s *SQLStore) appendAudit(ctx context.Context, tx *sql.Tx, jobID string, at time.Time, prior map[string]any) error {
	data, err := json.Marshal(prior)
	if err != nil {
		return fmt.Errorf("encoding audit entry for %s: %w", jobID, err)
	}
	_, err = tx.ExecContext(ctx, s.d.rebind(`INSERT INTO job_audit (job_id, recorded_at, prior) VALUES (?, ?, ?)`),
		jobID, at.UnixNano(), string(data))
	if err != nil {
		return dbError(ctx, "insert audit entry", err)
	}
	return nil
}

func (s *SQLStore) getByKey(ctx context.Context, tx *sql.Tx, key model.NaturalKey) (model.Job, bool, error) {
	q := s.d.rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE source_platform = ? AND external_id = ?` + s.d.forUpdate)
	job, err := scanJob(tx.QueryRowContext(ctx, q, key.Platform, key.ExternalID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, dbError(ctx, "read "+key.String(), err)
	}
	return job, true, nil
}

// Get returns the job with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (model.Job, error) {
	q := s.d.rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	job, err := scanJob(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, fmt.Errorf("%w: job %s", model.ErrNotFound, id)
	}
	if err != nil {
		return model.Job{}, dbError(ctx, "get job "+id, err)
	}
	return job, nil
}

// Transition moves the job to status to if the state machine allows it,
// recording the prior status in the audit log.
func (s *SQLStore) Transition(ctx context.Context, id string, to model.Status) (model.Job, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	unlock := s.locks.lock(current.Key())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Job{}, dbError(ctx, "begin transition", err)
	}
	defer tx.Rollback()

	if s.d.lockKey != nil {
		if err := s.d.lockKey(ctx, tx, current.Key().String()); err != nil {
			return model.Job{}, dbError(ctx, "lock key", err)
		}
	}
	job, found, err := s.getByKey(ctx, tx, current.Key())
	if err != nil {
		return model.Job{}, err
	}
	if !found {
		return model.Job{}, fmt.Errorf("%w: job %s", model.ErrNotFound, id)
	}
	if !model.CanTransition(job.Status, to) {
		return job, fmt.Errorf("%w: job %s %s -> %s", model.ErrInvalidTransition, id, job.Status, to)
	}

	now := s.now().UTC()
	if !now.After(job.UpdatedAt) {
		now = job.UpdatedAt.Add(time.Nanosecond)
	}
	prior := map[string]any{"status": string(job.Status)}
	job.Status = to
	job.UpdatedAt = now

	_, err = tx.ExecContext(ctx, s.d.rebind(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`),
		string(to), now.UnixNano(), job.ID)
	if err != nil {
		return model.Job{}, dbError(ctx, "update status", err)
	}
	if err := s.appendAudit(ctx, tx, job.ID, now, prior); err != nil {
		return model.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Job{}, dbError(ctx, "commit transition", err)
	}
	return job, nil
}

// MarkResponded records that the respond stage handled the job.
func (s *SQLStore) MarkResponded(ctx context.Context, id string) (model.Job, error) {
	return s.Transition(ctx, id, model.StatusResponded)
}

// Query returns jobs matching f, newest first (posted date, falling back to
// creation time), ties broken by id.
func (s *SQLStore) Query(ctx context.Context, f model.Filter, p model.Page) ([]model.Job, error) {
	p = p.Normalized()
	where, args := s.buildWhere(f)
	q := `SELECT ` + jobColumns + ` FROM jobs` + where +
		` ORDER BY posted_or_created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), args...)
	if err != nil {
		return nil, dbError(ctx, "query jobs", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dbError(ctx, "scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(ctx, "iterate jobs", err)
	}
	return jobs, nil
}

func (s *SQLStore) buildWhere(f model.Filter) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if len(f.Platforms) > 0 {
		clauses = append(clauses, "source_platform IN ("+placeholders(len(f.Platforms))+")")
		for _, p := range f.Platforms {
			args = append(args, strings.ToLower(p))
		}
	}
	for _, skill := range f.Skills {
		clauses = append(clauses, s.d.skillClause)
		args = append(args, skill)
	}
	// Salary filters select jobs whose range overlaps [SalaryMin, SalaryMax].
	if f.SalaryMin != nil {
		clauses = append(clauses, "COALESCE(salary_max, salary_min) >= ?")
		args = append(args, *f.SalaryMin)
	}
	if f.SalaryMax != nil {
		clauses = append(clauses, "COALESCE(salary_min, salary_max) <= ?")
		args = append(args, *f.SalaryMax)
	}
	if f.PostedAfter != nil {
		clauses = append(clauses, "posted_or_created_at >= ?")
		args = append(args, f.PostedAfter.UnixNano())
	}
	if f.PostedBefore != nil {
		clauses = append(clauses, "posted_or_created_at <= ?")
		args = append(args, f.PostedBefore.UnixNano())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// AuditLog returns the audit entries for a job, oldest first.
func (s *SQLStore) AuditLog(ctx context.Context, id string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.d.rebind(`SELECT seq, job_id, recorded_at, prior FROM job_audit WHERE job_id = ? ORDER BY recorded_at, seq`), id)
	if err != nil {
		return nil, dbError(ctx, "query audit log", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e     model.AuditEntry
			at    int64
			prior string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &at, &prior); err != nil {
			return nil, dbError(ctx, "scan audit entry", err)
		}
		e.RecordedAt = time.Unix(0, at).UTC()
		if err := json.Unmarshal([]byte(prior), &e.Prior); err != nil {
			return nil, fmt.Errorf("decoding audit entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(ctx, "iterate audit log", err)
	}
	return entries, nil
}

// CountByStatus returns how many stored jobs are in each status.
func (s *SQLStore) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, dbError(ctx, "count by status", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, dbError(ctx, "scan status count", err)
		}
		counts[model.Status(st)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(ctx, "iterate status counts", err)
	}
	return counts, nil
}

// dbError classifies a database failure. Cancellation of the caller's
// context is reported as such; everything else is a persistence error.
func dbError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return model.Persistence(op, err)
}
