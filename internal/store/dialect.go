package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string
	// rebind rewrites '?' placeholders into the backend's syntax.
	rebind func(q string) string
	// lockKey takes a transaction-scoped lock on a natural key. It may be nil
	// when the backend's transaction already excludes other writers.
	lockKey func(ctx context.Context, tx *sql.Tx, key string) error
	// forUpdate is appended to the read inside a write transaction.
	forUpdate string
	// skillClause matches one skill against the required_skills JSON array.
	skillClause       string
	isUniqueViolation func(err error) bool
	schema            []string
}

func schemaFor(intType, seqType string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id                   TEXT PRIMARY KEY,
			source_platform      TEXT NOT NULL,
			external_id          TEXT NOT NULL,
			title                TEXT NOT NULL DEFAULT '',
			company              TEXT NOT NULL DEFAULT '',
			location             TEXT NOT NULL DEFAULT '',
			description          TEXT NOT NULL DEFAULT '',
			url                  TEXT NOT NULL DEFAULT '',
			salary_min           ` + intType + `,
			salary_max           ` + intType + `,
			currency             TEXT NOT NULL DEFAULT 'unknown',
			job_type             TEXT NOT NULL DEFAULT 'unknown',
			remote_type          TEXT NOT NULL DEFAULT 'unknown',
			required_skills      TEXT NOT NULL DEFAULT '[]',
			posted_at            ` + intType + `,
			status               TEXT NOT NULL,
			raw_data             TEXT,
			warnings             TEXT NOT NULL DEFAULT '[]',
			created_at           ` + intType + ` NOT NULL,
			updated_at           ` + intType + ` NOT NULL,
			posted_or_created_at ` + intType + ` NOT NULL,
			UNIQUE (source_platform, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_posted_or_created ON jobs (posted_or_created_at DESC, id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_platform ON jobs (source_platform)`,
		`CREATE TABLE IF NOT EXISTS job_audit (
			seq         ` + seqType + `,
			job_id      TEXT NOT NULL REFERENCES jobs (id),
			recorded_at ` + intType + ` NOT NULL,
			prior       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_audit_job ON job_audit (job_id, recorded_at)`,
	}
}

var sqliteDialect = dialect{
	name:              "sqlite",
	rebind:            func(q string) string { return q },
	forUpdate:         "",
	skillClause:       `EXISTS (SELECT 1 FROM json_each(jobs.required_skills) WHERE lower(json_each.value) = lower(?))`,
	isUniqueViolation: sqliteUniqueViolation,
	schema:            schemaFor("INTEGER", "INTEGER PRIMARY KEY AUTOINCREMENT"),
}

var postgresDialect = dialect{
	name:   "postgres",
	rebind: rebindDollar,
	lockKey: func(ctx context.Context, tx *sql.Tx, key string) error {
		_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
		return err
	},
	forUpdate:         " FOR UPDATE",
	skillClause:       `EXISTS (SELECT 1 FROM jsonb_array_elements_text(jobs.required_skills::jsonb) AS s(skill) WHERE lower(s.skill) = lower(?))`,
	isUniqueViolation: postgresUniqueViolation,
	schema:            schemaFor("BIGINT", "BIGSERIAL PRIMARY KEY"),
}

func rebindDollar(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqliteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			return strings.Contains(se.Error(), "UNIQUE")
		}
	}
	return false
}

func postgresUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
