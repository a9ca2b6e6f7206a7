package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobpipe/internal/model"
)

// Set JOBPIPE_TEST_POSTGRES_DSN to run these against a disposable database.
func newTestPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := os.Getenv("JOBPIPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JOBPIPE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `TRUNCATE job_audit, jobs`)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresUpsertAndQuery(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, testJob("greenhouse", "pg-1", "Go Engineer"))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, testJob("greenhouse", "pg-1", "Go Engineer"))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, testJob("greenhouse", "pg-1", "Senior Go Engineer"))
	require.NoError(t, err)

	entries, err := s.AuditLog(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	jobs, err := s.Query(ctx, model.Filter{Skills: []string{"go"}}, model.Page{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Senior Go Engineer", jobs[0].Title)
}

func TestPostgresConcurrentSameKey(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(ctx, testJob("lever", "pg-hot", fmt.Sprintf("T%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.StatusStored])
}
