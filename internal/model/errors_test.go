package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amishk599/jobpipe/internal/model"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want model.ErrorKind
	}{
		{nil, ""},
		{model.Conflictf("id %s", "abc"), model.KindConflict},
		{fmt.Errorf("upsert: %w", model.Persistence("insert", errors.New("disk full"))), model.KindPersistence},
		{model.Configurationf("bad"), model.KindConfiguration},
		{fmt.Errorf("%w: greenhouse", model.ErrTransientFetch), model.KindTransientFetch},
		{fmt.Errorf("%w: no title", model.ErrMalformedInput), model.KindMalformedInput},
		{fmt.Errorf("run: %w", context.Canceled), model.KindCancelled},
		{errors.New("boom"), model.KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, model.KindOf(tc.err), "%v", tc.err)
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, model.IsFatal(model.Persistence("commit", errors.New("x"))))
	assert.True(t, model.IsFatal(model.Configurationf("x")))
	assert.False(t, model.IsFatal(model.Conflictf("x")))
	assert.False(t, model.IsFatal(nil))
}

func TestPersistenceKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := model.Persistence("commit", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Contains(t, err.Error(), "commit")
}
