package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
)

type recordingObserver struct {
	ops     []string
	errs    []error
	retries map[string]int
}

func (o *recordingObserver) Observe(op string, _ time.Time, err error) {
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) IncBusyRetry(op string) {
	if o.retries == nil {
		o.retries = map[string]int{}
	}
	o.retries[op]++
}

func TestRunnerRunCommitsAndObserves(t *testing.T) {
	client := newTestClient(t)
	obs := &recordingObserver{}
	runner := NewRunner(client.DB(), NoRetry(), obs)

	err := runner.Run(context.Background(), "create_model", func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "kept"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countModels(t, runner.Read(context.Background())))
	assert.Equal(t, []string{"create_model"}, obs.ops)
	assert.Nil(t, obs.errs[0])
}

func TestRunnerRunRollsBackOnError(t *testing.T) {
	client := newTestClient(t)
	obs := &recordingObserver{}
	runner := NewRunner(client.DB(), NoRetry(), obs)
	boom := errors.New("boom")

	err := runner.Run(context.Background(), "create_model", func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countModels(t, client.DB()))
	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0], boom)
}

func TestRunnerBoundToTxUsesSavepoints(t *testing.T) {
	client := newTestClient(t)
	runner := NewRunner(client.DB(), NewRetrier(3, time.Millisecond), nil)
	inner := errors.New("inner failed")

	err := runner.Run(context.Background(), "outer", func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "outer"}).Error; err != nil {
			return err
		}
		bound := runner.WithTx(tx)
		assert.True(t, InTx(bound.DB()))
		nestedErr := bound.Run(context.Background(), "inner", func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "inner"}).Error; err != nil {
				return err
			}
			return inner
		})
		assert.ErrorIs(t, nestedErr, inner)
		return nil
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, client.DB().Model(&testModel{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"outer"}, names)
}

func TestRunnerRetriesBusyAndCountsRetries(t *testing.T) {
	client := newTestClient(t)
	obs := &recordingObserver{}
	runner := NewRunner(client.DB(), NewRetrier(3, time.Millisecond), obs)

	calls := 0
	err := runner.Run(context.Background(), "busy_op", func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return pkgerrors.New(pkgerrors.CodeResourceBusy, "database is locked")
		}
		return tx.Create(&testModel{Name: "eventually"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, obs.retries["busy_op"])
	assert.Equal(t, int64(1), countModels(t, client.DB()))
}

func TestRunnerWithTxNeverRetries(t *testing.T) {
	client := newTestClient(t)
	runner := NewRunner(client.DB(), NewRetrier(3, time.Millisecond), nil)

	calls := 0
	var innerErr error
	err := runner.Run(context.Background(), "outer", func(tx *gorm.DB) error {
		innerErr = runner.WithTx(tx).Run(context.Background(), "inner", func(*gorm.DB) error {
			calls++
			return pkgerrors.New(pkgerrors.CodeResourceBusy, "busy")
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsBusy(innerErr))
	assert.Same(t, runner, runner.WithTx(nil))
}
