package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Name string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.DBConfig{
		Driver:      config.DBDriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "client.db"),
		LockTimeout: time.Second,
	}
	client, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&testModel{}))
	return client
}

func countModels(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countModels(t, client.DB()))

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, int64(1), countModels(t, client.DB()))
}

func TestAtomic_NestedScopeRollsBackToSavepoint(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := Atomic(ctx, client.DB(), func(tx *gorm.DB) error {
		require.True(t, InTx(tx))
		if err := tx.Create(&testModel{Name: "outer"}).Error; err != nil {
			return err
		}
		inner := Atomic(ctx, tx, func(nested *gorm.DB) error {
			if err := nested.Create(&testModel{Name: "inner"}).Error; err != nil {
				return err
			}
			return errors.New("inner failed")
		})
		require.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, client.DB().Model(&testModel{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"outer"}, names)
}

func TestAtomic_OuterAbortDiscardsNestedWrites(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := Atomic(ctx, client.DB(), func(tx *gorm.DB) error {
		require.NoError(t, Atomic(ctx, tx, func(nested *gorm.DB) error {
			return nested.Create(&testModel{Name: "inner"}).Error
		}))
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, int64(0), countModels(t, client.DB()))
}

func TestAtomic_RollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)

	assert.Panics(t, func() {
		_ = Atomic(context.Background(), client.DB(), func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "doomed"})
			panic("boom")
		})
	})
	assert.Equal(t, int64(0), countModels(t, client.DB()))
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, DialectSQLite, client.Dialect())
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
		{"message", errors.New("database is locked"), true},
		{"typed busy", pkgerrors.New(pkgerrors.CodeResourceBusy, "busy"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusy(tt.err))
		})
	}
}

func TestClassifyWrapsBusyErrors(t *testing.T) {
	wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, sqlite3.Error{Code: sqlite3.ErrBusy}, "load part")
	err := classify(wrapped)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeResourceBusy))
	assert.True(t, pkgerrors.IsRetryable(err))

	plain := pkgerrors.New(pkgerrors.CodeNotFound, "part not found")
	assert.Same(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("/tmp/stock.db", 2*time.Second)
	assert.True(t, strings.HasPrefix(dsn, "/tmp/stock.db?"))
	assert.Contains(t, dsn, "_busy_timeout=2000")
	assert.Contains(t, dsn, "_txlock=immediate")

	withQuery := sqliteDSN("file:stock.db?cache=private", 0)
	assert.Contains(t, withQuery, "cache=private&_journal_mode=WAL")
	assert.NotContains(t, withQuery, "_busy_timeout")
}

func TestPostgresDSN(t *testing.T) {
	dsn, err := postgresDSN("postgres://u:p@localhost:5432/stock?sslmode=disable", 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, dsn, "lock_timeout=3000")
	assert.Contains(t, dsn, "sslmode=disable")

	kv, err := postgresDSN("host=localhost dbname=stock", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=stock lock_timeout=1000", kv)

	untouched, err := postgresDSN("host=localhost", 0)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost", untouched)
}
