package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Observer receives the outcome of every operation a Runner executes.
// *metrics.OperationMetrics satisfies it.
type Observer interface {
	Observe(op string, started time.Time, err error)
	IncBusyRetry(op string)
}

// Runner executes named logical operations as atomic scopes on one handle.
// A Runner on the root connection retries busy failures; one bound to an
// enclosing transaction never retries.
type Runner struct {
	conn    *gorm.DB
	retrier Retrier
	obs     Observer
}

// NewRunner builds a runner on the root connection.
func NewRunner(conn *gorm.DB, retrier Retrier, obs Observer) *Runner {
	return &Runner{conn: conn, retrier: retrier, obs: obs}
}

// DB returns the handle the runner is bound to.
func (r *Runner) DB() *gorm.DB {
	return r.conn
}

// WithTx returns a runner bound to tx. Operations run as savepoints inside it.
func (r *Runner) WithTx(tx *gorm.DB) *Runner {
	if tx == nil {
		return r
	}
	return &Runner{conn: tx, retrier: NoRetry(), obs: r.obs}
}

// Run executes fn as one atomic scope named op.
func (r *Runner) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) (err error) {
	started := time.Now()
	if r.obs != nil {
		defer func() { r.obs.Observe(op, started, err) }()
	}
	retrier := r.retrier.OnRetry(func(error) {
		if r.obs != nil {
			r.obs.IncBusyRetry(op)
		}
	})
	return retrier.Do(ctx, func(ctx context.Context) error {
		return Atomic(ctx, r.conn, fn)
	})
}

// Read runs a query against the bound handle without opening a scope.
func (r *Runner) Read(ctx context.Context) *gorm.DB {
	return r.conn.WithContext(ctx)
}
