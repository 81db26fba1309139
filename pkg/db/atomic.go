package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Atomic runs fn as one atomic scope on conn. On a root handle it opens a
// transaction; on a handle that is already a transaction it opens a
// savepoint, so a failure unwinds only fn's writes while the enclosing scope
// can still discard everything. Errors or panics roll the scope back, and
// lock contention surfaces as RESOURCE_BUSY.
func Atomic(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	if conn == nil {
		return errors.New("database handle required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return classify(conn.WithContext(ctx).Transaction(fn))
}

// InTx reports whether conn is bound to an open transaction.
func InTx(conn *gorm.DB) bool {
	if conn == nil || conn.Statement == nil {
		return false
	}
	committer, ok := conn.Statement.ConnPool.(gorm.TxCommitter)
	return ok && committer != nil
}
