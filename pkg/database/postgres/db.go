package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/retry"
)

// Serialization failures are retried a few times with a fresh transaction
const maxTxAttempts = 3

// ExecuteInTx runs fn within a transaction at the given isolation level,
// committing when fn succeeds and rolling back otherwise. A transaction that
// fails to serialize is replayed from the start.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	retrier := retry.NewRetrier(
		retry.RetriableWhen(IsSerializationFailure),
		retry.Limit(maxTxAttempts),
	)
	_, err := retrier.Retry(ctx, func() error {
		return executeInTx(ctx, db, isolation, fn)
	})
	return err
}

func executeInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// Rollback releases the connection back to the pool
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(rollbackErr, "failed to rollback transaction after: %v", err)
		}
		return err
	}
	return tx.Commit()
}
