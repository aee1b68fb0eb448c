package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows maps sql.ErrNoRows to outErr and returns any other error as is
func CheckNoRows(inErr, outErr error) error {
	if errors.Is(inErr, sql.ErrNoRows) {
		return outErr
	}
	return inErr
}

// IsSerializationFailure reports whether err is a postgres serialization
// failure, which is safe to retry in a new transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.SerializationFailure
}
