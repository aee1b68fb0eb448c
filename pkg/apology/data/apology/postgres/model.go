package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	pgutil "github.com/apologystake/stake-server/pkg/database/postgres"
	q "github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

const (
	tableName = "apologystake__core_apology"

	allColumns = `id, address, vault_address, offender, victim, nonce, stake_amount, message, victim_handle, status, resolution, created_at, probation_end, slot, last_updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address      string `db:"address"`
	VaultAddress string `db:"vault_address"`

	Offender string `db:"offender"`
	Victim   string `db:"victim"`
	Nonce    int64  `db:"nonce"`

	StakeAmount  int64  `db:"stake_amount"`
	Message      string `db:"message"`
	VictimHandle string `db:"victim_handle"`

	Status     uint `db:"status"`
	Resolution uint `db:"resolution"`

	CreatedAt    time.Time `db:"created_at"`
	ProbationEnd time.Time `db:"probation_end"`

	Slot int64 `db:"slot"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *apology.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Address:      obj.Address,
		VaultAddress: obj.VaultAddress,

		Offender: obj.Offender,
		Victim:   obj.Victim,
		Nonce:    obj.Nonce,

		StakeAmount:  int64(obj.StakeAmount),
		Message:      obj.Message,
		VictimHandle: obj.VictimHandle,

		Status:     uint(obj.Status),
		Resolution: uint(obj.Resolution),

		CreatedAt:    obj.CreatedAt.UTC(),
		ProbationEnd: obj.ProbationEnd.UTC(),

		Slot: int64(obj.Slot),

		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *apology.Record {
	return &apology.Record{
		Id: uint64(obj.Id.Int64),

		Address:      obj.Address,
		VaultAddress: obj.VaultAddress,

		Offender: obj.Offender,
		Victim:   obj.Victim,
		Nonce:    obj.Nonce,

		StakeAmount:  uint64(obj.StakeAmount),
		Message:      obj.Message,
		VictimHandle: obj.VictimHandle,

		Status:     apologystake.ApologyStatus(obj.Status),
		Resolution: apologystake.Resolution(obj.Resolution),

		CreatedAt:    obj.CreatedAt.UTC(),
		ProbationEnd: obj.ProbationEnd.UTC(),

		Slot: uint64(obj.Slot),

		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, vault_address, offender, victim, nonce, stake_amount, message, victim_handle, status, resolution, created_at, probation_end, slot, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)

			ON CONFLICT (address)
			DO UPDATE
				SET status = $9, resolution = $10, slot = $13, last_updated_at = $14
				WHERE ` + tableName + `.address = $1 AND ` + tableName + `.slot < $13

			RETURNING
				` + allColumns

		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Address,
			m.VaultAddress,

			m.Offender,
			m.Victim,
			m.Nonce,

			m.StakeAmount,
			m.Message,
			m.VictimHandle,

			m.Status,
			m.Resolution,

			m.CreatedAt,
			m.ProbationEnd,

			m.Slot,

			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckNoRows(err, apology.ErrStaleState)
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, apology.ErrApologyNotFound)
	}
	return res, nil
}

func dbGetAllByParty(ctx context.Context, db *sqlx.DB, column, party string, req *q.Options) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + `
		FROM ` + tableName + `
		WHERE (` + column + ` = $1`
	opts := []interface{}{party}

	if req.FilterBy.Valid {
		query += ` AND status = $2`
		opts = append(opts, req.FilterBy.Value)
	}
	query += `)`

	query, opts = q.PaginateQuery(query, opts, req.Cursor, req.Limit, req.Direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, apology.ErrApologyNotFound)
	}

	if len(res) == 0 {
		return nil, apology.ErrApologyNotFound
	}
	return res, nil
}

func dbGetCountByStatus(ctx context.Context, db *sqlx.DB, status apologystake.ApologyStatus) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + ` WHERE status = $1`
	err := db.GetContext(ctx, &res, query, status)
	if err != nil {
		return 0, err
	}

	return res, nil
}
