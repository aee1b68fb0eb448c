package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed apology.Store
func New(db *sql.DB) apology.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements apology.Store.Save
func (s *store) Save(ctx context.Context, record *apology.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	res := fromModel(model)
	res.CopyTo(record)

	return nil
}

// GetByAddress implements apology.Store.GetByAddress
func (s *store) GetByAddress(ctx context.Context, address string) (*apology.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByOffender implements apology.Store.GetAllByOffender
func (s *store) GetAllByOffender(ctx context.Context, offender string, opts ...query.Option) ([]*apology.Record, error) {
	return s.getAllByParty(ctx, "offender", offender, opts...)
}

// GetAllByVictim implements apology.Store.GetAllByVictim
func (s *store) GetAllByVictim(ctx context.Context, victim string, opts ...query.Option) ([]*apology.Record, error) {
	return s.getAllByParty(ctx, "victim", victim, opts...)
}

// CountByStatus implements apology.Store.CountByStatus
func (s *store) CountByStatus(ctx context.Context, status apologystake.ApologyStatus) (uint64, error) {
	return dbGetCountByStatus(ctx, s.db, status)
}

func (s *store) getAllByParty(ctx context.Context, column, party string, opts ...query.Option) ([]*apology.Record, error) {
	req, err := apology.ParseQueryOptions(opts...)
	if err != nil {
		return nil, err
	}

	models, err := dbGetAllByParty(ctx, s.db, column, party, req)
	if err != nil {
		return nil, err
	}

	res := make([]*apology.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}
