package apology

import (
	"context"

	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

type Store interface {
	// Save creates or updates an apology record. Updates must be observed at
	// a newer slot than the stored record, otherwise ErrStaleState is
	// returned.
	Save(ctx context.Context, record *Record) error

	// GetByAddress gets an apology by its state address
	GetByAddress(ctx context.Context, address string) (*Record, error)

	// GetAllByOffender gets a page of apologies made by offender
	//
	// Supported options: query.WithCursor, query.WithLimit,
	// query.WithDirection and WithStatus
	GetAllByOffender(ctx context.Context, offender string, opts ...query.Option) ([]*Record, error)

	// GetAllByVictim gets a page of apologies made to victim
	//
	// Supported options: query.WithCursor, query.WithLimit,
	// query.WithDirection and WithStatus
	GetAllByVictim(ctx context.Context, victim string, opts ...query.Option) ([]*Record, error)

	// CountByStatus counts the apologies in the provided status
	CountByStatus(ctx context.Context, status apologystake.ApologyStatus) (uint64, error)
}
