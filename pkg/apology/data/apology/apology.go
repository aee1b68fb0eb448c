package apology

import (
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

var (
	ErrApologyNotFound = errors.New("no apology records could be found")
	ErrInvalidApology  = errors.New("invalid apology")
	ErrStaleState      = errors.New("apology state is stale")
)

// Record is the off chain copy of an apology account
type Record struct {
	Id uint64

	Address      string
	VaultAddress string

	Offender string
	Victim   string
	Nonce    int64

	StakeAmount  uint64
	Message      string
	VictimHandle string

	Status     apologystake.ApologyStatus
	Resolution apologystake.Resolution

	CreatedAt    time.Time
	ProbationEnd time.Time

	// Slot is the slot the account state was observed at
	Slot uint64

	LastUpdatedAt time.Time
}

// NewRecordFromProgramAccount creates a record for the apology account at
// address as observed at slot
func NewRecordFromProgramAccount(address, vaultAddress string, data *apologystake.ApologyAccount, slot uint64) (*Record, error) {
	r := &Record{
		Address:      address,
		VaultAddress: vaultAddress,

		Offender: base58.Encode(data.Offender),
		Victim:   base58.Encode(data.Victim),
		Nonce:    data.Nonce,

		StakeAmount:  data.StakeAmount,
		Message:      data.Message,
		VictimHandle: data.VictimHandle,

		Status:     data.Status,
		Resolution: data.Resolution,

		CreatedAt:    time.Unix(data.CreatedAt, 0).UTC(),
		ProbationEnd: time.Unix(data.ProbationEnd, 0).UTC(),

		Slot: slot,
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateFromProgramAccount applies newer account state. Only the lifecycle
// fields can change after creation.
func (r *Record) UpdateFromProgramAccount(data *apologystake.ApologyAccount, slot uint64) error {
	// Avoid updates looking backwards in blockchain history
	if slot <= r.Slot {
		return ErrStaleState
	}

	if base58.Encode(data.Offender) != r.Offender || base58.Encode(data.Victim) != r.Victim || data.Nonce != r.Nonce {
		return errors.Wrap(ErrInvalidApology, "immutable apology fields changed")
	}

	r.Status = data.Status
	r.Resolution = data.Resolution
	r.Slot = slot
	return nil
}

func (r *Record) IsActive() bool {
	return r.Status == apologystake.ApologyStatusActive
}

// IsProbationOver reports whether the victim may act at the provided time
func (r *Record) IsProbationOver(at time.Time) bool {
	return !at.Before(r.ProbationEnd)
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.Wrap(ErrInvalidApology, "address is required")
	}
	if len(r.VaultAddress) == 0 {
		return errors.Wrap(ErrInvalidApology, "vault address is required")
	}
	if len(r.Offender) == 0 || len(r.Victim) == 0 {
		return errors.Wrap(ErrInvalidApology, "offender and victim are required")
	}
	if r.Offender == r.Victim {
		return errors.Wrap(ErrInvalidApology, "offender and victim must differ")
	}
	if len(r.Message) == 0 || len(r.Message) > apologystake.MaxMessageLength {
		return errors.Wrap(ErrInvalidApology, "invalid message length")
	}
	if len(r.VictimHandle) > apologystake.MaxVictimHandleLength {
		return errors.Wrap(ErrInvalidApology, "victim handle too long")
	}
	if !r.ProbationEnd.After(r.CreatedAt) {
		return errors.Wrap(ErrInvalidApology, "probation must end after creation")
	}

	switch r.Status {
	case apologystake.ApologyStatusActive:
		if r.Resolution != apologystake.ResolutionNone {
			return errors.Wrap(ErrInvalidApology, "active apology can't be resolved")
		}
	case apologystake.ApologyStatusCompleted:
		if r.Resolution != apologystake.ResolutionReleased && r.Resolution != apologystake.ResolutionClaimed {
			return errors.Wrap(ErrInvalidApology, "completed apology must be released or claimed")
		}
	default:
		return errors.Wrapf(ErrInvalidApology, "unknown status %d", r.Status)
	}

	return nil
}

func (r *Record) Clone() *Record {
	return &Record{
		Id: r.Id,

		Address:      r.Address,
		VaultAddress: r.VaultAddress,

		Offender: r.Offender,
		Victim:   r.Victim,
		Nonce:    r.Nonce,

		StakeAmount:  r.StakeAmount,
		Message:      r.Message,
		VictimHandle: r.VictimHandle,

		Status:     r.Status,
		Resolution: r.Resolution,

		CreatedAt:    r.CreatedAt,
		ProbationEnd: r.ProbationEnd,

		Slot: r.Slot,

		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Address = r.Address
	dst.VaultAddress = r.VaultAddress

	dst.Offender = r.Offender
	dst.Victim = r.Victim
	dst.Nonce = r.Nonce

	dst.StakeAmount = r.StakeAmount
	dst.Message = r.Message
	dst.VictimHandle = r.VictimHandle

	dst.Status = r.Status
	dst.Resolution = r.Resolution

	dst.CreatedAt = r.CreatedAt
	dst.ProbationEnd = r.ProbationEnd

	dst.Slot = r.Slot

	dst.LastUpdatedAt = r.LastUpdatedAt
}

// ParseQueryOptions applies opts over the defaults supported by apology
// queries: cursor, limit, direction and a status filter
func ParseQueryOptions(opts ...query.Option) (*query.Options, error) {
	req := &query.Options{
		Limit:     DefaultPageSize,
		Direction: query.Ascending,
		Supported: query.CanLimitResults | query.CanSortBy | query.CanQueryByCursor | query.CanFilterBy,
	}
	if err := req.Apply(opts...); err != nil {
		return nil, err
	}

	if req.Limit == 0 || req.Limit > MaxPageSize {
		return nil, query.ErrQueryNotSupported
	}
	if len(req.Cursor) > 0 && !req.Cursor.IsValid() {
		return nil, query.ErrQueryNotSupported
	}
	if req.FilterBy.Valid && req.FilterBy.Value > uint64(apologystake.ApologyStatusCompleted) {
		return nil, query.ErrQueryNotSupported
	}
	return req, nil
}

// WithStatus filters query results to apologies in the provided status
func WithStatus(status apologystake.ApologyStatus) query.Option {
	return query.WithFilter(query.NewFilter(uint64(status)))
}
