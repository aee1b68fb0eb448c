package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/apology/common"
	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

type apologyModel struct {
	Address      string `json:"address"`
	Vault        string `json:"vault"`
	Offender     string `json:"offender"`
	Victim       string `json:"victim"`
	Nonce        int64  `json:"nonce"`
	StakeAmount  uint64 `json:"stake_amount"`
	Message      string `json:"message"`
	VictimHandle string `json:"victim_handle,omitempty"`
	Status       string `json:"status"`
	Resolution   string `json:"resolution"`
	CreatedAt    string `json:"created_at"`
	ProbationEnd string `json:"probation_end"`
	Slot         uint64 `json:"slot"`
}

func toApologyModel(record *apology.Record) *apologyModel {
	return &apologyModel{
		Address:      record.Address,
		Vault:        record.VaultAddress,
		Offender:     record.Offender,
		Victim:       record.Victim,
		Nonce:        record.Nonce,
		StakeAmount:  record.StakeAmount,
		Message:      record.Message,
		VictimHandle: record.VictimHandle,
		Status:       record.Status.String(),
		Resolution:   record.Resolution.String(),
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
		ProbationEnd: record.ProbationEnd.UTC().Format(time.RFC3339),
		Slot:         record.Slot,
	}
}

type partyKind uint8

const (
	partyOffender partyKind = iota
	partyVictim
)

type listRequest struct {
	kind  partyKind
	party *common.Account
	opts  []query.Option
}

func newListRequestFromHttpContext(r *http.Request, maxPageSize uint64) (*listRequest, error) {
	values := r.URL.Query()

	offender := values.Get("offender")
	victim := values.Get("victim")

	req := &listRequest{}

	var party string
	switch {
	case len(offender) > 0 && len(victim) > 0:
		return nil, errors.New("only one of offender or victim can be provided")
	case len(offender) > 0:
		req.kind = partyOffender
		party = offender
	case len(victim) > 0:
		req.kind = partyVictim
		party = victim
	default:
		return nil, errors.New("offender or victim query parameter missing")
	}

	account, err := common.NewAccountFromPublicKeyString(party)
	if err != nil {
		return nil, errors.New("party is not a public key")
	}
	req.party = account

	limit := maxPageSize
	if raw := values.Get("limit"); len(raw) > 0 {
		limit, err = strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		if limit > maxPageSize {
			return nil, errors.Errorf("limit exceeds %d", maxPageSize)
		}
	}
	req.opts = append(req.opts, query.WithLimit(limit))

	if raw := values.Get("order"); len(raw) > 0 {
		direction, err := query.ParseDirection(raw)
		if err != nil {
			return nil, errors.New("order must be asc or desc")
		}
		req.opts = append(req.opts, query.WithDirection(direction))
	}

	if raw := values.Get("cursor"); len(raw) > 0 {
		cursor, err := query.ParseCursor(raw)
		if err != nil {
			return nil, errors.New("cursor is invalid")
		}
		req.opts = append(req.opts, query.WithCursor(cursor))
	}

	if raw := values.Get("status"); len(raw) > 0 {
		switch raw {
		case apologystake.ApologyStatusActive.String():
			req.opts = append(req.opts, apology.WithStatus(apologystake.ApologyStatusActive))
		case apologystake.ApologyStatusCompleted.String():
			req.opts = append(req.opts, apology.WithStatus(apologystake.ApologyStatusCompleted))
		default:
			return nil, errors.New("status must be active or completed")
		}
	}

	return req, nil
}

func newAddressFromHttpContext(r *http.Request) (*common.Account, error) {
	address := r.URL.Query().Get("address")
	if len(address) == 0 {
		return nil, errors.New("address query parameter missing")
	}

	account, err := common.NewAccountFromPublicKeyString(address)
	if err != nil {
		return nil, errors.New("address is not a public key")
	}
	return account, nil
}
