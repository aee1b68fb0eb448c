package client

import (
	"context"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/apology/common"
	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// Apology is an apology account as read from the chain
type Apology struct {
	Address *common.Account
	Vault   *common.Account
	State   *apologystake.ApologyAccount

	// Slot is the slot the state was observed at. It's zero for single
	// account lookups.
	Slot uint64
}

// GetApology reads the apology stored at address
func (c *Client) GetApology(ctx context.Context, address *common.Account) (apology *Apology, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetApology")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	info, err := c.chain.GetAccountInfo(ctx, address.ToPublicKey())
	if err == solana.ErrNoAccountInfo {
		return nil, ErrApologyNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting account info")
	}

	return toApology(solana.KeyedAccount{PublicKey: address.ToPublicKey(), Account: info}, 0)
}

// GetApologiesByOffender returns every apology made by offender, in no
// particular order
func (c *Client) GetApologiesByOffender(ctx context.Context, offender *common.Account) (apologies []*Apology, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetApologiesByOffender")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return c.getApologies(ctx, solana.MemcmpFilter{
		Offset: apologystake.ApologyOffenderOffset,
		Bytes:  offender.ToPublicKey(),
	})
}

// GetApologiesByVictim returns every apology made to victim, in no
// particular order
func (c *Client) GetApologiesByVictim(ctx context.Context, victim *common.Account) (apologies []*Apology, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetApologiesByVictim")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return c.getApologies(ctx, solana.MemcmpFilter{
		Offset: apologystake.ApologyVictimOffset,
		Bytes:  victim.ToPublicKey(),
	})
}

// GetAllApologies returns every apology on chain
func (c *Client) GetAllApologies(ctx context.Context) (apologies []*Apology, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAllApologies")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return c.getApologies(ctx)
}

func (c *Client) getApologies(ctx context.Context, filters ...solana.MemcmpFilter) ([]*Apology, error) {
	// Vaults and any other program accounts are excluded by the discriminator
	filters = append([]solana.MemcmpFilter{{Offset: 0, Bytes: apologystake.ApologyAccountDiscriminator}}, filters...)

	accounts, slot, err := c.chain.GetProgramAccounts(ctx, apologystake.PROGRAM_ID, filters...)
	if err != nil {
		return nil, errors.Wrap(err, "error getting program accounts")
	}

	apologies := make([]*Apology, 0, len(accounts))
	for _, account := range accounts {
		apology, err := toApology(account, slot)
		if err == ErrApologyNotFound {
			c.log.WithField("address", base58.Encode(account.PublicKey)).Debug("skipping undecodable program account")
			continue
		} else if err != nil {
			return nil, err
		}
		apologies = append(apologies, apology)
	}
	return apologies, nil
}

func toApology(account solana.KeyedAccount, slot uint64) (*Apology, error) {
	if !isProgramAccount(account.Account) {
		return nil, ErrApologyNotFound
	}

	var state apologystake.ApologyAccount
	if err := state.Unmarshal(account.Account.Data); err != nil {
		return nil, ErrApologyNotFound
	}

	address, err := common.NewAccountFromPublicKeyBytes(account.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid apology address")
	}

	vault, err := toVaultAccount(account.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Apology{
		Address: address,
		Vault:   vault,
		State:   &state,
		Slot:    slot,
	}, nil
}
