package client

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/solana"
)

// Chain is the ledger the client reads apologies from and submits
// transactions to
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)

	// Submit returns once the transaction has been processed. Transactions
	// that fail return a *solana.TransactionError.
	Submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error)

	// GetSignatureStatus reports whether the transaction with sig was
	// processed. A processed transaction that failed returns true with its
	// *solana.TransactionError.
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (bool, error)

	// GetAccountInfo returns solana.ErrNoAccountInfo for missing accounts
	GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (solana.AccountInfo, error)

	// GetProgramAccounts returns the matching accounts and the slot they
	// were observed at
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, filters ...solana.MemcmpFilter) ([]solana.KeyedAccount, uint64, error)
}

type ledgerChain struct {
	ledger *ledger.Ledger
}

// NewLedgerChain returns a Chain backed by an in process ledger
func NewLedgerChain(l *ledger.Ledger) Chain {
	return &ledgerChain{
		ledger: l,
	}
}

func (c *ledgerChain) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	return c.ledger.GetLatestBlockhash(ctx)
}

func (c *ledgerChain) Submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	_, err := c.ledger.Submit(ctx, txn)
	return txn.Signature(), err
}

func (c *ledgerChain) GetSignatureStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	result, err := c.ledger.GetTransaction(ctx, sig)
	if err == ledger.ErrUnknownTransaction {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if result.Err != nil {
		return true, result.Err
	}
	return true, nil
}

func (c *ledgerChain) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (solana.AccountInfo, error) {
	return c.ledger.GetAccountInfo(ctx, address)
}

func (c *ledgerChain) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, filters ...solana.MemcmpFilter) ([]solana.KeyedAccount, uint64, error) {
	return c.ledger.GetProgramAccounts(ctx, program, filters...)
}

type rpcChain struct {
	client     solana.Client
	commitment solana.Commitment
}

// NewRPCChain returns a Chain backed by a Solana JSON RPC node
func NewRPCChain(client solana.Client, commitment solana.Commitment) Chain {
	return &rpcChain{
		client:     client,
		commitment: commitment,
	}
}

func (c *rpcChain) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	return c.client.GetLatestBlockhash(ctx)
}

func (c *rpcChain) Submit(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SubmitTransaction(ctx, txn, c.commitment)
	if err != nil {
		return sig, err
	}

	// The client polls until the requested commitment is reached
	status, err := c.client.GetSignatureStatus(ctx, sig, c.commitment)
	if err != nil {
		return sig, errors.Wrap(err, "error getting signature status")
	}

	if status.ErrorResult != nil {
		return sig, status.ErrorResult
	}
	return sig, nil
}

func (c *rpcChain) GetSignatureStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	status, err := c.client.GetSignatureStatus(ctx, sig, c.commitment)
	if errors.Is(err, solana.ErrSignatureNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if status.ErrorResult != nil {
		return true, status.ErrorResult
	}
	return true, nil
}

func (c *rpcChain) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (solana.AccountInfo, error) {
	return c.client.GetAccountInfo(ctx, address, c.commitment)
}

func (c *rpcChain) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, filters ...solana.MemcmpFilter) ([]solana.KeyedAccount, uint64, error) {
	return c.client.GetProgramAccounts(ctx, program, c.commitment, filters...)
}
