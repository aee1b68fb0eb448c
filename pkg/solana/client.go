package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/apologystake/stake-server/pkg/retry"
	"github.com/apologystake/stake-server/pkg/retry/backoff"
)

const (
	slotDuration = 400 * time.Millisecond

	// Signature statuses are polled at twice the slot rate for ~32 slots
	defaultPollInterval = slotDuration / 2
	defaultPollLimit    = 2 * 32

	blockhashCacheWindow = 2 * time.Second
	requestTimeout       = 30 * time.Second

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")

	errRateLimited             = errors.New("rate limited")
	errServiceError            = errors.New("service error")
	errConfirmationsNotReached = errors.New("confirmations not reached")
)

// AccountInfo contains the Solana account information
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// KeyedAccount is an AccountInfo along with the address it lives at
type KeyedAccount struct {
	PublicKey ed25519.PublicKey
	Account   AccountInfo
}

// MemcmpFilter restricts program account queries to accounts whose data
// contains Bytes at Offset.
type MemcmpFilter struct {
	Offset uint
	Bytes  []byte
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Nil once the transaction has been rooted
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() || s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}
	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

func (s SignatureStatus) reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	default:
		return true
	}
}

// Client is the subset of the Solana JSON RPC API used to read apology
// accounts and land transactions.
//
// Reference: https://docs.solana.com/api/http
type Client interface {
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...MemcmpFilter) ([]KeyedAccount, uint64, error)
	GetSignatureStatus(ctx context.Context, sig Signature, commitment Commitment) (*SignatureStatus, error)
	SubmitTransaction(ctx context.Context, txn Transaction, commitment Commitment) (Signature, error)
}

type client struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	pollInterval time.Duration
	pollLimit    uint

	blockMu   sync.RWMutex
	blockhash Blockhash
	lastWrite time.Time
}

// New returns a client for the RPC node at endpoint. Rate limits and node
// health failures are retried with backoff.
func New(endpoint string) Client {
	return newClient(
		endpoint,
		retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		defaultPollInterval,
		defaultPollLimit,
	)
}

func newClient(endpoint string, retrier retry.Retrier, pollInterval time.Duration, pollLimit uint) *client {
	return &client{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		rpc: jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: requestTimeout},
		}),
		retrier:      retrier,
		pollInterval: pollInterval,
		pollLimit:    pollLimit,
	}
}

func (c *client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(ctx, func() error {
		err := c.rpc.CallFor(out, method, params...)
		if err == nil {
			return nil
		}
		return c.classify(method, err)
	})
	return err
}

func (c *client) classify(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}

	switch {
	case rpcErr.Code == http.StatusTooManyRequests:
		c.log.WithField("method", method).Warn("rate limited")
		return errRateLimited
	case rpcErr.Code >= http.StatusInternalServerError, rpcErr.Code == rpcNodeUnhealthyCode:
		return errServiceError
	default:
		return err
	}
}

// IsServiceError reports whether err is a transient RPC node failure that
// outlived the client's internal retries.
func IsServiceError(err error) bool {
	return errors.Is(err, errServiceError) || errors.Is(err, errRateLimited)
}

// GetLatestBlockhash serves a cached blockhash for a short, randomized window
// so concurrent submitters don't all refresh at once.
func (c *client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	window := time.Duration(float64(blockhashCacheWindow) * (0.8 + rand.Float64()))

	c.blockMu.RLock()
	hash, lastWrite := c.blockhash, c.lastWrite
	c.blockMu.RUnlock()

	if hash != (Blockhash{}) && time.Since(lastWrite) < window {
		return hash, nil
	}

	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getLatestBlockhash"); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	decoded, err := base58.Decode(resp.Value.Blockhash)
	if err != nil || len(decoded) != len(hash) {
		return Blockhash{}, errors.New("invalid blockhash in response")
	}
	copy(hash[:], decoded)

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, nil
}

// SubmitTransaction sends txn without preflight. Transaction and instruction
// failures reported by the node are returned as a *TransactionError.
func (c *client) SubmitTransaction(ctx context.Context, txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signature()

	config := struct {
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		SkipPreflight:       true,
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(ctx, &ignored, "sendTransaction", base58.Encode(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed to send request")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithError(txErr).Debug("transaction rejected")
	return sig, txErr
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
}

func (a rpcAccount) toAccountInfo() (AccountInfo, error) {
	owner, err := base58.Decode(a.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base58 encoded owner")
	}

	var data []byte
	if len(a.Data) > 0 {
		data, err = base64.StdEncoding.DecodeString(a.Data[0])
		if err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
		}
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   a.Lamports,
		Executable: a.Executable,
	}, nil
}

func (c *client) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp struct {
		Value *rpcAccount `json:"value"`
	}
	if err := c.call(ctx, &resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}
	return resp.Value.toAccountInfo()
}

// GetProgramAccounts returns every account owned by program matching all
// filters, along with the slot the node evaluated the query at.
func (c *client) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...MemcmpFilter) ([]KeyedAccount, uint64, error) {
	type memcmp struct {
		Offset uint   `json:"offset"`
		Bytes  string `json:"bytes"`
	}
	type filter struct {
		Memcmp memcmp `json:"memcmp"`
	}

	config := struct {
		Commitment  string   `json:"commitment"`
		Encoding    string   `json:"encoding"`
		Filters     []filter `json:"filters,omitempty"`
		WithContext bool     `json:"withContext"`
	}{
		Commitment:  commitment.Commitment,
		Encoding:    "base64",
		WithContext: true,
	}
	for _, f := range filters {
		config.Filters = append(config.Filters, filter{Memcmp: memcmp{Offset: f.Offset, Bytes: base58.Encode(f.Bytes)}})
	}

	var resp struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value []struct {
			PubKey  string     `json:"pubkey"`
			Account rpcAccount `json:"account"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getProgramAccounts", base58.Encode(program), config); err != nil {
		return nil, 0, errors.Wrap(err, "getProgramAccounts() failed to send request")
	}

	res := make([]KeyedAccount, 0, len(resp.Value))
	for _, keyed := range resp.Value {
		key, err := base58.Decode(keyed.PubKey)
		if err != nil {
			return nil, 0, errors.Wrap(err, "invalid base58 encoded account address")
		}

		info, err := keyed.Account.toAccountInfo()
		if err != nil {
			return nil, 0, err
		}

		res = append(res, KeyedAccount{PublicKey: key, Account: info})
	}
	return res, resp.Context.Slot, nil
}

// GetSignatureStatus polls until sig reaches commitment or fails. Failed
// transactions return a status with ErrorResult set and no error.
func (c *client) GetSignatureStatus(ctx context.Context, sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var status *SignatureStatus
	poller := retry.NewRetrier(
		retry.RetriableErrors(ErrSignatureNotFound, errConfirmationsNotReached),
		retry.Limit(c.pollLimit),
		retry.Backoff(backoff.Constant(c.pollInterval), c.pollInterval),
	)

	_, err := poller.Retry(ctx, func() error {
		var err error
		status, err = c.getSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			return err
		case status == nil:
			return ErrSignatureNotFound
		case status.ErrorResult != nil, status.reached(commitment):
			return nil
		default:
			return errConfirmationsNotReached
		}
	})
	return status, err
}

func (c *client) getSignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error) {
	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp struct {
		Value []*struct {
			Slot               uint64          `json:"slot"`
			Confirmations      *int            `json:"confirmations"`
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getSignatureStatuses", []string{base58.Encode(sig[:])}, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return nil, nil
	}

	v := resp.Value[0]
	txErr, err := ParseTransactionError(v.Err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction result")
	}

	return &SignatureStatus{
		Slot:               v.Slot,
		ErrorResult:        txErr,
		Confirmations:      v.Confirmations,
		ConfirmationStatus: v.ConfirmationStatus,
	}, nil
}
