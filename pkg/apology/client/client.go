package client

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/apology/common"
	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/pointer"
	"github.com/apologystake/stake-server/pkg/retry"
	"github.com/apologystake/stake-server/pkg/retry/backoff"
	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

const (
	metricsStructName = "apology.client"
)

var (
	ErrApologyNotFound  = apologystake.ErrNotFound
	ErrNoVacantNonce    = errors.New("no vacant nonce")
	ErrVictimCannotSign = errors.New("victim is a program address and can never sign")
	ErrSignerRequired   = errors.New("account must have a private key")
)

// Client builds, signs and submits apology stake transactions, and reads
// apologies back from the chain
type Client struct {
	log   *logrus.Entry
	conf  *conf
	chain Chain
}

func New(chain Chain, configProvider ConfigProvider) *Client {
	return &Client{
		log:   logrus.StandardLogger().WithField("type", "apology/client"),
		conf:  configProvider(),
		chain: chain,
	}
}

type InitializeArgs struct {
	Victim *common.Account

	// Nonce is probed for, starting at zero, when nil
	Nonce *int64

	ProbationDays uint64
	StakeAmount   uint64
	Message       string
	VictimHandle  string
}

// Initialize opens an apology from offender, staking args.StakeAmount
// lamports. The offender signs and pays fees.
func (c *Client) Initialize(ctx context.Context, offender *common.Account, args *InitializeArgs) (accounts *common.ApologyAccounts, sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Initialize")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	if offender.PrivateKey() == nil {
		return nil, sig, ErrSignerRequired
	}
	if err := args.Victim.Validate(); err != nil {
		return nil, sig, errors.Wrap(err, "invalid victim")
	}
	if !args.Victim.IsOnCurve() {
		return nil, sig, ErrVictimCannotSign
	}

	log := c.log.WithFields(logrus.Fields{
		"method":   "Initialize",
		"offender": offender.String(),
		"victim":   args.Victim.String(),
		"stake":    args.StakeAmount,
	})

	isProbing := args.Nonce == nil
	nonce := pointer.ValueOr(args.Nonce, 0)

	maxProbes := c.conf.maxNonceProbes.Get(ctx)
	for probes := uint64(0); ; probes++ {
		if isProbing {
			nonce, err = c.FindVacantNonce(ctx, offender, args.Victim, nonce)
			if err != nil {
				return nil, sig, err
			}
		}

		accounts, err = offender.GetApologyAccounts(args.Victim, nonce)
		if err != nil {
			return nil, sig, err
		}

		ix := accounts.GetInitializeInstruction(args.ProbationDays, args.StakeAmount, args.Message, args.VictimHandle)
		sig, err = c.submit(ctx, offender, ix)

		// Someone else took the nonce between probing and submission
		if isProbing && probes+1 < maxProbes && apologystake.GetError(err) == apologystake.ErrAccountAlreadyInUse {
			log.WithField("nonce", nonce).Debug("nonce taken, probing again")
			nonce++
			continue
		}
		break
	}

	if err != nil {
		log.WithError(err).WithField("nonce", nonce).Info("failure initializing apology")
		return nil, sig, err
	}

	log.WithFields(logrus.Fields{
		"nonce":     nonce,
		"apology":   accounts.State.String(),
		"signature": sig.String(),
	}).Debug("apology initialized")
	return accounts, sig, nil
}

// Release returns the stake to the offender. The victim signs and pays fees.
func (c *Client) Release(ctx context.Context, victim *common.Account, apology *common.Account) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Release")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return c.complete(ctx, victim, apology, apologystake.ResolutionReleased)
}

// Claim transfers the stake to the victim. The victim signs and pays fees.
func (c *Client) Claim(ctx context.Context, victim *common.Account, apology *common.Account) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Claim")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return c.complete(ctx, victim, apology, apologystake.ResolutionClaimed)
}

func (c *Client) complete(ctx context.Context, victim *common.Account, apology *common.Account, resolution apologystake.Resolution) (solana.Signature, error) {
	var sig solana.Signature

	if victim.PrivateKey() == nil {
		return sig, ErrSignerRequired
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     "complete",
		"resolution": resolution.String(),
		"victim":     victim.String(),
		"apology":    apology.String(),
	})

	existing, err := c.GetApology(ctx, apology)
	if err != nil {
		return sig, err
	}

	offender, err := common.NewAccountFromPublicKeyBytes(existing.State.Offender)
	if err != nil {
		return sig, errors.Wrap(err, "invalid offender")
	}

	// The signer is passed as is, and the program decides whether they're
	// the recorded victim
	accounts := &common.ApologyAccounts{
		Offender: offender,
		Victim:   victim,
		Nonce:    existing.State.Nonce,
		State:    existing.Address,
		Vault:    existing.Vault,
	}

	ix := accounts.GetClaimInstruction()
	if resolution == apologystake.ResolutionReleased {
		ix = accounts.GetReleaseInstruction()
	}

	sig, err = c.submit(ctx, victim, ix)
	if err != nil {
		log.WithError(err).Info("failure completing apology")
		return sig, err
	}

	log.WithField("signature", sig.String()).Debug("apology completed")
	return sig, nil
}

// FindVacantNonce returns the first nonce at or after start whose apology
// and vault addresses are both unused
func (c *Client) FindVacantNonce(ctx context.Context, offender, victim *common.Account, start int64) (int64, error) {
	maxProbes := c.conf.maxNonceProbes.Get(ctx)

	nonce := start
	for probes := uint64(0); probes < maxProbes; probes++ {
		accounts, err := offender.GetApologyAccounts(victim, nonce)
		if err != nil {
			return 0, err
		}

		stateInUse, err := c.isInUse(ctx, accounts.State)
		if err != nil {
			return 0, err
		}
		vaultInUse, err := c.isInUse(ctx, accounts.Vault)
		if err != nil {
			return 0, err
		}

		if !stateInUse && !vaultInUse {
			return nonce, nil
		}
		nonce++
	}

	return 0, ErrNoVacantNonce
}

func (c *Client) isInUse(ctx context.Context, account *common.Account) (bool, error) {
	_, err := c.chain.GetAccountInfo(ctx, account.ToPublicKey())
	if err == solana.ErrNoAccountInfo {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "error getting account info for %s", account)
	}
	return true, nil
}

// submit signs and submits a single instruction transaction paid for by
// signer.
//
// A transaction is only rebuilt with a fresh blockhash once the chain has
// rejected its blockhash, which proves it never landed. After any other
// transient failure the same signed transaction is resubmitted, after first
// checking whether it was already processed, so a lost response can't
// execute the instruction twice.
func (c *Client) submit(ctx context.Context, signer *common.Account, ix solana.Instruction) (sig solana.Signature, err error) {
	attempts := c.conf.submitAttempts.Get(ctx)
	if attempts == 0 {
		attempts = 1
	}
	delay := c.conf.submitBackoff.Get(ctx)

	submitter := retry.NewRetrier(
		retry.RetriableWhen(isTransient),
		retry.Limit(uint(attempts)),
		retry.Backoff(backoff.Constant(delay), delay),
	)

	var txn *solana.Transaction
	_, err = submitter.Retry(ctx, func() error {
		if txn != nil {
			processed, err := c.chain.GetSignatureStatus(ctx, txn.Signature())
			if processed {
				sig = txn.Signature()
				return err
			} else if err != nil {
				return errors.Wrap(err, "error getting signature status")
			}
		} else {
			blockhash, err := c.chain.GetLatestBlockhash(ctx)
			if err != nil {
				return errors.Wrap(err, "error getting latest blockhash")
			}

			built := solana.NewTransaction(signer.ToPublicKey(), ix)
			built.SetBlockhash(blockhash)
			if err := built.Sign(signer.ToPrivateKey()); err != nil {
				return errors.Wrap(err, "error signing transaction")
			}
			txn = &built
		}

		sig, err = c.chain.Submit(ctx, *txn)
		switch solana.GetTransactionErrorKey(err) {
		case solana.TransactionErrorBlockhashNotFound:
			txn = nil
		case solana.TransactionErrorDuplicateSignature:
			// An earlier submission of txn landed after its status was checked
			processed, statusErr := c.chain.GetSignatureStatus(ctx, sig)
			if processed {
				return statusErr
			}
		}
		return err
	})
	return sig, err
}

// isTransient reports whether a submission may succeed when retried
func isTransient(err error) bool {
	if solana.IsServiceError(err) {
		return true
	}

	return solana.GetTransactionErrorKey(err) == solana.TransactionErrorBlockhashNotFound
}

func isProgramAccount(info solana.AccountInfo) bool {
	return bytes.Equal(info.Owner, apologystake.PROGRAM_ID)
}

func toVaultAccount(apology ed25519.PublicKey) (*common.Account, error) {
	vault, _, err := apologystake.GetVaultAddress(&apologystake.GetVaultAddressArgs{
		Apology: apology,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault address")
	}
	return common.NewAccountFromPublicKeyBytes(vault)
}
