package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/metrics"
	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/system"
	sync_util "github.com/apologystake/stake-server/pkg/sync"
)

const (
	metricsStructName = "ledger.Ledger"

	successfulTransactionMetricName = "Ledger/successful_transactions"
	failedTransactionMetricName     = "Ledger/failed_transactions"
)

// NativeLoader owns the executable accounts of registered programs
var NativeLoader = mustDecode("NativeLoader1111111111111111111111111111111")

// TransactionResult is the outcome of a processed transaction. Failed
// transactions still charge their fee and are recorded.
type TransactionResult struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime time.Time
	Fee       uint64
	Logs      []string
	Err       *solana.TransactionError
}

// Ledger is an in process account store and transaction processor. Each
// transaction executes against a private copy of the accounts it references
// and is committed only after every instruction and runtime check passes.
type Ledger struct {
	log   *logrus.Entry
	conf  *conf
	clock Clock

	programsMu sync.RWMutex
	programs   map[string]Program

	accountLocks *sync_util.StripedLock

	accountsMu sync.RWMutex
	accounts   map[string]*solana.AccountInfo

	stateMu      sync.RWMutex
	slot         uint64
	blockhashes  []solana.Blockhash
	transactions map[solana.Signature]*TransactionResult
}

// New returns a ledger with the builtin system program registered
func New(clock Clock, configProvider ConfigProvider) *Ledger {
	l := &Ledger{
		log:          logrus.StandardLogger().WithField("type", "apology/ledger"),
		conf:         configProvider(),
		clock:        clock,
		programs:     make(map[string]Program),
		accountLocks: sync_util.NewStripedLock(1024),
		accounts:     make(map[string]*solana.AccountInfo),
		transactions: make(map[solana.Signature]*TransactionResult),
	}

	genesis := sha256.Sum256([]byte("genesis"))
	l.blockhashes = []solana.Blockhash{genesis}

	if err := l.RegisterProgram(systemProgram{}); err != nil {
		panic(err)
	}

	return l
}

// RegisterProgram makes a program executable on the ledger
func (l *Ledger) RegisterProgram(program Program) error {
	id := program.ProgramID()

	l.programsMu.Lock()
	defer l.programsMu.Unlock()

	if _, ok := l.programs[string(id)]; ok {
		return ErrProgramRegistered
	}
	l.programs[string(id)] = program

	l.accountsMu.Lock()
	l.accounts[string(id)] = &solana.AccountInfo{
		Lamports:   1,
		Owner:      NativeLoader,
		Executable: true,
	}
	l.accountsMu.Unlock()

	return nil
}

// Airdrop credits lamports to an account, creating it if necessary
func (l *Ledger) Airdrop(ctx context.Context, account ed25519.PublicKey, lamports uint64) error {
	unlock := l.accountLocks.LockMany([][]byte{account}, nil)
	defer unlock()

	l.accountsMu.Lock()
	defer l.accountsMu.Unlock()

	existing, ok := l.accounts[string(account)]
	if !ok {
		existing = emptyAccount()
	}

	credited, carry := bits.Add64(existing.Lamports, lamports, 0)
	if carry != 0 {
		return errors.New("airdrop overflows account balance")
	}

	updated := cloneAccount(existing)
	updated.Lamports = credited
	l.accounts[string(account)] = updated

	l.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"account":  base58.Encode(account),
		"lamports": lamports,
	}).Trace("airdropped lamports")

	return nil
}

// GetAccountInfo returns the account at address, or solana.ErrNoAccountInfo
func (l *Ledger) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (solana.AccountInfo, error) {
	l.accountsMu.RLock()
	defer l.accountsMu.RUnlock()

	account, ok := l.accounts[string(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return *cloneAccount(account), nil
}

// GetBalance returns the lamports held at address, which is zero for
// accounts that don't exist
func (l *Ledger) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	l.accountsMu.RLock()
	defer l.accountsMu.RUnlock()

	account, ok := l.accounts[string(address)]
	if !ok {
		return 0, nil
	}
	return account.Lamports, nil
}

// GetProgramAccounts returns all accounts owned by program whose data
// matches every filter, ordered by address, along with the current slot
func (l *Ledger) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, filters ...solana.MemcmpFilter) ([]solana.KeyedAccount, uint64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetProgramAccounts")
	defer tracer.End()

	slot, _ := l.GetSlot(ctx)

	l.accountsMu.RLock()
	defer l.accountsMu.RUnlock()

	var res []solana.KeyedAccount
	for key, account := range l.accounts {
		if !bytes.Equal(account.Owner, program) {
			continue
		}
		if !matchesFilters(account.Data, filters) {
			continue
		}

		res = append(res, solana.KeyedAccount{
			PublicKey: ed25519.PublicKey(key),
			Account:   *cloneAccount(account),
		})
	}

	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].PublicKey, res[j].PublicKey) < 0
	})
	return res, slot, nil
}

func (l *Ledger) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.blockhashes[len(l.blockhashes)-1], nil
}

func (l *Ledger) GetSlot(ctx context.Context) (uint64, error) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.slot, nil
}

// GetClock returns the Clock sysvar programs currently observe
func (l *Ledger) GetClock(ctx context.Context) (system.ClockAccount, error) {
	slot, _ := l.GetSlot(ctx)
	return system.ClockAccount{
		Slot:          slot,
		UnixTimestamp: l.clock.Now().Unix(),
	}, nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return l.getRent(ctx).MinimumBalance(size), nil
}

// GetTransaction returns the recorded result of a processed transaction
func (l *Ledger) GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionResult, error) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()

	result, ok := l.transactions[sig]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	return result, nil
}

// Submit processes a signed transaction. Transactions rejected before
// execution return no result. Transactions that fail during execution
// return their result along with the *solana.TransactionError, and only the
// fee is charged.
func (l *Ledger) Submit(ctx context.Context, txn solana.Transaction) (result *TransactionResult, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Submit")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	if txErr := sanitize(txn); txErr != nil {
		return nil, txErr
	}

	sig := txn.Signature()
	m := txn.Message

	log := l.log.WithFields(logrus.Fields{
		"method":    "Submit",
		"signature": sig.String(),
	})

	if err := txn.VerifySignatures(); err != nil {
		log.WithError(err).Debug("signature verification failed")
		return nil, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	if !l.isRecentBlockhash(m.RecentBlockhash) {
		return nil, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	var writeKeys, readKeys [][]byte
	for i, key := range m.Accounts {
		if m.IsWritable(i) {
			writeKeys = append(writeKeys, key)
		} else {
			readKeys = append(readKeys, key)
		}
	}
	unlock := l.accountLocks.LockMany(writeKeys, readKeys)
	defer unlock()

	if l.hasTransaction(sig) {
		return nil, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	working := l.load(m.Accounts)

	fee := l.conf.lamportsPerSignature.Get(ctx) * uint64(len(txn.Signatures))
	payer := working[0]
	if fee > 0 && !accountExists(payer) {
		return nil, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}
	if payer.Lamports < fee {
		return nil, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}
	payer.Lamports -= fee
	feeCharged := cloneAccount(payer)

	clock, _ := l.GetClock(ctx)
	rent := l.getRent(ctx)

	l.programsMu.RLock()
	ic := newInvokeContext(clock, rent, l.programs)
	txErr := l.execute(ic, m, working)
	l.programsMu.RUnlock()

	if txErr == nil {
		txErr = checkRent(m, working, rent)
	}

	l.accountsMu.Lock()
	if txErr == nil {
		for i, key := range m.Accounts {
			if m.IsWritable(i) {
				l.store(key, working[i])
			}
		}
	} else if fee > 0 {
		l.store(m.Accounts[0], feeCharged)
	}
	l.accountsMu.Unlock()

	result = &TransactionResult{
		Signature: sig,
		BlockTime: l.clock.Now(),
		Fee:       fee,
		Logs:      ic.logs,
		Err:       txErr,
	}
	l.record(result)

	if txErr != nil {
		metrics.RecordCount(ctx, failedTransactionMetricName, 1)
		log.WithError(txErr).WithField("slot", result.Slot).Info("transaction failed")
		return result, txErr
	}

	metrics.RecordCount(ctx, successfulTransactionMetricName, 1)
	log.WithField("slot", result.Slot).Debug("transaction processed")
	return result, nil
}

func (l *Ledger) execute(ic *InvokeContext, m solana.Message, working []*solana.AccountInfo) *solana.TransactionError {
	for i, ix := range m.Instructions {
		program, ok := l.programs[string(m.Accounts[ix.ProgramIndex])]
		if !ok {
			return solana.NewTransactionError(solana.TransactionErrorInvalidProgramForExecution)
		}

		accounts := make([]*AccountInfo, len(ix.Accounts))
		for j, index := range ix.Accounts {
			accounts[j] = &AccountInfo{
				Key:        m.Accounts[index],
				IsSigner:   m.IsSigner(int(index)),
				IsWritable: m.IsWritable(int(index)),
				state:      working[index],
			}
		}

		if err := ic.process(program, accounts, ix.Data); err != nil {
			return solana.NewInstructionTransactionError(toInstructionError(i, err))
		}
	}
	return nil
}

// checkRent requires every writable account holding data to be rent exempt.
// Accounts without data are never charged.
func checkRent(m solana.Message, working []*solana.AccountInfo, rent system.RentAccount) *solana.TransactionError {
	for i := range m.Accounts {
		if !m.IsWritable(i) || len(working[i].Data) == 0 {
			continue
		}
		if working[i].Lamports < rent.MinimumBalance(uint64(len(working[i].Data))) {
			return solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForRent)
		}
	}
	return nil
}

func (l *Ledger) load(keys []ed25519.PublicKey) []*solana.AccountInfo {
	l.accountsMu.RLock()
	defer l.accountsMu.RUnlock()

	working := make([]*solana.AccountInfo, len(keys))
	for i, key := range keys {
		if account, ok := l.accounts[string(key)]; ok {
			working[i] = cloneAccount(account)
		} else {
			working[i] = emptyAccount()
		}
	}
	return working
}

// store must be called with accountsMu held
func (l *Ledger) store(key ed25519.PublicKey, account *solana.AccountInfo) {
	if !accountExists(account) {
		delete(l.accounts, string(key))
		return
	}
	l.accounts[string(key)] = account
}

func (l *Ledger) getRent(ctx context.Context) system.RentAccount {
	return system.RentAccount{
		LamportsPerByteYear: l.conf.rentLamportsPerByteYear.Get(ctx),
		ExemptionYears:      l.conf.rentExemptionYears.Get(ctx),
	}
}

func (l *Ledger) isRecentBlockhash(blockhash solana.Blockhash) bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()

	for _, recent := range l.blockhashes {
		if recent == blockhash {
			return true
		}
	}
	return false
}

func (l *Ledger) hasTransaction(sig solana.Signature) bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()

	_, ok := l.transactions[sig]
	return ok
}

// record stores the result and advances the ledger by one slot
func (l *Ledger) record(result *TransactionResult) {
	window := int(l.conf.recentBlockhashWindow.Get(context.Background()))
	if window < 1 {
		window = 1
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	result.Slot = l.slot
	l.transactions[result.Signature] = result

	l.slot++

	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], l.slot)
	previous := l.blockhashes[len(l.blockhashes)-1]
	next := sha256.Sum256(append(previous[:], slotBytes[:]...))

	l.blockhashes = append(l.blockhashes, next)
	if len(l.blockhashes) > window {
		l.blockhashes = l.blockhashes[len(l.blockhashes)-window:]
	}
}

func sanitize(txn solana.Transaction) *solana.TransactionError {
	m := txn.Message

	if len(txn.Signatures) == 0 {
		return solana.NewTransactionError(solana.TransactionErrorMissingSignatureForFee)
	}
	if int(m.Header.NumSignatures) != len(txn.Signatures) ||
		int(m.Header.NumSignatures) > len(m.Accounts) ||
		m.Header.NumReadonlySigned >= m.Header.NumSignatures ||
		int(m.Header.NumSignatures)+int(m.Header.NumReadOnly) > len(m.Accounts) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if len(txn.Marshal()) > solana.MaxTransactionSize {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	seen := make(map[string]struct{}, len(m.Accounts))
	for _, key := range m.Accounts {
		if len(key) != ed25519.PublicKeySize {
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}
		if _, ok := seen[string(key)]; ok {
			return solana.NewTransactionError(solana.TransactionErrorAccountLoadedTwice)
		}
		seen[string(key)] = struct{}{}
	}

	for _, ix := range m.Instructions {
		if int(ix.ProgramIndex) >= len(m.Accounts) || ix.ProgramIndex == 0 {
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}
		for _, index := range ix.Accounts {
			if int(index) >= len(m.Accounts) {
				return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
			}
		}
	}

	return nil
}

func matchesFilters(data []byte, filters []solana.MemcmpFilter) bool {
	for _, filter := range filters {
		end := int(filter.Offset) + len(filter.Bytes)
		if end > len(data) {
			return false
		}
		if !bytes.Equal(data[filter.Offset:end], filter.Bytes) {
			return false
		}
	}
	return true
}

func mustDecode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
