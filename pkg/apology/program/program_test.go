package program

import (
	"context"
	"crypto/ed25519"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/apology/common"
	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
	"github.com/apologystake/stake-server/pkg/solana/system"
	"github.com/apologystake/stake-server/pkg/testutil"
)

const (
	startingBalance = 10_000_000_000
	oneDay          = 24 * time.Hour
)

var startTime = time.Unix(1_700_000_000, 0)

type testEnv struct {
	ctx    context.Context
	ledger *ledger.Ledger
	clock  *ledger.ManualClock
	rent   uint64

	offender *common.Account
	victim   *common.Account
}

func setup(t *testing.T) *testEnv {
	clock := ledger.NewManualClock(startTime)
	l := ledger.New(clock, ledger.WithTestOverrides(&ledger.TestOverrides{}))
	require.NoError(t, Register(l))

	env := &testEnv{
		ctx:      context.Background(),
		ledger:   l,
		clock:    clock,
		offender: testutil.NewRandomAccount(t),
		victim:   testutil.NewRandomAccount(t),
	}

	rent, err := l.GetMinimumBalanceForRentExemption(env.ctx, apologystake.ApologyAccountSize)
	require.NoError(t, err)
	env.rent = rent

	env.fund(t, env.offender, startingBalance)
	env.fund(t, env.victim, startingBalance)
	return env
}

func (e *testEnv) fund(t *testing.T, account *common.Account, lamports uint64) {
	require.NoError(t, e.ledger.Airdrop(e.ctx, account.ToPublicKey(), lamports))
}

func (e *testEnv) accounts(t *testing.T, nonce int64) *common.ApologyAccounts {
	accounts, err := e.offender.GetApologyAccounts(e.victim, nonce)
	require.NoError(t, err)
	return accounts
}

func (e *testEnv) submit(t *testing.T, payer *common.Account, instructions ...solana.Instruction) (*ledger.TransactionResult, error) {
	return e.submitSignedBy(t, payer, nil, instructions...)
}

func (e *testEnv) submitSignedBy(t *testing.T, payer *common.Account, signers []*common.Account, instructions ...solana.Instruction) (*ledger.TransactionResult, error) {
	txn := solana.NewTransaction(payer.ToPublicKey(), instructions...)

	blockhash, err := e.ledger.GetLatestBlockhash(e.ctx)
	require.NoError(t, err)
	txn.SetBlockhash(blockhash)

	keys := []ed25519.PrivateKey{payer.ToPrivateKey()}
	for _, signer := range signers {
		keys = append(keys, signer.ToPrivateKey())
	}
	require.NoError(t, txn.Sign(keys...))

	return e.ledger.Submit(e.ctx, txn)
}

func (e *testEnv) initialize(t *testing.T, nonce int64, stake uint64, probationDays uint64) *common.ApologyAccounts {
	accounts := e.accounts(t, nonce)
	_, err := e.submit(t, e.offender, accounts.GetInitializeInstruction(probationDays, stake, "sorry", "@victim"))
	require.NoError(t, err)
	return accounts
}

func (e *testEnv) record(t *testing.T, accounts *common.ApologyAccounts) *apologystake.ApologyAccount {
	info, err := e.ledger.GetAccountInfo(e.ctx, accounts.State.ToPublicKey())
	require.NoError(t, err)

	var record apologystake.ApologyAccount
	require.NoError(t, record.Unmarshal(info.Data))
	return &record
}

func (e *testEnv) balance(t *testing.T, account *common.Account) uint64 {
	balance, err := e.ledger.GetBalance(e.ctx, account.ToPublicKey())
	require.NoError(t, err)
	return balance
}

func (e *testEnv) total(t *testing.T, accounts *common.ApologyAccounts) uint64 {
	return e.balance(t, e.offender) + e.balance(t, e.victim) + e.balance(t, accounts.State) + e.balance(t, accounts.Vault)
}

func requireProgramError(t *testing.T, err error, expected *apologystake.ProgramError) {
	require.Error(t, err)
	assert.Equal(t, expected, apologystake.GetError(err), err.Error())
}

func requireRuntimeError(t *testing.T, err error, expected ledger.RuntimeError) {
	require.Error(t, err)

	ixErr := solana.GetInstructionError(err)
	require.NotNil(t, ixErr, err.Error())
	assert.Equal(t, expected.Error(), ixErr.Err.Error())
}

func TestInitialize(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)

	result, err := env.submit(t, env.offender, accounts.GetInitializeInstruction(1, 100, "sorry", "@victim"))
	require.NoError(t, err)

	record := env.record(t, accounts)
	assert.EqualValues(t, env.offender.ToPublicKey(), record.Offender)
	assert.EqualValues(t, env.victim.ToPublicKey(), record.Victim)
	assert.EqualValues(t, 0, record.Nonce)
	assert.EqualValues(t, 100, record.StakeAmount)
	assert.Equal(t, startTime.Unix(), record.CreatedAt)
	assert.Equal(t, startTime.Add(oneDay).Unix(), record.ProbationEnd)
	assert.Equal(t, apologystake.ApologyStatusActive, record.Status)
	assert.Equal(t, apologystake.ResolutionNone, record.Resolution)
	assert.Equal(t, "sorry", record.Message)
	assert.Equal(t, "@victim", record.VictimHandle)

	assert.EqualValues(t, 100, env.balance(t, accounts.Vault))
	assert.EqualValues(t, env.rent, env.balance(t, accounts.State))
	assert.EqualValues(t, startingBalance-env.rent-100, env.balance(t, env.offender))

	state, err := env.ledger.GetAccountInfo(env.ctx, accounts.State.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, apologystake.PROGRAM_ID, state.Owner)
	assert.Len(t, state.Data, apologystake.ApologyAccountSize)

	vault, err := env.ledger.GetAccountInfo(env.ctx, accounts.Vault.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, apologystake.PROGRAM_ID, vault.Owner)
	assert.Empty(t, vault.Data)

	events, err := apologystake.ParseEventLogs(result.Logs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	created, ok := events[0].(*apologystake.ApologyCreatedEvent)
	require.True(t, ok)
	assert.EqualValues(t, accounts.State.ToPublicKey(), created.Apology)
	assert.EqualValues(t, env.offender.ToPublicKey(), created.Offender)
	assert.EqualValues(t, env.victim.ToPublicKey(), created.Victim)
	assert.EqualValues(t, 100, created.StakeAmount)
	assert.EqualValues(t, 1, created.ProbationDays)
	assert.Equal(t, "@victim", created.VictimHandle)
}

func TestInitialize_Uniqueness(t *testing.T) {
	env := setup(t)
	first := env.initialize(t, 0, 100, 1)

	_, err := env.submit(t, env.offender, first.GetInitializeInstruction(2, 500, "sorry again", ""))
	requireProgramError(t, err, apologystake.ErrAccountAlreadyInUse)

	record := env.record(t, first)
	assert.EqualValues(t, 100, record.StakeAmount)
	assert.EqualValues(t, 100, env.balance(t, first.Vault))

	second := env.initialize(t, 1, 200, 1)
	assert.False(t, first.State.Equals(second.State))
	assert.False(t, first.Vault.Equals(second.Vault))
	assert.EqualValues(t, 200, env.balance(t, second.Vault))
}

func TestInitialize_AddressSquatting(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)

	// Lamports sent to the vault ahead of time occupy the address
	_, err := env.submit(t, env.victim, system.Transfer(env.victim.ToPublicKey(), accounts.Vault.ToPublicKey(), 1))
	require.NoError(t, err)

	_, err = env.submit(t, env.offender, accounts.GetInitializeInstruction(1, 100, "sorry", ""))
	requireProgramError(t, err, apologystake.ErrAccountAlreadyInUse)
}

func TestInitialize_Validation(t *testing.T) {
	for _, tc := range []struct {
		name          string
		victimIsSelf  bool
		probationDays uint64
		stake         uint64
		message       string
		victimHandle  string
		expected      *apologystake.ProgramError
	}{
		{name: "self apology", victimIsSelf: true, probationDays: 1, stake: 100, message: "sorry", expected: apologystake.ErrInvalidVictim},
		{name: "zero probation", probationDays: 0, stake: 100, message: "sorry", expected: apologystake.ErrInvalidProbationDays},
		{name: "probation overflow", probationDays: math.MaxUint64 / 2, stake: 100, message: "sorry", expected: apologystake.ErrInvalidProbationDays},
		{name: "probation past max timestamp", probationDays: math.MaxInt64 / apologystake.SecondsPerDay, stake: 100, message: "sorry", expected: apologystake.ErrInvalidProbationDays},
		{name: "empty message", probationDays: 1, stake: 100, message: "", expected: apologystake.ErrEmptyMessage},
		{name: "message too long", probationDays: 1, stake: 100, message: strings.Repeat("a", apologystake.MaxMessageLength+1), expected: apologystake.ErrMessageTooLong},
		{name: "victim handle too long", probationDays: 1, stake: 100, message: "sorry", victimHandle: strings.Repeat("a", apologystake.MaxVictimHandleLength+1), expected: apologystake.ErrVictimHandleTooLong},
		{name: "stake overflow", probationDays: 1, stake: math.MaxUint64, message: "sorry", expected: apologystake.ErrInvalidStakeAmount},
		{name: "insufficient funds", probationDays: 1, stake: startingBalance, message: "sorry", expected: apologystake.ErrInsufficientFunds},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)

			victim := env.victim
			if tc.victimIsSelf {
				victim = env.offender
			}
			accounts, err := env.offender.GetApologyAccounts(victim, 0)
			require.NoError(t, err)

			_, err = env.submit(t, env.offender, accounts.GetInitializeInstruction(tc.probationDays, tc.stake, tc.message, tc.victimHandle))
			requireProgramError(t, err, tc.expected)

			_, err = env.ledger.GetAccountInfo(env.ctx, accounts.State.ToPublicKey())
			assert.Equal(t, solana.ErrNoAccountInfo, err)
			_, err = env.ledger.GetAccountInfo(env.ctx, accounts.Vault.ToPublicKey())
			assert.Equal(t, solana.ErrNoAccountInfo, err)
			assert.EqualValues(t, startingBalance, env.balance(t, env.offender))
		})
	}
}

func TestInitialize_BoundaryLengths(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)

	message := strings.Repeat("m", apologystake.MaxMessageLength)
	handle := strings.Repeat("h", apologystake.MaxVictimHandleLength)
	_, err := env.submit(t, env.offender, accounts.GetInitializeInstruction(1, 1, message, handle))
	require.NoError(t, err)

	record := env.record(t, accounts)
	assert.Equal(t, message, record.Message)
	assert.Equal(t, handle, record.VictimHandle)
}

func TestInitialize_AccountChecks(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)
	other := env.accounts(t, 1)

	wrongState := accounts.GetInitializeInstruction(1, 100, "sorry", "")
	wrongState.Accounts[0].PublicKey = other.State.ToPublicKey()
	_, err := env.submit(t, env.offender, wrongState)
	requireProgramError(t, err, apologystake.ErrInvalidAccountAddress)

	wrongVault := accounts.GetInitializeInstruction(1, 100, "sorry", "")
	wrongVault.Accounts[3].PublicKey = other.Vault.ToPublicKey()
	_, err = env.submit(t, env.offender, wrongVault)
	requireProgramError(t, err, apologystake.ErrInvalidAccountAddress)

	// The victim pays, so the offender's signature is never collected
	unsigned := accounts.GetInitializeInstruction(1, 100, "sorry", "")
	unsigned.Accounts[1].IsSigner = false
	_, err = env.submit(t, env.victim, unsigned)
	requireRuntimeError(t, err, ledger.ErrMissingRequiredSignature)

	malformed := accounts.GetInitializeInstruction(1, 100, "sorry", "")
	malformed.Data = malformed.Data[:len(malformed.Data)-1]
	_, err = env.submit(t, env.offender, malformed)
	requireProgramError(t, err, apologystake.ErrInvalidInstructionData)

	unknown := accounts.GetInitializeInstruction(1, 100, "sorry", "")
	unknown.Data = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err = env.submit(t, env.offender, unknown)
	requireProgramError(t, err, apologystake.ErrInvalidInstructionData)

	assert.EqualValues(t, startingBalance, env.balance(t, env.offender))
}

func TestRelease(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 100, 1)
	total := env.total(t, accounts)
	offenderBalance := env.balance(t, env.offender)

	env.clock.Advance(oneDay - time.Second)
	_, err := env.submit(t, env.victim, accounts.GetReleaseInstruction())
	requireProgramError(t, err, apologystake.ErrProbationNotEnded)

	env.clock.Advance(time.Second)
	result, err := env.submit(t, env.victim, accounts.GetReleaseInstruction())
	require.NoError(t, err)

	assert.EqualValues(t, offenderBalance+100, env.balance(t, env.offender))
	assert.EqualValues(t, 0, env.balance(t, accounts.Vault))
	assert.Equal(t, total, env.total(t, accounts))

	record := env.record(t, accounts)
	assert.Equal(t, apologystake.ApologyStatusCompleted, record.Status)
	assert.Equal(t, apologystake.ResolutionReleased, record.Resolution)

	events, err := apologystake.ParseEventLogs(result.Logs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	completed, ok := events[0].(*apologystake.ApologyCompletedEvent)
	require.True(t, ok)
	assert.EqualValues(t, accounts.State.ToPublicKey(), completed.Apology)
	assert.Equal(t, apologystake.ResolutionReleased, completed.Resolution)

	// The vault persists with a zero balance
	vault, err := env.ledger.GetAccountInfo(env.ctx, accounts.Vault.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, apologystake.PROGRAM_ID, vault.Owner)
}

func TestClaim(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 100, 1)
	total := env.total(t, accounts)
	victimBalance := env.balance(t, env.victim)

	_, err := env.submit(t, env.victim, accounts.GetClaimInstruction())
	requireProgramError(t, err, apologystake.ErrProbationNotEnded)

	env.clock.Advance(2 * oneDay)
	_, err = env.submit(t, env.victim, accounts.GetClaimInstruction())
	require.NoError(t, err)

	assert.EqualValues(t, victimBalance+100, env.balance(t, env.victim))
	assert.EqualValues(t, 0, env.balance(t, accounts.Vault))
	assert.Equal(t, total, env.total(t, accounts))

	record := env.record(t, accounts)
	assert.Equal(t, apologystake.ApologyStatusCompleted, record.Status)
	assert.Equal(t, apologystake.ResolutionClaimed, record.Resolution)
}

func TestTerminalState(t *testing.T) {
	for _, first := range []apologystake.Resolution{apologystake.ResolutionReleased, apologystake.ResolutionClaimed} {
		t.Run(first.String(), func(t *testing.T) {
			env := setup(t)
			accounts := env.initialize(t, 0, 100, 1)
			env.clock.Advance(oneDay)

			instruction := accounts.GetReleaseInstruction()
			if first == apologystake.ResolutionClaimed {
				instruction = accounts.GetClaimInstruction()
			}
			_, err := env.submit(t, env.victim, instruction)
			require.NoError(t, err)

			offenderBalance := env.balance(t, env.offender)
			victimBalance := env.balance(t, env.victim)

			_, err = env.submit(t, env.victim, accounts.GetReleaseInstruction())
			requireProgramError(t, err, apologystake.ErrInvalidStatus)

			_, err = env.submit(t, env.victim, accounts.GetClaimInstruction())
			requireProgramError(t, err, apologystake.ErrInvalidStatus)

			// Status is checked before the caller
			stranger := testutil.NewRandomAccount(t)
			env.fund(t, stranger, startingBalance)
			claim := accounts.GetClaimInstruction()
			claim.Accounts[1].PublicKey = stranger.ToPublicKey()
			_, err = env.submit(t, stranger, claim)
			requireProgramError(t, err, apologystake.ErrInvalidStatus)

			assert.Equal(t, offenderBalance, env.balance(t, env.offender))
			assert.Equal(t, victimBalance, env.balance(t, env.victim))
			assert.Equal(t, first, env.record(t, accounts).Resolution)
		})
	}
}

func TestAuthorization(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 100, 1)
	env.clock.Advance(oneDay)

	// The offender can't resolve their own apology
	release := accounts.GetReleaseInstruction()
	release.Accounts[2].PublicKey = env.offender.ToPublicKey()
	_, err := env.submit(t, env.offender, release)
	requireProgramError(t, err, apologystake.ErrUnauthorizedVictim)

	claim := accounts.GetClaimInstruction()
	claim.Accounts[1].PublicKey = env.offender.ToPublicKey()
	_, err = env.submit(t, env.offender, claim)
	requireProgramError(t, err, apologystake.ErrUnauthorizedVictim)

	stranger := testutil.NewRandomAccount(t)
	env.fund(t, stranger, startingBalance)
	claim = accounts.GetClaimInstruction()
	claim.Accounts[1].PublicKey = stranger.ToPublicKey()
	_, err = env.submit(t, stranger, claim)
	requireProgramError(t, err, apologystake.ErrUnauthorizedVictim)

	// The victim is referenced without signing
	claim = accounts.GetClaimInstruction()
	claim.Accounts[1].IsSigner = false
	_, err = env.submit(t, env.offender, claim)
	requireProgramError(t, err, apologystake.ErrUnauthorizedVictim)

	assert.EqualValues(t, 100, env.balance(t, accounts.Vault))
	assert.Equal(t, apologystake.ApologyStatusActive, env.record(t, accounts).Status)

	// Authorization is checked before timing
	early := env.initialize(t, 1, 100, 1)
	claim = early.GetClaimInstruction()
	claim.Accounts[1].PublicKey = stranger.ToPublicKey()
	_, err = env.submit(t, stranger, claim)
	requireProgramError(t, err, apologystake.ErrUnauthorizedVictim)
}

func TestRelease_OffenderMismatch(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 100, 1)
	env.clock.Advance(oneDay)

	stranger := testutil.NewRandomAccount(t)
	release := accounts.GetReleaseInstruction()
	release.Accounts[1].PublicKey = stranger.ToPublicKey()
	_, err := env.submit(t, env.victim, release)
	requireProgramError(t, err, apologystake.ErrOffenderMismatch)

	assert.EqualValues(t, 0, env.balance(t, stranger))
	assert.EqualValues(t, 100, env.balance(t, accounts.Vault))
}

func TestComplete_AccountChecks(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 100, 1)
	vacant := env.accounts(t, 1)
	env.clock.Advance(oneDay)

	_, err := env.submit(t, env.victim, vacant.GetClaimInstruction())
	requireProgramError(t, err, apologystake.ErrNotFound)

	_, err = env.submit(t, env.victim, vacant.GetReleaseInstruction())
	requireProgramError(t, err, apologystake.ErrNotFound)

	wrongVault := accounts.GetClaimInstruction()
	wrongVault.Accounts[2].PublicKey = vacant.Vault.ToPublicKey()
	_, err = env.submit(t, env.victim, wrongVault)
	requireProgramError(t, err, apologystake.ErrInvalidAccountAddress)

	// A program owned account that isn't an apology
	second := env.initialize(t, 2, 100, 1)
	wrongState := second.GetClaimInstruction()
	wrongState.Accounts[0].PublicKey = accounts.Vault.ToPublicKey()
	_, err = env.submit(t, env.victim, wrongState)
	requireProgramError(t, err, apologystake.ErrNotFound)

	// A user owned account in the apology slot
	wrongState = accounts.GetClaimInstruction()
	wrongState.Accounts[0].PublicKey = env.offender.ToPublicKey()
	_, err = env.submit(t, env.victim, wrongState)
	requireProgramError(t, err, apologystake.ErrNotFound)
}

func TestZeroStake(t *testing.T) {
	env := setup(t)
	accounts := env.initialize(t, 0, 0, 1)
	assert.EqualValues(t, 0, env.balance(t, accounts.Vault))

	vault, err := env.ledger.GetAccountInfo(env.ctx, accounts.Vault.ToPublicKey())
	require.NoError(t, err)
	assert.EqualValues(t, apologystake.PROGRAM_ID, vault.Owner)

	_, err = env.submit(t, env.offender, accounts.GetInitializeInstruction(1, 0, "sorry", ""))
	requireProgramError(t, err, apologystake.ErrAccountAlreadyInUse)

	env.clock.Advance(oneDay)
	victimBalance := env.balance(t, env.victim)
	_, err = env.submit(t, env.victim, accounts.GetClaimInstruction())
	require.NoError(t, err)
	assert.Equal(t, victimBalance, env.balance(t, env.victim))
	assert.Equal(t, apologystake.ResolutionClaimed, env.record(t, accounts).Resolution)
}

func TestTwoNonces(t *testing.T) {
	env := setup(t)
	first := env.initialize(t, 0, 100, 1)
	second := env.initialize(t, 1, 100, 1)
	env.clock.Advance(oneDay)

	offenderBalance := env.balance(t, env.offender)
	victimBalance := env.balance(t, env.victim)

	_, err := env.submit(t, env.victim, first.GetReleaseInstruction())
	require.NoError(t, err)
	_, err = env.submit(t, env.victim, second.GetClaimInstruction())
	require.NoError(t, err)

	assert.EqualValues(t, offenderBalance+100, env.balance(t, env.offender))
	assert.EqualValues(t, victimBalance+100, env.balance(t, env.victim))
	assert.Equal(t, apologystake.ResolutionReleased, env.record(t, first).Resolution)
	assert.Equal(t, apologystake.ResolutionClaimed, env.record(t, second).Resolution)
}

func TestAtomicity(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)
	selfApology, err := env.offender.GetApologyAccounts(env.offender, 0)
	require.NoError(t, err)

	result, err := env.submit(
		t,
		env.offender,
		accounts.GetInitializeInstruction(1, 100, "sorry", ""),
		selfApology.GetInitializeInstruction(1, 100, "sorry", ""),
	)
	requireProgramError(t, err, apologystake.ErrInvalidVictim)
	assert.Equal(t, 1, solana.GetInstructionError(err).Index)
	require.NotNil(t, result)

	_, err = env.ledger.GetAccountInfo(env.ctx, accounts.State.ToPublicKey())
	assert.Equal(t, solana.ErrNoAccountInfo, err)
	assert.EqualValues(t, startingBalance, env.balance(t, env.offender))
}

func TestResolveInSameTransaction(t *testing.T) {
	env := setup(t)
	accounts := env.accounts(t, 0)

	// Both signers are present, but probation can't elapse within a transaction
	_, err := env.submitSignedBy(
		t,
		env.offender,
		[]*common.Account{env.victim},
		accounts.GetInitializeInstruction(1, 100, "sorry", ""),
		accounts.GetClaimInstruction(),
	)
	requireProgramError(t, err, apologystake.ErrProbationNotEnded)

	_, err = env.ledger.GetAccountInfo(env.ctx, accounts.State.ToPublicKey())
	assert.Equal(t, solana.ErrNoAccountInfo, err)
}
