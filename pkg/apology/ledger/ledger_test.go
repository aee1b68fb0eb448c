package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/system"
	"github.com/apologystake/stake-server/pkg/testutil"
)

const (
	opCreateVault byte = iota
	opWithdrawVault
	opSpendExternal
	opEscalateSigner
	opMint
	opWriteExternal
	opFailAfterWrite
	opWriteVault
)

var vaultSeed = []byte("vault")

// testProgram owns a single PDA vault and exercises the runtime rules
type testProgram struct {
	id ed25519.PublicKey
}

func (p *testProgram) ProgramID() ed25519.PublicKey {
	return p.id
}

func (p *testProgram) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstructionData
	}

	switch data[0] {
	case opCreateVault:
		// payer, vault, system program
		_, bump, err := solana.FindProgramAddressAndBump(p.id, vaultSeed)
		if err != nil {
			return err
		}
		lamports := binary.LittleEndian.Uint64(data[1:])
		size := binary.LittleEndian.Uint64(data[9:])
		return ic.Invoke(
			system.CreateAccount(accounts[0].Key, accounts[1].Key, p.id, lamports, size),
			[][]byte{vaultSeed, {bump}},
		)
	case opWithdrawVault:
		// vault, destination
		amount := accounts[0].Lamports()
		accounts[0].SetLamports(0)
		accounts[1].SetLamports(accounts[1].Lamports() + amount)
		return nil
	case opSpendExternal:
		// not owned, destination
		accounts[0].SetLamports(accounts[0].Lamports() - 1)
		accounts[1].SetLamports(accounts[1].Lamports() + 1)
		return nil
	case opEscalateSigner:
		// non signer, destination, system program
		return ic.Invoke(system.Transfer(accounts[0].Key, accounts[1].Key, 1))
	case opMint:
		accounts[0].SetLamports(accounts[0].Lamports() + 1)
		return nil
	case opWriteExternal:
		accounts[0].Data()[0] = 1
		return nil
	case opFailAfterWrite:
		accounts[0].Data()[0] = 0xff
		ic.Log("about to fail")
		return solana.CustomError(6042)
	case opWriteVault:
		ic.Log("writing vault")
		ic.EmitData([]byte{1, 2, 3})
		copy(accounts[0].Data(), data[1:])
		return nil
	}
	return ErrInvalidInstructionData
}

type testEnv struct {
	ctx     context.Context
	ledger  *Ledger
	clock   *ManualClock
	program *testProgram
	vault   ed25519.PublicKey
}

func setup(t *testing.T, overrides *TestOverrides) *testEnv {
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	l := New(clock, WithTestOverrides(overrides))

	program := &testProgram{id: testutil.GenerateSolanaKeys(t, 1)[0]}
	require.NoError(t, l.RegisterProgram(program))
	assert.Equal(t, ErrProgramRegistered, l.RegisterProgram(program))

	vault, err := solana.FindProgramAddress(program.id, vaultSeed)
	require.NoError(t, err)

	return &testEnv{
		ctx:     context.Background(),
		ledger:  l,
		clock:   clock,
		program: program,
		vault:   vault,
	}
}

func (e *testEnv) fundedAccount(t *testing.T, lamports uint64) ed25519.PrivateKey {
	key := testutil.GenerateSolanaKeypair(t)
	if lamports > 0 {
		require.NoError(t, e.ledger.Airdrop(e.ctx, key.Public().(ed25519.PublicKey), lamports))
	}
	return key
}

func (e *testEnv) signed(t *testing.T, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) solana.Transaction {
	txn := solana.NewTransaction(payer.Public().(ed25519.PublicKey), instructions...)

	blockhash, err := e.ledger.GetLatestBlockhash(e.ctx)
	require.NoError(t, err)
	txn.SetBlockhash(blockhash)

	require.NoError(t, txn.Sign(append([]ed25519.PrivateKey{payer}, signers...)...))
	return txn
}

func (e *testEnv) balance(t *testing.T, account ed25519.PublicKey) uint64 {
	balance, err := e.ledger.GetBalance(e.ctx, account)
	require.NoError(t, err)
	return balance
}

func (e *testEnv) programInstruction(data []byte, accounts ...solana.AccountMeta) solana.Instruction {
	return solana.NewInstruction(e.program.id, data, accounts...)
}

func createVaultData(lamports, size uint64) []byte {
	data := make([]byte, 17)
	data[0] = opCreateVault
	binary.LittleEndian.PutUint64(data[1:], lamports)
	binary.LittleEndian.PutUint64(data[9:], size)
	return data
}

func requireInstructionError(t *testing.T, err error, index int, expected error) {
	require.Error(t, err)

	ixErr := solana.GetInstructionError(err)
	require.NotNil(t, ixErr, err.Error())
	assert.Equal(t, index, ixErr.Index)

	if custom, ok := expected.(solana.CustomError); ok {
		require.NotNil(t, ixErr.CustomError())
		assert.Equal(t, custom, *ixErr.CustomError())
		return
	}
	assert.Equal(t, expected.Error(), ixErr.Err.Error())
}

func TestSubmit_Transfer(t *testing.T) {
	env := setup(t, &TestOverrides{LamportsPerSignature: 5000})

	sender := env.fundedAccount(t, 1_000_000)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]
	senderKey := sender.Public().(ed25519.PublicKey)

	startSlot, err := env.ledger.GetSlot(env.ctx)
	require.NoError(t, err)
	startBlockhash, err := env.ledger.GetLatestBlockhash(env.ctx)
	require.NoError(t, err)

	txn := env.signed(t, sender, nil, system.Transfer(senderKey, receiver, 250_000))
	result, err := env.ledger.Submit(env.ctx, txn)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.EqualValues(t, 5000, result.Fee)
	assert.Equal(t, startSlot, result.Slot)
	assert.Nil(t, result.Err)
	assert.NotEmpty(t, result.Logs)

	assert.EqualValues(t, 1_000_000-250_000-5000, env.balance(t, senderKey))
	assert.EqualValues(t, 250_000, env.balance(t, receiver))

	slot, err := env.ledger.GetSlot(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, startSlot+1, slot)

	blockhash, err := env.ledger.GetLatestBlockhash(env.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, startBlockhash, blockhash)

	recorded, err := env.ledger.GetTransaction(env.ctx, txn.Signatures[0])
	require.NoError(t, err)
	assert.Equal(t, result, recorded)

	_, err = env.ledger.GetTransaction(env.ctx, solana.Signature{})
	assert.Equal(t, ErrUnknownTransaction, err)

	info, err := env.ledger.GetAccountInfo(env.ctx, receiver)
	require.NoError(t, err)
	assert.EqualValues(t, system.ProgramKey[:], info.Owner)
	assert.Empty(t, info.Data)

	_, err = env.ledger.GetAccountInfo(env.ctx, testutil.GenerateSolanaKeys(t, 1)[0])
	assert.Equal(t, solana.ErrNoAccountInfo, err)
}

func TestSubmit_SignatureVerification(t *testing.T) {
	env := setup(t, &TestOverrides{})

	sender := env.fundedAccount(t, 1_000)
	other := env.fundedAccount(t, 1_000)
	senderKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	// Missing signature
	txn := solana.NewTransaction(senderKey, system.Transfer(senderKey, receiver, 10))
	blockhash, err := env.ledger.GetLatestBlockhash(env.ctx)
	require.NoError(t, err)
	txn.SetBlockhash(blockhash)

	_, err = env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, solana.GetTransactionErrorKey(err))

	// Signature by the wrong key
	forged := ed25519.Sign(other, txn.Message.Marshal())
	copy(txn.Signatures[0][:], forged)
	_, err = env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, solana.GetTransactionErrorKey(err))

	// Tampering after signing
	txn = env.signed(t, sender, nil, system.Transfer(senderKey, receiver, 10))
	txn.Message.Instructions[0].Data[4] = 0xff
	_, err = env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, solana.GetTransactionErrorKey(err))

	// A required signer that isn't the payer
	txn = env.signed(t, other, nil, system.Transfer(senderKey, receiver, 10))
	_, err = env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, solana.GetTransactionErrorKey(err))

	assert.EqualValues(t, 1_000, env.balance(t, senderKey))
	assert.EqualValues(t, 0, env.balance(t, receiver))
}

func TestSubmit_DuplicateSignature(t *testing.T) {
	env := setup(t, &TestOverrides{})

	sender := env.fundedAccount(t, 1_000)
	senderKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := env.signed(t, sender, nil, system.Transfer(senderKey, receiver, 10))

	_, err := env.ledger.Submit(env.ctx, txn)
	require.NoError(t, err)

	_, err = env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorDuplicateSignature, solana.GetTransactionErrorKey(err))

	assert.EqualValues(t, 10, env.balance(t, receiver))
}

func TestSubmit_BlockhashNotFound(t *testing.T) {
	env := setup(t, &TestOverrides{RecentBlockhashWindow: 2})

	sender := env.fundedAccount(t, 1_000)
	senderKey := sender.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(senderKey, system.Transfer(senderKey, receiver, 1))
	txn.SetBlockhash(solana.Blockhash{1, 2, 3})
	require.NoError(t, txn.Sign(sender))

	_, err := env.ledger.Submit(env.ctx, txn)
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, solana.GetTransactionErrorKey(err))

	// Blockhashes expire once they fall out of the recent window
	stale := env.signed(t, sender, nil, system.Transfer(senderKey, receiver, 2))
	for i := 0; i < 2; i++ {
		_, err = env.ledger.Submit(env.ctx, env.signed(t, sender, nil, system.Transfer(senderKey, receiver, uint64(10+i))))
		require.NoError(t, err)
	}

	_, err = env.ledger.Submit(env.ctx, stale)
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, solana.GetTransactionErrorKey(err))
	assert.EqualValues(t, 21, env.balance(t, receiver))
}

func TestSubmit_Fees(t *testing.T) {
	env := setup(t, &TestOverrides{LamportsPerSignature: 5000})

	poor := env.fundedAccount(t, 4999)
	poorKey := poor.Public().(ed25519.PublicKey)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := env.ledger.Submit(env.ctx, env.signed(t, poor, nil, system.Transfer(poorKey, receiver, 1)))
	assert.Equal(t, solana.TransactionErrorInsufficientFundsForFee, solana.GetTransactionErrorKey(err))
	assert.EqualValues(t, 4999, env.balance(t, poorKey))

	unfunded := testutil.GenerateSolanaKeypair(t)
	unfundedKey := unfunded.Public().(ed25519.PublicKey)
	_, err = env.ledger.Submit(env.ctx, env.signed(t, unfunded, nil, system.Transfer(unfundedKey, receiver, 1)))
	assert.Equal(t, solana.TransactionErrorAccountNotFound, solana.GetTransactionErrorKey(err))

	// Fees are still charged when execution fails
	payer := env.fundedAccount(t, 10_000)
	payerKey := payer.Public().(ed25519.PublicKey)
	result, err := env.ledger.Submit(env.ctx, env.signed(t, payer, nil, system.Transfer(payerKey, receiver, 1_000_000)))
	requireInstructionError(t, err, 0, system.ErrResultWithNegativeLamports)
	require.NotNil(t, result)
	assert.Equal(t, err, result.Err)
	assert.EqualValues(t, 5000, env.balance(t, payerKey))
	assert.EqualValues(t, 0, env.balance(t, receiver))
}

func TestSubmit_AtomicRollback(t *testing.T) {
	env := setup(t, &TestOverrides{})

	sender := env.fundedAccount(t, 1_000)
	senderKey := sender.Public().(ed25519.PublicKey)
	receivers := testutil.GenerateSolanaKeys(t, 2)

	txn := env.signed(
		t,
		sender,
		nil,
		system.Transfer(senderKey, receivers[0], 600),
		system.Transfer(senderKey, receivers[1], 600),
	)
	result, err := env.ledger.Submit(env.ctx, txn)
	requireInstructionError(t, err, 1, system.ErrResultWithNegativeLamports)
	require.NotNil(t, result)
	assert.Contains(t, result.Logs[len(result.Logs)-1], "failed")

	assert.EqualValues(t, 1_000, env.balance(t, senderKey))
	assert.EqualValues(t, 0, env.balance(t, receivers[0]))
	assert.EqualValues(t, 0, env.balance(t, receivers[1]))

	_, err = env.ledger.GetAccountInfo(env.ctx, receivers[0])
	assert.Equal(t, solana.ErrNoAccountInfo, err)
}

func TestSystemProgram_CreateAccount(t *testing.T) {
	env := setup(t, &TestOverrides{})

	funder := env.fundedAccount(t, 10_000_000)
	funderKey := funder.Public().(ed25519.PublicKey)
	created := testutil.GenerateSolanaKeypair(t)
	createdKey := created.Public().(ed25519.PublicKey)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]

	minBalance, err := env.ledger.GetMinimumBalanceForRentExemption(env.ctx, 100)
	require.NoError(t, err)
	assert.EqualValues(t, (128+100)*3480*2, minBalance)

	// Not rent exempt
	_, err = env.ledger.Submit(env.ctx, env.signed(t, funder, []ed25519.PrivateKey{created}, system.CreateAccount(funderKey, createdKey, owner, minBalance-1, 100)))
	assert.Equal(t, solana.TransactionErrorInsufficientFundsForRent, solana.GetTransactionErrorKey(err))

	_, err = env.ledger.Submit(env.ctx, env.signed(t, funder, []ed25519.PrivateKey{created}, system.CreateAccount(funderKey, createdKey, owner, minBalance, 100)))
	require.NoError(t, err)

	info, err := env.ledger.GetAccountInfo(env.ctx, createdKey)
	require.NoError(t, err)
	assert.Equal(t, minBalance, info.Lamports)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, make([]byte, 100), info.Data)

	_, err = env.ledger.Submit(env.ctx, env.signed(t, funder, []ed25519.PrivateKey{created}, system.CreateAccount(funderKey, createdKey, owner, minBalance, 100)))
	requireInstructionError(t, err, 0, system.ErrAccountAlreadyInUse)

	// Assigning an account the system program no longer owns
	_, err = env.ledger.Submit(env.ctx, env.signed(t, funder, []ed25519.PrivateKey{created}, system.Assign(createdKey, funderKey)))
	requireInstructionError(t, err, 0, ErrModifiedProgramID)
}

func TestProgram_CrossProgramInvocation(t *testing.T) {
	env := setup(t, &TestOverrides{})

	payer := env.fundedAccount(t, 10_000_000)
	payerKey := payer.Public().(ed25519.PublicKey)
	destination := testutil.GenerateSolanaKeys(t, 1)[0]

	minBalance, err := env.ledger.GetMinimumBalanceForRentExemption(env.ctx, 8)
	require.NoError(t, err)

	createVault := env.programInstruction(
		createVaultData(minBalance+500, 8),
		solana.NewAccountMeta(payerKey, true),
		solana.NewAccountMeta(env.vault, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	)
	result, err := env.ledger.Submit(env.ctx, env.signed(t, payer, nil, createVault))
	require.NoError(t, err)
	assert.Contains(t, result.Logs, "Program 11111111111111111111111111111111 invoke [2]")

	info, err := env.ledger.GetAccountInfo(env.ctx, env.vault)
	require.NoError(t, err)
	assert.EqualValues(t, env.program.id, info.Owner)
	assert.Equal(t, minBalance+500, info.Lamports)

	accounts, _, err := env.ledger.GetProgramAccounts(env.ctx, env.program.id)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.EqualValues(t, env.vault, accounts[0].PublicKey)

	// Writes by the owning program
	result, err = env.ledger.Submit(env.ctx, env.signed(t, payer, nil, env.programInstruction(
		[]byte{opWriteVault, 'a', 'b', 'c'},
		solana.NewAccountMeta(env.vault, false),
	)))
	require.NoError(t, err)
	assert.Contains(t, result.Logs, "Program log: writing vault")
	assert.Contains(t, result.Logs, "Program data: AQID")

	accounts, _, err = env.ledger.GetProgramAccounts(env.ctx, env.program.id, solana.MemcmpFilter{Offset: 1, Bytes: []byte("bc")})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	accounts, _, err = env.ledger.GetProgramAccounts(env.ctx, env.program.id, solana.MemcmpFilter{Offset: 7, Bytes: []byte("bc")})
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// Draining an account that still holds data leaves it below rent exemption
	_, err = env.ledger.Submit(env.ctx, env.signed(t, payer, nil, env.programInstruction(
		[]byte{opWithdrawVault},
		solana.NewAccountMeta(env.vault, false),
		solana.NewAccountMeta(destination, false),
	)))
	assert.Equal(t, solana.TransactionErrorInsufficientFundsForRent, solana.GetTransactionErrorKey(err))
	assert.Equal(t, minBalance+500, env.balance(t, env.vault))
}

func TestProgram_RuntimeChecks(t *testing.T) {
	env := setup(t, &TestOverrides{})

	payer := env.fundedAccount(t, 10_000_000)
	payerKey := payer.Public().(ed25519.PublicKey)
	bystander := env.fundedAccount(t, 1_000)
	bystanderKey := bystander.Public().(ed25519.PublicKey)
	destination := testutil.GenerateSolanaKeys(t, 1)[0]

	minBalance, err := env.ledger.GetMinimumBalanceForRentExemption(env.ctx, 8)
	require.NoError(t, err)
	_, err = env.ledger.Submit(env.ctx, env.signed(t, payer, nil, env.programInstruction(
		createVaultData(minBalance, 8),
		solana.NewAccountMeta(payerKey, true),
		solana.NewAccountMeta(env.vault, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	)))
	require.NoError(t, err)

	foreign := testutil.GenerateSolanaKeypair(t)
	foreignKey := foreign.Public().(ed25519.PublicKey)
	_, err = env.ledger.Submit(env.ctx, env.signed(t, payer, []ed25519.PrivateKey{foreign}, system.CreateAccount(
		payerKey,
		foreignKey,
		testutil.GenerateSolanaKeys(t, 1)[0],
		minBalance,
		8,
	)))
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		ix       solana.Instruction
		expected error
	}{
		{
			name: "spend account owned by another program",
			ix: env.programInstruction(
				[]byte{opSpendExternal},
				solana.NewAccountMeta(bystanderKey, false),
				solana.NewAccountMeta(destination, false),
			),
			expected: ErrExternalAccountLamportSpend,
		},
		{
			name: "sign for an account without its key",
			ix: env.programInstruction(
				[]byte{opEscalateSigner},
				solana.NewAccountMeta(bystanderKey, false),
				solana.NewAccountMeta(destination, false),
				solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
			),
			expected: ErrPrivilegeEscalation,
		},
		{
			name: "modify data of account owned by another program",
			ix: env.programInstruction(
				[]byte{opWriteExternal},
				solana.NewAccountMeta(foreignKey, false),
			),
			expected: ErrExternalAccountDataModified,
		},
		{
			name: "create lamports",
			ix: env.programInstruction(
				[]byte{opMint},
				solana.NewAccountMeta(env.vault, false),
			),
			expected: ErrUnbalancedInstruction,
		},
		{
			name: "modify read only account",
			ix: env.programInstruction(
				[]byte{opWriteVault, 1},
				solana.NewReadonlyAccountMeta(env.vault, false),
			),
			expected: ErrReadonlyDataModified,
		},
		{
			name: "invoke without passing the program account",
			ix: env.programInstruction(
				createVaultData(0, 0),
				solana.NewAccountMeta(payerKey, true),
				solana.NewAccountMeta(destination, false),
			),
			expected: ErrMissingAccount,
		},
		{
			name: "custom error after mutation",
			ix: env.programInstruction(
				[]byte{opFailAfterWrite},
				solana.NewAccountMeta(env.vault, false),
			),
			expected: solana.CustomError(6042),
		},
		{
			name:     "unknown instruction",
			ix:       env.programInstruction([]byte{0xee}),
			expected: ErrInvalidInstructionData,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			before, err := env.ledger.GetAccountInfo(env.ctx, env.vault)
			require.NoError(t, err)

			result, err := env.ledger.Submit(env.ctx, env.signed(t, payer, nil, tc.ix))
			requireInstructionError(t, err, 0, tc.expected)
			require.NotNil(t, result)

			after, err := env.ledger.GetAccountInfo(env.ctx, env.vault)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.EqualValues(t, 1_000, env.balance(t, bystanderKey))
			assert.EqualValues(t, 0, env.balance(t, destination))
		})
	}

	unknownProgram := solana.NewInstruction(testutil.GenerateSolanaKeys(t, 1)[0], []byte{0})
	_, err = env.ledger.Submit(env.ctx, env.signed(t, payer, nil, unknownProgram))
	assert.Equal(t, solana.TransactionErrorInvalidProgramForExecution, solana.GetTransactionErrorKey(err))
}

func TestSubmit_ConcurrentTransfers(t *testing.T) {
	env := setup(t, &TestOverrides{})

	const accountCount = 8
	const transfersPerWorker = 25

	keys := make([]ed25519.PrivateKey, accountCount)
	for i := range keys {
		keys[i] = env.fundedAccount(t, 1_000_000)
	}

	var wg sync.WaitGroup
	for worker := 0; worker < accountCount; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			from := keys[worker]
			fromKey := from.Public().(ed25519.PublicKey)
			for i := 0; i < transfersPerWorker; i++ {
				to := keys[(worker+i+1)%accountCount].Public().(ed25519.PublicKey)
				if to.Equal(fromKey) {
					continue
				}

				txn := solana.NewTransaction(fromKey, system.Transfer(fromKey, to, uint64(i+1)))
				blockhash, _ := env.ledger.GetLatestBlockhash(env.ctx)
				txn.SetBlockhash(blockhash)
				if err := txn.Sign(from); err != nil {
					t.Error(err)
					return
				}

				if _, err := env.ledger.Submit(env.ctx, txn); err != nil {
					t.Error(err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()

	var total uint64
	for _, key := range keys {
		total += env.balance(t, key.Public().(ed25519.PublicKey))
	}
	assert.EqualValues(t, accountCount*1_000_000, total)
}

func TestManualClock(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	clock := NewManualClock(start)
	assert.Equal(t, start, clock.Now())

	clock.Advance(24 * time.Hour)
	assert.Equal(t, start.Add(24*time.Hour), clock.Now())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())

	l := New(clock, WithTestOverrides(&TestOverrides{}))
	sysvar, err := l.GetClock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start.Unix(), sysvar.UnixTimestamp)

	assert.WithinDuration(t, time.Now(), NewRealClock().Now(), time.Minute)
}
