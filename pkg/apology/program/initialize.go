package program

import (
	"bytes"
	"math"
	"math/bits"

	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
	"github.com/apologystake/stake-server/pkg/solana/system"
)

func (p *Processor) initialize(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(accounts) < 5 {
		return ledger.ErrNotEnoughAccountKeys
	}
	apology, offender, victim, vault, systemProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	args, err := apologystake.UnmarshalInitializeApologyInstructionArgs(data)
	if err != nil {
		return apologystake.ErrInvalidInstructionData
	}

	if !offender.IsSigner {
		return ledger.ErrMissingRequiredSignature
	}
	if !bytes.Equal(systemProgram.Key, system.ProgramKey[:]) {
		return ledger.ErrIncorrectProgramID
	}

	apologyAddress, apologyBump, err := apologystake.GetApologyAddress(&apologystake.GetApologyAddressArgs{
		Offender: offender.Key,
		Victim:   victim.Key,
		Nonce:    args.Nonce,
	})
	if err != nil {
		return apologystake.ErrInvalidAccountAddress
	}
	vaultAddress, vaultBump, err := apologystake.GetVaultAddress(&apologystake.GetVaultAddressArgs{
		Apology: apologyAddress,
	})
	if err != nil {
		return apologystake.ErrInvalidAccountAddress
	}
	if !bytes.Equal(apology.Key, apologyAddress) || !bytes.Equal(vault.Key, vaultAddress) {
		return apologystake.ErrInvalidAccountAddress
	}

	if bytes.Equal(victim.Key, offender.Key) {
		return apologystake.ErrInvalidVictim
	}

	createdAt := ic.Clock().UnixTimestamp
	probationEnd, ok := probationEnd(createdAt, args.ProbationDays)
	if !ok {
		return apologystake.ErrInvalidProbationDays
	}

	if len(args.Message) == 0 {
		return apologystake.ErrEmptyMessage
	}
	if len(args.Message) > apologystake.MaxMessageLength {
		return apologystake.ErrMessageTooLong
	}
	if len(args.VictimHandle) > apologystake.MaxVictimHandleLength {
		return apologystake.ErrVictimHandleTooLong
	}

	if apology.Exists() || vault.Exists() {
		return apologystake.ErrAccountAlreadyInUse
	}

	rentExempt := ic.Rent().MinimumBalance(apologystake.ApologyAccountSize)
	required, carry := bits.Add64(args.StakeAmount, rentExempt, 0)
	if carry != 0 {
		return apologystake.ErrInvalidStakeAmount
	}
	if offender.Lamports() < required {
		ic.Log("Offender holds %d lamports, need %d", offender.Lamports(), required)
		return apologystake.ErrInsufficientFunds
	}

	err = ic.Invoke(
		system.CreateAccount(offender.Key, apology.Key, apologystake.PROGRAM_ID, rentExempt, apologystake.ApologyAccountSize),
		[][]byte{apologystake.ApologyPrefix, offender.Key, victim.Key, apologystake.NonceSeed(args.Nonce), {apologyBump}},
	)
	if err != nil {
		return err
	}

	err = ic.Invoke(
		system.CreateAccount(offender.Key, vault.Key, apologystake.PROGRAM_ID, args.StakeAmount, 0),
		[][]byte{apologystake.VaultPrefix, apology.Key, {vaultBump}},
	)
	if err != nil {
		return err
	}

	record := &apologystake.ApologyAccount{
		Offender:     offender.Key,
		Victim:       victim.Key,
		Nonce:        args.Nonce,
		StakeAmount:  args.StakeAmount,
		ProbationEnd: probationEnd,
		CreatedAt:    createdAt,
		Status:       apologystake.ApologyStatusActive,
		Resolution:   apologystake.ResolutionNone,
		Message:      args.Message,
		VictimHandle: args.VictimHandle,
	}
	if err := writeRecord(apology, record); err != nil {
		return err
	}

	event := &apologystake.ApologyCreatedEvent{
		Apology:       apology.Key,
		Offender:      offender.Key,
		Victim:        victim.Key,
		StakeAmount:   args.StakeAmount,
		ProbationDays: args.ProbationDays,
		VictimHandle:  args.VictimHandle,
	}
	ic.EmitData(event.Marshal())

	return nil
}

// probationEnd returns createdAt plus probationDays whole days, or false when
// the window is empty or doesn't fit in an i64 timestamp
func probationEnd(createdAt int64, probationDays uint64) (int64, bool) {
	if probationDays == 0 || createdAt < 0 {
		return 0, false
	}

	hi, seconds := bits.Mul64(probationDays, apologystake.SecondsPerDay)
	if hi != 0 || seconds > uint64(math.MaxInt64-createdAt) {
		return 0, false
	}
	return createdAt + int64(seconds), true
}

func writeRecord(account *ledger.AccountInfo, record *apologystake.ApologyAccount) error {
	encoded, err := record.Marshal()
	if err != nil {
		return err
	}

	if len(account.Data()) != len(encoded) {
		return ledger.ErrInvalidArgument
	}
	copy(account.Data(), encoded)
	return nil
}
