package program

import (
	"bytes"
	"math/bits"

	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// complete handles release and claim, which only differ in who receives the
// vault's balance
func (p *Processor) complete(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte, resolution apologystake.Resolution) error {
	var apology, offender, victim, vault *ledger.AccountInfo
	switch resolution {
	case apologystake.ResolutionReleased:
		if err := apologystake.ValidateReleaseStakeInstructionData(data); err != nil {
			return err
		}
		if len(accounts) < 5 {
			return ledger.ErrNotEnoughAccountKeys
		}
		apology, offender, victim, vault = accounts[0], accounts[1], accounts[2], accounts[3]
	case apologystake.ResolutionClaimed:
		if err := apologystake.ValidateClaimStakeInstructionData(data); err != nil {
			return err
		}
		if len(accounts) < 4 {
			return ledger.ErrNotEnoughAccountKeys
		}
		apology, victim, vault = accounts[0], accounts[1], accounts[2]
	default:
		return apologystake.ErrInvalidInstructionData
	}

	if !apology.IsOwnedBy(apologystake.PROGRAM_ID) {
		return apologystake.ErrNotFound
	}
	var record apologystake.ApologyAccount
	if err := record.Unmarshal(apology.Data()); err != nil {
		return apologystake.ErrNotFound
	}

	apologyAddress, _, err := apologystake.GetApologyAddress(&apologystake.GetApologyAddressArgs{
		Offender: record.Offender,
		Victim:   record.Victim,
		Nonce:    record.Nonce,
	})
	if err != nil || !bytes.Equal(apologyAddress, apology.Key) {
		return apologystake.ErrInvalidAccountAddress
	}
	vaultAddress, _, err := apologystake.GetVaultAddress(&apologystake.GetVaultAddressArgs{
		Apology: apologyAddress,
	})
	if err != nil || !bytes.Equal(vaultAddress, vault.Key) {
		return apologystake.ErrInvalidAccountAddress
	}

	if !vault.Exists() || !vault.IsOwnedBy(apologystake.PROGRAM_ID) {
		return apologystake.ErrNotFound
	}

	if record.Status != apologystake.ApologyStatusActive {
		return apologystake.ErrInvalidStatus
	}

	if !victim.IsSigner || !bytes.Equal(victim.Key, record.Victim) {
		return apologystake.ErrUnauthorizedVictim
	}

	destination := victim
	if resolution == apologystake.ResolutionReleased {
		if !bytes.Equal(offender.Key, record.Offender) {
			return apologystake.ErrOffenderMismatch
		}
		destination = offender
	}

	if !record.IsProbationOver(ic.Clock().UnixTimestamp) {
		ic.Log("Probation ends at %d, current time is %d", record.ProbationEnd, ic.Clock().UnixTimestamp)
		return apologystake.ErrProbationNotEnded
	}

	amount := vault.Lamports()
	credited, carry := bits.Add64(destination.Lamports(), amount, 0)
	if carry != 0 {
		return ledger.ErrInvalidArgument
	}

	if err := record.Complete(resolution); err != nil {
		return err
	}
	if err := writeRecord(apology, &record); err != nil {
		return err
	}

	vault.SetLamports(0)
	destination.SetLamports(credited)

	event := &apologystake.ApologyCompletedEvent{
		Apology:    apology.Key,
		Resolution: resolution,
	}
	ic.EmitData(event.Marshal())

	return nil
}
