package apologystake

import (
	"bytes"
	"crypto/ed25519"

	"github.com/apologystake/stake-server/pkg/solana"
)

type ReleaseStakeInstructionAccounts struct {
	Apology  ed25519.PublicKey
	Offender ed25519.PublicKey
	Victim   ed25519.PublicKey
	Vault    ed25519.PublicKey
}

func NewReleaseStakeInstruction(
	accounts *ReleaseStakeInstructionAccounts,
) solana.Instruction {
	var offset int

	data := make([]byte, discriminatorSize)
	putDiscriminator(data, ReleaseStakeDiscriminator, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Apology,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Offender,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Victim,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Vault,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

func ValidateReleaseStakeInstructionData(data []byte) error {
	if !bytes.Equal(data, ReleaseStakeDiscriminator) {
		return ErrInvalidInstructionData
	}
	return nil
}
