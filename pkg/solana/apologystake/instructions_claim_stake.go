package apologystake

import (
	"bytes"
	"crypto/ed25519"

	"github.com/apologystake/stake-server/pkg/solana"
)

type ClaimStakeInstructionAccounts struct {
	Apology ed25519.PublicKey
	Victim  ed25519.PublicKey
	Vault   ed25519.PublicKey
}

func NewClaimStakeInstruction(
	accounts *ClaimStakeInstructionAccounts,
) solana.Instruction {
	var offset int

	data := make([]byte, discriminatorSize)
	putDiscriminator(data, ClaimStakeDiscriminator, &offset)

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

func ValidateClaimStakeInstructionData(data []byte) error {
	if !bytes.Equal(data, ClaimStakeDiscriminator) {
		return ErrInvalidInstructionData
	}
	return nil
}
