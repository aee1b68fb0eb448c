package apologystake

import (
	"bytes"
	"crypto/ed25519"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/binary"
)

type InitializeApologyInstructionArgs struct {
	ProbationDays uint64
	StakeAmount   uint64
	Message       string
	Nonce         int64
	VictimHandle  string
}

type InitializeApologyInstructionAccounts struct {
	Apology  ed25519.PublicKey
	Offender ed25519.PublicKey
	Victim   ed25519.PublicKey
	Vault    ed25519.PublicKey
}

func NewInitializeApologyInstruction(
	accounts *InitializeApologyInstructionAccounts,
	args *InitializeApologyInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		discriminatorSize+
			8+ // probation_days
			8+ // stake_amount
			binary.StringSize(args.Message)+
			8+ // nonce
			binary.StringSize(args.VictimHandle))

	putDiscriminator(data, InitializeApologyDiscriminator, &offset)
	binary.PutUint64(data[offset:], args.ProbationDays, &offset)
	binary.PutUint64(data[offset:], args.StakeAmount, &offset)
	binary.PutString(data[offset:], args.Message, &offset)
	binary.PutInt64(data[offset:], args.Nonce, &offset)
	binary.PutString(data[offset:], args.VictimHandle, &offset)

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
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Victim,
				IsWritable: false,
				IsSigner:   false,
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

// UnmarshalInitializeApologyInstructionArgs decodes instruction data produced
// by NewInitializeApologyInstruction. Trailing bytes are rejected.
func UnmarshalInitializeApologyInstructionArgs(data []byte) (*InitializeApologyInstructionArgs, error) {
	const fixedSize = discriminatorSize + 8 + 8 + 4 + 8 + 4
	if len(data) < fixedSize {
		return nil, ErrInvalidInstructionData
	}
	if !bytes.Equal(data[:discriminatorSize], InitializeApologyDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	var args InitializeApologyInstructionArgs
	offset := discriminatorSize
	binary.GetUint64(data[offset:], &args.ProbationDays, &offset)
	binary.GetUint64(data[offset:], &args.StakeAmount, &offset)
	if err := binary.GetString(data[offset:], &args.Message, &offset); err != nil {
		return nil, ErrInvalidInstructionData
	}
	if len(data[offset:]) < 8+4 {
		return nil, ErrInvalidInstructionData
	}
	binary.GetInt64(data[offset:], &args.Nonce, &offset)
	if err := binary.GetString(data[offset:], &args.VictimHandle, &offset); err != nil {
		return nil, ErrInvalidInstructionData
	}
	if offset != len(data) {
		return nil, ErrInvalidInstructionData
	}

	return &args, nil
}
