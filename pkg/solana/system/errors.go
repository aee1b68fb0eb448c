package system

import (
	"github.com/apologystake/stake-server/pkg/solana"
)

// Custom error codes returned by the system program
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L17
const (
	ErrAccountAlreadyInUse        solana.CustomError = 0
	ErrResultWithNegativeLamports solana.CustomError = 1
	ErrInvalidProgramId           solana.CustomError = 2
	ErrInvalidAccountDataLength   solana.CustomError = 3
)

// MaxPermittedDataLength is the largest allocation CreateAccount accepts
const MaxPermittedDataLength = 10 * 1024 * 1024
