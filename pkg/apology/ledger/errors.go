package ledger

import (
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/solana"
)

var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrProgramRegistered  = errors.New("program already registered")
)

// RuntimeError is an instruction error raised by the runtime or a builtin
// rather than by a program's custom error codes. Programs may also return
// them, for example ErrMissingRequiredSignature.
type RuntimeError solana.InstructionErrorKey

func (e RuntimeError) Error() string {
	return string(e)
}

var (
	ErrMissingRequiredSignature    = RuntimeError(solana.InstructionErrorMissingRequiredSignature)
	ErrNotEnoughAccountKeys        = RuntimeError(solana.InstructionErrorNotEnoughAccountKeys)
	ErrInvalidInstructionData      = RuntimeError(solana.InstructionErrorInvalidInstructionData)
	ErrInvalidArgument             = RuntimeError(solana.InstructionErrorInvalidArgument)
	ErrIncorrectProgramID          = RuntimeError(solana.InstructionErrorIncorrectProgramID)
	ErrUnsupportedProgramID        = RuntimeError(solana.InstructionErrorUnsupportedProgramID)
	ErrMissingAccount              = RuntimeError(solana.InstructionErrorMissingAccount)
	ErrPrivilegeEscalation         = RuntimeError(solana.InstructionErrorPrivilegeEscalation)
	ErrCallDepth                   = RuntimeError(solana.InstructionErrorCallDepth)
	ErrReentrancyNotAllowed        = RuntimeError(solana.InstructionErrorReentrancyNotAllowed)
	ErrUnbalancedInstruction       = RuntimeError(solana.InstructionErrorUnbalancedInstruction)
	ErrModifiedProgramID           = RuntimeError(solana.InstructionErrorModifiedProgramID)
	ErrExternalAccountLamportSpend = RuntimeError(solana.InstructionErrorExternalAccountLamportSpend)
	ErrExternalAccountDataModified = RuntimeError(solana.InstructionErrorExternalAccountDataModified)
	ErrReadonlyLamportChange       = RuntimeError(solana.InstructionErrorReadonlyLamportChange)
	ErrReadonlyDataModified        = RuntimeError(solana.InstructionErrorReadonlyDataModified)
	ErrAccountDataSizeChanged      = RuntimeError(solana.InstructionErrorAccountDataSizeChanged)
	ErrExecutableModified          = RuntimeError(solana.InstructionErrorExecutableModified)
	ErrGenericError                = RuntimeError(solana.InstructionErrorGenericError)
)

// toInstructionError converts an error returned while processing the
// instruction at index into the form carried by transaction results
func toInstructionError(index int, err error) solana.InstructionError {
	var custom solana.CustomError
	if errors.As(err, &custom) {
		return solana.InstructionError{Index: index, Err: custom}
	}

	var runtimeErr RuntimeError
	if errors.As(err, &runtimeErr) {
		return solana.NewInstructionError(index, solana.InstructionErrorKey(runtimeErr))
	}

	return solana.NewInstructionError(index, solana.InstructionErrorGenericError)
}
