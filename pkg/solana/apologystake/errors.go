package apologystake

import (
	"errors"
	"fmt"

	"github.com/apologystake/stake-server/pkg/solana"
)

// Program error codes start at the Anchor custom error offset
const ErrorCodeOffset = 6000

// ProgramError is a custom error returned by the apology stake program. It
// unwraps to the solana.CustomError carried in transaction results.
type ProgramError struct {
	code solana.CustomError
	name string
	msg  string
}

func newProgramError(index int, name, msg string) *ProgramError {
	e := &ProgramError{
		code: solana.CustomError(ErrorCodeOffset + index),
		name: name,
		msg:  msg,
	}
	programErrorsByCode[e.code] = e
	return e
}

var programErrorsByCode = make(map[solana.CustomError]*ProgramError)

var (
	ErrInvalidStatus          = newProgramError(0, "InvalidStatus", "Apology is not in the correct status")
	ErrProbationNotEnded      = newProgramError(1, "ProbationNotEnded", "Probation period has not ended")
	ErrUnauthorizedVictim     = newProgramError(2, "UnauthorizedVictim", "Only the victim can perform this action")
	ErrInvalidProbationDays   = newProgramError(3, "InvalidProbationDays", "Probation days must be greater than zero")
	ErrEmptyMessage           = newProgramError(4, "EmptyMessage", "Message cannot be empty")
	ErrInvalidVictim          = newProgramError(5, "InvalidVictim", "Cannot apologize to self")
	ErrInsufficientFunds      = newProgramError(6, "InsufficientFunds", "Insufficient funds to stake")
	ErrInvalidStakeAmount     = newProgramError(7, "InvalidStakeAmount", "Stake amount overflows")
	ErrMessageTooLong         = newProgramError(8, "MessageTooLong", "Message exceeds the maximum length")
	ErrAccountAlreadyInUse    = newProgramError(9, "AccountAlreadyInUse", "Apology or vault address already in use")
	ErrNotFound               = newProgramError(10, "NotFound", "Apology or vault account not found")
	ErrInvalidAccountAddress  = newProgramError(11, "InvalidAccountAddress", "Account does not match its derived address")
	ErrOffenderMismatch       = newProgramError(12, "OffenderMismatch", "Destination is not the recorded offender")
	ErrVictimHandleTooLong    = newProgramError(13, "VictimHandleTooLong", "Victim handle exceeds the maximum length")
	ErrInvalidInstructionData = newProgramError(14, "InvalidInstructionData", "Instruction data could not be decoded")
)

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.name, int(e.code), e.msg)
}

func (e *ProgramError) Unwrap() error {
	return e.code
}

func (e *ProgramError) Code() solana.CustomError {
	return e.code
}

func (e *ProgramError) Name() string {
	return e.name
}

// GetError returns the ProgramError sentinel for the custom program error
// carried by err. err may be a *ProgramError, solana.CustomError,
// solana.InstructionError or *solana.TransactionError, possibly wrapped.
// Errors that don't carry one of this program's codes are returned as is.
func GetError(err error) error {
	if err == nil {
		return nil
	}

	var programErr *ProgramError
	if errors.As(err, &programErr) {
		return programErr
	}

	var code solana.CustomError
	if errors.As(err, &code) {
		if programErr, ok := programErrorsByCode[code]; ok {
			return programErr
		}
	}

	if ixErr := solana.GetInstructionError(err); ixErr != nil {
		if custom := ixErr.CustomError(); custom != nil {
			if programErr, ok := programErrorsByCode[*custom]; ok {
				return programErr
			}
		}
	}

	return err
}
