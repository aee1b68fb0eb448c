package solana

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey identifies a transaction level failure in RPC results.
//
// Reference: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountLoadedTwice         TransactionErrorKey = "AccountLoadedTwice"
	TransactionErrorAccountNotFound            TransactionErrorKey = "AccountNotFound"
	TransactionErrorBlockhashNotFound          TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorDuplicateSignature         TransactionErrorKey = "DuplicateSignature"
	TransactionErrorInstructionError           TransactionErrorKey = "InstructionError"
	TransactionErrorInsufficientFundsForFee    TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInsufficientFundsForRent   TransactionErrorKey = "InsufficientFundsForRent"
	TransactionErrorInvalidAccountIndex        TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorInvalidProgramForExecution TransactionErrorKey = "InvalidProgramForExecution"
	TransactionErrorMissingSignatureForFee     TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorSanitizeFailure            TransactionErrorKey = "SanitizeFailure"
	TransactionErrorSignatureFailure           TransactionErrorKey = "SignatureFailure"
)

// InstructionErrorKey identifies the failure of a single instruction.
//
// Reference: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorAccountDataSizeChanged      InstructionErrorKey = "AccountDataSizeChanged"
	InstructionErrorCallDepth                   InstructionErrorKey = "CallDepth"
	InstructionErrorCustom                      InstructionErrorKey = "Custom"
	InstructionErrorExecutableModified          InstructionErrorKey = "ExecutableModified"
	InstructionErrorExternalAccountDataModified InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorExternalAccountLamportSpend InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorGenericError                InstructionErrorKey = "GenericError"
	InstructionErrorIncorrectProgramID          InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorInvalidArgument             InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData      InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidSeeds                InstructionErrorKey = "InvalidSeeds"
	InstructionErrorMissingAccount              InstructionErrorKey = "MissingAccount"
	InstructionErrorMissingRequiredSignature    InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorModifiedProgramID           InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorNotEnoughAccountKeys        InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorPrivilegeEscalation         InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorReadonlyDataModified        InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorReadonlyLamportChange       InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorReentrancyNotAllowed        InstructionErrorKey = "ReentrancyNotAllowed"
	InstructionErrorUnbalancedInstruction       InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorUnsupportedProgramID        InstructionErrorKey = "UnsupportedProgramId"
)

// CustomError is the numeric error code returned by a non-builtin program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError is the failure of the instruction at Index. Err is either
// a CustomError or an error whose text is an InstructionErrorKey.
type InstructionError struct {
	Index int
	Err   error
}

// NewInstructionError returns an InstructionError at index for a runtime
// error identified by key.
func NewInstructionError(index int, key InstructionErrorKey) InstructionError {
	return InstructionError{
		Index: index,
		Err:   errors.New(string(key)),
	}
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch {
	case i.Err == nil:
		return ""
	case i.CustomError() != nil:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if custom, ok := i.Err.(CustomError); ok {
		return &custom
	}
	return nil
}

// MarshalJSON encodes the error as the [index, detail] tuple used by RPC nodes
func (i InstructionError) MarshalJSON() ([]byte, error) {
	var detail interface{} = string(i.ErrorKey())
	if custom := i.CustomError(); custom != nil {
		detail = map[InstructionErrorKey]int{InstructionErrorCustom: int(*custom)}
	}
	return json.Marshal([]interface{}{i.Index, detail})
}

func (i *InstructionError) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return errors.Wrap(err, "unexpected instruction error format")
	}
	if len(tuple) != 2 {
		return errors.Errorf("invalid instruction error tuple size: %d", len(tuple))
	}

	if err := json.Unmarshal(tuple[0], &i.Index); err != nil {
		return errors.Wrap(err, "invalid instruction index")
	}

	var key string
	if err := json.Unmarshal(tuple[1], &key); err == nil {
		i.Err = errors.New(key)
		return nil
	}

	var detail map[string]json.RawMessage
	if err := json.Unmarshal(tuple[1], &detail); err != nil {
		return errors.Wrap(err, "unexpected instruction error detail")
	}
	if len(detail) != 1 {
		return errors.Errorf("invalid instruction error detail size: %d", len(detail))
	}

	for k, v := range detail {
		if InstructionErrorKey(k) != InstructionErrorCustom {
			i.Err = errors.New(k)
			return nil
		}

		var code int
		if err := json.Unmarshal(v, &code); err != nil {
			return errors.Wrap(err, "invalid custom error code")
		}
		i.Err = CustomError(code)
	}
	return nil
}

// TransactionError is the "err" value of a failed transaction. When the
// failure happened in an instruction, InstructionError is set.
type TransactionError struct {
	key              TransactionErrorKey
	instructionError *InstructionError
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key}
}

// NewInstructionTransactionError wraps an instruction failure as the
// transaction error a node would report for it.
func NewInstructionTransactionError(ixErr InstructionError) *TransactionError {
	return &TransactionError{
		key:              TransactionErrorInstructionError,
		instructionError: &ixErr,
	}
}

// ParseTransactionError decodes the "err" field of RPC results. A null or
// empty value yields a nil error.
func ParseTransactionError(data []byte) (*TransactionError, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var txErr TransactionError
	if err := json.Unmarshal(data, &txErr); err != nil {
		return nil, err
	}
	return &txErr, nil
}

// ParseRPCError extracts the transaction error attached to a failed RPC
// call, as returned by sendTransaction preflight checks.
func ParseRPCError(rpcErr *jsonrpc.RPCError) (*TransactionError, error) {
	if rpcErr == nil || rpcErr.Data == nil {
		return nil, nil
	}

	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected rpc error data type: %T", rpcErr.Data)
	}

	raw, ok := data["err"]
	if !ok || raw == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-encode rpc error data")
	}
	return ParseTransactionError(encoded)
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}
	return string(t.key)
}

func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return *t.instructionError
	}
	return nil
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// MarshalJSON encodes the error in the form used by RPC nodes, either a bare
// key or {"InstructionError": [index, detail]}.
func (t TransactionError) MarshalJSON() ([]byte, error) {
	if t.instructionError == nil {
		return json.Marshal(string(t.key))
	}
	return json.Marshal(map[TransactionErrorKey]InstructionError{
		TransactionErrorInstructionError: *t.instructionError,
	})
}

func (t *TransactionError) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		*t = TransactionError{key: TransactionErrorKey(key)}
		return nil
	}

	var detail map[string]json.RawMessage
	if err := json.Unmarshal(data, &detail); err != nil {
		return errors.Wrap(err, "unexpected transaction error format")
	}
	if len(detail) != 1 {
		return errors.Errorf("invalid transaction error size: %d", len(detail))
	}

	for k, v := range detail {
		*t = TransactionError{key: TransactionErrorKey(k)}
		if t.key != TransactionErrorInstructionError {
			return nil
		}

		var ixErr InstructionError
		if err := json.Unmarshal(v, &ixErr); err != nil {
			return errors.Wrap(err, "failed to parse instruction error")
		}
		t.instructionError = &ixErr
	}
	return nil
}

// GetTransactionErrorKey returns the key of the transaction error carried by
// err, or an empty key when there is none.
func GetTransactionErrorKey(err error) TransactionErrorKey {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr.key
	}

	var txErrValue TransactionError
	if errors.As(err, &txErrValue) {
		return txErrValue.key
	}

	return ""
}

// GetInstructionError returns the instruction error carried by err, if any.
func GetInstructionError(err error) *InstructionError {
	var txErr *TransactionError
	if errors.As(err, &txErr) && txErr.instructionError != nil {
		return txErr.instructionError
	}

	var ixErr InstructionError
	if errors.As(err, &ixErr) {
		return &ixErr
	}

	var ixErrPtr *InstructionError
	if errors.As(err, &ixErrPtr) {
		return ixErrPtr
	}

	return nil
}
