package solana

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func TestParseTransactionError(t *testing.T) {
	e, err := ParseTransactionError([]byte(`{"InstructionError":[2,{"Custom":6001}]}`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	require.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(6001), *e.InstructionError().CustomError())

	e, err = ParseTransactionError([]byte(`{"InstructionError":[0,"MissingRequiredSignature"]}`))
	require.NoError(t, err)
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 0, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorMissingRequiredSignature, e.InstructionError().ErrorKey())
	assert.Nil(t, e.InstructionError().CustomError())

	e, err = ParseTransactionError([]byte(`{"InstructionError":[1,{"BorshIoError":"unexpected length"}]}`))
	require.NoError(t, err)
	assert.EqualValues(t, "BorshIoError", e.InstructionError().ErrorKey())

	e, err = ParseTransactionError([]byte(`"BlockhashNotFound"`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorBlockhashNotFound, e.ErrorKey())
	assert.Nil(t, e.InstructionError())
	assert.Equal(t, "BlockhashNotFound", e.Error())

	e, err = ParseTransactionError([]byte(`{"InsufficientFundsForRent":{"account_index":1}}`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorInsufficientFundsForRent, e.ErrorKey())

	for _, empty := range []string{"", "null", "  "} {
		e, err = ParseTransactionError([]byte(empty))
		assert.NoError(t, err)
		assert.Nil(t, e)
	}

	for _, invalid := range []string{
		`42`,
		`{"A":1,"B":2}`,
		`{"InstructionError":[0]}`,
		`{"InstructionError":["zero","InvalidArgument"]}`,
		`{"InstructionError":[0,{"Custom":"abc"}]}`,
	} {
		_, err = ParseTransactionError([]byte(invalid))
		assert.Error(t, err, invalid)
	}
}

func TestParseRPCError(t *testing.T) {
	e, err := ParseRPCError(nil)
	assert.NoError(t, err)
	assert.Nil(t, e)

	e, err = ParseRPCError(&jsonrpc.RPCError{Code: -32002, Message: "preflight failed"})
	assert.NoError(t, err)
	assert.Nil(t, e)

	var data interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"err":{"InstructionError":[0,{"Custom":6002}]},"logs":[]}`), &data))
	e, err = ParseRPCError(&jsonrpc.RPCError{Code: -32002, Data: data})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, CustomError(6002), *e.InstructionError().CustomError())

	_, err = ParseRPCError(&jsonrpc.RPCError{Code: -32002, Data: "text"})
	assert.Error(t, err)
}

func TestTransactionErrorJSON(t *testing.T) {
	for _, tc := range []struct {
		err      *TransactionError
		expected string
	}{
		{
			err:      NewTransactionError(TransactionErrorDuplicateSignature),
			expected: `"DuplicateSignature"`,
		},
		{
			err:      NewInstructionTransactionError(NewInstructionError(0, InstructionErrorInvalidArgument)),
			expected: `{"InstructionError":[0,"InvalidArgument"]}`,
		},
		{
			err:      NewInstructionTransactionError(InstructionError{Index: 2, Err: CustomError(3)}),
			expected: `{"InstructionError":[2,{"Custom":3}]}`,
		},
	} {
		encoded, err := json.Marshal(tc.err)
		require.NoError(t, err)
		assert.JSONEq(t, tc.expected, string(encoded))

		decoded, err := ParseTransactionError(encoded)
		require.NoError(t, err)
		assert.Equal(t, tc.err.ErrorKey(), decoded.ErrorKey())
		assert.Equal(t, tc.err.Error(), decoded.Error())
	}
}

func TestUnwrap(t *testing.T) {
	txErr := NewInstructionTransactionError(InstructionError{Index: 1, Err: CustomError(6002)})

	wrapped := errors.Wrap(txErr, "submit failed")
	assert.True(t, errors.Is(wrapped, CustomError(6002)))
	assert.False(t, errors.Is(wrapped, CustomError(6003)))
	assert.Equal(t, TransactionErrorInstructionError, GetTransactionErrorKey(wrapped))

	actual := GetInstructionError(wrapped)
	require.NotNil(t, actual)
	assert.Equal(t, 1, actual.Index)

	runtimeErr := NewInstructionError(0, InstructionErrorMissingRequiredSignature)
	assert.Equal(t, InstructionErrorMissingRequiredSignature, runtimeErr.ErrorKey())
	assert.Equal(t, InstructionErrorMissingRequiredSignature, GetInstructionError(runtimeErr).ErrorKey())

	assert.Equal(t, TransactionErrorBlockhashNotFound, GetTransactionErrorKey(NewTransactionError(TransactionErrorBlockhashNotFound)))
	assert.Nil(t, GetInstructionError(NewTransactionError(TransactionErrorBlockhashNotFound)))
	assert.Empty(t, GetTransactionErrorKey(errors.New("other")))
	assert.Nil(t, GetInstructionError(errors.New("other")))
}
