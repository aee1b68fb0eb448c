package system

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/binary"
)

// ProgramKey is the system program's address, 11111111111111111111111111111111
var ProgramKey = make(ed25519.PublicKey, ed25519.PublicKeySize)

// Command is the little endian u32 that prefixes system instruction data
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L89
type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
)

const commandSize = 4

var dataSizes = map[Command]int{
	CommandCreateAccount: commandSize + 8 + 8 + ed25519.PublicKeySize,
	CommandAssign:        commandSize + ed25519.PublicKeySize,
	CommandTransfer:      commandSize + 8,
}

var (
	ErrUnsupportedCommand = errors.New("unsupported system command")
	ErrInvalidDataSize    = errors.New("invalid instruction data size")
)

// CreateAccount funds a new account with lamports, allocates size bytes of
// data and assigns it to owner. Both funder and address sign.
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	data, offset := newData(CommandCreateAccount)
	binary.PutUint64(data[offset:], lamports, &offset)
	binary.PutUint64(data[offset:], size, &offset)
	binary.PutKey32(data[offset:], owner, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Assign changes the owner of a signing account
func Assign(account, owner ed25519.PublicKey) solana.Instruction {
	data, offset := newData(CommandAssign)
	binary.PutKey32(data[offset:], owner, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, true),
	)
}

// Transfer moves lamports from a signing account to another account
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	data, offset := newData(CommandTransfer)
	binary.PutUint64(data[offset:], lamports, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

func newData(command Command) ([]byte, int) {
	data := make([]byte, dataSizes[command])

	var offset int
	binary.PutUint32(data, uint32(command), &offset)
	return data, offset
}

// GetCommand returns the system command encoded in instruction data
func GetCommand(data []byte) (Command, error) {
	if len(data) < commandSize {
		return 0, ErrInvalidDataSize
	}

	var raw uint32
	var offset int
	binary.GetUint32(data, &raw, &offset)

	command := Command(raw)
	if _, ok := dataSizes[command]; !ok {
		return 0, ErrUnsupportedCommand
	}
	return command, nil
}

// checkData verifies data is a complete instruction for command, returning
// the offset of its arguments.
func checkData(data []byte, command Command) (int, error) {
	actual, err := GetCommand(data)
	if err == ErrUnsupportedCommand || (err == nil && actual != command) {
		return 0, solana.ErrIncorrectInstruction
	} else if err != nil {
		return 0, err
	}

	if len(data) != dataSizes[command] {
		return 0, ErrInvalidDataSize
	}
	return commandSize, nil
}

type CreateAccountArgs struct {
	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func ParseCreateAccountData(data []byte) (*CreateAccountArgs, error) {
	offset, err := checkData(data, CommandCreateAccount)
	if err != nil {
		return nil, err
	}

	var args CreateAccountArgs
	binary.GetUint64(data[offset:], &args.Lamports, &offset)
	binary.GetUint64(data[offset:], &args.Size, &offset)
	binary.GetKey32(data[offset:], &args.Owner, &offset)
	return &args, nil
}

type AssignArgs struct {
	Owner ed25519.PublicKey
}

func ParseAssignData(data []byte) (*AssignArgs, error) {
	offset, err := checkData(data, CommandAssign)
	if err != nil {
		return nil, err
	}

	var args AssignArgs
	binary.GetKey32(data[offset:], &args.Owner, &offset)
	return &args, nil
}

type TransferArgs struct {
	Lamports uint64
}

func ParseTransferData(data []byte) (*TransferArgs, error) {
	offset, err := checkData(data, CommandTransfer)
	if err != nil {
		return nil, err
	}

	var args TransferArgs
	binary.GetUint64(data[offset:], &args.Lamports, &offset)
	return &args, nil
}
