package ledger

import (
	"crypto/ed25519"
	"math/bits"

	"github.com/apologystake/stake-server/pkg/solana/system"
)

// systemProgram is the builtin subset of the system program: account
// creation, assignment and lamport transfers
type systemProgram struct{}

func (systemProgram) ProgramID() ed25519.PublicKey {
	return system.ProgramKey[:]
}

func (p systemProgram) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	command, err := system.GetCommand(data)
	if err != nil {
		return ErrInvalidInstructionData
	}

	switch command {
	case system.CommandCreateAccount:
		return p.createAccount(ic, accounts, data)
	case system.CommandAssign:
		return p.assign(ic, accounts, data)
	case system.CommandTransfer:
		return p.transfer(ic, accounts, data)
	}
	return ErrInvalidInstructionData
}

func (systemProgram) createAccount(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	args, err := system.ParseCreateAccountData(data)
	if err != nil {
		return ErrInvalidInstructionData
	}
	if len(accounts) < 2 {
		return ErrNotEnoughAccountKeys
	}

	funder, created := accounts[0], accounts[1]
	if !funder.IsSigner || !created.IsSigner {
		return ErrMissingRequiredSignature
	}

	if created.Exists() {
		ic.Log("Create Account: account %s already in use", created)
		return system.ErrAccountAlreadyInUse
	}
	if args.Size > system.MaxPermittedDataLength {
		return system.ErrInvalidAccountDataLength
	}
	if funder.Lamports() < args.Lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", funder.Lamports(), args.Lamports)
		return system.ErrResultWithNegativeLamports
	}

	funder.SetLamports(funder.Lamports() - args.Lamports)
	created.SetLamports(created.Lamports() + args.Lamports)
	created.state.Data = make([]byte, args.Size)
	created.state.Owner = args.Owner
	return nil
}

func (systemProgram) assign(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	args, err := system.ParseAssignData(data)
	if err != nil {
		return ErrInvalidInstructionData
	}
	if len(accounts) < 1 {
		return ErrNotEnoughAccountKeys
	}

	account := accounts[0]
	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}

	account.state.Owner = args.Owner
	return nil
}

func (systemProgram) transfer(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	args, err := system.ParseTransferData(data)
	if err != nil {
		return ErrInvalidInstructionData
	}
	if len(accounts) < 2 {
		return ErrNotEnoughAccountKeys
	}

	from, to := accounts[0], accounts[1]
	if !from.IsSigner {
		return ErrMissingRequiredSignature
	}
	if len(from.Data()) > 0 {
		ic.Log("Transfer: `from` must not carry data")
		return ErrInvalidArgument
	}
	if from.Lamports() < args.Lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", from.Lamports(), args.Lamports)
		return system.ErrResultWithNegativeLamports
	}

	from.SetLamports(from.Lamports() - args.Lamports)
	credited, carry := bits.Add64(to.Lamports(), args.Lamports, 0)
	if carry != 0 {
		return ErrInvalidArgument
	}
	to.SetLamports(credited)
	return nil
}
