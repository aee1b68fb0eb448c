package ledger

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/system"
)

// AccountInfo is an account as seen by an executing program. Accounts
// referenced more than once in an instruction share state. Mutations are
// unchecked; the runtime verifies them once the program returns.
type AccountInfo struct {
	Key        ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	state *solana.AccountInfo
}

func (a *AccountInfo) Lamports() uint64 {
	return a.state.Lamports
}

func (a *AccountInfo) SetLamports(lamports uint64) {
	a.state.Lamports = lamports
}

func (a *AccountInfo) Owner() ed25519.PublicKey {
	return a.state.Owner
}

func (a *AccountInfo) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.state.Owner, program)
}

// Data returns the account's data. Programs write into the returned slice
// directly; its length can only be changed by the system program.
func (a *AccountInfo) Data() []byte {
	return a.state.Data
}

func (a *AccountInfo) IsExecutable() bool {
	return a.state.Executable
}

// Exists reports whether the account holds lamports, data or has been
// assigned away from the system program
func (a *AccountInfo) Exists() bool {
	return accountExists(a.state)
}

func (a *AccountInfo) String() string {
	return base58.Encode(a.Key)
}

func accountExists(account *solana.AccountInfo) bool {
	return account.Lamports > 0 || len(account.Data) > 0 || !bytes.Equal(account.Owner, system.ProgramKey[:])
}

func emptyAccount() *solana.AccountInfo {
	return &solana.AccountInfo{
		Owner: system.ProgramKey[:],
	}
}

func cloneAccount(account *solana.AccountInfo) *solana.AccountInfo {
	cloned := &solana.AccountInfo{
		Lamports:   account.Lamports,
		Executable: account.Executable,
		Owner:      make(ed25519.PublicKey, len(account.Owner)),
	}
	copy(cloned.Owner, account.Owner)
	if account.Data != nil {
		cloned.Data = make([]byte, len(account.Data))
		copy(cloned.Data, account.Data)
	}
	return cloned
}
