package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/bits"

	"github.com/mr-tron/base58"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/system"
)

const maxInvokeDepth = 4

// Program is a program the ledger can execute
type Program interface {
	ProgramID() ed25519.PublicKey
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// InvokeContext is the environment a top level instruction, and any
// instructions it invokes, execute in
type InvokeContext struct {
	clock    system.ClockAccount
	rent     system.RentAccount
	programs map[string]Program

	stack []*frame
	logs  []string
}

type frame struct {
	program  ed25519.PublicKey
	accounts []*AccountInfo
	pre      map[string]*solana.AccountInfo
}

func newInvokeContext(clock system.ClockAccount, rent system.RentAccount, programs map[string]Program) *InvokeContext {
	return &InvokeContext{
		clock:    clock,
		rent:     rent,
		programs: programs,
	}
}

// ProgramID returns the id of the currently executing program
func (ic *InvokeContext) ProgramID() ed25519.PublicKey {
	return ic.stack[len(ic.stack)-1].program
}

func (ic *InvokeContext) Clock() system.ClockAccount {
	return ic.clock
}

func (ic *InvokeContext) Rent() system.RentAccount {
	return ic.rent
}

// Log appends a program log line to the transaction's logs
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.logs = append(ic.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// EmitData appends base64 encoded data to the transaction's logs, which is
// how programs publish events
func (ic *InvokeContext) EmitData(data []byte) {
	ic.logs = append(ic.logs, "Program data: "+base64.StdEncoding.EncodeToString(data))
}

// Invoke executes ix as a cross program invocation from the current program.
// Accounts must already be available to the caller with at least the
// requested privileges. An account may additionally be signed for when it is
// the program address derived from the caller's id and one of signerSeeds.
func (ic *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	caller := ic.stack[len(ic.stack)-1]

	program, ok := ic.programs[string(ix.Program)]
	if !ok {
		return ErrUnsupportedProgramID
	}
	if caller.find(ix.Program) == nil {
		return ErrMissingAccount
	}

	var pdaSigners []ed25519.PublicKey
	for _, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(caller.program, seeds...)
		if err != nil {
			return RuntimeError(solana.InstructionErrorInvalidSeeds)
		}
		pdaSigners = append(pdaSigners, address)
	}

	accounts := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		callerAccount := caller.find(meta.PublicKey)
		if callerAccount == nil {
			return ErrMissingAccount
		}

		if meta.IsWritable && !caller.isWritable(meta.PublicKey) {
			return ErrPrivilegeEscalation
		}
		if meta.IsSigner && !caller.isSigner(meta.PublicKey) && !containsKey(pdaSigners, meta.PublicKey) {
			return ErrPrivilegeEscalation
		}

		accounts[i] = &AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			state:      callerAccount.state,
		}
	}

	// The caller's own changes are checked before the callee runs, and
	// the callee's changes become the caller's new baseline afterwards.
	if err := caller.verify(); err != nil {
		return err
	}
	caller.snapshot()

	if err := ic.process(program, accounts, ix.Data); err != nil {
		return err
	}

	caller.snapshot()
	return nil
}

func (ic *InvokeContext) process(program Program, accounts []*AccountInfo, data []byte) error {
	id := program.ProgramID()

	if len(ic.stack) >= maxInvokeDepth {
		return ErrCallDepth
	}
	for _, f := range ic.stack {
		if bytes.Equal(f.program, id) {
			return ErrReentrancyNotAllowed
		}
	}

	f := &frame{
		program:  id,
		accounts: accounts,
	}
	f.snapshot()

	ic.stack = append(ic.stack, f)
	ic.logs = append(ic.logs, fmt.Sprintf("Program %s invoke [%d]", base58.Encode(id), len(ic.stack)))

	err := program.Process(ic, accounts, data)
	if err == nil {
		err = f.verify()
	}

	ic.stack = ic.stack[:len(ic.stack)-1]

	if err != nil {
		ic.logs = append(ic.logs, fmt.Sprintf("Program %s failed: %v", base58.Encode(id), err))
		return err
	}

	ic.logs = append(ic.logs, fmt.Sprintf("Program %s success", base58.Encode(id)))
	return nil
}

func (f *frame) find(key ed25519.PublicKey) *AccountInfo {
	for _, account := range f.accounts {
		if bytes.Equal(account.Key, key) {
			return account
		}
	}
	return nil
}

func (f *frame) isWritable(key ed25519.PublicKey) bool {
	for _, account := range f.accounts {
		if account.IsWritable && bytes.Equal(account.Key, key) {
			return true
		}
	}
	return false
}

func (f *frame) isSigner(key ed25519.PublicKey) bool {
	for _, account := range f.accounts {
		if account.IsSigner && bytes.Equal(account.Key, key) {
			return true
		}
	}
	return false
}

func (f *frame) snapshot() {
	f.pre = make(map[string]*solana.AccountInfo)
	for _, account := range f.accounts {
		f.pre[string(account.Key)] = cloneAccount(account.state)
	}
}

// verify checks the changes made to the frame's accounts since its last
// snapshot against the ownership and privilege rules
func (f *frame) verify() error {
	var preTotal, postTotal uint64
	var carry uint64

	for key, pre := range f.pre {
		account := f.find(ed25519.PublicKey(key))
		post := account.state

		var c uint64
		preTotal, c = bits.Add64(preTotal, pre.Lamports, 0)
		carry |= c
		postTotal, c = bits.Add64(postTotal, post.Lamports, 0)
		carry |= c

		if !f.isWritable(account.Key) {
			if pre.Lamports != post.Lamports {
				return ErrReadonlyLamportChange
			}
			if !bytes.Equal(pre.Data, post.Data) || !bytes.Equal(pre.Owner, post.Owner) {
				return ErrReadonlyDataModified
			}
			continue
		}

		isOwner := bytes.Equal(pre.Owner, f.program)

		if pre.Executable != post.Executable {
			return ErrExecutableModified
		}
		if !bytes.Equal(pre.Owner, post.Owner) && (!isOwner || !isZeroed(post.Data)) {
			return ErrModifiedProgramID
		}
		if post.Lamports < pre.Lamports && !isOwner {
			return ErrExternalAccountLamportSpend
		}
		if len(pre.Data) != len(post.Data) && !isOwner {
			return ErrAccountDataSizeChanged
		}
		if !bytes.Equal(pre.Data, post.Data) && !isOwner {
			return ErrExternalAccountDataModified
		}
	}

	if carry != 0 || preTotal != postTotal {
		return ErrUnbalancedInstruction
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
