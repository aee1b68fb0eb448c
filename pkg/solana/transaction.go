package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"sort"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

// MaxTransactionSize is the largest serialized transaction that fits in a
// network packet.
//
// Reference: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
const MaxTransactionSize = 1232

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Signature [ed25519.SignatureSize]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

type Blockhash [sha256.Size]byte

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

// Header describes how the leading entries of Message.Accounts are
// permissioned. Signers come first, with the read-only ones last among them,
// and the read-only non-signers sit at the end of the list.
type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

// Transaction is a legacy (unversioned) transaction. Signatures are in the
// same order as the signing accounts of the message.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

type messageAccount struct {
	AccountMeta
	isPayer   bool
	isProgram bool
}

// order packs the account's sort priority, lowest first: the payer, then
// signers before non-signers and writable before read-only, with programs
// after everything else.
func (a messageAccount) order() int {
	var order int
	for _, bit := range []bool{!a.isPayer, a.isProgram, !a.IsSigner, !a.IsWritable} {
		order <<= 1
		if bit {
			order |= 1
		}
	}
	return order
}

// NewTransaction compiles instructions into an unsigned transaction paid for
// by payer. Accounts referenced more than once are merged, keeping the
// strongest permissions requested for them.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	var accounts []messageAccount
	positions := make(map[string]int)

	add := func(account messageAccount) {
		key := string(account.PublicKey)
		if i, ok := positions[key]; ok {
			accounts[i].IsSigner = accounts[i].IsSigner || account.IsSigner
			accounts[i].IsWritable = accounts[i].IsWritable || account.IsWritable
			accounts[i].isPayer = accounts[i].isPayer || account.isPayer
			return
		}
		positions[key] = len(accounts)
		accounts = append(accounts, account)
	}

	add(messageAccount{AccountMeta: NewAccountMeta(payer, true), isPayer: true})
	for _, ix := range instructions {
		add(messageAccount{AccountMeta: AccountMeta{PublicKey: ix.Program}, isProgram: true})
		for _, account := range ix.Accounts {
			add(messageAccount{AccountMeta: account})
		}
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		if oi, oj := accounts[i].order(), accounts[j].order(); oi != oj {
			return oi < oj
		}
		return bytes.Compare(accounts[i].PublicKey, accounts[j].PublicKey) < 0
	})

	var m Message
	for i, account := range accounts {
		positions[string(account.PublicKey)] = i

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}

		key := account.PublicKey
		if len(key) == 0 {
			key = make(ed25519.PublicKey, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)
	}

	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: byte(positions[string(ix.Program)]),
			Data:         ix.Data,
		}
		for _, account := range ix.Accounts {
			compiled.Accounts = append(compiled.Accounts, byte(positions[string(account.PublicKey)]))
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the first signature, which identifies the transaction
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of signers, which may be given in any
// order. Every signer must be one of the message's signing accounts.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		index := t.Message.indexOf(pub)
		if index < 0 || index >= len(t.Signatures) {
			return errors.Errorf("%s is not a signer of the transaction", base58.Encode(pub))
		}
		copy(t.Signatures[index][:], ed25519.Sign(signer, message))
	}
	return nil
}

// VerifySignatures checks that every required signer produced a valid
// signature over the message.
func (t *Transaction) VerifySignatures() error {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return errors.Wrapf(ErrMissingSignature, "expected %d signatures, got %d", t.Message.Header.NumSignatures, len(t.Signatures))
	}
	if len(t.Message.Accounts) < len(t.Signatures) {
		return errors.New("fewer accounts than signatures")
	}

	message := t.Message.Marshal()
	for i, sig := range t.Signatures {
		signer := t.Message.Accounts[i]
		if sig == (Signature{}) {
			return errors.Wrapf(ErrMissingSignature, "signer %s", base58.Encode(signer))
		}
		if !ed25519.Verify(signer, message, sig[:]) {
			return errors.Wrapf(ErrInvalidSignature, "signer %s", base58.Encode(signer))
		}
	}
	return nil
}

// IsSigner reports whether the account at index signed the message
func (m Message) IsSigner(index int) bool {
	return index >= 0 && index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index is writable
func (m Message) IsWritable(index int) bool {
	if index < 0 || index >= len(m.Accounts) {
		return false
	}
	if m.IsSigner(index) {
		return index < int(m.Header.NumSignatures)-int(m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

func (m Message) indexOf(account ed25519.PublicKey) int {
	for i, candidate := range m.Accounts {
		if bytes.Equal(candidate, account) {
			return i
		}
	}
	return -1
}
