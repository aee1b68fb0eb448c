package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/solana/shortvec"
)

// Messages with the high bit set in their first byte are versioned
const versionedMessageFlag = 0x80

// Marshal returns the wire encoding of the transaction
func (t Transaction) Marshal() []byte {
	b := appendLen(nil, len(t.Signatures))
	for _, sig := range t.Signatures {
		b = append(b, sig[:]...)
	}
	return append(b, t.Message.Marshal()...)
}

func (t *Transaction) Unmarshal(b []byte) error {
	d := &decoder{buf: b}

	count := d.length("signature count")
	signatures := make([]Signature, 0, count)
	for i := 0; i < count && d.err == nil; i++ {
		var sig Signature
		copy(sig[:], d.take(ed25519.SignatureSize, "signature"))
		signatures = append(signatures, sig)
	}
	if d.err != nil {
		return d.err
	}

	var m Message
	if err := m.Unmarshal(d.buf); err != nil {
		return err
	}

	t.Signatures = signatures
	t.Message = m
	return nil
}

// Marshal returns the wire encoding of the message, which is what signers
// sign.
func (m Message) Marshal() []byte {
	b := []byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly}

	b = appendLen(b, len(m.Accounts))
	for _, account := range m.Accounts {
		b = append(b, account...)
	}

	b = append(b, m.RecentBlockhash[:]...)

	b = appendLen(b, len(m.Instructions))
	for _, ix := range m.Instructions {
		b = append(b, ix.ProgramIndex)
		b = appendLen(b, len(ix.Accounts))
		b = append(b, ix.Accounts...)
		b = appendLen(b, len(ix.Data))
		b = append(b, ix.Data...)
	}
	return b
}

// Unmarshal decodes a legacy message. Instructions referencing accounts
// outside of the account list are rejected.
func (m *Message) Unmarshal(b []byte) error {
	if len(b) > 0 && b[0]&versionedMessageFlag != 0 {
		return errors.New("versioned messages not supported")
	}

	d := &decoder{buf: b}

	var decoded Message
	header := d.take(3, "header")
	if d.err == nil {
		decoded.Header = Header{
			NumSignatures:     header[0],
			NumReadonlySigned: header[1],
			NumReadOnly:       header[2],
		}
	}

	accountCount := d.length("account count")
	for i := 0; i < accountCount && d.err == nil; i++ {
		account := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(account, d.take(ed25519.PublicKeySize, "account"))
		decoded.Accounts = append(decoded.Accounts, account)
	}

	copy(decoded.RecentBlockhash[:], d.take(len(decoded.RecentBlockhash), "recent blockhash"))

	instructionCount := d.length("instruction count")
	for i := 0; i < instructionCount && d.err == nil; i++ {
		var ix CompiledInstruction
		if programIndex := d.take(1, "program index"); d.err == nil {
			ix.ProgramIndex = programIndex[0]
		}
		ix.Accounts = d.bytes("instruction accounts")
		ix.Data = d.bytes("instruction data")
		if d.err != nil {
			return errors.Wrapf(d.err, "instruction %d", i)
		}

		if int(ix.ProgramIndex) >= len(decoded.Accounts) {
			return errors.Errorf("instruction %d: program index %d out of range", i, ix.ProgramIndex)
		}
		for _, index := range ix.Accounts {
			if int(index) >= len(decoded.Accounts) {
				return errors.Errorf("instruction %d: account index %d out of range", i, index)
			}
		}

		decoded.Instructions = append(decoded.Instructions, ix)
	}
	if d.err != nil {
		return d.err
	}

	*m = decoded
	return nil
}

// appendLen leaves b unchanged for lengths that can't be encoded, which
// only a transaction far above MaxTransactionSize could have.
func appendLen(b []byte, n int) []byte {
	b, _ = shortvec.AppendLen(b, n)
	return b
}

// decoder reads sequential fields from buf, remembering the first failure so
// callers can check once after a group of reads.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int, field string) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = errors.Errorf("failed to read %s: need %d bytes, have %d", field, n, len(d.buf))
		return nil
	}

	taken := d.buf[:n:n]
	d.buf = d.buf[n:]
	return taken
}

func (d *decoder) length(field string) int {
	if d.err != nil {
		return 0
	}

	n, size, err := shortvec.DecodeLen(d.buf)
	if err != nil {
		d.err = errors.Wrapf(err, "failed to read %s", field)
		return 0
	}
	d.buf = d.buf[size:]
	return n
}

func (d *decoder) bytes(field string) []byte {
	n := d.length(field + " length")
	taken := d.take(n, field)
	if taken == nil {
		return nil
	}
	return append([]byte{}, taken...)
}
