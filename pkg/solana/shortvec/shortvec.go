// Package shortvec implements the compact-u16 length prefix used by the
// Solana wire format: seven bits per byte, least significant group first,
// with the high bit set on every byte except the last.
package shortvec

import (
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedSize is the longest valid encoding, covering lengths up to
// math.MaxUint16
const MaxEncodedSize = 3

var (
	ErrLengthTooLarge = errors.Errorf("length exceeds %d", math.MaxUint16)
	ErrTruncated      = errors.New("truncated length prefix")
	ErrNonCanonical   = errors.New("non-canonical length prefix")
)

// AppendLen appends the encoding of n to dst
func AppendLen(dst []byte, n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint16 {
		return dst, ErrLengthTooLarge
	}

	for n >= 0x80 {
		dst = append(dst, byte(n)|0x80)
		n >>= 7
	}
	return append(dst, byte(n)), nil
}

// DecodeLen decodes the length prefix at the start of b, returning the length
// and the number of bytes it occupied. Encodings with trailing zero groups
// or values above math.MaxUint16 are rejected.
func DecodeLen(b []byte) (n int, size int, err error) {
	for shift := 0; ; shift += 7 {
		if size == MaxEncodedSize {
			return 0, 0, ErrLengthTooLarge
		}
		if size == len(b) {
			return 0, 0, ErrTruncated
		}

		group := b[size]
		size++

		if size > 1 && group == 0 {
			return 0, 0, ErrNonCanonical
		}

		n |= int(group&0x7f) << shift
		if group&0x80 == 0 {
			break
		}
	}

	if n > math.MaxUint16 {
		return 0, 0, ErrLengthTooLarge
	}
	return n, size, nil
}
