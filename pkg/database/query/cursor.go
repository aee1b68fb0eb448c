package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// CursorSize is the size of a cursor over a record's sequential id
const CursorSize = 8

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the opaque position of a record in a paged result set
type Cursor []byte

func ToCursor(id uint64) Cursor {
	b := make([]byte, CursorSize)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// ParseCursor decodes a cursor previously encoded with ToBase58
func ParseCursor(encoded string) (Cursor, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != CursorSize {
		return nil, ErrInvalidCursor
	}
	return decoded, nil
}

func (c Cursor) IsValid() bool {
	return len(c) == CursorSize
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
