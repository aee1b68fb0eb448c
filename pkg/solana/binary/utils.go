package binary

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
)

// ErrStringTooLong is returned when a borsh string exceeds its reserved capacity
var ErrStringTooLong = errors.New("string exceeds reserved capacity")

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	*offset += ed25519.PublicKeySize
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst, v)
	*offset += 8
}

func PutInt64(dst []byte, v int64, offset *int) {
	binary.LittleEndian.PutUint64(dst, uint64(v))
	*offset += 8
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst, v)
	*offset += 4
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	*offset += 1
}

// PutString writes a borsh encoded string (u32 length prefix followed by the
// raw bytes).
func PutString(dst []byte, v string, offset *int) {
	binary.LittleEndian.PutUint32(dst, uint32(len(v)))
	copy(dst[4:], v)
	*offset += 4 + len(v)
}

// PutFixedString writes a borsh encoded string into a region reserving
// capacity bytes for the content. The offset always advances by 4+capacity.
func PutFixedString(dst []byte, v string, capacity int, offset *int) error {
	if len(v) > capacity {
		return ErrStringTooLong
	}

	binary.LittleEndian.PutUint32(dst, uint32(len(v)))
	copy(dst[4:4+capacity], v)
	*offset += 4 + capacity
	return nil
}

// StringSize returns the number of bytes a borsh encoded string occupies
func StringSize(v string) int {
	return 4 + len(v)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src)
	*offset += ed25519.PublicKeySize
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src)
	*offset += 8
}

func GetInt64(src []byte, dst *int64, offset *int) {
	*dst = int64(binary.LittleEndian.Uint64(src))
	*offset += 8
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src)
	*offset += 4
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	*offset += 1
}

// GetString reads a borsh encoded string. The caller must ensure src holds at
// least the 4 byte prefix.
func GetString(src []byte, dst *string, offset *int) error {
	length := int(binary.LittleEndian.Uint32(src))
	if 4+length > len(src) {
		return ErrStringTooLong
	}

	*dst = string(src[4 : 4+length])
	*offset += 4 + length
	return nil
}

// GetFixedString reads a string written by PutFixedString
func GetFixedString(src []byte, dst *string, capacity int, offset *int) error {
	length := int(binary.LittleEndian.Uint32(src))
	if length > capacity || 4+length > len(src) {
		return ErrStringTooLong
	}

	*dst = string(src[4 : 4+length])
	*offset += 4 + capacity
	return nil
}
