package binary

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedString(t *testing.T) {
	buf := make([]byte, 4+16+8)

	var offset int
	require.NoError(t, PutFixedString(buf[offset:], "sorry", 16, &offset))
	PutInt64(buf[offset:], -42, &offset)
	assert.Equal(t, len(buf), offset)

	var actualString string
	var actualInt int64
	offset = 0
	require.NoError(t, GetFixedString(buf[offset:], &actualString, 16, &offset))
	GetInt64(buf[offset:], &actualInt, &offset)

	assert.Equal(t, "sorry", actualString)
	assert.EqualValues(t, -42, actualInt)
	assert.Equal(t, len(buf), offset)

	offset = 0
	assert.Equal(t, ErrStringTooLong, PutFixedString(buf, "this string is far too long", 16, &offset))
	assert.Zero(t, offset)
}

func TestVariableString(t *testing.T) {
	buf := make([]byte, StringSize("hello")+ed25519.PublicKeySize)
	key := ed25519.PublicKey(make([]byte, ed25519.PublicKeySize))
	key[0] = 7

	var offset int
	PutString(buf[offset:], "hello", &offset)
	PutKey32(buf[offset:], key, &offset)

	var actualString string
	var actualKey ed25519.PublicKey
	offset = 0
	require.NoError(t, GetString(buf[offset:], &actualString, &offset))
	GetKey32(buf[offset:], &actualKey, &offset)

	assert.Equal(t, "hello", actualString)
	assert.Equal(t, key, actualKey)

	corrupted := []byte{0xff, 0x00, 0x00, 0x00, 'a'}
	offset = 0
	assert.Equal(t, ErrStringTooLong, GetString(corrupted, &actualString, &offset))
}
