package apologystake

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/solana"
)

func TestGetApologyAddress(t *testing.T) {
	offender, victim := generateKey(t), generateKey(t)

	address, bump, err := GetApologyAddress(&GetApologyAddressArgs{
		Offender: offender,
		Victim:   victim,
		Nonce:    0,
	})
	require.NoError(t, err)
	assert.Len(t, address, ed25519.PublicKeySize)

	expected, err := solana.CreateProgramAddress(PROGRAM_ID, ApologyPrefix, offender, victim, make([]byte, 8), []byte{bump})
	require.NoError(t, err)
	assert.EqualValues(t, expected, address)

	again, _, err := GetApologyAddress(&GetApologyAddressArgs{
		Offender: offender,
		Victim:   victim,
		Nonce:    0,
	})
	require.NoError(t, err)
	assert.EqualValues(t, address, again)

	other, _, err := GetApologyAddress(&GetApologyAddressArgs{
		Offender: offender,
		Victim:   victim,
		Nonce:    1,
	})
	require.NoError(t, err)
	assert.NotEqualValues(t, address, other)

	swapped, _, err := GetApologyAddress(&GetApologyAddressArgs{
		Offender: victim,
		Victim:   offender,
		Nonce:    0,
	})
	require.NoError(t, err)
	assert.NotEqualValues(t, address, swapped)

	vault, vaultBump, err := GetVaultAddress(&GetVaultAddressArgs{Apology: address})
	require.NoError(t, err)
	assert.NotEqualValues(t, address, vault)

	expected, err = solana.CreateProgramAddress(PROGRAM_ID, VaultPrefix, address, []byte{vaultBump})
	require.NoError(t, err)
	assert.EqualValues(t, expected, vault)
}

func TestNonceSeed(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, NonceSeed(1))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, NonceSeed(-1))
}

func generateKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
