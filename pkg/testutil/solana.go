package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/apology/common"
)

// GenerateSolanaKeypair returns a fresh private key
func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}

// GenerateSolanaKeys returns n distinct public keys with no known signer
func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	var keys []ed25519.PublicKey
	for len(keys) < n {
		keys = append(keys, GenerateSolanaKeypair(t).Public().(ed25519.PublicKey))
	}
	return keys
}

// NewRandomAccount returns an account able to sign
func NewRandomAccount(t *testing.T) *common.Account {
	account, err := common.NewRandomAccount()
	require.NoError(t, err)
	return account
}
