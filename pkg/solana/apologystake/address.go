package apologystake

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/apologystake/stake-server/pkg/solana"
)

var (
	ApologyPrefix = []byte("apology")
	VaultPrefix   = []byte("vault")
)

type GetApologyAddressArgs struct {
	Offender ed25519.PublicKey
	Victim   ed25519.PublicKey
	Nonce    int64
}

func GetApologyAddress(args *GetApologyAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		ApologyPrefix,
		args.Offender,
		args.Victim,
		NonceSeed(args.Nonce),
	)
}

type GetVaultAddressArgs struct {
	Apology ed25519.PublicKey
}

func GetVaultAddress(args *GetVaultAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		VaultPrefix,
		args.Apology,
	)
}

// NonceSeed is the little endian i64 encoding of nonce used as a PDA seed
func NonceSeed(nonce int64) []byte {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, uint64(nonce))
	return seed
}
