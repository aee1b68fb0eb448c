package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	programDerivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds = errors.New("too many seeds")
	ErrSeedTooLong  = errors.New("seed too long")

	// ErrOnCurve is returned when seeds hash to a point on the ed25519 curve,
	// which would make the derived address signable.
	ErrOnCurve = errors.New("derived address is on curve")

	ErrNoViableBump = errors.New("no viable bump seed")
)

// Overridden in tests to force on-curve results
var newAddressHash func() hash.Hash = sha256.New

// IsOnCurve reports whether key decodes to a point on the ed25519 curve, and
// so could have a private key.
func IsOnCurve(key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	var encoded [ed25519.PublicKeySize]byte
	copy(encoded[:], key)

	var point edwards25519.ExtendedGroupElement
	return point.FromBytes(&encoded)
}

// CreateProgramAddress derives the program address for program and seeds, as
// sha256(seeds || program || "ProgramDerivedAddress"). The result must not
// lie on the curve, otherwise ErrOnCurve is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return nil, ErrTooManySeeds
	}

	h := newAddressHash()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return nil, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(programDerivedAddressMarker))

	address := ed25519.PublicKey(h.Sum(nil)[:ed25519.PublicKeySize])
	if IsOnCurve(address) {
		return nil, ErrOnCurve
	}
	return address, nil
}

// FindProgramAddressAndBump searches bump seeds from 255 downwards, appending
// each to seeds, and returns the first off-curve address with its bump.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := math.MaxUint8; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, uint8(bump), nil
		case ErrOnCurve:
		default:
			return nil, 0, err
		}
	}
	return nil, 0, ErrNoViableBump
}

// FindProgramAddress is FindProgramAddressAndBump without the bump
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}
