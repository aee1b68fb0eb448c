package apologystake

import (
	"crypto/ed25519"
	"errors"
)

var (
	ErrInvalidProgram     = errors.New("invalid program id")
	ErrInvalidAccountData = errors.New("unexpected account data")
	ErrInvalidEventData   = errors.New("unexpected event data")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("BEzAB38XypEyvKauzYz6CUKhigu3jgoFSzyLSW5ykUFJ")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
)
