package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, encoded string) ed25519.PublicKey {
	decoded, err := base58.Decode(encoded)
	require.NoError(t, err)
	return decoded
}

func TestCreateProgramAddress(t *testing.T) {
	program := mustDecode(t, "BPFLoader1111111111111111111111111111111111")

	// Vectors from the Solana SDK, typo included
	for _, tc := range []struct {
		seeds    [][]byte
		expected string
	}{
		{[][]byte{{}, {1}}, "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT"},
		{[][]byte{[]byte("☉")}, "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7"},
		{[][]byte{[]byte("Talking"), []byte("Squirrels")}, "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds"},
		{[][]byte{mustDecode(t, "SeedPubey1111111111111111111111111111111111")}, "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K"},
	} {
		address, err := CreateProgramAddress(program, tc.seeds...)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(address))
		assert.False(t, IsOnCurve(address))
	}

	// Seed boundaries split differently must not collide
	a, err := CreateProgramAddress(program, []byte("Talking"))
	require.NoError(t, err)
	b, err := CreateProgramAddress(program, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	program := mustDecode(t, "BPFLoader1111111111111111111111111111111111")

	_, err := CreateProgramAddress(program, make([]byte, MaxSeedLength))
	assert.NoError(t, err)

	_, err = CreateProgramAddress(program, []byte("ok"), make([]byte, MaxSeedLength+1))
	assert.Equal(t, ErrSeedTooLong, err)

	_, err = CreateProgramAddress(program, make([][]byte, MaxSeeds+1)...)
	assert.Equal(t, ErrTooManySeeds, err)

	_, _, err = FindProgramAddressAndBump(program, make([]byte, MaxSeedLength+1))
	assert.Equal(t, ErrSeedTooLong, err)
}

type fixedHash struct {
	hash.Hash
	sum []byte
}

func (h *fixedHash) Write(p []byte) (int, error) { return len(p), nil }
func (h *fixedHash) Sum([]byte) []byte { return h.sum }

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	onCurve, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	newAddressHash = func() hash.Hash { return &fixedHash{Hash: sha256.New(), sum: onCurve} }
	defer func() { newAddressHash = sha256.New }()

	_, err = CreateProgramAddress(onCurve, []byte("apology"))
	assert.Equal(t, ErrOnCurve, err)

	_, _, err = FindProgramAddressAndBump(onCurve, []byte("apology"))
	assert.Equal(t, ErrNoViableBump, err)
}

func TestFindProgramAddress_Reference(t *testing.T) {
	for program, expected := range map[string]string{
		"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM":  "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd",
		"8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh":  "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S",
		"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3":  "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv",
		"GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP":  "2mN5Nfq9v1EwTV9FPTHPESZ3XiZce9wi5PQoULFuxvev",
		"21Z7hRtGQYRi8NocdZzhRuBRt9UZbFXbm1dKYvevp4vB": "9PPbRbNP3rqwzk16r7NDBzk1YDfo9EpWDWSqCYLn5eaF",
		"2M59vuWgsiuHAqQVB6KvuXuaBCJR8138gMAm4uCuR6Du": "E5dLtHAM353EPnHyuZ32sKREn26VW4Y8bzb2KQJTBHQh",
	} {
		actual, err := FindProgramAddress(mustDecode(t, program), []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.Equal(t, expected, base58.Encode(actual))
	}
}

func TestFindProgramAddressAndBump(t *testing.T) {
	offender, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	victim, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		program, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		seeds := [][]byte{[]byte("apology"), offender, victim, {byte(i), 0, 0, 0, 0, 0, 0, 0}}
		original := bytes.Join(seeds, nil)

		address, bump, err := FindProgramAddressAndBump(program, seeds...)
		require.NoError(t, err)
		assert.NotZero(t, bump)

		// Deriving again from the bump gives the same address
		recreated, err := CreateProgramAddress(program, append(seeds, []byte{bump})...)
		require.NoError(t, err)
		assert.Equal(t, address, recreated)

		// Callers' seeds are left untouched
		assert.Equal(t, original, bytes.Join(seeds, nil))
	}
}

func TestIsOnCurve(t *testing.T) {
	key, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	assert.True(t, IsOnCurve(key))
	assert.False(t, IsOnCurve(key[:16]))
	assert.False(t, IsOnCurve(nil))
}
