package common

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/solana"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// Account is a wallet or program address. The private key is only
// available for accounts that can sign.
type Account struct {
	publicKey  *Key
	privateKey *Key // Optional
}

// ApologyAccounts are the program addresses of a single apology
type ApologyAccounts struct {
	Offender *Account
	Victim   *Account
	Nonce    int64

	State     *Account
	StateBump uint8

	Vault     *Account
	VaultBump uint8
}

func NewAccountFromPublicKey(publicKey *Key) (*Account, error) {
	account := &Account{
		publicKey: publicKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewAccountFromPublicKeyBytes(publicKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPublicKeyString(publicKey string) (*Account, error) {
	key, err := NewKeyFromString(publicKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPublicKey(key)
}

func NewAccountFromPrivateKey(privateKey *Key) (*Account, error) {
	if privateKey == nil || privateKey.IsPublic() {
		return nil, errors.New("private key required")
	}

	publicKey, err := NewKeyFromBytes(ed25519.PrivateKey(privateKey.ToBytes()).Public().(ed25519.PublicKey))
	if err != nil {
		return nil, errors.Wrap(err, "error creating public key from private key")
	}

	account := &Account{
		publicKey:  publicKey,
		privateKey: privateKey,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func NewAccountFromPrivateKeyBytes(privateKey []byte) (*Account, error) {
	key, err := NewKeyFromBytes(privateKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(key)
}

func NewAccountFromPrivateKeyString(privateKey string) (*Account, error) {
	key, err := NewKeyFromString(privateKey)
	if err != nil {
		return nil, err
	}

	return NewAccountFromPrivateKey(key)
}

func NewRandomAccount() (*Account, error) {
	key, err := NewRandomKey()
	if err != nil {
		return nil, err
	}

	account, err := NewAccountFromPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid account")
	}
	return account, nil
}

func (a *Account) PublicKey() *Key {
	return a.publicKey
}

func (a *Account) PrivateKey() *Key {
	return a.privateKey
}

func (a *Account) ToPublicKey() ed25519.PublicKey {
	return a.publicKey.ToBytes()
}

// ToPrivateKey returns nil when the account can't sign
func (a *Account) ToPrivateKey() ed25519.PrivateKey {
	if a.privateKey == nil {
		return nil
	}
	return a.privateKey.ToBytes()
}

func (a *Account) Sign(message []byte) ([]byte, error) {
	if a.privateKey == nil {
		return nil, errors.New("private key not available")
	}

	return ed25519.Sign(a.privateKey.ToBytes(), message), nil
}

// IsOnCurve reports whether the account has a corresponding private key.
// Program derived addresses are always off curve and can never sign.
func (a *Account) IsOnCurve() bool {
	return solana.IsOnCurve(a.ToPublicKey())
}

func (a *Account) Equals(other *Account) bool {
	return other != nil && a.publicKey.Equals(other.publicKey)
}

// GetApologyAccounts derives the apology state and vault addresses for an
// apology from this account, as the offender, to victim
func (a *Account) GetApologyAccounts(victim *Account, nonce int64) (*ApologyAccounts, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating offender account")
	}
	if err := victim.Validate(); err != nil {
		return nil, errors.Wrap(err, "error validating victim account")
	}

	stateAddress, stateBump, err := apologystake.GetApologyAddress(&apologystake.GetApologyAddressArgs{
		Offender: a.ToPublicKey(),
		Victim:   victim.ToPublicKey(),
		Nonce:    nonce,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting apology address")
	}

	vaultAddress, vaultBump, err := apologystake.GetVaultAddress(&apologystake.GetVaultAddressArgs{
		Apology: stateAddress,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error getting vault address")
	}

	stateAccount, err := NewAccountFromPublicKeyBytes(stateAddress)
	if err != nil {
		return nil, errors.Wrap(err, "invalid apology address")
	}

	vaultAccount, err := NewAccountFromPublicKeyBytes(vaultAddress)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vault address")
	}

	return &ApologyAccounts{
		Offender: a,
		Victim:   victim,
		Nonce:    nonce,

		State:     stateAccount,
		StateBump: stateBump,

		Vault:     vaultAccount,
		VaultBump: vaultBump,
	}, nil
}

// GetInitializeInstruction builds the instruction that opens the apology
func (a *ApologyAccounts) GetInitializeInstruction(probationDays, stakeAmount uint64, message, victimHandle string) solana.Instruction {
	return apologystake.NewInitializeApologyInstruction(
		&apologystake.InitializeApologyInstructionAccounts{
			Apology:  a.State.ToPublicKey(),
			Offender: a.Offender.ToPublicKey(),
			Victim:   a.Victim.ToPublicKey(),
			Vault:    a.Vault.ToPublicKey(),
		},
		&apologystake.InitializeApologyInstructionArgs{
			ProbationDays: probationDays,
			StakeAmount:   stakeAmount,
			Message:       message,
			Nonce:         a.Nonce,
			VictimHandle:  victimHandle,
		},
	)
}

func (a *ApologyAccounts) GetReleaseInstruction() solana.Instruction {
	return apologystake.NewReleaseStakeInstruction(&apologystake.ReleaseStakeInstructionAccounts{
		Apology:  a.State.ToPublicKey(),
		Offender: a.Offender.ToPublicKey(),
		Victim:   a.Victim.ToPublicKey(),
		Vault:    a.Vault.ToPublicKey(),
	})
}

func (a *ApologyAccounts) GetClaimInstruction() solana.Instruction {
	return apologystake.NewClaimStakeInstruction(&apologystake.ClaimStakeInstructionAccounts{
		Apology: a.State.ToPublicKey(),
		Victim:  a.Victim.ToPublicKey(),
		Vault:   a.Vault.ToPublicKey(),
	})
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if err := a.publicKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating public key")
	}
	if !a.publicKey.IsPublic() {
		return errors.New("public key isn't public")
	}

	// Private keys are optional
	if a.privateKey == nil {
		return nil
	}

	if err := a.privateKey.Validate(); err != nil {
		return errors.Wrap(err, "error validating private key")
	}
	if a.privateKey.IsPublic() {
		return errors.New("private key isn't private")
	}

	expected := ed25519.PrivateKey(a.privateKey.ToBytes()).Public().(ed25519.PublicKey)
	if !bytes.Equal(a.publicKey.ToBytes(), expected) {
		return errors.New("private key doesn't map to public key")
	}

	return nil
}

func (a *Account) String() string {
	return a.publicKey.ToBase58()
}
