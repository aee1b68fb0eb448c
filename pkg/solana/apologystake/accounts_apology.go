package apologystake

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/apologystake/stake-server/pkg/solana/binary"
)

const (
	MaxMessageLength      = 200
	MaxVictimHandleLength = 64

	SecondsPerDay = 86400
)

const (
	ApologyAccountSize = (discriminatorSize + // discriminator
		32 + // offender
		32 + // victim
		8 + // nonce
		8 + // stake_amount
		8 + // probation_end
		8 + // created_at
		1 + // status
		1 + // resolution
		4 + MaxMessageLength + // message
		4 + MaxVictimHandleLength) // victim_handle

	// Offsets used for memcmp program account queries
	ApologyOffenderOffset = discriminatorSize
	ApologyVictimOffset   = ApologyOffenderOffset + 32
)

var ApologyAccountDiscriminator = anchorDiscriminator("account", "Apology")

type ApologyStatus uint8

const (
	ApologyStatusActive ApologyStatus = iota
	ApologyStatusCompleted
)

func (s ApologyStatus) String() string {
	switch s {
	case ApologyStatusActive:
		return "active"
	case ApologyStatusCompleted:
		return "completed"
	}
	return "unknown"
}

type Resolution uint8

const (
	ResolutionNone Resolution = iota
	ResolutionReleased
	ResolutionClaimed
)

func (r Resolution) String() string {
	switch r {
	case ResolutionNone:
		return "none"
	case ResolutionReleased:
		return "released"
	case ResolutionClaimed:
		return "claimed"
	}
	return "unknown"
}

type ApologyAccount struct {
	Offender     ed25519.PublicKey
	Victim       ed25519.PublicKey
	Nonce        int64
	StakeAmount  uint64
	ProbationEnd int64
	CreatedAt    int64
	Status       ApologyStatus
	Resolution   Resolution
	Message      string
	VictimHandle string
}

func (obj *ApologyAccount) Marshal() ([]byte, error) {
	data := make([]byte, ApologyAccountSize)

	var offset int
	putDiscriminator(data, ApologyAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Offender, &offset)
	binary.PutKey32(data[offset:], obj.Victim, &offset)
	binary.PutInt64(data[offset:], obj.Nonce, &offset)
	binary.PutUint64(data[offset:], obj.StakeAmount, &offset)
	binary.PutInt64(data[offset:], obj.ProbationEnd, &offset)
	binary.PutInt64(data[offset:], obj.CreatedAt, &offset)
	binary.PutUint8(data[offset:], uint8(obj.Status), &offset)
	binary.PutUint8(data[offset:], uint8(obj.Resolution), &offset)
	if err := binary.PutFixedString(data[offset:], obj.Message, MaxMessageLength, &offset); err != nil {
		return nil, ErrMessageTooLong
	}
	if err := binary.PutFixedString(data[offset:], obj.VictimHandle, MaxVictimHandleLength, &offset); err != nil {
		return nil, ErrVictimHandleTooLong
	}

	return data, nil
}

func (obj *ApologyAccount) Unmarshal(data []byte) error {
	if len(data) != ApologyAccountSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, ApologyAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	var status, resolution uint8
	binary.GetKey32(data[offset:], &obj.Offender, &offset)
	binary.GetKey32(data[offset:], &obj.Victim, &offset)
	binary.GetInt64(data[offset:], &obj.Nonce, &offset)
	binary.GetUint64(data[offset:], &obj.StakeAmount, &offset)
	binary.GetInt64(data[offset:], &obj.ProbationEnd, &offset)
	binary.GetInt64(data[offset:], &obj.CreatedAt, &offset)
	binary.GetUint8(data[offset:], &status, &offset)
	binary.GetUint8(data[offset:], &resolution, &offset)
	if err := binary.GetFixedString(data[offset:], &obj.Message, MaxMessageLength, &offset); err != nil {
		return ErrInvalidAccountData
	}
	if err := binary.GetFixedString(data[offset:], &obj.VictimHandle, MaxVictimHandleLength, &offset); err != nil {
		return ErrInvalidAccountData
	}

	obj.Status = ApologyStatus(status)
	obj.Resolution = Resolution(resolution)
	if obj.Status > ApologyStatusCompleted || obj.Resolution > ResolutionClaimed {
		return ErrInvalidAccountData
	}

	return nil
}

// Complete is the only state transition: Active to Completed with the given
// resolution.
func (obj *ApologyAccount) Complete(resolution Resolution) error {
	if obj.Status != ApologyStatusActive {
		return ErrInvalidStatus
	}
	if resolution != ResolutionReleased && resolution != ResolutionClaimed {
		return ErrInvalidStatus
	}

	obj.Status = ApologyStatusCompleted
	obj.Resolution = resolution
	return nil
}

// IsProbationOver reports whether the probation window has elapsed at unixTime
func (obj *ApologyAccount) IsProbationOver(unixTime int64) bool {
	return unixTime >= obj.ProbationEnd
}

func (obj *ApologyAccount) String() string {
	return fmt.Sprintf(
		"ApologyAccount{offender=%s,victim=%s,nonce=%d,stake_amount=%d,probation_end=%d,created_at=%d,status=%s,resolution=%s,message_len=%d,victim_handle=%s}",
		base58.Encode(obj.Offender),
		base58.Encode(obj.Victim),
		obj.Nonce,
		obj.StakeAmount,
		obj.ProbationEnd,
		obj.CreatedAt,
		obj.Status,
		obj.Resolution,
		len(obj.Message),
		obj.VictimHandle,
	)
}
