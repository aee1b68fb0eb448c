package apologystake

import (
	"bytes"
)

type InstructionType uint8

const (
	InstructionTypeUnknown InstructionType = iota
	InstructionTypeInitializeApology
	InstructionTypeReleaseStake
	InstructionTypeClaimStake
)

var (
	InitializeApologyDiscriminator = anchorDiscriminator("global", "initialize_apology")
	ReleaseStakeDiscriminator      = anchorDiscriminator("global", "release_stake")
	ClaimStakeDiscriminator        = anchorDiscriminator("global", "claim_stake")
)

// GetInstructionType identifies an instruction by its 8 byte discriminator
func GetInstructionType(data []byte) InstructionType {
	if len(data) < discriminatorSize {
		return InstructionTypeUnknown
	}

	switch {
	case bytes.Equal(data[:discriminatorSize], InitializeApologyDiscriminator):
		return InstructionTypeInitializeApology
	case bytes.Equal(data[:discriminatorSize], ReleaseStakeDiscriminator):
		return InstructionTypeReleaseStake
	case bytes.Equal(data[:discriminatorSize], ClaimStakeDiscriminator):
		return InstructionTypeClaimStake
	}
	return InstructionTypeUnknown
}

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitializeApology:
		return "initialize_apology"
	case InstructionTypeReleaseStake:
		return "release_stake"
	case InstructionTypeClaimStake:
		return "claim_stake"
	}
	return "unknown"
}
