package system

import (
	"github.com/pkg/errors"

	"github.com/apologystake/stake-server/pkg/solana/binary"
)

const (
	ClockAccountSize = 5 * 8
	RentAccountSize  = 8 + 8 + 1
)

var ErrInvalidAccountSize = errors.New("invalid sysvar account size")

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/clock.rs
type ClockAccount struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (obj ClockAccount) Marshal() []byte {
	data := make([]byte, ClockAccountSize)

	var offset int
	binary.PutUint64(data[offset:], obj.Slot, &offset)
	binary.PutInt64(data[offset:], obj.EpochStartTimestamp, &offset)
	binary.PutUint64(data[offset:], obj.Epoch, &offset)
	binary.PutUint64(data[offset:], obj.LeaderScheduleEpoch, &offset)
	binary.PutInt64(data[offset:], obj.UnixTimestamp, &offset)

	return data
}

func (obj *ClockAccount) Unmarshal(data []byte) error {
	if len(data) != ClockAccountSize {
		return ErrInvalidAccountSize
	}

	var offset int
	binary.GetUint64(data[offset:], &obj.Slot, &offset)
	binary.GetInt64(data[offset:], &obj.EpochStartTimestamp, &offset)
	binary.GetUint64(data[offset:], &obj.Epoch, &offset)
	binary.GetUint64(data[offset:], &obj.LeaderScheduleEpoch, &offset)
	binary.GetInt64(data[offset:], &obj.UnixTimestamp, &offset)

	return nil
}

// RentAccount mirrors the Rent sysvar. The exemption threshold is stored as
// an f64 on chain; whole years are sufficient here.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs
type RentAccount struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	BurnPercent         uint8
}

func (obj RentAccount) Marshal() []byte {
	data := make([]byte, RentAccountSize)

	var offset int
	binary.PutUint64(data[offset:], obj.LamportsPerByteYear, &offset)
	binary.PutUint64(data[offset:], obj.ExemptionYears, &offset)
	binary.PutUint8(data[offset:], obj.BurnPercent, &offset)

	return data
}

func (obj *RentAccount) Unmarshal(data []byte) error {
	if len(data) != RentAccountSize {
		return ErrInvalidAccountSize
	}

	var offset int
	binary.GetUint64(data[offset:], &obj.LamportsPerByteYear, &offset)
	binary.GetUint64(data[offset:], &obj.ExemptionYears, &offset)
	binary.GetUint8(data[offset:], &obj.BurnPercent, &offset)

	return nil
}

// MinimumBalance returns the rent exempt balance for an account holding size
// bytes of data.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L71
func (obj RentAccount) MinimumBalance(size uint64) uint64 {
	const accountStorageOverhead = 128
	return (accountStorageOverhead + size) * obj.LamportsPerByteYear * obj.ExemptionYears
}
