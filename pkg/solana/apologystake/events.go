package apologystake

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/apologystake/stake-server/pkg/solana/binary"
)

// EventLogPrefix prefixes base64 encoded events in program logs
const EventLogPrefix = "Program data: "

var (
	ApologyCreatedEventDiscriminator   = anchorDiscriminator("event", "ApologyCreated")
	ApologyCompletedEventDiscriminator = anchorDiscriminator("event", "ApologyCompleted")
)

type ApologyCreatedEvent struct {
	Apology       ed25519.PublicKey
	Offender      ed25519.PublicKey
	Victim        ed25519.PublicKey
	StakeAmount   uint64
	ProbationDays uint64
	VictimHandle  string
}

func (e *ApologyCreatedEvent) Marshal() []byte {
	data := make([]byte, discriminatorSize+3*32+2*8+binary.StringSize(e.VictimHandle))

	var offset int
	putDiscriminator(data, ApologyCreatedEventDiscriminator, &offset)
	binary.PutKey32(data[offset:], e.Apology, &offset)
	binary.PutKey32(data[offset:], e.Offender, &offset)
	binary.PutKey32(data[offset:], e.Victim, &offset)
	binary.PutUint64(data[offset:], e.StakeAmount, &offset)
	binary.PutUint64(data[offset:], e.ProbationDays, &offset)
	binary.PutString(data[offset:], e.VictimHandle, &offset)
	return data
}

func (e *ApologyCreatedEvent) Unmarshal(data []byte) error {
	if len(data) < discriminatorSize+3*32+2*8+4 {
		return ErrInvalidEventData
	}
	if !bytes.Equal(data[:discriminatorSize], ApologyCreatedEventDiscriminator) {
		return ErrInvalidEventData
	}

	offset := discriminatorSize
	binary.GetKey32(data[offset:], &e.Apology, &offset)
	binary.GetKey32(data[offset:], &e.Offender, &offset)
	binary.GetKey32(data[offset:], &e.Victim, &offset)
	binary.GetUint64(data[offset:], &e.StakeAmount, &offset)
	binary.GetUint64(data[offset:], &e.ProbationDays, &offset)
	if err := binary.GetString(data[offset:], &e.VictimHandle, &offset); err != nil {
		return ErrInvalidEventData
	}
	return nil
}

type ApologyCompletedEvent struct {
	Apology    ed25519.PublicKey
	Resolution Resolution
}

func (e *ApologyCompletedEvent) Marshal() []byte {
	data := make([]byte, discriminatorSize+32+1)

	var offset int
	putDiscriminator(data, ApologyCompletedEventDiscriminator, &offset)
	binary.PutKey32(data[offset:], e.Apology, &offset)
	binary.PutUint8(data[offset:], uint8(e.Resolution), &offset)
	return data
}

func (e *ApologyCompletedEvent) Unmarshal(data []byte) error {
	if len(data) != discriminatorSize+32+1 {
		return ErrInvalidEventData
	}
	if !bytes.Equal(data[:discriminatorSize], ApologyCompletedEventDiscriminator) {
		return ErrInvalidEventData
	}

	var resolution uint8
	offset := discriminatorSize
	binary.GetKey32(data[offset:], &e.Apology, &offset)
	binary.GetUint8(data[offset:], &resolution, &offset)
	e.Resolution = Resolution(resolution)
	return nil
}

// EventLog formats an encoded event as a program log line
func EventLog(event []byte) string {
	return EventLogPrefix + base64.StdEncoding.EncodeToString(event)
}

// ParseEventLogs extracts the apology events from program logs. Log lines
// that aren't events of this program are skipped. Returned values are
// *ApologyCreatedEvent or *ApologyCompletedEvent.
func ParseEventLogs(logs []string) ([]interface{}, error) {
	var events []interface{}
	for _, line := range logs {
		if !strings.HasPrefix(line, EventLogPrefix) {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, EventLogPrefix))
		if err != nil || len(data) < discriminatorSize {
			continue
		}

		switch {
		case bytes.Equal(data[:discriminatorSize], ApologyCreatedEventDiscriminator):
			var event ApologyCreatedEvent
			if err := event.Unmarshal(data); err != nil {
				return nil, err
			}
			events = append(events, &event)
		case bytes.Equal(data[:discriminatorSize], ApologyCompletedEventDiscriminator):
			var event ApologyCompletedEvent
			if err := event.Unmarshal(data); err != nil {
				return nil, err
			}
			events = append(events, &event)
		}
	}
	return events, nil
}
