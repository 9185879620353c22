package token

import (
	"encoding/binary"
	"fmt"
)

// PayloadSize is the fixed length of a broadcast frame. The fixed size is
// the framing; there is no length prefix or delimiter on the medium.
const PayloadSize = 30

// Version is the current broadcast frame version.
const Version = 1

// Payload is a decoded broadcast frame.
//
// Layout: version:u8 | flags:u8 | time_slot:u32BE | token_prefix:16B | device_mac:8B
type Payload struct {
	Version  uint8
	Flags    uint8
	TimeSlot uint32
	Prefix   [PrefixSize]byte
	MAC      [MACSize]byte
}

// Encode packs the payload into its 30-byte wire form.
func (p Payload) Encode() [PayloadSize]byte {
	var out [PayloadSize]byte
	out[0] = p.Version
	out[1] = p.Flags
	binary.BigEndian.PutUint32(out[2:6], p.TimeSlot)
	copy(out[6:22], p.Prefix[:])
	copy(out[22:30], p.MAC[:])
	return out
}

// Decode parses a captured frame. Frames that are not exactly PayloadSize
// bytes are rejected before any offset is interpreted.
func Decode(frame []byte) (Payload, error) {
	if len(frame) != PayloadSize {
		return Payload{}, fmt.Errorf("payload must be exactly %d bytes, got %d", PayloadSize, len(frame))
	}

	var p Payload
	p.Version = frame[0]
	p.Flags = frame[1]
	p.TimeSlot = binary.BigEndian.Uint32(frame[2:6])
	copy(p.Prefix[:], frame[6:22])
	copy(p.MAC[:], frame[22:30])
	return p, nil
}
