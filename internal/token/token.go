package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DefaultSlotDuration is the rotation window for device tokens.
const DefaultSlotDuration = 15 * time.Second

const (
	// SecretSize is the length of a device secret in bytes.
	SecretSize = 32
	// PrefixSize is the length of the broadcastable token prefix.
	PrefixSize = 16
	// MACSize is the length of the device authenticity tag.
	MACSize = 8
)

// SlotAt returns the time slot containing t for the given rotation window.
func SlotAt(t time.Time, slotDuration time.Duration) uint32 {
	return uint32(uint64(t.Unix()) / uint64(slotDuration/time.Second))
}

// Generate derives the rotating token for one (secret, slot) pair.
//
// The token is a single HMAC-SHA256 digest of the big-endian slot number,
// sliced into two adjacent regions: bytes [0:16) are the public prefix and
// bytes [16:24) are the device MAC. The remaining digest bytes are discarded.
// Receiver and backend depend on these exact offsets.
func Generate(secret []byte, slot uint32) (prefix [PrefixSize]byte, mac [MACSize]byte) {
	var slotBytes [4]byte
	binary.BigEndian.PutUint32(slotBytes[:], slot)

	h := hmac.New(sha256.New, secret)
	h.Write(slotBytes[:])
	digest := h.Sum(nil)

	copy(prefix[:], digest[:PrefixSize])
	copy(mac[:], digest[PrefixSize:PrefixSize+MACSize])
	return prefix, mac
}
