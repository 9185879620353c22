package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Sign computes the receiver signature over a report's signed region:
//
//	HMAC-SHA256(receiverSecret,
//	    org_id || receiver_id || BE32(time_slot) || token_prefix || BE32(timestamp))
//
// IDs are raw UTF-8 bytes and integers are big-endian uint32. The
// concatenation is order-fixed and never a textual re-encoding, so there is
// no canonicalization ambiguity between signer and verifier.
func Sign(receiverSecret []byte, orgID, receiverID string, timeSlot uint32, tokenPrefix []byte, timestamp uint32) []byte {
	var be [4]byte
	h := hmac.New(sha256.New, receiverSecret)
	h.Write([]byte(orgID))
	h.Write([]byte(receiverID))
	binary.BigEndian.PutUint32(be[:], timeSlot)
	h.Write(be[:])
	h.Write(tokenPrefix)
	binary.BigEndian.PutUint32(be[:], timestamp)
	h.Write(be[:])
	return h.Sum(nil)
}

// Verify recomputes the expected signature for a parsed report and compares
// it in constant time.
func Verify(receiverSecret []byte, p *Parsed) bool {
	expected := Sign(receiverSecret, p.OrgID, p.ReceiverID, p.TimeSlot, p.PrefixBytes[:], uint32(p.Timestamp))
	return hmac.Equal(expected, p.SignatureBytes)
}
