// Package wire defines the receiver-to-backend report format and the
// receiver signature over it. Both the receiver signer and the backend
// validator go through this package so the signed byte sequence can never
// drift between the two sides.
package wire

import (
	"encoding/hex"
	"fmt"
	"math"

	"presence-backend/internal/token"
)

// Report is the JSON wire message a receiver posts to the backend after
// capturing a broadcast frame. Byte fields are hex encoded.
type Report struct {
	OrgID       string `json:"org_id"`
	ReceiverID  string `json:"receiver_id"`
	Timestamp   int64  `json:"timestamp"`
	TimeSlot    uint32 `json:"time_slot"`
	Version     uint8  `json:"version"`
	Flags       uint8  `json:"flags"`
	TokenPrefix string `json:"token_prefix"`
	MAC         string `json:"mac"`
	Signature   string `json:"signature"`
}

// Parsed is a structurally validated report with byte fields decoded.
type Parsed struct {
	Report
	PrefixBytes    [token.PrefixSize]byte
	MACBytes       [token.MACSize]byte
	SignatureBytes []byte
}

// Parse performs the structural check: every field present, hex fields
// well-formed and exactly the right length, integers in range. It does no
// cryptography; an unparseable report carries no trust and is rejected
// before any signature work.
func (r Report) Parse() (*Parsed, error) {
	if r.OrgID == "" {
		return nil, fmt.Errorf("missing org_id")
	}
	if r.ReceiverID == "" {
		return nil, fmt.Errorf("missing receiver_id")
	}
	if r.Timestamp <= 0 || r.Timestamp > math.MaxUint32 {
		return nil, fmt.Errorf("timestamp %d out of range", r.Timestamp)
	}
	if r.Version != token.Version {
		return nil, fmt.Errorf("unsupported version %d", r.Version)
	}

	prefix, err := hex.DecodeString(r.TokenPrefix)
	if err != nil {
		return nil, fmt.Errorf("token_prefix is not valid hex: %w", err)
	}
	if len(prefix) != token.PrefixSize {
		return nil, fmt.Errorf("token_prefix must be %d bytes, got %d", token.PrefixSize, len(prefix))
	}

	mac, err := hex.DecodeString(r.MAC)
	if err != nil {
		return nil, fmt.Errorf("mac is not valid hex: %w", err)
	}
	if len(mac) != token.MACSize {
		return nil, fmt.Errorf("mac must be %d bytes, got %d", token.MACSize, len(mac))
	}

	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("missing signature")
	}

	p := &Parsed{Report: r, SignatureBytes: sig}
	copy(p.PrefixBytes[:], prefix)
	copy(p.MACBytes[:], mac)
	return p, nil
}
