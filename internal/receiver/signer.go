// Package receiver implements the receiver-resident side of the presence
// protocol: stamping captured broadcast frames with receiver identity and
// time, and forwarding the signed reports to the backend.
package receiver

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"presence-backend/internal/token"
	"presence-backend/internal/wire"
)

// Signer co-signs captured broadcast frames for one receiver. The receiver
// holds no device secrets and cannot validate the device MAC; its signature
// only vouches for "I physically observed this payload at this time".
type Signer struct {
	orgID      string
	receiverID string
	secret     []byte
}

// NewSigner creates a signer for a provisioned (org, receiver, secret)
// identity.
func NewSigner(orgID, receiverID string, secret []byte) *Signer {
	return &Signer{orgID: orgID, receiverID: receiverID, secret: secret}
}

// Sign builds the wire report for a captured frame observed at the given
// wall-clock time.
func (s *Signer) Sign(p token.Payload, observedAt time.Time) (wire.Report, error) {
	ts := observedAt.Unix()
	if ts <= 0 || ts > math.MaxUint32 {
		return wire.Report{}, fmt.Errorf("observation time %d does not fit the signed timestamp", ts)
	}

	sig := wire.Sign(s.secret, s.orgID, s.receiverID, p.TimeSlot, p.Prefix[:], uint32(ts))

	return wire.Report{
		OrgID:       s.orgID,
		ReceiverID:  s.receiverID,
		Timestamp:   ts,
		TimeSlot:    p.TimeSlot,
		Version:     p.Version,
		Flags:       p.Flags,
		TokenPrefix: hex.EncodeToString(p.Prefix[:]),
		MAC:         hex.EncodeToString(p.MAC[:]),
		Signature:   hex.EncodeToString(sig),
	}, nil
}
