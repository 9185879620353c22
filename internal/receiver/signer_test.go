package receiver

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-backend/internal/token"
	"presence-backend/internal/wire"
)

func capturedPayload() token.Payload {
	p := token.Payload{Version: token.Version, Flags: 0, TimeSlot: 1000}
	for i := range p.Prefix {
		p.Prefix[i] = byte(i)
	}
	for i := range p.MAC {
		p.MAC[i] = byte(0x10 + i)
	}
	return p
}

func TestSignProducesVerifiableReport(t *testing.T) {
	secret := []byte("receiver-secret")
	signer := NewSigner("org1", "rcv1", secret)

	report, err := signer.Sign(capturedPayload(), time.Unix(15000, 0))
	require.NoError(t, err)

	assert.Equal(t, "org1", report.OrgID)
	assert.Equal(t, "rcv1", report.ReceiverID)
	assert.Equal(t, int64(15000), report.Timestamp)
	assert.Equal(t, uint32(1000), report.TimeSlot)

	parsed, err := report.Parse()
	require.NoError(t, err)
	assert.True(t, wire.Verify(secret, parsed))
}

func TestSignCopiesPayloadVerbatim(t *testing.T) {
	// The receiver vouches for what it observed; it must not normalize or
	// reinterpret any payload field.
	p := capturedPayload()
	p.Flags = 0x7F

	report, err := NewSigner("org1", "rcv1", []byte("secret")).Sign(p, time.Unix(15000, 0))
	require.NoError(t, err)

	assert.Equal(t, p.Flags, report.Flags)
	assert.Equal(t, hex.EncodeToString(p.Prefix[:]), report.TokenPrefix)
	assert.Equal(t, hex.EncodeToString(p.MAC[:]), report.MAC)
}

func TestSignRejectsUnsignableTimestamps(t *testing.T) {
	signer := NewSigner("org1", "rcv1", []byte("secret"))

	_, err := signer.Sign(capturedPayload(), time.Unix(0, 0))
	assert.Error(t, err)

	_, err = signer.Sign(capturedPayload(), time.Unix(1<<33, 0))
	assert.Error(t, err)
}
