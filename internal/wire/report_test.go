package wire

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-backend/internal/token"
)

func validReport(t *testing.T, secret []byte) Report {
	t.Helper()

	deviceSecret := []byte(strings.Repeat("s", token.SecretSize))
	prefix, mac := token.Generate(deviceSecret, 1000)

	sig := Sign(secret, "org1", "rcv1", 1000, prefix[:], 15000)
	return Report{
		OrgID:       "org1",
		ReceiverID:  "rcv1",
		Timestamp:   15000,
		TimeSlot:    1000,
		Version:     token.Version,
		Flags:       0,
		TokenPrefix: hex.EncodeToString(prefix[:]),
		MAC:         hex.EncodeToString(mac[:]),
		Signature:   hex.EncodeToString(sig),
	}
}

func TestParseAcceptsValidReport(t *testing.T) {
	report := validReport(t, []byte("receiver-secret"))

	parsed, err := report.Parse()
	require.NoError(t, err)
	assert.Equal(t, report.TokenPrefix, hex.EncodeToString(parsed.PrefixBytes[:]))
	assert.Equal(t, report.MAC, hex.EncodeToString(parsed.MACBytes[:]))
}

func TestParseRejectsStructuralDefects(t *testing.T) {
	secret := []byte("receiver-secret")

	testCases := []struct {
		name   string
		mutate func(r *Report)
	}{
		{"missing org_id", func(r *Report) { r.OrgID = "" }},
		{"missing receiver_id", func(r *Report) { r.ReceiverID = "" }},
		{"zero timestamp", func(r *Report) { r.Timestamp = 0 }},
		{"negative timestamp", func(r *Report) { r.Timestamp = -5 }},
		{"timestamp beyond uint32", func(r *Report) { r.Timestamp = 1 << 33 }},
		{"unsupported version", func(r *Report) { r.Version = 9 }},
		{"short token_prefix", func(r *Report) { r.TokenPrefix = r.TokenPrefix[:30] }}, // 15 bytes
		{"long token_prefix", func(r *Report) { r.TokenPrefix += "ab" }},
		{"non-hex token_prefix", func(r *Report) { r.TokenPrefix = strings.Repeat("zz", 16) }},
		{"short mac", func(r *Report) { r.MAC = r.MAC[:14] }},
		{"non-hex mac", func(r *Report) { r.MAC = strings.Repeat("xy", 8) }},
		{"missing signature", func(r *Report) { r.Signature = "" }},
		{"non-hex signature", func(r *Report) { r.Signature = "nothex" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := validReport(t, secret)
			tc.mutate(&report)
			_, err := report.Parse()
			assert.Error(t, err)
		})
	}
}

func TestVerifyAcceptsGenuineSignature(t *testing.T) {
	secret := []byte("receiver-secret")
	report := validReport(t, secret)

	parsed, err := report.Parse()
	require.NoError(t, err)
	assert.True(t, Verify(secret, parsed))
}

func TestVerifyRejectsAnyMutationOfSignedRegion(t *testing.T) {
	secret := []byte("receiver-secret")

	testCases := []struct {
		name   string
		mutate func(r *Report)
	}{
		{"org_id changed", func(r *Report) { r.OrgID = "org2" }},
		{"receiver_id changed", func(r *Report) { r.ReceiverID = "rcv2" }},
		{"time_slot changed", func(r *Report) { r.TimeSlot++ }},
		{"timestamp changed", func(r *Report) { r.Timestamp++ }},
		{"token_prefix byte flipped", func(r *Report) {
			raw, _ := hex.DecodeString(r.TokenPrefix)
			raw[0] ^= 0x01
			r.TokenPrefix = hex.EncodeToString(raw)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			report := validReport(t, secret)
			tc.mutate(&report)
			parsed, err := report.Parse()
			require.NoError(t, err)
			assert.False(t, Verify(secret, parsed))
		})
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	report := validReport(t, []byte("receiver-secret"))

	parsed, err := report.Parse()
	require.NoError(t, err)
	assert.False(t, Verify([]byte("other-secret"), parsed))
}

func TestVerifyRejectsTruncatedSignature(t *testing.T) {
	report := validReport(t, []byte("receiver-secret"))
	report.Signature = report.Signature[:32]

	parsed, err := report.Parse()
	require.NoError(t, err)
	assert.False(t, Verify([]byte("receiver-secret"), parsed))
}
