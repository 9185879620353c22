package validate

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"presence-backend/internal/ledger"
	"presence-backend/internal/model"
	"presence-backend/internal/receiver"
	"presence-backend/internal/token"
	"presence-backend/internal/wire"
)

var (
	deviceSecret   = []byte(strings.Repeat("S", token.SecretSize))
	receiverSecret = []byte("receiver-secret-R")
)

type fakeReceivers struct {
	receivers map[string]*model.Receiver
	calls     int
}

func (f *fakeReceivers) GetReceiver(ctx context.Context, orgID, receiverID string) (*model.Receiver, error) {
	f.calls++
	if r, ok := f.receivers[orgID+"/"+receiverID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeResolver struct {
	devices map[[token.PrefixSize]byte]*ResolvedDevice
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, orgID string, slot uint32, prefix [token.PrefixSize]byte) (*ResolvedDevice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.devices[prefix], nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []*model.PresenceEvent
	err    error
}

func (f *fakeSink) SaveEvent(ctx context.Context, event *model.PresenceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type testEnv struct {
	validator *Validator
	receivers *fakeReceivers
	resolver  *fakeResolver
	sink      *fakeSink
}

func newTestEnv(t *testing.T, trustMode string, now time.Time) *testEnv {
	t.Helper()

	receivers := &fakeReceivers{receivers: map[string]*model.Receiver{
		"org1/rcv1": {
			OrgID:     "org1",
			ID:        "rcv1",
			SecretHex: hex.EncodeToString(receiverSecret),
			TrustMode: trustMode,
		},
	}}
	resolver := &fakeResolver{devices: make(map[[token.PrefixSize]byte]*ResolvedDevice)}
	sink := &fakeSink{}

	validator := New(Options{}, receivers, resolver, ledger.NewCacheLedger(time.Minute), sink, fakeClock{now: now})
	return &testEnv{validator: validator, receivers: receivers, resolver: resolver, sink: sink}
}

// enroll registers the shared device secret for the given slot so the
// resolver can match its token prefix.
func (e *testEnv) enroll(slot uint32) {
	prefix, _ := token.Generate(deviceSecret, slot)
	e.resolver.devices[prefix] = &ResolvedDevice{
		DeviceID: "dev1",
		UserRef:  "user-1",
		Secret:   deviceSecret,
	}
}

// signedReport builds a report the way a genuine device and receiver would:
// generate the token for the slot of observedAt, encode and capture the
// frame, then co-sign with the receiver secret.
func signedReport(t *testing.T, secret []byte, observedAt time.Time) wire.Report {
	t.Helper()

	slot := token.SlotAt(observedAt, token.DefaultSlotDuration)
	prefix, mac := token.Generate(deviceSecret, slot)
	payload := token.Payload{Version: token.Version, TimeSlot: slot, Prefix: prefix, MAC: mac}

	report, err := receiver.NewSigner("org1", "rcv1", secret).Sign(payload, observedAt)
	require.NoError(t, err)
	return report
}

func TestProcessVerifiedWithResolvedDevice(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeStrict, now)
	env.enroll(1000)

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	event := env.validator.Process(context.Background(), report)

	assert.Equal(t, string(StatusVerified), event.Status)
	assert.True(t, event.SignatureValid)
	assert.False(t, event.IsAnonymous)
	assert.Equal(t, "dev1", event.DeviceID)
	require.NotNil(t, event.UserRef)
	assert.Equal(t, "user-1", *event.UserRef)
	assert.Equal(t, uint32(1000), event.TimeSlot)
	assert.NotEmpty(t, event.ID)
	assert.Len(t, event.TokenHash, 64)

	require.Len(t, env.sink.events, 1)
	assert.Same(t, event, env.sink.events[0])
}

func TestProcessReplayOnSecondSubmission(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))

	first := env.validator.Process(context.Background(), report)
	second := env.validator.Process(context.Background(), report)

	assert.Equal(t, string(StatusVerified), first.Status)
	assert.Equal(t, string(StatusReplay), second.Status)
	assert.NotEqual(t, first.ID, second.ID, "audit events for distinct outcomes must not collide")
}

func TestProcessConcurrentDuplicatesAcceptExactlyOne(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))

	const submissions = 16
	results := make(chan string, submissions)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(submissions)
	for i := 0; i < submissions; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			results <- env.validator.Process(context.Background(), report).Status
		}()
	}
	start.Done()
	done.Wait()
	close(results)

	verified, replayed := 0, 0
	for status := range results {
		switch status {
		case string(StatusVerified):
			verified++
		case string(StatusReplay):
			replayed++
		default:
			t.Fatalf("unexpected status %q", status)
		}
	}
	assert.Equal(t, 1, verified, "exactly one concurrent duplicate may be accepted")
	assert.Equal(t, submissions-1, replayed)
}

func TestProcessWrongReceiverSignature(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	report := signedReport(t, []byte("some-other-secret"), time.Unix(15000, 0))

	event := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusWrongReceiver), event.Status)
	assert.False(t, event.SignatureValid)

	// Authentication fails before the replay check, so the key is never
	// consumed and resubmission reproduces the same rejection.
	again := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusWrongReceiver), again.Status)
}

func TestProcessUnknownReceiver(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	report.ReceiverID = "rcv-missing"

	event := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusWrongReceiver), event.Status)
}

func TestProcessTimingWindow(t *testing.T) {
	now := time.Unix(100000, 0)

	testCases := []struct {
		name       string
		observedAt time.Time
		expected   Status
	}{
		{"just inside skew budget", now.Add(-29 * time.Second), StatusVerified},
		{"just outside skew budget", now.Add(-31 * time.Second), StatusOutOfWindow},
		{"future beyond skew budget", now.Add(31 * time.Second), StatusOutOfWindow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)
			report := signedReport(t, receiverSecret, tc.observedAt)
			event := env.validator.Process(context.Background(), report)
			assert.Equal(t, string(tc.expected), event.Status)
		})
	}
}

func TestProcessSlotDriftBeyondTolerance(t *testing.T) {
	now := time.Unix(100000, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	// The receiver states a slot two windows behind its own timestamp and
	// signs that claim, so the signature verifies but the timing check
	// rejects the drift.
	observedAt := now
	slot := token.SlotAt(observedAt, token.DefaultSlotDuration) - 2
	prefix, mac := token.Generate(deviceSecret, slot)
	payload := token.Payload{Version: token.Version, TimeSlot: slot, Prefix: prefix, MAC: mac}
	report, err := receiver.NewSigner("org1", "rcv1", receiverSecret).Sign(payload, observedAt)
	require.NoError(t, err)

	event := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusOutOfWindow), event.Status)
}

func TestProcessMalformedShortPrefix(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	report.TokenPrefix = report.TokenPrefix[:30] // 15 bytes

	event := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusMalformed), event.Status)
	assert.Zero(t, env.receivers.calls, "no signature work may happen for malformed reports")
	require.Len(t, env.sink.events, 1, "rejections are audited too")
}

func TestProcessDeviceMACMismatch(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)

	// The prefix resolves to an enrolled device whose secret does not
	// reproduce the broadcast MAC, which looks like a spoofing attempt.
	prefix, _ := token.Generate(deviceSecret, 1000)
	env.resolver.devices[prefix] = &ResolvedDevice{
		DeviceID: "dev1",
		Secret:   []byte(strings.Repeat("X", token.SecretSize)),
	}

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	event := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusInvalid), event.Status)

	// The replay key was consumed at step 4 even though device auth failed
	// afterwards.
	again := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusReplay), again.Status)
}

func TestProcessUnresolvedDeviceByTrustMode(t *testing.T) {
	testCases := []struct {
		name      string
		trustMode string
		expected  Status
		anonymous bool
	}{
		{"strict rejects unknown devices", model.TrustModeStrict, StatusUnknown, false},
		{"anonymous-allowed accepts them", model.TrustModeAnonymousAllowed, StatusVerified, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Unix(15005, 0)
			env := newTestEnv(t, tc.trustMode, now)

			report := signedReport(t, receiverSecret, time.Unix(15000, 0))
			event := env.validator.Process(context.Background(), report)

			assert.Equal(t, string(tc.expected), event.Status)
			assert.Equal(t, tc.anonymous, event.IsAnonymous)
		})
	}
}

func TestProcessResolverErrorFallsBackToTrustMode(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)
	env.resolver.err = assert.AnError

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	event := env.validator.Process(context.Background(), report)

	assert.Equal(t, string(StatusVerified), event.Status)
	assert.True(t, event.IsAnonymous)
}

func TestProcessStoreFailureStillReturnsEvent(t *testing.T) {
	now := time.Unix(15005, 0)
	env := newTestEnv(t, model.TrustModeAnonymousAllowed, now)
	env.sink.err = assert.AnError

	report := signedReport(t, receiverSecret, time.Unix(15000, 0))
	event := env.validator.Process(context.Background(), report)

	assert.Equal(t, string(StatusVerified), event.Status)
	assert.NotEmpty(t, event.ID)
}

func TestProcessEndToEndScenario(t *testing.T) {
	// Device secret S at slot T=1000 yields prefix P and mac M. A receiver
	// with secret R signs {org1, rcv1, 1000, P, 15000}. The validator
	// verifies the first submission, flags a byte-identical second one as
	// replay, and rejects the same report signed under a different
	// receiver secret.
	now := time.Unix(15010, 0)
	env := newTestEnv(t, model.TrustModeStrict, now)
	env.enroll(1000)

	observedAt := time.Unix(15000, 0)
	report := signedReport(t, receiverSecret, observedAt)

	first := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusVerified), first.Status)

	second := env.validator.Process(context.Background(), report)
	assert.Equal(t, string(StatusReplay), second.Status)

	foreign := signedReport(t, []byte("not-R"), observedAt)
	third := env.validator.Process(context.Background(), foreign)
	assert.Equal(t, string(StatusWrongReceiver), third.Status)
}
