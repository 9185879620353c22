package validate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presence-backend/internal/ledger"
	"presence-backend/internal/model"
	"presence-backend/internal/token"
	"presence-backend/internal/wire"
)

// eventNamespace is the UUIDv5 namespace for deterministic event IDs.
var eventNamespace = uuid.MustParse("8f1c5a66-4f3d-4a78-9a7a-24c1d4f0b9e1")

// ReceiverSource looks up enrolled receivers. Satisfied by the store layer.
type ReceiverSource interface {
	GetReceiver(ctx context.Context, orgID, receiverID string) (*model.Receiver, error)
}

// EventSink persists validated events. Satisfied by the store layer.
type EventSink interface {
	SaveEvent(ctx context.Context, event *model.PresenceEvent) error
}

// Options are the protocol parameters of a Validator. Zero values fall back
// to the wire-format defaults.
type Options struct {
	SlotDuration    time.Duration // token rotation window, default 15s
	SlotTolerance   uint32        // allowed |expected_slot - reported_slot|, default 1
	ClockSkewBudget time.Duration // allowed |server_now - report timestamp|, default 30s
	StoreTimeout    time.Duration // budget for the event store write, default 500ms
}

func (o Options) withDefaults() Options {
	if o.SlotDuration <= 0 {
		o.SlotDuration = token.DefaultSlotDuration
	}
	if o.SlotTolerance == 0 {
		o.SlotTolerance = 1
	}
	if o.ClockSkewBudget <= 0 {
		o.ClockSkewBudget = 30 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 500 * time.Millisecond
	}
	return o
}

// Validator turns raw wire reports into trust-graded presence events.
//
// Every collaborator is injected: the replay ledger so tests can use a fake
// and production can share one store between instances, and the clock so
// the timing checks are deterministic under test.
type Validator struct {
	opts      Options
	receivers ReceiverSource
	devices   DeviceResolver
	replays   ledger.Ledger
	events    EventSink
	clock     Clock
}

// New creates a validator. A nil clock means wall-clock time.
func New(opts Options, receivers ReceiverSource, devices DeviceResolver, replays ledger.Ledger, events EventSink, clock Clock) *Validator {
	if clock == nil {
		clock = RealClock{}
	}
	return &Validator{
		opts:      opts.withDefaults(),
		receivers: receivers,
		devices:   devices,
		replays:   replays,
		events:    events,
		clock:     clock,
	}
}

// Process runs the validation pipeline on one report and returns its event.
//
// The pipeline short-circuits in a fixed order: structural check, receiver
// authentication, timing window, replay check, device authentication,
// acceptance. Receiver authentication runs before any replay or time check
// because an unauthenticated report carries no trust. All failures are
// recovered locally into a status-tagged event; Process never fails open.
func (v *Validator) Process(ctx context.Context, report wire.Report) *model.PresenceEvent {
	now := v.clock.Now().UTC()

	parsed, err := report.Parse()
	if err != nil {
		return v.emit(ctx, v.rejectRaw(report, now, StatusMalformed, err.Error()))
	}

	event := v.newEvent(parsed, now)

	// Step 2: receiver authentication.
	receiver, err := v.receivers.GetReceiver(ctx, parsed.OrgID, parsed.ReceiverID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("receiver lookup failed for %s/%s: %v", parsed.OrgID, parsed.ReceiverID, err)
		}
		event.Status = string(StatusWrongReceiver)
		event.Reason = "unknown receiver"
		return v.emit(ctx, event)
	}
	secret, err := hex.DecodeString(receiver.SecretHex)
	if err != nil || !wire.Verify(secret, parsed) {
		event.Status = string(StatusWrongReceiver)
		event.Reason = "invalid receiver signature"
		return v.emit(ctx, event)
	}
	event.SignatureValid = true

	// Step 3: timing window.
	if reason, ok := v.checkTiming(parsed, now); !ok {
		event.Status = string(StatusOutOfWindow)
		event.Reason = reason
		return v.emit(ctx, event)
	}

	// Step 4: replay. A seen key is consumed here whether or not device
	// authentication succeeds afterwards; receiver-level replay scope is
	// independent of device trust.
	if !v.replays.CheckAndInsert(replayKey(parsed)) {
		event.Status = string(StatusReplay)
		event.Reason = "duplicate report for receiver, token and slot"
		return v.emit(ctx, event)
	}

	// Step 5: device authentication.
	resolved, err := v.devices.Resolve(ctx, parsed.OrgID, parsed.TimeSlot, parsed.PrefixBytes)
	if err != nil {
		log.Printf("device resolution failed for org %s slot %d: %v", parsed.OrgID, parsed.TimeSlot, err)
	}
	switch {
	case resolved != nil:
		_, expectedMAC := token.Generate(resolved.Secret, parsed.TimeSlot)
		if !hmac.Equal(expectedMAC[:], parsed.MACBytes[:]) {
			event.Status = string(StatusInvalid)
			event.Reason = "device mac mismatch"
			return v.emit(ctx, event)
		}
		event.DeviceID = resolved.DeviceID
		if resolved.UserRef != "" {
			userRef := resolved.UserRef
			event.UserRef = &userRef
		}
	case receiver.TrustMode == model.TrustModeStrict:
		event.Status = string(StatusUnknown)
		event.Reason = "device not resolvable under strict trust mode"
		return v.emit(ctx, event)
	default:
		event.IsAnonymous = true
	}

	// Step 6: acceptance.
	event.Status = string(StatusVerified)
	return v.emit(ctx, event)
}

func (v *Validator) checkTiming(p *wire.Parsed, now time.Time) (string, bool) {
	skew := now.Unix() - p.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > v.opts.ClockSkewBudget {
		return fmt.Sprintf("timestamp skew %ds exceeds budget", skew), false
	}

	expectedSlot := token.SlotAt(time.Unix(p.Timestamp, 0), v.opts.SlotDuration)
	drift := int64(expectedSlot) - int64(p.TimeSlot)
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(v.opts.SlotTolerance) {
		return fmt.Sprintf("time_slot drifts %d slots from timestamp", drift), false
	}
	return "", true
}

// newEvent builds the audit record shared by every outcome of a parsed
// report. The ID is filled in at emit time once the status is final.
func (v *Validator) newEvent(p *wire.Parsed, now time.Time) *model.PresenceEvent {
	prefixHex := strings.ToLower(p.TokenPrefix)
	key := replayKey(p)
	tokenHash := sha256.Sum256([]byte(key.String()))

	return &model.PresenceEvent{
		OrgID:           p.OrgID,
		ReceiverID:      p.ReceiverID,
		ServerTimestamp: now,
		ClientTimestamp: p.Timestamp,
		TimeSlot:        p.TimeSlot,
		Version:         p.Version,
		Flags:           p.Flags,
		TokenPrefix:     prefixHex,
		TokenHash:       hex.EncodeToString(tokenHash[:]),
		MACHex:          strings.ToLower(p.MAC),
	}
}

// rejectRaw builds an audit event for a report that failed the structural
// check. Field values are recorded as received; nothing about them is
// trusted.
func (v *Validator) rejectRaw(r wire.Report, now time.Time, status Status, reason string) *model.PresenceEvent {
	return &model.PresenceEvent{
		OrgID:           r.OrgID,
		ReceiverID:      r.ReceiverID,
		ServerTimestamp: now,
		ClientTimestamp: r.Timestamp,
		TimeSlot:        r.TimeSlot,
		Version:         r.Version,
		Flags:           r.Flags,
		TokenPrefix:     strings.ToLower(r.TokenPrefix),
		IsAnonymous:     true,
		Status:          string(status),
		Reason:          reason,
	}
}

// emit assigns the deterministic event ID and hands the event to the store.
// A store timeout does not roll back the replay-ledger insertion, so a
// retried report reproduces the same rejection instead of being accepted
// twice; the save itself is idempotent because the ID is derived from the
// report.
func (v *Validator) emit(ctx context.Context, event *model.PresenceEvent) *model.PresenceEvent {
	event.ID = eventID(event)

	storeCtx, cancel := context.WithTimeout(ctx, v.opts.StoreTimeout)
	defer cancel()
	if err := v.events.SaveEvent(storeCtx, event); err != nil {
		log.Printf("failed to persist presence event %s (%s): %v", event.ID, event.Status, err)
	}
	return event
}

func replayKey(p *wire.Parsed) ledger.Key {
	return ledger.Key{
		OrgID:       p.OrgID,
		ReceiverID:  p.ReceiverID,
		TokenPrefix: strings.ToLower(p.TokenPrefix),
		TimeSlot:    p.TimeSlot,
	}
}

func eventID(event *model.PresenceEvent) string {
	seed := fmt.Sprintf("%s:%s:%d:%s:%d:%s",
		event.OrgID, event.ReceiverID, event.TimeSlot, event.TokenPrefix, event.ClientTimestamp, event.Status)
	return uuid.NewSHA1(eventNamespace, []byte(seed)).String()
}
