package token

import (
	"context"
	"log"
	"time"
)

// BroadcastFunc receives the freshly encoded frame for the current slot.
// Implementations hand the bytes to the short-range radio.
type BroadcastFunc func(frame [PayloadSize]byte)

// Rotator drives device-side token rotation. It fires once per slot
// boundary, recomputing the slot from the wall clock on every firing rather
// than incrementing a counter, so it stays correct across clock adjustments
// and process restarts.
type Rotator struct {
	secret       []byte
	slotDuration time.Duration
	flags        uint8
	broadcast    BroadcastFunc
}

// NewRotator creates a rotator for one device secret. There is a single
// token owner per device, so the rotator is not safe for concurrent Start
// calls and does not need to be.
func NewRotator(secret []byte, slotDuration time.Duration, flags uint8, broadcast BroadcastFunc) *Rotator {
	if slotDuration <= 0 {
		slotDuration = DefaultSlotDuration
	}
	return &Rotator{
		secret:       secret,
		slotDuration: slotDuration,
		flags:        flags,
		broadcast:    broadcast,
	}
}

// Run broadcasts a frame for the current slot immediately, then once per
// slot boundary until ctx is cancelled. Cancelling ctx stops advertising;
// no frame is emitted after Run returns.
func (r *Rotator) Run(ctx context.Context) {
	r.emit(time.Now())

	timer := time.NewTimer(r.untilNextSlot(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("token rotator stopping, advertising ends")
			return
		case now := <-timer.C:
			r.emit(now)
			timer.Reset(r.untilNextSlot(time.Now()))
		}
	}
}

func (r *Rotator) emit(now time.Time) {
	slot := SlotAt(now, r.slotDuration)
	prefix, mac := Generate(r.secret, slot)
	frame := Payload{
		Version:  Version,
		Flags:    r.flags,
		TimeSlot: slot,
		Prefix:   prefix,
		MAC:      mac,
	}.Encode()
	r.broadcast(frame)
}

// untilNextSlot returns the wait until the next slot boundary after now,
// with a small floor so a firing that lands exactly on a boundary does not
// spin.
func (r *Rotator) untilNextSlot(now time.Time) time.Duration {
	elapsed := time.Duration(now.UnixNano()) % r.slotDuration
	wait := r.slotDuration - elapsed
	if wait < time.Millisecond {
		wait = r.slotDuration
	}
	return wait
}
