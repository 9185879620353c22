// Package ledger provides the replay dedup store for presence reports.
package ledger

import "fmt"

// Key identifies one observation of a device token by a receiver. Replay
// scope is per receiver: two receivers within radio range may both see the
// same device in the same slot, and both observations are legitimate.
type Key struct {
	OrgID       string
	ReceiverID  string
	TokenPrefix string // hex, lower case
	TimeSlot    uint32
}

// String renders the key in its canonical org:receiver:prefix:slot form.
// This is also the preimage of the token_hash stored on presence events.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", k.OrgID, k.ReceiverID, k.TokenPrefix, k.TimeSlot)
}

// Ledger is a bounded dedup store of recently seen report keys. It is an
// injected dependency of the validator so tests can substitute a fake and
// production can put multiple validator instances behind a shared store.
type Ledger interface {
	// CheckAndInsert atomically records the key and reports whether it was
	// fresh. It must be a single atomic step, never a read followed by a
	// separate write, so two concurrent identical reports cannot both pass.
	CheckAndInsert(key Key) bool
}
