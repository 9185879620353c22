package validate

// Status is the terminal classification of a presence report. Every
// processed report ends in exactly one of these; absence of StatusVerified
// means the event is not trusted.
type Status string

const (
	// StatusVerified marks an accepted report.
	StatusVerified Status = "verified"
	// StatusReplay marks a report whose (receiver, token, slot) key was
	// already consumed. Expected under normal operation, e.g. retried
	// network calls.
	StatusReplay Status = "replay"
	// StatusOutOfWindow marks a report outside the timing window. Frequent
	// occurrences suggest receiver clock drift.
	StatusOutOfWindow Status = "out-of-window"
	// StatusWrongReceiver marks an invalid receiver signature or an unknown
	// receiver. Implies a misconfigured or compromised receiver and is worth
	// alerting on.
	StatusWrongReceiver Status = "wrong-receiver"
	// StatusInvalid marks a device MAC mismatch for a resolved device. May
	// indicate a spoofing attempt.
	StatusInvalid Status = "invalid"
	// StatusMalformed marks a report that failed the structural check.
	StatusMalformed Status = "malformed"
	// StatusUnknown marks an unresolvable device under a strict trust mode.
	StatusUnknown Status = "unknown"
)

// Alertworthy reports whether operators should be pushed an alert for this
// status.
func (s Status) Alertworthy() bool {
	return s == StatusWrongReceiver || s == StatusInvalid
}
