package model

import "time"

// PresenceEvent is the validated (or audited-rejected) outcome of one
// presence report. Exactly one event exists per processed report, and a row
// is never updated after it is written.
type PresenceEvent struct {
	ID              string    `gorm:"primaryKey;size:36"`
	OrgID           string    `gorm:"size:64;not null;index:idx_events_org_time,priority:1"`
	ReceiverID      string    `gorm:"size:64;not null;index"`
	ServerTimestamp time.Time `gorm:"not null;index:idx_events_org_time,priority:2"`
	ClientTimestamp int64     `gorm:"not null"`
	TimeSlot        uint32    `gorm:"not null"`
	Version         uint8     `gorm:"not null"`
	Flags           uint8     `gorm:"not null"`
	TokenPrefix     string    `gorm:"size:32"`
	TokenHash       string    `gorm:"size:64;index"`
	MACHex          string    `gorm:"size:16"`
	DeviceID        string    `gorm:"size:64;index"`
	UserRef         *string   `gorm:"size:128"`
	IsAnonymous     bool      `gorm:"not null"`
	Status          string    `gorm:"size:16;not null;index"`
	SignatureValid  bool      `gorm:"not null"`
	Reason          string    `gorm:"size:256"`
	CreatedAt       time.Time
}
