package model

import "time"

// Device is an enrolled device whose secret is mirrored server-side, which
// lets the backend recompute the device MAC and grade its reports above
// anonymous presence.
type Device struct {
	OrgID     string `gorm:"primaryKey;size:64"`
	ID        string `gorm:"primaryKey;size:64"` // assigned at enrollment
	SecretHex string `gorm:"size:128;not null"`
	UserRef   string `gorm:"size:128"` // user the device is linked to, if any
	CreatedAt time.Time
	UpdatedAt time.Time
}
