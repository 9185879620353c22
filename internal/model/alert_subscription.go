package model

import "time"

// AlertSubscription holds a browser push subscription for an operator who
// wants to be alerted about receiver auth failures and device spoofing
// attempts in their org.
type AlertSubscription struct {
	Endpoint  string `gorm:"primaryKey"`
	OrgID     string `gorm:"size:64;not null;index"`
	P256DH    string `gorm:"column:p256dh;not null"`
	Auth      string `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
