package model

import "time"

// Trust modes controlling how the validator treats unresolvable devices.
const (
	// TrustModeStrict rejects reports whose token prefix does not resolve
	// to an enrolled device.
	TrustModeStrict = "strict"
	// TrustModeAnonymousAllowed accepts unresolvable devices as anonymous
	// presence.
	TrustModeAnonymousAllowed = "anonymous-allowed"
)

// Receiver is an enrolled receiver and its shared reporting secret.
type Receiver struct {
	OrgID     string `gorm:"primaryKey;size:64"`
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128"`
	SecretHex string `gorm:"size:128;not null"`
	TrustMode string `gorm:"size:32;not null;default:anonymous-allowed"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
