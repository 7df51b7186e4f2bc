package models

import "time"

const (
	TransferStateAvailable = "available"
	TransferStateInitiated = "initiated"
	TransferStateConfirmed = "confirmed"
	TransferStateCanceled  = "canceled"
	TransferStateExpired   = "expired"
)

// TransferWindow is how long an initiated transfer stays confirmable.
const TransferWindow = 7 * 24 * time.Hour

// PurchaseTransfer hands a single non-pooled purchase from its current owner
// to a target email identity. Seat-pool purchases never transfer; teams use
// claim/reclaim instead.
type PurchaseTransfer struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"type:varchar(64);uniqueIndex" json:"token"`
	PurchaseID   uint       `gorm:"not null;index" json:"purchase_id"`
	SourceUserID uint       `gorm:"not null;index" json:"source_user_id"`
	TargetEmail  string     `gorm:"type:varchar(200);default:null" json:"target_email,omitempty"`
	State        string     `gorm:"type:varchar(20);not null;default:'available';index" json:"state"`
	ExpiresAt    *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CompletedAt  *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transfer can no longer change state.
func (t *PurchaseTransfer) IsTerminal() bool {
	switch t.State {
	case TransferStateConfirmed, TransferStateCanceled, TransferStateExpired:
		return true
	}
	return false
}

// IsPastExpiry reports whether the confirmation window has closed.
func (t *PurchaseTransfer) IsPastExpiry(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
