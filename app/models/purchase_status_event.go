package models

import "time"

// PurchaseStatusEvent is the applied-transitions log of the purchase
// lifecycle. The unique external_event_id makes replayed processor events
// no-ops and doubles as an audit trail of every status change.
type PurchaseStatusEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PurchaseID      uint      `gorm:"not null;index" json:"purchase_id"`
	ExternalEventID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_event_id"`
	FromStatus      string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus        string    `gorm:"type:varchar(20);not null" json:"to_status"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
