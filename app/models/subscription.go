package models

import "time"

const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusTrialing          = "trialing"
)

// Subscription mirrors a processor subscription bound to one organization.
// An organization is entitled iff at least one of its subscriptions is
// active.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	OrganizationID         uint       `gorm:"not null;index" json:"organization_id"`
	ProductID              *uint      `gorm:"index" json:"product_id,omitempty"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently entitles its org.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsValidSubscriptionStatus reports whether s is a status the processor can
// deliver.
func IsValidSubscriptionStatus(s string) bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusUnpaid,
		SubscriptionStatusCanceled, SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired, SubscriptionStatusTrialing:
		return true
	}
	return false
}
