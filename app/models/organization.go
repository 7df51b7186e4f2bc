package models

import "time"

const (
	OrgRoleOwner  = "owner"
	OrgRoleMember = "member"
)

// Organization groups users for team purchases and shared subscriptions.
type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200"`
	Slug      string    `gorm:"type:varchar(200);uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrganizationMembership links a user to an organization with a role. A user
// may belong to several organizations; which one is "current" lives in the
// session, not here.
type OrganizationMembership struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index:ux_org_memberships_org_user,unique,priority:1" json:"organization_id"`
	UserID         uint      `gorm:"not null;index:ux_org_memberships_org_user,unique,priority:2;index" json:"user_id"`
	Role           string    `gorm:"type:varchar(20);not null;default:'member'" json:"role" validate:"oneof=owner member"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
