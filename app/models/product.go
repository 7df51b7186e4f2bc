package models

import "time"

const (
	ProductTypeOneTime   = "one_time"
	ProductTypeRecurring = "recurring"
	ProductTypeTeam      = "team"
)

// QuantityUnlimited marks a product with no purchase cap.
const QuantityUnlimited = -1

// Product is a purchasable unit. Team products are bought once and then
// distributed through a seat pool coupon.
type Product struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200"`
	Slug              string    `gorm:"type:varchar(200);uniqueIndex" json:"slug"`
	ProductType       string    `gorm:"type:varchar(20);not null;default:'one_time'" json:"product_type" validate:"oneof=one_time recurring team"`
	BasePriceCents    int64     `gorm:"not null" json:"base_price_cents"`
	UpgradePriceCents int64     `gorm:"default:0" json:"upgrade_price_cents"`
	QuantityAvailable int       `gorm:"not null;default:-1" json:"quantity_available"`
	Status            string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	ViewCount         uint64    `gorm:"not null;default:0" json:"view_count"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpgradeEdge is a directed edge in the product upgrade graph. Owners of the
// from-product are offered the to-product at its upgrade price instead of the
// base price. Edges form a DAG; cycles are rejected at write time.
type UpgradeEdge struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	FromProductID uint      `gorm:"not null;index:ux_upgrade_edges_from_to,unique,priority:1" json:"from_product_id"`
	ToProductID   uint      `gorm:"not null;index:ux_upgrade_edges_from_to,unique,priority:2;index" json:"to_product_id"`
	Position      int       `gorm:"not null;default:0" json:"position"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
