package repository

import (
	"time"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// ProductRepository defines the interface for product catalog operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	List(offset, limit int) ([]models.Product, error)
	ListActive() ([]models.Product, error)
	Update(product *models.Product) error
	Delete(id uint) error
	Count() (int64, error)
	// ListPredecessorEdges returns the upgrade edges pointing at the given
	// product, ordered by position.
	ListPredecessorEdges(toProductID uint) ([]models.UpgradeEdge, error)
	ListSuccessorEdges(fromProductID uint) ([]models.UpgradeEdge, error)
	// CreateUpgradeEdge inserts an edge and rejects any edge that would
	// close a cycle in the upgrade graph.
	CreateUpgradeEdge(edge *models.UpgradeEdge) error
	DeleteUpgradeEdge(id uint) error
}

// CouponRepository defines the interface for coupon operations
type CouponRepository interface {
	Create(coupon *models.Coupon) error
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	GetBulkByOwnerPurchase(ownerPurchaseID uint) (*models.Coupon, error)
	Update(coupon *models.Coupon) error
	List(offset, limit int) ([]models.Coupon, error)
	GetDefaultForProduct(productID uint) (*models.Coupon, error)
}

// PurchaseRepository defines the interface for purchase ledger operations
type PurchaseRepository interface {
	Create(purchase *models.Purchase) error
	GetByID(id uint) (*models.Purchase, error)
	GetByMerchantChargeID(chargeID string) (*models.Purchase, error)
	ListByUser(userID uint) ([]models.Purchase, error)
	ListByOrganization(orgID uint) ([]models.Purchase, error)
	ListBySeatPool(poolID uint) ([]models.Purchase, error)
	CountGrantingByProduct(productID uint) (int64, error)
	Update(purchase *models.Purchase) error
	Count() (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
	// ListStatusEvents returns the applied-transition history of a purchase,
	// newest first.
	ListStatusEvents(purchaseID uint) ([]models.PurchaseStatusEvent, error)
}

// OrganizationRepository defines the interface for org and membership operations
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(id uint) (*models.Organization, error)
	GetBySlug(slug string) (*models.Organization, error)
	Update(org *models.Organization) error
	Delete(id uint) error
	AddMember(orgID, userID uint, role string) error
	RemoveMember(orgID, userID uint) error
	ListMembers(orgID uint) ([]models.OrganizationMembership, error)
	ListMembershipsByUser(userID uint) ([]models.OrganizationMembership, error)
	GetMembership(orgID, userID uint) (*models.OrganizationMembership, error)
}

// ContentRepository defines the interface for content metadata operations
type ContentRepository interface {
	Create(resource *models.ContentResource) error
	GetByID(id uint) (*models.ContentResource, error)
	GetBySlug(slug string) (*models.ContentResource, error)
	Update(resource *models.ContentResource) error
	Delete(id uint) error
	List(offset, limit int) ([]models.ContentResource, error)
	ListByProduct(productID uint) ([]models.ContentResource, error)
	Count() (int64, error)
}

// WebhookEventRepository defines the interface for the inbound event ledger
type WebhookEventRepository interface {
	// CreateIfNotExists inserts the event keyed on (provider, event id).
	// Returns created=false when the event was already recorded.
	CreateIfNotExists(event *models.ProcessorWebhookEvent) (created bool, err error)
	GetByID(id uint) (*models.ProcessorWebhookEvent, error)
	MarkProcessed(id uint, processingErr string) error
	ListUnprocessed(limit int) ([]models.ProcessorWebhookEvent, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Product      ProductRepository
	Coupon       CouponRepository
	Purchase     PurchaseRepository
	Organization OrganizationRepository
	Content      ContentRepository
	WebhookEvent WebhookEventRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Product:      NewProductRepository(db),
		Coupon:       NewCouponRepository(db),
		Purchase:     NewPurchaseRepository(db),
		Organization: NewOrganizationRepository(db),
		Content:      NewContentRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Queue:        NewQueueRepository(),
	}
}
