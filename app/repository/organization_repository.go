package repository

import (
	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// organizationRepository implements the OrganizationRepository interface
type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository instance
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

// Create creates a new organization in the database
func (r *organizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

// GetByID retrieves an organization by its ID
func (r *organizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	err := r.db.First(&org, id).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetBySlug retrieves an organization by its slug
func (r *organizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("slug = ?", slug).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an existing organization
func (r *organizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// Delete removes an organization by its ID
func (r *organizationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Organization{}, id).Error
}

// AddMember adds a user to an organization. Adding an existing member is a
// no-op rather than an error.
func (r *organizationRepository) AddMember(orgID, userID uint, role string) error {
	membership := models.OrganizationMembership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error
}

// RemoveMember removes a user from an organization
func (r *organizationRepository) RemoveMember(orgID, userID uint) error {
	return r.db.
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.OrganizationMembership{}).Error
}

// ListMembers retrieves all memberships of an organization
func (r *organizationRepository) ListMembers(orgID uint) ([]models.OrganizationMembership, error) {
	var memberships []models.OrganizationMembership
	err := r.db.Where("organization_id = ?", orgID).Find(&memberships).Error
	return memberships, err
}

// ListMembershipsByUser retrieves all org memberships of a user
func (r *organizationRepository) ListMembershipsByUser(userID uint) ([]models.OrganizationMembership, error) {
	var memberships []models.OrganizationMembership
	err := r.db.Where("user_id = ?", userID).Find(&memberships).Error
	return memberships, err
}

// GetMembership retrieves one org membership row
func (r *organizationRepository) GetMembership(orgID, userID uint) (*models.OrganizationMembership, error) {
	var membership models.OrganizationMembership
	err := r.db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}
