package repository

import (
	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
)

// contentRepository implements the ContentRepository interface
type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository instance
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

// Create creates a new content resource in the database
func (r *contentRepository) Create(resource *models.ContentResource) error {
	return r.db.Create(resource).Error
}

// GetByID retrieves a content resource by its ID
func (r *contentRepository) GetByID(id uint) (*models.ContentResource, error) {
	var resource models.ContentResource
	err := r.db.First(&resource, id).Error
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

// GetBySlug retrieves a content resource by its slug
func (r *contentRepository) GetBySlug(slug string) (*models.ContentResource, error) {
	var resource models.ContentResource
	err := r.db.Where("slug = ?", slug).First(&resource).Error
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

// Update updates an existing content resource
func (r *contentRepository) Update(resource *models.ContentResource) error {
	return r.db.Save(resource).Error
}

// Delete removes a content resource by its ID
func (r *contentRepository) Delete(id uint) error {
	return r.db.Delete(&models.ContentResource{}, id).Error
}

// List retrieves a paginated list of content resources
func (r *contentRepository) List(offset, limit int) ([]models.ContentResource, error) {
	var resources []models.ContentResource
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&resources).Error
	return resources, err
}

// ListByProduct retrieves all content resources owned by a product
func (r *contentRepository) ListByProduct(productID uint) ([]models.ContentResource, error) {
	var resources []models.ContentResource
	err := r.db.Where("owning_product_id = ?", productID).Order("created_at").Find(&resources).Error
	return resources, err
}

// Count returns the total number of content resources
func (r *contentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ContentResource{}).Count(&count).Error
	return count, err
}
