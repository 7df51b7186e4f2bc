package repository

import (
	"fmt"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create creates a new product in the database
func (r *productRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID retrieves a product by its ID
func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySlug retrieves a product by its slug
func (r *productRepository) GetBySlug(slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.Where("slug = ?", slug).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List retrieves a paginated list of products
func (r *productRepository) List(offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&products).Error
	return products, err
}

// ListActive retrieves all active products
func (r *productRepository) ListActive() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("status = ?", "active").Order("name").Find(&products).Error
	return products, err
}

// Update updates an existing product
func (r *productRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// Delete removes a product by its ID
func (r *productRepository) Delete(id uint) error {
	return r.db.Delete(&models.Product{}, id).Error
}

// Count returns the total number of products
func (r *productRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Count(&count).Error
	return count, err
}

// ListPredecessorEdges returns the upgrade edges pointing at a product
func (r *productRepository) ListPredecessorEdges(toProductID uint) ([]models.UpgradeEdge, error) {
	var edges []models.UpgradeEdge
	err := r.db.Where("to_product_id = ?", toProductID).Order("position").Find(&edges).Error
	return edges, err
}

// ListSuccessorEdges returns the upgrade edges leaving a product
func (r *productRepository) ListSuccessorEdges(fromProductID uint) ([]models.UpgradeEdge, error) {
	var edges []models.UpgradeEdge
	err := r.db.Where("from_product_id = ?", fromProductID).Order("position").Find(&edges).Error
	return edges, err
}

// CreateUpgradeEdge inserts an upgrade edge after verifying it keeps the
// graph acyclic. The walk runs from the edge's target; reaching the source
// means the new edge would close a cycle.
func (r *productRepository) CreateUpgradeEdge(edge *models.UpgradeEdge) error {
	if edge.FromProductID == edge.ToProductID {
		return fmt.Errorf("upgrade edge %d -> %d is a self loop", edge.FromProductID, edge.ToProductID)
	}

	visited := map[uint]bool{}
	frontier := []uint{edge.ToProductID}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if current == edge.FromProductID {
			return fmt.Errorf("upgrade edge %d -> %d would create a cycle", edge.FromProductID, edge.ToProductID)
		}

		var next []models.UpgradeEdge
		if err := r.db.Where("from_product_id = ?", current).Find(&next).Error; err != nil {
			return err
		}
		for _, e := range next {
			frontier = append(frontier, e.ToProductID)
		}
	}

	return r.db.Create(edge).Error
}

// DeleteUpgradeEdge removes an upgrade edge by its ID
func (r *productRepository) DeleteUpgradeEdge(id uint) error {
	return r.db.Delete(&models.UpgradeEdge{}, id).Error
}
