package repository

import (
	"roadassist/internal/models"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create stores the product and its images together.
func (r *ProductRepository) Create(p *models.Product) error {
	return r.db.Create(p).Error
}

func (r *ProductRepository) GetByID(id string) (*models.Product, error) {
	var p models.Product
	err := r.db.Preload("Images").
		Preload("Vendor", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) }).
		Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) List(category string) ([]models.Product, error) {
	q := r.db.Preload("Images").
		Preload("Vendor", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns) })
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var list []models.Product
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *ProductRepository) ListByVendor(vendorID string) ([]models.Product, error) {
	var list []models.Product
	err := r.db.Preload("Images").Where("vendor_id = ?", vendorID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *ProductRepository) LowStock(vendorID string, threshold int) ([]models.Product, error) {
	var list []models.Product
	err := r.db.Preload("Images").
		Where("vendor_id = ? AND stock <= ?", vendorID, threshold).
		Order("stock ASC").Find(&list).Error
	return list, err
}

// UpdateFields applies a partial update to a product owned by vendorID.
func (r *ProductRepository) UpdateFields(id, vendorID string, fields map[string]interface{}) error {
	res := r.db.Model(&models.Product{}).Where("id = ? AND vendor_id = ?", id, vendorID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ProductRepository) ReplaceImages(productID string, urls []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		for _, u := range urls {
			if err := tx.Create(&models.ProductImage{ProductID: productID, ImageURL: u}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProductRepository) Delete(id, vendorID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND vendor_id = ?", id, vendorID).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error
	})
}
