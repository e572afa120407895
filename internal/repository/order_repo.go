package repository

import (
	"errors"

	"roadassist/internal/domain"
	"roadassist/internal/models"

	"gorm.io/gorm"
)

var ErrInsufficientStock = errors.New("insufficient stock")

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Place creates the order and decrements product stock atomically.
func (r *OrderRepository) Place(userID, productID string, quantity int) (*models.Order, error) {
	var order *models.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Where("id = ?", productID).First(&p).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", productID, quantity).
			Update("stock", gorm.Expr("stock - ?", quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientStock
		}
		order = &models.Order{
			UserID:     userID,
			ProductID:  productID,
			Quantity:   quantity,
			TotalPrice: p.Price * float64(quantity),
			Status:     domain.OrderPending,
		}
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) GetByID(id string) (*models.Order, error) {
	var o models.Order
	err := r.db.Preload("Product").Preload("Product.Images").Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) ListByUser(userID string) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Preload("Product").Preload("Product.Images").
		Where("user_id = ?", userID).Order("order_date DESC").Find(&list).Error
	return list, err
}

// ListByVendor returns orders for products the vendor sells.
func (r *OrderRepository) ListByVendor(vendorID string) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Preload("Product").
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select(participantColumns + ", phone") }).
		Joins("JOIN products ON products.id = orders.product_id").
		Where("products.vendor_id = ?", vendorID).
		Order("orders.order_date DESC").Find(&list).Error
	return list, err
}

// UpdateStatusForVendor changes status only for an order of the vendor's product.
func (r *OrderRepository) UpdateStatusForVendor(orderID, vendorID, status string) (*models.Order, error) {
	var o models.Order
	err := r.db.Joins("JOIN products ON products.id = orders.product_id").
		Where("orders.id = ? AND products.vendor_id = ?", orderID, vendorID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Order{}).Where("id = ?", o.ID).Update("status", status).Error; err != nil {
		return nil, err
	}
	o.Status = status
	return &o, nil
}

func (r *OrderRepository) SetStatus(orderID, status string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Update("status", status).Error
}
