package service

import (
	"errors"
	"log"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidStatus   = errors.New("invalid order status")
)

type OrderService struct {
	orders   *repository.OrderRepository
	products *repository.ProductRepository
	notify   *NotificationService
}

func NewOrderService(orders *repository.OrderRepository, products *repository.ProductRepository, notify *NotificationService) *OrderService {
	return &OrderService{orders: orders, products: products, notify: notify}
}

// Place creates a PENDING order and takes the quantity out of stock in the
// same transaction, then tells the vendor.
func (s *OrderService) Place(userID, productID string, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	order, err := s.orders.Place(userID, productID, quantity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	product, err := s.products.GetByID(productID)
	if err != nil {
		log.Printf("[order] product %s for vendor notice: %v", productID, err)
		return order, nil
	}
	order.Product = product
	if err := s.notify.NotifyOrderPlaced(product.VendorID, order, product.Name); err != nil {
		log.Printf("[order] notify vendor %s: %v", product.VendorID, err)
	}
	return order, nil
}

// Get returns the order when it belongs to userID.
func (s *OrderService) Get(orderID, userID string) (*models.Order, error) {
	o, err := s.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) ListForUser(userID string) ([]models.Order, error) {
	return s.orders.ListByUser(userID)
}

func (s *OrderService) ListForVendor(vendorID string) ([]models.Order, error) {
	return s.orders.ListByVendor(vendorID)
}

// UpdateStatus lets a vendor move an order of one of their products.
func (s *OrderService) UpdateStatus(vendorID, orderID, status string) (*models.Order, error) {
	if !domain.ValidRole(status, domain.OrderStatuses) {
		return nil, ErrInvalidStatus
	}
	o, err := s.orders.UpdateStatusForVendor(orderID, vendorID, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := s.notify.NotifyOrderStatus(o.UserID, o); err != nil {
		log.Printf("[order] notify buyer %s: %v", o.UserID, err)
	}
	return o, nil
}
