package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/internal/repository"
	"roadassist/pkg/payment"

	"gorm.io/gorm"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrPaymentNotPaid  = errors.New("payment has not been completed")
)

type PaymentService struct {
	payments  *repository.PaymentRepository
	orders    *repository.OrderRepository
	users     *repository.UserRepository
	notify    *NotificationService
	providers map[string]payment.Provider
	now       func() time.Time
}

func NewPaymentService(payments *repository.PaymentRepository, orders *repository.OrderRepository, users *repository.UserRepository, notify *NotificationService, providers ...payment.Provider) *PaymentService {
	s := &PaymentService{
		payments:  payments,
		orders:    orders,
		users:     users,
		notify:    notify,
		providers: make(map[string]payment.Provider),
		now:       time.Now,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// PaymentInput starts a payment. When OrderID is set the amount is taken
// from the order.
type PaymentInput struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Description string
	ReturnURL   string
}

// Initiate asks the gateway for a payment and records it as PENDING.
func (s *PaymentService) Initiate(ctx context.Context, userID, provider string, in PaymentInput) (*models.Payment, *payment.PaymentResponse, error) {
	gw, ok := s.providers[provider]
	if !ok {
		return nil, nil, ErrUnknownProvider
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}
	var orderID *string
	amount := in.AmountMinor
	if in.OrderID != "" {
		o, err := s.orders.GetByID(in.OrderID)
		if err != nil || o.UserID != userID {
			return nil, nil, ErrOrderNotFound
		}
		amount = int64(math.Round(o.TotalPrice * 100))
		orderID = &o.ID
		if in.Description == "" && o.Product != nil {
			in.Description = fmt.Sprintf("%d x %s", o.Quantity, o.Product.Name)
		}
	}
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	currency := in.Currency
	if currency == "" {
		currency = "NPR"
		if provider == domain.ProviderStripe {
			currency = "USD"
		}
	}
	ref := in.OrderID
	if ref == "" {
		ref = fmt.Sprintf("pay-%s-%d", userID, s.now().UnixNano())
	}
	resp, err := gw.InitiatePayment(ctx, payment.PaymentRequest{
		OrderID:       ref,
		OrderName:     in.Description,
		AmountMinor:   amount,
		Currency:      currency,
		Description:   in.Description,
		CustomerName:  u.Name,
		CustomerEmail: u.Email,
		CustomerPhone: u.Phone,
		ReturnURL:     in.ReturnURL,
		Metadata:      map[string]string{"user_id": userID},
	})
	if err != nil {
		return nil, nil, err
	}
	meta, _ := json.Marshal(map[string]interface{}{"checkoutUrl": resp.CheckoutURL, "expiresAt": resp.ExpiresAt})
	p := &models.Payment{
		UserID:      userID,
		OrderID:     orderID,
		Amount:      amount,
		Currency:    currency,
		Provider:    provider,
		ProviderRef: resp.Reference,
		Status:      domain.PaymentPending,
		Metadata:    string(meta),
	}
	if err := s.payments.Create(p); err != nil {
		return nil, nil, err
	}
	return p, resp, nil
}

// Verify asks the gateway for the payment's state. The first successful
// verification completes the payment, moves its order to PROCESSING and
// notifies the payer; later calls just report the stored state.
func (s *PaymentService) Verify(ctx context.Context, userID, provider, reference string) (*models.Payment, error) {
	gw, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	p, err := s.payments.GetByProviderRef(reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Provider != provider || (userID != "" && p.UserID != userID) {
		return nil, ErrPaymentNotFound
	}
	if p.Status == domain.PaymentCompleted {
		return p, nil
	}
	v, err := gw.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !v.Paid {
		if v.Failed {
			if err := s.payments.MarkFailed(p.ID); err != nil {
				return nil, err
			}
			p.Status = domain.PaymentFailed
		}
		return p, ErrPaymentNotPaid
	}
	now := s.now()
	won, err := s.payments.MarkCompleted(p.ID, now)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentCompleted
	p.CompletedAt = &now
	if !won {
		return p, nil
	}
	if p.OrderID != nil {
		if err := s.orders.SetStatus(*p.OrderID, domain.OrderProcessing); err != nil {
			log.Printf("[payment] order %s to processing: %v", *p.OrderID, err)
		}
	}
	if err := s.notify.NotifyPaymentConfirmed(p.UserID, p.Amount, reference); err != nil {
		log.Printf("[payment] notify %s: %v", p.UserID, err)
	}
	return p, nil
}

func (s *PaymentService) History(userID string) ([]models.Payment, error) {
	return s.payments.ListByUser(userID)
}
