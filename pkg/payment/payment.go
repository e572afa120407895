package payment

import (
	"context"
	"fmt"
	"time"
)

type PaymentRequest struct {
	OrderID       string // merchant reference shown to the gateway
	OrderName     string
	AmountMinor   int64 // paisa / cents
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
	Metadata      map[string]string
}

type PaymentResponse struct {
	Reference    string // Khalti pidx or Stripe payment intent id
	Status       string
	CheckoutURL  string // Khalti hosted page
	ClientSecret string // Stripe client-side confirmation
	ExpiresAt    time.Time
}

// Verification is the gateway's view of a payment.
type Verification struct {
	Reference   string
	Paid        bool
	Failed      bool
	Status      string
	AmountMinor int64
}

type Provider interface {
	Name() string
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
}

// APIError is a non-2xx answer from a gateway.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}
