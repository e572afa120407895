package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeProvider creates and reads PaymentIntents through the Stripe SDK.
// Each provider owns its client; the package-level stripe.Key is never set.
type StripeProvider struct {
	Currency string
	api      *client.API
}

func NewStripeProvider(baseURL, secretKey, currency string) *StripeProvider {
	if currency == "" {
		currency = "usd"
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if baseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(baseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProvider{Currency: currency, api: api}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("stripe: amount must be positive")
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = p.Currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.OrderID != "" {
		params.AddMetadata("order_id", req.OrderID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError(err)
	}
	return &PaymentResponse{Reference: pi.ID, Status: string(pi.Status), ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(reference, params)
	if err != nil {
		return nil, stripeError(err)
	}
	return &Verification{
		Reference:   pi.ID,
		Paid:        pi.Status == stripe.PaymentIntentStatusSucceeded,
		Failed:      pi.Status == stripe.PaymentIntentStatusCanceled,
		Status:      string(pi.Status),
		AmountMinor: pi.Amount,
	}, nil
}

// stripeError turns an API rejection into an APIError; transport errors pass through.
func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode > 0 {
		return &APIError{Provider: "stripe", StatusCode: se.HTTPStatusCode, Body: se.Msg}
	}
	return err
}
