package payment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubProvider settles every payment it initiated. Used in development when no
// gateway key is configured.
type StubProvider struct {
	ProviderName string
}

func (s *StubProvider) Name() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

func (s *StubProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	ref := fmt.Sprintf("stub_%d_%s", time.Now().UnixNano(), req.OrderID)
	return &PaymentResponse{
		Reference: ref,
		Status:    "PENDING",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}, nil
}

func (s *StubProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	paid := strings.HasPrefix(reference, "stub_")
	status := "Completed"
	if !paid {
		status = "Not Found"
	}
	return &Verification{Reference: reference, Paid: paid, Failed: !paid, Status: status}, nil
}
