package handler

import (
	"errors"
	"log"
	"net/http"

	"roadassist/internal/domain"
	"roadassist/internal/middleware"
	"roadassist/internal/service"
	"roadassist/pkg/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type InitiatePaymentRequest struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"` // minor units; ignored when orderId is set
	Currency    string `json:"currency"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// Initiate returns a handler that starts a payment with the named gateway.
func (h *PaymentHandler) Initiate(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if req.OrderID == "" && req.Amount <= 0 {
			fail(c, http.StatusBadRequest, "orderId or a positive amount is required")
			return
		}
		p, resp, err := h.svc.Initiate(c.Request.Context(), middleware.GetUserID(c), provider, service.PaymentInput{
			OrderID:     req.OrderID,
			AmountMinor: req.Amount,
			Currency:    req.Currency,
			Description: req.Description,
			ReturnURL:   req.ReturnURL,
		})
		if err != nil {
			h.paymentError(c, err)
			return
		}
		respond(c, http.StatusCreated, "Payment initiated", gin.H{
			"payment":      p,
			"reference":    resp.Reference,
			"checkoutUrl":  resp.CheckoutURL,
			"clientSecret": resp.ClientSecret,
		})
	}
}

// Verify returns a handler that confirms a payment with the named gateway.
// Unauthenticated callers (gateway redirects) may verify any reference.
func (h *PaymentHandler) Verify(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "reference is required")
			return
		}
		p, err := h.svc.Verify(c.Request.Context(), middleware.GetUserID(c), provider, req.Reference)
		if err != nil {
			if errors.Is(err, service.ErrPaymentNotPaid) {
				c.JSON(http.StatusPaymentRequired, gin.H{"success": false, "message": err.Error(), "payment": p})
				return
			}
			h.paymentError(c, err)
			return
		}
		respond(c, http.StatusOK, "Payment verified", gin.H{"payment": p})
	}
}

func (h *PaymentHandler) History(c *gin.Context) {
	list, err := h.svc.History(middleware.GetUserID(c))
	if err != nil {
		internalError(c, "payment", err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"payments": list})
}

func (h *PaymentHandler) paymentError(c *gin.Context, err error) {
	var apiErr *payment.APIError
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrPaymentNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownProvider):
		fail(c, http.StatusServiceUnavailable, "payment provider is not configured")
	case errors.As(err, &apiErr):
		log.Printf("[payment] gateway: %v", err)
		fail(c, http.StatusBadGateway, "payment gateway rejected the request")
	default:
		internalError(c, "payment", err)
	}
}

// StripeInitiate and friends bind the generic handlers to one gateway.
func (h *PaymentHandler) StripeInitiate() gin.HandlerFunc { return h.Initiate(domain.ProviderStripe) }
func (h *PaymentHandler) StripeVerify() gin.HandlerFunc   { return h.Verify(domain.ProviderStripe) }
func (h *PaymentHandler) KhaltiInitiate() gin.HandlerFunc { return h.Initiate(domain.ProviderKhalti) }
func (h *PaymentHandler) KhaltiVerify() gin.HandlerFunc   { return h.Verify(domain.ProviderKhalti) }
