package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KhaltiProvider talks to the Khalti ePayment v2 API.
type KhaltiProvider struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	WebsiteURL string
	client     *http.Client
}

func NewKhaltiProvider(baseURL, secretKey, returnURL, websiteURL string) *KhaltiProvider {
	if baseURL == "" {
		baseURL = "https://dev.khalti.com/api/v2"
	}
	return &KhaltiProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SecretKey:  secretKey,
		ReturnURL:  returnURL,
		WebsiteURL: websiteURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *KhaltiProvider) Name() string { return "khalti" }

type khaltiCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type khaltiInitiateReq struct {
	ReturnURL         string          `json:"return_url"`
	WebsiteURL        string          `json:"website_url"`
	Amount            int64           `json:"amount"`
	PurchaseOrderID   string          `json:"purchase_order_id"`
	PurchaseOrderName string          `json:"purchase_order_name"`
	CustomerInfo      *khaltiCustomer `json:"customer_info,omitempty"`
}

type khaltiInitiateResp struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

type khaltiLookupResp struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

func (p *KhaltiProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("khalti: amount must be positive")
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = p.ReturnURL
	}
	name := req.OrderName
	if name == "" {
		name = req.Description
	}
	body := khaltiInitiateReq{
		ReturnURL:         returnURL,
		WebsiteURL:        p.WebsiteURL,
		Amount:            req.AmountMinor,
		PurchaseOrderID:   req.OrderID,
		PurchaseOrderName: name,
	}
	if req.CustomerName != "" || req.CustomerEmail != "" || req.CustomerPhone != "" {
		body.CustomerInfo = &khaltiCustomer{Name: req.CustomerName, Email: req.CustomerEmail, Phone: req.CustomerPhone}
	}
	var out khaltiInitiateResp
	if err := p.post(ctx, "/epayment/initiate/", body, &out); err != nil {
		return nil, err
	}
	resp := &PaymentResponse{Reference: out.Pidx, Status: "PENDING", CheckoutURL: out.PaymentURL}
	if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
		resp.ExpiresAt = t
	} else if out.ExpiresIn > 0 {
		resp.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return resp, nil
}

func (p *KhaltiProvider) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	var out khaltiLookupResp
	if err := p.post(ctx, "/epayment/lookup/", map[string]string{"pidx": reference}, &out); err != nil {
		return nil, err
	}
	v := &Verification{Reference: reference, Status: out.Status, AmountMinor: out.TotalAmount}
	switch out.Status {
	case "Completed":
		v.Paid = true
	case "Expired", "User canceled", "Refunded", "Partially Refunded":
		v.Failed = true
	}
	return v, nil
}

func (p *KhaltiProvider) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key "+p.SecretKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Provider: "khalti", StatusCode: resp.StatusCode, Body: string(data)}
	}
	return json.Unmarshal(data, out)
}
