package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YooKassa payment statuses.
const (
	YooKassaStatusPending           = "pending"
	YooKassaStatusWaitingForCapture = "waiting_for_capture"
	YooKassaStatusSucceeded         = "succeeded"
	YooKassaStatusCanceled          = "canceled"
)

// YooKassaProvider talks to the YooKassa v3 API with shop-id/secret-key basic
// auth. Credentials are passed in at construction; nothing is read from
// package-level state.
type YooKassaProvider struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	client    *http.Client
}

func NewYooKassaProvider(baseURL, shopID, secretKey string, timeout time.Duration) *YooKassaProvider {
	if baseURL == "" {
		baseURL = "https://api.yookassa.ru"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YooKassaProvider{
		BaseURL:   baseURL,
		ShopID:    shopID,
		SecretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooKassaCreateReq struct {
	Amount       yooKassaAmount     `json:"amount"`
	Capture      bool               `json:"capture"`
	Confirmation yooKassaConfirmReq `json:"confirmation"`
	Description  string             `json:"description,omitempty"`
	Receipt      *yooKassaReceipt   `json:"receipt,omitempty"`
}

type yooKassaConfirmReq struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url"`
}

type yooKassaReceipt struct {
	Customer yooKassaCustomer `json:"customer"`
}

type yooKassaCustomer struct {
	Email string `json:"email"`
}

type yooKassaPaymentResp struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Paid         bool           `json:"paid"`
	Amount       yooKassaAmount `json:"amount"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (p *YooKassaProvider) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	payload := yooKassaCreateReq{
		Amount: yooKassaAmount{
			Value:    centsToValue(req.AmountCents),
			Currency: req.Currency,
		},
		Capture: true,
		Confirmation: yooKassaConfirmReq{
			Type:      "redirect",
			ReturnURL: req.ReturnURL,
		},
		Description: req.Description,
	}
	if req.ReceiptEmail != "" {
		payload.Receipt = &yooKassaReceipt{Customer: yooKassaCustomer{Email: req.ReceiptEmail}}
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v3/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Idempotence-Key", uuid.New().String())
	apiReq.SetBasicAuth(p.ShopID, p.SecretKey)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[YooKassa] create payment rejected: status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}
	var out yooKassaPaymentResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: create response missing payment id", ErrProtocol)
	}
	return &CreateResponse{
		ExternalID:      out.ID,
		Status:          out.Status,
		ConfirmationURL: out.Confirmation.ConfirmationURL,
	}, nil
}

func (p *YooKassaProvider) GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error) {
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v3/payments/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	apiReq.SetBasicAuth(p.ShopID, p.SecretKey)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}
	var out yooKassaPaymentResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	cents, err := valueToCents(out.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrProtocol, out.Amount.Value)
	}
	return &PaymentInfo{
		ExternalID:  out.ID,
		Status:      out.Status,
		Paid:        out.Paid,
		AmountCents: cents,
		Currency:    out.Amount.Currency,
	}, nil
}

// centsToValue renders minor units as the gateway's decimal string, e.g.
// 15000 -> "150.00".
func centsToValue(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// valueToCents parses the gateway's decimal string into minor units.
func valueToCents(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
