package payment

import (
	"context"
	"errors"
)

// Sentinel errors every provider maps its failures onto.
var (
	// ErrUnavailable covers network errors, timeouts and gateway 5xx; the
	// caller may retry later, no state has changed on our side.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrNotFound means the gateway does not know the payment id.
	ErrNotFound = errors.New("payment not found at gateway")
	// ErrProtocol means the gateway answered with something we could not parse.
	ErrProtocol = errors.New("unexpected gateway response")
)

// CreateRequest describes a payment intent to open at the gateway.
type CreateRequest struct {
	AmountCents  int64
	Currency     string
	Description  string
	ReturnURL    string
	ReceiptEmail string
}

// CreateResponse carries the gateway-assigned id and the URL the user must
// visit to complete the payment.
type CreateResponse struct {
	ExternalID      string
	Status          string
	ConfirmationURL string
}

// PaymentInfo is the gateway's authoritative view of a payment. Webhook
// payloads and client callbacks are only hints; crediting decisions are made
// against this.
type PaymentInfo struct {
	ExternalID  string
	Status      string
	Paid        bool
	AmountCents int64
	Currency    string
}

// Gateway is the minimal provider surface the reconciliation flow consumes.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error)
}
