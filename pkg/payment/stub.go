package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StubGateway is an in-process gateway for development. Created payments stay
// pending until Complete or Cancel is called, mimicking the user finishing (or
// abandoning) the checkout page.
type StubGateway struct {
	mu       sync.Mutex
	payments map[string]*PaymentInfo
	seq      int
}

func NewStubGateway() *StubGateway {
	return &StubGateway{payments: make(map[string]*PaymentInfo)}
}

func (s *StubGateway) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("stub-%d-%d", time.Now().UnixNano(), s.seq)
	s.payments[id] = &PaymentInfo{
		ExternalID:  id,
		Status:      YooKassaStatusPending,
		Paid:        false,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	return &CreateResponse{
		ExternalID:      id,
		Status:          YooKassaStatusPending,
		ConfirmationURL: "https://example.test/checkout/" + id,
	}, nil
}

func (s *StubGateway) GetPayment(ctx context.Context, externalID string) (*PaymentInfo, error) {
	if !strings.HasPrefix(externalID, "stub-") {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.payments[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *info
	return &copied, nil
}

// Complete marks a stub payment as succeeded and paid.
func (s *StubGateway) Complete(externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.payments[externalID]; ok {
		info.Status = YooKassaStatusSucceeded
		info.Paid = true
	}
}

// Cancel marks a stub payment as canceled.
func (s *StubGateway) Cancel(externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.payments[externalID]; ok {
		info.Status = YooKassaStatusCanceled
	}
}
