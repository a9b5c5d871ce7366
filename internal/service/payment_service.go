package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"coachhub/internal/models"
	"coachhub/internal/repository"
	"coachhub/pkg/payment"

	"gorm.io/gorm"
)

var (
	// ErrUnknownPayment: the trigger names a payment this system never created.
	ErrUnknownPayment = errors.New("unknown payment")
	// ErrPaymentNotSuccessful: the payment ended canceled or failed; nothing was credited.
	ErrPaymentNotSuccessful = errors.New("payment was not successful")
	// ErrPaymentPending: the gateway has not finished processing yet; retry later.
	ErrPaymentPending = errors.New("payment is still pending")
)

// BalanceStore is the ledger surface the service needs.
type BalanceStore interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.Balance, error)
	Credit(ctx context.Context, tx *gorm.DB, userID uint, amountCents int64) (*models.Balance, error)
	Debit(ctx context.Context, userID uint, amountCents int64) (*models.Balance, error)
}

// PaymentStore is the payment-record surface the service needs.
type PaymentStore interface {
	CreatePending(ctx context.Context, p *models.Payment) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	MarkSucceededIfPending(ctx context.Context, tx *gorm.DB, externalID string) (bool, *models.Payment, error)
	MarkCanceled(ctx context.Context, externalID string) error
	MarkFailed(ctx context.Context, externalID string) error
	MarkPending(ctx context.Context, externalID string) error
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Payment, error)
}

// Transactor groups writes into one database transaction. *gorm.DB satisfies it.
type Transactor interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// Notifier pushes payment events to connected clients. May be nil.
type Notifier interface {
	BroadcastToUser(userID uint, payload interface{})
}

type PaymentService struct {
	db       Transactor
	gateway  payment.Gateway
	balances BalanceStore
	payments PaymentStore
	notifier Notifier
}

func NewPaymentService(db Transactor, gateway payment.Gateway, balances BalanceStore, payments PaymentStore, notifier Notifier) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		balances: balances,
		payments: payments,
		notifier: notifier,
	}
}

type CreatePaymentRequest struct {
	UserID      uint
	AmountCents int64
	Currency    string
	Description string
	PayerEmail  string
	ReturnURL   string
}

type CreatePaymentResponse struct {
	ExternalID      string `json:"id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
}

// CreatePayment opens an intent at the gateway and persists the pending
// record. A duplicate record for the gateway id means another request already
// persisted it, which is fine: the record exists and reconciliation will find it.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if req.AmountCents <= 0 {
		return nil, repository.ErrInvalidAmount
	}
	created, err := s.gateway.CreatePayment(ctx, payment.CreateRequest{
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Description:  req.Description,
		ReturnURL:    req.ReturnURL,
		ReceiptEmail: req.PayerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway payment: %w", err)
	}
	record := &models.Payment{
		UserID:      req.UserID,
		ExternalID:  created.ExternalID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		PayerEmail:  req.PayerEmail,
	}
	if err := s.payments.CreatePending(ctx, record); err != nil && !errors.Is(err, repository.ErrDuplicatePayment) {
		return nil, fmt.Errorf("persist payment record: %w", err)
	}
	return &CreatePaymentResponse{
		ExternalID:      created.ExternalID,
		Status:          created.Status,
		ConfirmationURL: created.ConfirmationURL,
	}, nil
}

// ReconcileResult is the outcome of one reconciliation attempt.
type ReconcileResult struct {
	AlreadyProcessed bool
	AmountCredited   int64
	BalanceCents     int64
	Currency         string
}

// Reconcile drives a claimed-successful payment to its final state and credits
// the balance exactly once, no matter how many times or from which path it is
// called. claimedAmountCents is the amount reported by the caller (0 when the
// trigger carries none); it is only cross-checked, never credited.
//
// The pending->succeeded transition is the serialization point: only the
// caller whose conditional update actually flips the status performs the
// credit, and both writes share one transaction.
func (s *PaymentService) Reconcile(ctx context.Context, externalID string, claimedAmountCents int64) (*ReconcileResult, error) {
	record, err := s.payments.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrUnknownPayment
		}
		return nil, fmt.Errorf("load payment %s: %w", externalID, err)
	}

	switch record.Status {
	case models.PaymentStatusSucceeded:
		// Repeat delivery after the credit already happened. No gateway
		// call, no write.
		return s.alreadyProcessed(ctx, record)
	case models.PaymentStatusCanceled, models.PaymentStatusFailed:
		return nil, ErrPaymentNotSuccessful
	}

	// Pending: ask the gateway, the only authority on payment outcomes.
	info, err := s.gateway.GetPayment(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("confirm payment %s with gateway: %w", externalID, err)
	}

	switch {
	case info.Status == payment.YooKassaStatusCanceled:
		if err := s.payments.MarkCanceled(ctx, externalID); err != nil {
			log.Printf("[Reconcile] mark canceled %s: %v", externalID, err)
		}
		return nil, ErrPaymentNotSuccessful
	case info.Status != payment.YooKassaStatusSucceeded || !info.Paid:
		// Still processing at the gateway; leave the record pending so a
		// later trigger can finish the job.
		return nil, ErrPaymentPending
	}

	creditAmount := info.AmountCents
	if claimedAmountCents > 0 && claimedAmountCents != creditAmount {
		log.Printf("[Reconcile] amount mismatch for %s: claimed=%d gateway=%d, crediting gateway amount",
			externalID, claimedAmountCents, creditAmount)
	}

	var (
		won     bool
		current *models.Payment
		balance *models.Balance
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		won, current, txErr = s.payments.MarkSucceededIfPending(ctx, tx, externalID)
		if txErr != nil {
			return txErr
		}
		if !won {
			return nil
		}
		balance, txErr = s.balances.Credit(ctx, tx, current.UserID, creditAmount)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("apply payment %s: %w", externalID, err)
	}

	if !won {
		if current.Status != models.PaymentStatusSucceeded {
			// Lost the race to a concurrent cancel, not to a credit.
			return nil, ErrPaymentNotSuccessful
		}
		return s.alreadyProcessed(ctx, current)
	}

	log.Printf("[Reconcile] payment %s credited %d to user %d", externalID, creditAmount, current.UserID)
	if s.notifier != nil {
		s.notifier.BroadcastToUser(current.UserID, map[string]interface{}{
			"type":          "payment.succeeded",
			"payment_id":    externalID,
			"amount_cents":  creditAmount,
			"balance_cents": balance.AmountCents,
		})
	}
	return &ReconcileResult{
		AlreadyProcessed: false,
		AmountCredited:   creditAmount,
		BalanceCents:     balance.AmountCents,
		Currency:         balance.Currency,
	}, nil
}

func (s *PaymentService) alreadyProcessed(ctx context.Context, record *models.Payment) (*ReconcileResult, error) {
	balance, err := s.balances.GetOrCreate(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("load balance for user %d: %w", record.UserID, err)
	}
	return &ReconcileResult{
		AlreadyProcessed: true,
		BalanceCents:     balance.AmountCents,
		Currency:         balance.Currency,
	}, nil
}

// MarkCanceled records a gateway-reported cancellation. Used by the webhook
// path for payment.canceled events; balances are untouched.
func (s *PaymentService) MarkCanceled(ctx context.Context, externalID string) error {
	if _, err := s.payments.GetByExternalID(ctx, externalID); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrUnknownPayment
		}
		return err
	}
	return s.payments.MarkCanceled(ctx, externalID)
}

// MarkPending records a gateway intermediate-state notification
// (waiting_for_capture). Pure bookkeeping; terminal records are untouched.
func (s *PaymentService) MarkPending(ctx context.Context, externalID string) error {
	if _, err := s.payments.GetByExternalID(ctx, externalID); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrUnknownPayment
		}
		return err
	}
	return s.payments.MarkPending(ctx, externalID)
}

// GetStatus proxies the gateway's view of a payment.
func (s *PaymentService) GetStatus(ctx context.Context, externalID string) (*payment.PaymentInfo, error) {
	return s.gateway.GetPayment(ctx, externalID)
}

// GetBalance returns the user's balance, creating the zero row on first read.
func (s *PaymentService) GetBalance(ctx context.Context, userID uint) (*models.Balance, error) {
	return s.balances.GetOrCreate(ctx, userID)
}

// Debit spends from the user's balance.
func (s *PaymentService) Debit(ctx context.Context, userID uint, amountCents int64) (*models.Balance, error) {
	return s.balances.Debit(ctx, userID, amountCents)
}

// History lists the user's payments most-recent-first.
func (s *PaymentService) History(ctx context.Context, userID uint, limit, offset int) ([]models.Payment, error) {
	return s.payments.ListByUser(ctx, userID, limit, offset)
}
