package repository

import (
	"context"
	"errors"
	"time"

	"coachhub/internal/models"

	"gorm.io/gorm"
)

var (
	ErrDuplicatePayment = errors.New("payment already exists for this external id")
	ErrPaymentNotFound  = errors.New("payment not found")
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePending inserts a new payment record in pending status. A unique-key
// violation on external_id maps to ErrDuplicatePayment; callers treat that as
// "already being processed", not a failure.
func (r *PaymentRepository) CreatePending(ctx context.Context, p *models.Payment) error {
	p.Status = models.PaymentStatusPending
	err := r.db.WithContext(ctx).Create(p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkSucceededIfPending flips the record from pending to succeeded in one
// conditional UPDATE. The WHERE clause on the current status is the only
// arbiter: of any number of concurrent callers exactly one sees won=true,
// everyone else gets won=false plus the record as it now stands. Pass tx to
// group the transition with the balance credit.
func (r *PaymentRepository) MarkSucceededIfPending(ctx context.Context, tx *gorm.DB, externalID string) (won bool, p *models.Payment, err error) {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&models.Payment{}).
		Where("external_id = ? AND status = ?", externalID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusSucceeded,
			"completed_at": &now,
		})
	if result.Error != nil {
		return false, nil, result.Error
	}
	var rec models.Payment
	if err := tx.WithContext(ctx).Where("external_id = ?", externalID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrPaymentNotFound
		}
		return false, nil, err
	}
	return result.RowsAffected == 1, &rec, nil
}

// MarkCanceled moves a pending record to canceled. A no-op when the record
// already reached a terminal state; never touches balances.
func (r *PaymentRepository) MarkCanceled(ctx context.Context, externalID string) error {
	return r.markFromPending(ctx, externalID, models.PaymentStatusCanceled)
}

// MarkFailed moves a pending record to failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, externalID string) error {
	return r.markFromPending(ctx, externalID, models.PaymentStatusFailed)
}

// MarkPending refreshes a pending record when the gateway reports an
// intermediate state such as waiting_for_capture. Terminal records are left
// alone; the conditional WHERE keeps this from ever downgrading a status.
func (r *PaymentRepository) MarkPending(ctx context.Context, externalID string) error {
	return r.markFromPending(ctx, externalID, models.PaymentStatusPending)
}

func (r *PaymentRepository) markFromPending(ctx context.Context, externalID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("external_id = ? AND status = ?", externalID, models.PaymentStatusPending).
		Update("status", status).Error
}

// ListByUser returns the user's payments most-recent-first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	return payments, err
}
