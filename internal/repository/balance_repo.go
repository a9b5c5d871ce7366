package repository

import (
	"context"
	"errors"

	"coachhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrAccountNotFound   = errors.New("balance account not found")
)

type BalanceRepository struct {
	db              *gorm.DB
	defaultCurrency string
}

func NewBalanceRepository(db *gorm.DB, defaultCurrency string) *BalanceRepository {
	if defaultCurrency == "" {
		defaultCurrency = "RUB"
	}
	return &BalanceRepository{db: db, defaultCurrency: defaultCurrency}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID uint) (*models.Balance, error) {
	var b models.Balance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetOrCreate returns the user's balance row, inserting a zero row if none
// exists. The insert uses ON CONFLICT DO NOTHING so two concurrent first
// touches of the same user cannot both create a row.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Balance, error) {
	b, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	fresh := &models.Balance{UserID: userID, AmountCents: 0, Currency: r.defaultCurrency}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// Credit adds amountCents to the user's balance, creating the row if absent.
// The increment is a single UPDATE expression at the database, never a
// read-modify-write, so concurrent credits for the same user cannot lose
// updates. Pass tx to group the credit with other writes; nil uses the base
// connection. Returns the post-credit row.
func (r *BalanceRepository) Credit(ctx context.Context, tx *gorm.DB, userID uint, amountCents int64) (*models.Balance, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if tx == nil {
		tx = r.db
	}
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	result := tx.WithContext(ctx).
		Model(&models.Balance{}).
		Where("user_id = ?", userID).
		Update("amount_cents", gorm.Expr("amount_cents + ?", amountCents))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	var b models.Balance
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// Debit subtracts amountCents if the balance covers it. The guard lives in the
// WHERE clause, so a debit can never drive the balance negative even under
// concurrent callers. Debit does not create accounts.
func (r *BalanceRepository) Debit(ctx context.Context, userID uint, amountCents int64) (*models.Balance, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	result := r.db.WithContext(ctx).
		Model(&models.Balance{}).
		Where("user_id = ? AND amount_cents >= ?", userID, amountCents).
		Update("amount_cents", gorm.Expr("amount_cents - ?", amountCents))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByUserID(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientFunds
	}
	return r.GetByUserID(ctx, userID)
}
