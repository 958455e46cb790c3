package paymentrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/pg"
)

type Repository struct {
	db        pg.Database
	txManager pg.TXManager
}

func New(db pg.Database, txManager pg.TXManager) *Repository {
	return &Repository{
		db:        db,
		txManager: txManager,
	}
}

func (r *Repository) Create(ctx context.Context, payment *domain.Payment) (int, error) {
	query := `
        INSERT INTO payments (user_id, amount, currency, status, bonus, message)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING payment_id
    `
	var paymentID int
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		row := r.db.QueryRow(ctx, query,
			payment.UserID, payment.Amount, payment.Currency, payment.Status, payment.Bonus, payment.Message)
		if err := row.Scan(&paymentID); err != nil {
			zap.L().Error("can't create payment", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return paymentID, nil
}

func (r *Repository) GetByID(ctx context.Context, paymentID int) (*domain.Payment, error) {
	query := `
        SELECT payment_id, user_id, amount, currency, status, bonus, message
        FROM payments
        WHERE payment_id = $1
    `
	row := r.db.QueryRow(ctx, query, paymentID)

	var payment domain.Payment
	err := row.Scan(&payment.PaymentID, &payment.UserID, &payment.Amount,
		&payment.Currency, &payment.Status, &payment.Bonus, &payment.Message)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Error("can't find payment", zap.Error(err))
		return nil, err
	}
	return &payment, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, paymentID int, status string, message string, bonus decimal.Decimal) error {
	query := `
        UPDATE payments
        SET status = $1, message = $2, bonus = $3
        WHERE payment_id = $4
    `
	err := r.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, status, message, bonus, paymentID)
		if err != nil {
			zap.L().Error("failed to update payment status", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}
