package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/pg"
	"github.com/GlebRadaev/payflow/pkg/retry"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var (
	debitPolicy  = retry.Policy{Retries: 5, Delay: 500 * time.Millisecond, Backoff: 2}
	statusPolicy = retry.Policy{Retries: 3, Delay: 200 * time.Millisecond, Backoff: 2}
)

type PaymentRepo interface {
	Create(ctx context.Context, payment *domain.Payment) (int, error)
	GetByID(ctx context.Context, paymentID int) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, paymentID int, status string, message string, bonus decimal.Decimal) error
}

type UserRepo interface {
	GetByID(ctx context.Context, userID int) (*domain.User, error)
	UpdateBalance(ctx context.Context, userID int, balance decimal.Decimal) error
}

type Service struct {
	paymentRepo PaymentRepo
	userRepo    UserRepo
	userTx      pg.TXManager
}

func New(paymentRepo PaymentRepo, userRepo UserRepo, userTx pg.TXManager) *Service {
	return &Service{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		userTx:      userTx,
	}
}

// Settle debits the user and records the terminal payment status. The user
// transaction commits only after the status write returns, so a failed write
// rolls the debit back. The payment store runs its own transaction; the two
// stores stay consistent by this ordering alone.
func (s *Service) Settle(ctx context.Context, paymentID int, userID int, amount decimal.Decimal, bonus decimal.Decimal) error {
	err := s.userTx.Begin(ctx, func(ctx context.Context) error {
		_, err := retry.Do(ctx, debitPolicy, "debit user balance", func(ctx context.Context) (decimal.Decimal, error) {
			return s.debit(ctx, userID, amount)
		})
		if err != nil {
			return err
		}

		return s.MarkStatus(ctx, paymentID, domain.StatusSuccess, "payment settled successfully", bonus)
	})
	if err == nil {
		zap.L().Info("payment settled",
			zap.Int("paymentID", paymentID), zap.Int("userID", userID))
		return nil
	}

	if retry.IsTerminal(err) {
		zap.L().Info("settlement rejected",
			zap.Int("paymentID", paymentID), zap.Int("userID", userID), zap.Error(err))
		if mErr := s.MarkStatus(ctx, paymentID, domain.StatusFailed, err.Error(), decimal.Zero); mErr != nil {
			zap.L().Error("failed to record rejected settlement",
				zap.Int("paymentID", paymentID), zap.Error(mErr))
		}
		return err
	}

	zap.L().Error("settlement failed",
		zap.Int("paymentID", paymentID), zap.Int("userID", userID), zap.Error(err))
	return fmt.Errorf("settlement of payment %d failed: %w", paymentID, err)
}

func (s *Service) debit(ctx context.Context, userID int, amount decimal.Decimal) (decimal.Decimal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, retry.Terminal(fmt.Errorf("%w: user %d", ErrUserNotFound, userID))
	}

	newBalance := user.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return decimal.Zero, retry.Terminal(fmt.Errorf("%w: user %d", ErrInsufficientFunds, userID))
	}

	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// MarkStatus writes a payment status independently of the user store.
func (s *Service) MarkStatus(ctx context.Context, paymentID int, status string, message string, bonus decimal.Decimal) error {
	_, err := retry.Do(ctx, statusPolicy, "update payment status", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.paymentRepo.UpdateStatus(ctx, paymentID, status, message, bonus)
	})
	if err != nil {
		return fmt.Errorf("failed to update status of payment %d: %w", paymentID, err)
	}
	zap.L().Info("payment status updated",
		zap.Int("paymentID", paymentID), zap.String("status", status))
	return nil
}
