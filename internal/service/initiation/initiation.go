package initiation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/internal/service/finalizer"
	"github.com/GlebRadaev/payflow/internal/service/settlement"
	"github.com/GlebRadaev/payflow/pkg/retry"
)

var (
	createPolicy  = retry.Policy{Retries: 5, Delay: 200 * time.Millisecond, Backoff: 2}
	checkPolicy   = retry.Policy{Retries: 5, Delay: 200 * time.Millisecond, Backoff: 2}
	loyaltyPolicy = retry.Policy{Retries: 3, Delay: 200 * time.Millisecond, Backoff: 2}
	lookupPolicy  = retry.Policy{Retries: 3, Delay: 500 * time.Millisecond, Backoff: 2}
)

type PaymentRepo interface {
	Create(ctx context.Context, payment *domain.Payment) (int, error)
	GetByID(ctx context.Context, paymentID int) (*domain.Payment, error)
}

type UserRepo interface {
	GetByID(ctx context.Context, userID int) (*domain.User, error)
}

type Settler interface {
	MarkStatus(ctx context.Context, paymentID int, status string, message string, bonus decimal.Decimal) error
}

type LoyaltyClient interface {
	Award(ctx context.Context, userID int, amount decimal.Decimal) (*loyalty.Response, error)
}

type NotificationClient interface {
	Notify(ctx context.Context, userID int, status string) (*notification.Response, error)
}

type Dispatcher interface {
	Process(job finalizer.Job)
	Finalize(job finalizer.Job)
}

type Result struct {
	PaymentID int
	Status    string
	Message   string
}

type Service struct {
	paymentRepo PaymentRepo
	userRepo    UserRepo
	settler     Settler
	loyalty     LoyaltyClient
	notifier    NotificationClient
	finalizer   Dispatcher
}

func New(paymentRepo PaymentRepo, userRepo UserRepo, settler Settler, loyaltyClient LoyaltyClient, notifier NotificationClient, dispatcher Dispatcher) *Service {
	return &Service{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		settler:     settler,
		loyalty:     loyaltyClient,
		notifier:    notifier,
		finalizer:   dispatcher,
	}
}

// Initiate runs the four request-time operations concurrently and joins all
// of them before classifying the outcome: the payment record must exist
// before any terminal error can be written against it.
func (s *Service) Initiate(ctx context.Context, userID int, amount decimal.Decimal, currency string) (*Result, error) {
	var (
		paymentID   int
		createErr   error
		checkErr    error
		loyaltyResp *loyalty.Response
		loyaltyErr  error
		notifResp   *notification.Response
		notifErr    error
	)

	var g errgroup.Group
	g.Go(func() error {
		paymentID, createErr = retry.Do(ctx, createPolicy, "create payment", func(ctx context.Context) (int, error) {
			return s.createPayment(ctx, userID, amount, currency)
		})
		return nil
	})
	g.Go(func() error {
		_, checkErr = retry.Do(ctx, checkPolicy, "check user funds", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.checkUser(ctx, userID, amount)
		})
		return nil
	})
	g.Go(func() error {
		loyaltyResp, loyaltyErr = retry.Do(ctx, loyaltyPolicy, "loyalty bonus estimate", func(ctx context.Context) (*loyalty.Response, error) {
			return s.loyalty.Award(ctx, userID, amount)
		})
		return nil
	})
	g.Go(func() error {
		notifResp, notifErr = s.notifier.Notify(ctx, userID, domain.StatusProcessing)
		return nil
	})
	g.Wait()

	if createErr != nil {
		zap.L().Error("failed to create payment record", zap.Error(createErr))
		return nil, fmt.Errorf("failed to create payment: %w", createErr)
	}

	if checkErr != nil {
		message := fmt.Sprintf("user check failed: %s", checkErr)
		if retry.IsTerminal(checkErr) {
			message = fmt.Sprintf("user not found or insufficient funds: %s", checkErr)
		}
		if err := s.settler.MarkStatus(ctx, paymentID, domain.StatusFailed, message, decimal.Zero); err != nil {
			zap.L().Error("failed to mark rejected payment",
				zap.Int("paymentID", paymentID), zap.Error(err))
		}
		return nil, checkErr
	}

	bonus := decimal.Zero
	switch {
	case loyaltyErr != nil:
		zap.L().Warn("loyalty estimate unavailable, deferring bonus",
			zap.Int("paymentID", paymentID), zap.Error(loyaltyErr))
	case loyaltyResp.Success():
		bonus = loyaltyResp.Bonus
	default:
		zap.L().Warn("loyalty service returned unsuccessful estimate",
			zap.Int("paymentID", paymentID), zap.String("status", loyaltyResp.Status))
	}

	if notifErr != nil {
		zap.L().Warn("processing notification failed", zap.Int("paymentID", paymentID), zap.Error(notifErr))
	} else {
		zap.L().Info("processing notification sent",
			zap.Int("paymentID", paymentID), zap.String("status", notifResp.Status))
	}

	s.finalizer.Finalize(finalizer.Job{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Bonus:     bonus,
	})

	return &Result{
		PaymentID: paymentID,
		Status:    domain.StatusProcessing,
		Message:   "payment is processing",
	}, nil
}

// CreatePayment is the simple initiation path: it only creates the record and
// hands everything else to the background processor.
func (s *Service) CreatePayment(ctx context.Context, userID int, amount decimal.Decimal, currency string) (*Result, error) {
	paymentID, err := retry.Do(ctx, createPolicy, "create payment", func(ctx context.Context) (int, error) {
		return s.createPayment(ctx, userID, amount, currency)
	})
	if err != nil {
		zap.L().Error("failed to create payment record", zap.Error(err))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.finalizer.Process(finalizer.Job{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Bonus:     decimal.Zero,
	})

	return &Result{
		PaymentID: paymentID,
		Status:    domain.StatusProcessing,
		Message:   "payment is processing",
	}, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID int) (*domain.Payment, error) {
	return retry.Do(ctx, lookupPolicy, "get payment", func(ctx context.Context) (*domain.Payment, error) {
		return s.paymentRepo.GetByID(ctx, paymentID)
	})
}

func (s *Service) createPayment(ctx context.Context, userID int, amount decimal.Decimal, currency string) (int, error) {
	return s.paymentRepo.Create(ctx, &domain.Payment{
		UserID:   userID,
		Amount:   amount,
		Currency: currency,
		Status:   domain.StatusProcessing,
		Bonus:    decimal.Zero,
		Message:  "payment is processing",
	})
}

func (s *Service) checkUser(ctx context.Context, userID int, amount decimal.Decimal) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return retry.Terminal(fmt.Errorf("%w: user %d", settlement.ErrUserNotFound, userID))
	}
	if user.Balance.LessThan(amount) {
		return retry.Terminal(fmt.Errorf("%w: user %d", settlement.ErrInsufficientFunds, userID))
	}
	return nil
}
