package finalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/pkg/retry"
)

func NewMock(t *testing.T) (*Service, *MockSettler, *MockLoyaltyClient, *MockNotificationClient) {
	ctrl := gomock.NewController(t)
	settler := NewMockSettler(ctrl)
	loyaltyClient := NewMockLoyaltyClient(ctrl)
	notifier := NewMockNotificationClient(ctrl)

	service := New(settler, loyaltyClient, notifier)
	defer ctrl.Finish()
	return service, settler, loyaltyClient, notifier
}

func testJob(bonus decimal.Decimal) Job {
	return Job{
		PaymentID: 42,
		UserID:    1,
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "USD",
		Bonus:     bonus,
	}
}

func TestFinalize_WithBonus(t *testing.T) {
	service, settler, _, notifier := NewMock(t)
	job := testJob(decimal.RequireFromString("10.00"))

	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, job.Bonus).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusSuccess).
		Return(&notification.Response{Status: "sent"}, nil)

	err := service.finalize(context.Background(), job)
	assert.NoError(t, err)
}

func TestFinalize_ZeroBonusReconciliation(t *testing.T) {
	service, settler, loyaltyClient, notifier := NewMock(t)
	job := testJob(decimal.Zero)
	bonus := decimal.RequireFromString("10.00")

	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, decimal.Zero).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusSuccess).
		Return(&notification.Response{Status: "sent"}, nil)
	gomock.InOrder(
		loyaltyClient.EXPECT().Award(gomock.Any(), 1, job.Amount).
			Return(nil, errors.New("loyalty unavailable")),
		loyaltyClient.EXPECT().Award(gomock.Any(), 1, job.Amount).
			Return(&loyalty.Response{Status: "success", Bonus: bonus}, nil),
	)
	settler.EXPECT().MarkStatus(gomock.Any(), 42, domain.StatusSuccess, "loyalty bonus accrued successfully", bonus).
		Return(nil)

	err := service.finalize(context.Background(), job)
	assert.NoError(t, err)
}

func TestFinalize_SettleFails(t *testing.T) {
	service, settler, _, notifier := NewMock(t)
	job := testJob(decimal.Zero)

	settleErr := errors.New("settlement of payment 42 failed: user store unavailable")
	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, decimal.Zero).Return(settleErr)
	settler.EXPECT().MarkStatus(gomock.Any(), 42, domain.StatusFailed, gomock.Any(), decimal.Zero).
		Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusFailed).
		Return(&notification.Response{Status: "sent"}, nil)

	err := service.finalize(context.Background(), job)
	assert.ErrorIs(t, err, settleErr)
}

func TestFinalize_TerminalSettleSkipsFailedWrite(t *testing.T) {
	service, settler, _, notifier := NewMock(t)
	job := testJob(decimal.Zero)

	settleErr := retry.Terminal(errors.New("insufficient funds: user 1"))
	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, decimal.Zero).Return(settleErr)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusFailed).
		Return(&notification.Response{Status: "sent"}, nil)

	err := service.finalize(context.Background(), job)
	assert.Error(t, err)
}

func TestProcess_BonusIsOnlyLogged(t *testing.T) {
	service, settler, loyaltyClient, notifier := NewMock(t)
	job := testJob(decimal.Zero)

	awarded := make(chan struct{})
	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, decimal.Zero).Return(nil)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusSuccess).
		Return(&notification.Response{Status: "sent"}, nil)
	loyaltyClient.EXPECT().Award(gomock.Any(), 1, job.Amount).
		DoAndReturn(func(ctx context.Context, userID int, amount decimal.Decimal) (*loyalty.Response, error) {
			close(awarded)
			return &loyalty.Response{Status: "success", Bonus: decimal.RequireFromString("10.00")}, nil
		})

	err := service.process(context.Background(), job)
	assert.NoError(t, err)

	select {
	case <-awarded:
	case <-time.After(time.Second):
		t.Fatal("deferred loyalty call never happened")
	}
}

func TestProcess_SettleFails(t *testing.T) {
	service, settler, _, _ := NewMock(t)
	job := testJob(decimal.Zero)

	settleErr := errors.New("settlement of payment 42 failed: user store unavailable")
	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, decimal.Zero).Return(settleErr)
	settler.EXPECT().MarkStatus(gomock.Any(), 42, domain.StatusFailed, gomock.Any(), decimal.Zero).
		Return(nil)

	err := service.process(context.Background(), job)
	assert.ErrorIs(t, err, settleErr)
}

func TestRun_SkipsDuplicateInflight(t *testing.T) {
	service, settler, _, notifier := NewMock(t)
	job := testJob(decimal.RequireFromString("10.00"))

	blocked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	settler.EXPECT().Settle(gomock.Any(), 42, 1, job.Amount, job.Bonus).
		DoAndReturn(func(ctx context.Context, paymentID, userID int, amount, bonus decimal.Decimal) error {
			close(blocked)
			<-release
			return nil
		})
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusSuccess).
		DoAndReturn(func(ctx context.Context, userID int, status string) (*notification.Response, error) {
			close(done)
			return &notification.Response{Status: "sent"}, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	service.Finalize(job)
	<-blocked
	service.Finalize(job)

	// give the run loop a chance to dequeue and drop the duplicate
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finalization never completed")
	}
}
