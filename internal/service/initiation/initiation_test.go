package initiation

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/internal/service/finalizer"
	"github.com/GlebRadaev/payflow/internal/service/settlement"
)

func NewMock(t *testing.T) (*Service, *MockPaymentRepo, *MockUserRepo, *MockSettler, *MockLoyaltyClient, *MockNotificationClient, *MockDispatcher) {
	ctrl := gomock.NewController(t)
	paymentRepo := NewMockPaymentRepo(ctrl)
	userRepo := NewMockUserRepo(ctrl)
	settler := NewMockSettler(ctrl)
	loyaltyClient := NewMockLoyaltyClient(ctrl)
	notifier := NewMockNotificationClient(ctrl)
	dispatcher := NewMockDispatcher(ctrl)

	service := New(paymentRepo, userRepo, settler, loyaltyClient, notifier, dispatcher)
	defer ctrl.Finish()
	return service, paymentRepo, userRepo, settler, loyaltyClient, notifier, dispatcher
}

func TestInitiate(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	bonus := decimal.RequireFromString("10.00")
	user := &domain.User{UserID: 1, Balance: decimal.RequireFromString("250.00")}

	tests := []struct {
		name          string
		prepareMock   func(paymentRepo *MockPaymentRepo, userRepo *MockUserRepo, settler *MockSettler, loyaltyClient *MockLoyaltyClient, notifier *MockNotificationClient, dispatcher *MockDispatcher)
		expectedError error
		expectedJob   *finalizer.Job
	}{
		{
			name: "Accepted with loyalty bonus",
			prepareMock: func(paymentRepo *MockPaymentRepo, userRepo *MockUserRepo, settler *MockSettler, loyaltyClient *MockLoyaltyClient, notifier *MockNotificationClient, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(42, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), 1).Return(user, nil)
				loyaltyClient.EXPECT().Award(gomock.Any(), 1, amount).
					Return(&loyalty.Response{Status: "success", Bonus: bonus}, nil)
				notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusProcessing).
					Return(&notification.Response{Status: "sent"}, nil)
			},
			expectedError: nil,
			expectedJob: &finalizer.Job{
				PaymentID: 42,
				UserID:    1,
				Amount:    amount,
				Currency:  "USD",
				Bonus:     bonus,
			},
		},
		{
			name: "Loyalty failure defers the bonus",
			prepareMock: func(paymentRepo *MockPaymentRepo, userRepo *MockUserRepo, settler *MockSettler, loyaltyClient *MockLoyaltyClient, notifier *MockNotificationClient, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(42, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), 1).Return(user, nil)
				loyaltyClient.EXPECT().Award(gomock.Any(), 1, amount).
					Return(nil, errors.New("loyalty unavailable")).Times(3)
				notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusProcessing).
					Return(&notification.Response{Status: "sent"}, nil)
			},
			expectedError: nil,
			expectedJob: &finalizer.Job{
				PaymentID: 42,
				UserID:    1,
				Amount:    amount,
				Currency:  "USD",
				Bonus:     decimal.Zero,
			},
		},
		{
			name: "Insufficient funds rejects the payment",
			prepareMock: func(paymentRepo *MockPaymentRepo, userRepo *MockUserRepo, settler *MockSettler, loyaltyClient *MockLoyaltyClient, notifier *MockNotificationClient, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(42, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), 1).
					Return(&domain.User{UserID: 1, Balance: decimal.RequireFromString("50.00")}, nil)
				loyaltyClient.EXPECT().Award(gomock.Any(), 1, amount).
					Return(&loyalty.Response{Status: "success", Bonus: bonus}, nil)
				notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusProcessing).
					Return(&notification.Response{Status: "sent"}, nil)
				settler.EXPECT().MarkStatus(gomock.Any(), 42, domain.StatusFailed, gomock.Any(), decimal.Zero).
					Return(nil)
			},
			expectedError: settlement.ErrInsufficientFunds,
			expectedJob:   nil,
		},
		{
			name: "Unknown user rejects the payment",
			prepareMock: func(paymentRepo *MockPaymentRepo, userRepo *MockUserRepo, settler *MockSettler, loyaltyClient *MockLoyaltyClient, notifier *MockNotificationClient, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(42, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), 1).Return(nil, nil)
				loyaltyClient.EXPECT().Award(gomock.Any(), 1, amount).
					Return(&loyalty.Response{Status: "success", Bonus: bonus}, nil)
				notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusProcessing).
					Return(&notification.Response{Status: "sent"}, nil)
				settler.EXPECT().MarkStatus(gomock.Any(), 42, domain.StatusFailed, gomock.Any(), decimal.Zero).
					Return(nil)
			},
			expectedError: settlement.ErrUserNotFound,
			expectedJob:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, paymentRepo, userRepo, settler, loyaltyClient, notifier, dispatcher := NewMock(t)
			tt.prepareMock(paymentRepo, userRepo, settler, loyaltyClient, notifier, dispatcher)

			var dispatched *finalizer.Job
			if tt.expectedJob != nil {
				dispatcher.EXPECT().Finalize(gomock.Any()).Do(func(job finalizer.Job) {
					dispatched = &job
				})
			}

			result, err := service.Initiate(context.Background(), 1, amount, "USD")

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, result)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, 42, result.PaymentID)
			assert.Equal(t, domain.StatusProcessing, result.Status)
			assert.Equal(t, "payment is processing", result.Message)
			assert.Equal(t, tt.expectedJob, dispatched)
		})
	}
}

func TestInitiate_CreationFailure(t *testing.T) {
	service, paymentRepo, userRepo, _, loyaltyClient, notifier, _ := NewMock(t)

	amount := decimal.RequireFromString("100.00")

	paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(0, errors.New("payment store unavailable")).Times(5)
	userRepo.EXPECT().GetByID(gomock.Any(), 1).
		Return(&domain.User{UserID: 1, Balance: decimal.RequireFromString("250.00")}, nil)
	loyaltyClient.EXPECT().Award(gomock.Any(), 1, amount).
		Return(&loyalty.Response{Status: "success", Bonus: decimal.Zero}, nil)
	notifier.EXPECT().Notify(gomock.Any(), 1, domain.StatusProcessing).
		Return(&notification.Response{Status: "sent"}, nil)

	result, err := service.Initiate(context.Background(), 1, amount, "USD")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create payment")
	assert.Nil(t, result)
}

func TestCreatePayment(t *testing.T) {
	amount := decimal.RequireFromString("100.00")

	tests := []struct {
		name        string
		prepareMock func(paymentRepo *MockPaymentRepo, dispatcher *MockDispatcher)
		expectErr   bool
	}{
		{
			name: "Creates payment and dispatches processing",
			prepareMock: func(paymentRepo *MockPaymentRepo, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, payment *domain.Payment) (int, error) {
						assert.Equal(t, domain.StatusProcessing, payment.Status)
						assert.True(t, payment.Bonus.IsZero())
						return 42, nil
					})
				dispatcher.EXPECT().Process(finalizer.Job{
					PaymentID: 42,
					UserID:    1,
					Amount:    amount,
					Currency:  "USD",
					Bonus:     decimal.Zero,
				})
			},
			expectErr: false,
		},
		{
			name: "Recovers after transient creation failure",
			prepareMock: func(paymentRepo *MockPaymentRepo, dispatcher *MockDispatcher) {
				gomock.InOrder(
					paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
						Return(0, errors.New("connection reset")),
					paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(42, nil),
				)
				dispatcher.EXPECT().Process(gomock.Any())
			},
			expectErr: false,
		},
		{
			name: "Exhausts retries",
			prepareMock: func(paymentRepo *MockPaymentRepo, dispatcher *MockDispatcher) {
				paymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(0, errors.New("payment store unavailable")).Times(5)
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, paymentRepo, _, _, _, _, dispatcher := NewMock(t)
			tt.prepareMock(paymentRepo, dispatcher)

			result, err := service.CreatePayment(context.Background(), 1, amount, "USD")
			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 42, result.PaymentID)
				assert.Equal(t, domain.StatusProcessing, result.Status)
			}
		})
	}
}

func TestGetPayment(t *testing.T) {
	payment := &domain.Payment{
		PaymentID: 42,
		UserID:    1,
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "USD",
		Status:    domain.StatusSuccess,
		Bonus:     decimal.RequireFromString("10.00"),
		Message:   "payment settled successfully",
	}

	tests := []struct {
		name        string
		prepareMock func(paymentRepo *MockPaymentRepo)
		expected    *domain.Payment
		expectErr   bool
	}{
		{
			name: "Payment found",
			prepareMock: func(paymentRepo *MockPaymentRepo) {
				paymentRepo.EXPECT().GetByID(gomock.Any(), 42).Return(payment, nil)
			},
			expected: payment,
		},
		{
			name: "Payment not found",
			prepareMock: func(paymentRepo *MockPaymentRepo) {
				paymentRepo.EXPECT().GetByID(gomock.Any(), 42).Return(nil, nil)
			},
			expected: nil,
		},
		{
			name: "Recovers after transient lookup failure",
			prepareMock: func(paymentRepo *MockPaymentRepo) {
				gomock.InOrder(
					paymentRepo.EXPECT().GetByID(gomock.Any(), 42).
						Return(nil, errors.New("connection reset")),
					paymentRepo.EXPECT().GetByID(gomock.Any(), 42).Return(payment, nil),
				)
			},
			expected: payment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, paymentRepo, _, _, _, _, _ := NewMock(t)
			tt.prepareMock(paymentRepo)

			result, err := service.GetPayment(context.Background(), 42)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}
