package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	_ "github.com/GlebRadaev/payflow/docs"
	"github.com/GlebRadaev/payflow/internal/service"
	"github.com/GlebRadaev/payflow/internal/service/initiation"
)

func TestNew(t *testing.T) {
	services := &service.Services{
		InitiationService: &initiation.Service{},
	}

	h := New(services)
	assert.NotNil(t, h, "Handlers should not be nil")
	assert.NotNil(t, h.PaymentHandler)
}

func TestInitRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPaymentHandler := NewMockPaymentHandler(ctrl)

	mockPaymentHandler.EXPECT().CreatePaymentV1(gomock.Any(), gomock.Any()).AnyTimes()
	mockPaymentHandler.EXPECT().CreatePaymentV2(gomock.Any(), gomock.Any()).AnyTimes()
	mockPaymentHandler.EXPECT().GetPayment(gomock.Any(), gomock.Any()).AnyTimes()

	h := &Handlers{
		PaymentHandler: mockPaymentHandler,
	}

	router := chi.NewRouter()
	h.InitRoutes(router)

	tests := []struct {
		method string
		url    string
		status int
	}{
		{"POST", "/api/v1/payments", http.StatusOK},
		{"GET", "/api/v1/payments/42", http.StatusOK},
		{"POST", "/api/v2/payments", http.StatusOK},
		{"GET", "/api/v2/payments/42", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
