package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/dto"
	"github.com/GlebRadaev/payflow/internal/service/initiation"
	"github.com/GlebRadaev/payflow/internal/service/settlement"
	"github.com/GlebRadaev/payflow/pkg/utils"
)

const requestTimeout = 5 * time.Second

type Service interface {
	CreatePayment(ctx context.Context, userID int, amount decimal.Decimal, currency string) (*initiation.Result, error)
	Initiate(ctx context.Context, userID int, amount decimal.Decimal, currency string) (*initiation.Result, error)
	GetPayment(ctx context.Context, paymentID int) (*domain.Payment, error)
}

type PaymentHandler struct {
	paymentService Service
}

func New(paymentService Service) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// CreatePaymentV1 godoc
//
//	@Summary		Create a payment
//	@Description	Create a payment record and process it in the background. The balance check, debit and bonus accrual all happen after the response is returned.
//	@Tags			Payments v1
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PaymentRequestDTO	true	"Payment request payload"
//	@Success		200		{object}	dto.PaymentResponseDTO	"Payment accepted for processing"
//	@Failure		400		{object}	utils.Response			"Invalid request or database error"
//	@Failure		503		{object}	utils.Response			"Service temporarily unavailable"
//	@Router			/api/v1/payments [post]
func (h *PaymentHandler) CreatePaymentV1(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.paymentService.CreatePayment(ctx, req.UserID, req.Amount, req.Currency)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dto.PaymentResponseDTO{
		PaymentID: result.PaymentID,
		Status:    result.Status,
		Message:   result.Message,
	})
}

// CreatePaymentV2 godoc
//
//	@Summary		Create a payment
//	@Description	Create a payment record, validate the user and pre-compute the loyalty bonus concurrently; the debit and final status are settled in the background.
//	@Tags			Payments v2
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PaymentRequestDTO	true	"Payment request payload"
//	@Success		200		{object}	dto.PaymentResponseDTO	"Payment accepted for processing"
//	@Failure		400		{object}	utils.Response			"Invalid request or user check error"
//	@Failure		404		{object}	utils.Response			"User not found or insufficient funds"
//	@Failure		503		{object}	utils.Response			"Service temporarily unavailable"
//	@Router			/api/v2/payments [post]
func (h *PaymentHandler) CreatePaymentV2(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := h.paymentService.Initiate(ctx, req.UserID, req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrUserNotFound), errors.Is(err, settlement.ErrInsufficientFunds):
			utils.RespondWithError(w, http.StatusNotFound, "user not found or insufficient funds")
		case errors.Is(err, context.DeadlineExceeded):
			utils.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dto.PaymentResponseDTO{
		PaymentID: result.PaymentID,
		Status:    result.Status,
		Message:   result.Message,
	})
}

// GetPayment godoc
//
//	@Summary		Get payment status
//	@Description	Get the current status of a payment by its identifier.
//	@Tags			Payments v1
//	@Produce		json
//	@Param			paymentID	path		int						true	"Payment identifier"
//	@Success		200			{object}	dto.PaymentStatusDTO	"Current payment state"
//	@Failure		400			{object}	utils.Response			"Invalid payment identifier"
//	@Failure		404			{object}	utils.Response			"Payment not found"
//	@Failure		408			{object}	utils.Response			"Request timed out"
//	@Failure		500			{object}	utils.Response			"Internal server error"
//	@Router			/api/v1/payments/{paymentID} [get]
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.Atoi(chi.URLParam(r, "paymentID"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payment identifier")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	payment, err := h.paymentService.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			utils.RespondWithError(w, http.StatusRequestTimeout, "request timed out")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if payment == nil {
		utils.RespondWithError(w, http.StatusNotFound, "payment not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dto.PaymentStatusDTO{
		PaymentID: payment.PaymentID,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    payment.Status,
		Bonus:     payment.Bonus,
		Message:   payment.Message,
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*dto.PaymentRequestDTO, bool) {
	var req dto.PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.UserID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "user_id must be positive")
		return nil, false
	}
	if !req.Amount.IsPositive() {
		utils.RespondWithError(w, http.StatusBadRequest, "amount must be positive")
		return nil, false
	}
	if req.Currency == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "currency is required")
		return nil, false
	}
	return &req, true
}
