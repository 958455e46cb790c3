package dto

import "github.com/shopspring/decimal"

type PaymentRequestDTO struct {
	UserID   int             `json:"user_id" example:"1"`
	Amount   decimal.Decimal `json:"amount" example:"100.00"`
	Currency string          `json:"currency" example:"USD"`
}

type PaymentResponseDTO struct {
	PaymentID int    `json:"payment_id" example:"42"`
	Status    string `json:"status" example:"processing"`
	Message   string `json:"message" example:"payment is processing"`
}

type PaymentStatusDTO struct {
	PaymentID int             `json:"payment_id" example:"42"`
	UserID    int             `json:"user_id" example:"1"`
	Amount    decimal.Decimal `json:"amount" example:"100.00"`
	Currency  string          `json:"currency" example:"USD"`
	Status    string          `json:"status" example:"success"`
	Bonus     decimal.Decimal `json:"bonus" example:"10.00"`
	Message   string          `json:"message" example:"payment settled"`
}
